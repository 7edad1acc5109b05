package proofgate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRules(t *testing.T) {
	t.Run("default rules load", func(t *testing.T) {
		_, err := LoadRules(DefaultRules())
		require.NoError(t, err)
	})

	t.Run("empty table rejected", func(t *testing.T) {
		_, err := LoadRules(nil)
		require.Error(t, err)
	})

	t.Run("overlap rejected", func(t *testing.T) {
		max1 := int64(5000)
		_, err := LoadRules([]Rule{
			{MinAmount: 0, MaxAmount: &max1, Requirement: RequirementNone},
			{MinAmount: 4000, MaxAmount: nil, Requirement: RequirementRequired},
		})
		require.Error(t, err)
	})

	t.Run("unknown requirement rejected", func(t *testing.T) {
		_, err := LoadRules([]Rule{
			{MinAmount: 0, MaxAmount: nil, Requirement: Requirement("maybe")},
		})
		require.Error(t, err)
	})
}

func TestClassify(t *testing.T) {
	table, err := LoadRules(DefaultRules())
	require.NoError(t, err)

	t.Run("small amounts bypass escrow", func(t *testing.T) {
		d, err := table.Classify(2000)
		require.NoError(t, err)
		require.Equal(t, RequirementNone, d.Requirement)
		require.Zero(t, d.TransferDelay)
	})

	t.Run("middle band is sender's choice", func(t *testing.T) {
		d, err := table.Classify(3000)
		require.NoError(t, err)
		require.Equal(t, RequirementOptional, d.Requirement)
		require.Equal(t, 24*time.Hour, d.TransferDelay)
	})

	t.Run("large amounts require proof", func(t *testing.T) {
		d, err := table.Classify(10000)
		require.NoError(t, err)
		require.Equal(t, RequirementRequired, d.Requirement)
		require.Equal(t, 72*time.Hour, d.TransferDelay)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		_, err := table.Classify(0)
		require.Error(t, err)
	})
}
