package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CommissionSuite struct {
	suite.Suite
	table *Table
}

func TestCommissionSuite(t *testing.T) {
	suite.Run(t, new(CommissionSuite))
}

func (s *CommissionSuite) SetupTest() {
	var err error
	s.table, err = LoadTiers(DefaultTiers())
	s.Require().NoError(err)
}

func (s *CommissionSuite) TestLoadTiers() {
	s.Run("empty table rejected", func() {
		_, err := LoadTiers(nil)
		s.Error(err)
	})

	s.Run("gap between ranges rejected", func() {
		max1 := int64(1000)
		_, err := LoadTiers([]Tier{
			{Name: "a", MinAmount: 0, MaxAmount: &max1, Rate: decimal.NewFromFloat(0.05), GiverShare: decimal.NewFromFloat(0.5)},
			{Name: "b", MinAmount: 2000, MaxAmount: nil, Rate: decimal.NewFromFloat(0.10), GiverShare: decimal.NewFromFloat(0.5)},
		})
		s.Error(err)
		s.Contains(err.Error(), "contiguous")
	})

	s.Run("first tier must start at zero", func() {
		_, err := LoadTiers([]Tier{
			{Name: "a", MinAmount: 100, MaxAmount: nil, Rate: decimal.NewFromFloat(0.05), GiverShare: decimal.NewFromFloat(0.5)},
		})
		s.Error(err)
	})

	s.Run("last tier must be unbounded", func() {
		max1 := int64(1000)
		_, err := LoadTiers([]Tier{
			{Name: "a", MinAmount: 0, MaxAmount: &max1, Rate: decimal.NewFromFloat(0.05), GiverShare: decimal.NewFromFloat(0.5)},
		})
		s.Error(err)
	})

	s.Run("rate of 1 or above rejected", func() {
		_, err := LoadTiers([]Tier{
			{Name: "a", MinAmount: 0, MaxAmount: nil, Rate: decimal.NewFromInt(1), GiverShare: decimal.NewFromFloat(0.5)},
		})
		s.Error(err)
	})

	s.Run("unbounded tier not last rejected", func() {
		max2 := int64(2000)
		_, err := LoadTiers([]Tier{
			{Name: "a", MinAmount: 0, MaxAmount: nil, Rate: decimal.NewFromFloat(0.05), GiverShare: decimal.NewFromFloat(0.5)},
			{Name: "b", MinAmount: 1000, MaxAmount: &max2, Rate: decimal.NewFromFloat(0.10), GiverShare: decimal.NewFromFloat(0.5)},
		})
		s.Error(err)
	})
}

func (s *CommissionSuite) TestCompute() {
	s.Run("standard split for 2500 in the 10 percent tier", func() {
		b, err := s.table.Compute(2500, AccountStandard)
		s.Require().NoError(err)
		s.Equal("standard", b.TierName)
		s.Equal(int64(250), b.Total)
		s.Equal(int64(175), b.Giver)
		s.Equal(int64(75), b.Receiver)
		s.Equal(int64(2250), b.ReceiverGets)
		s.Equal(int64(2500), b.GiverPays)
	})

	s.Run("verified creator receives full nominal amount", func() {
		b, err := s.table.Compute(2500, AccountVerifiedCreator)
		s.Require().NoError(err)
		s.Equal(int64(250), b.Total)
		s.Equal(int64(250), b.Giver)
		s.Equal(int64(0), b.Receiver)
		s.Equal(int64(2500), b.ReceiverGets)
		s.Equal(int64(2750), b.GiverPays)
	})

	s.Run("non-positive amount rejected", func() {
		_, err := s.table.Compute(0, AccountStandard)
		s.Error(err)
		_, err = s.table.Compute(-5, AccountStandard)
		s.Error(err)
	})

	s.Run("boundary amounts land in the right tier", func() {
		b, err := s.table.Compute(999, AccountStandard)
		s.Require().NoError(err)
		s.Equal("micro", b.TierName)

		b, err = s.table.Compute(1000, AccountStandard)
		s.Require().NoError(err)
		s.Equal("standard", b.TierName)

		b, err = s.table.Compute(5000, AccountStandard)
		s.Require().NoError(err)
		s.Equal("premium", b.TierName)
	})

	s.Run("parts sum exactly across awkward amounts", func() {
		for _, amount := range []int64{1, 7, 33, 999, 1001, 2499, 4999, 5001, 123457} {
			for _, at := range []AccountType{AccountStandard, AccountVerifiedCreator} {
				b, err := s.table.Compute(amount, at)
				s.Require().NoError(err)
				s.Equal(b.Total, b.Giver+b.Receiver, "amount=%d type=%s", amount, at)
			}
			b, err := s.table.Compute(amount, AccountStandard)
			s.Require().NoError(err)
			s.Equal(amount, b.ReceiverGets+b.Total, "amount=%d", amount)
		}
	})

	s.Run("truncation never rounds up", func() {
		// 33 * 0.05 = 1.65 -> 1
		b, err := s.table.Compute(33, AccountStandard)
		s.Require().NoError(err)
		s.Equal(int64(1), b.Total)
	})
}
