package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitNonEmpty(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple", "a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{"trims and drops blanks", " a:9092, ,b:9092,", []string{"a:9092", "b:9092"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, splitNonEmpty(tc.in))
		})
	}
}
