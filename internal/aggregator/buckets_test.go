package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproxLowerBound(t *testing.T) {
	cases := []struct {
		label string
		want  int64
	}{
		{"", 0},
		{"unknown", 0},
		{"0", 0},
		{"<100ms", 0},
		{"<100K", 0},
		{"1-5s", 1},
		{"2-3", 2},
		{"5-10s", 5},
		{"100-500ms", 100},
		{"500-1K", 500},
		{"100K-1M", 100_000},
		{"1M-10M", 1_000_000},
		{"64-256MB", 64},
		{">5", 5},
		{">1K", 1_000},
		{">1m", 1},
		{">100M", 100_000_000},
		{">1GB", 1},
		{"garbage", 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ApproxLowerBound(tc.label), "label %q", tc.label)
	}
}
