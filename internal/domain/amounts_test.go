package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", FormatAmount(100))
	assert.Equal(t, "120.50", FormatAmount(120.5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "99.99", FormatAmount(99.99))
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100.00", true},
		{"100.00", "100.00", true},
		{"100.5", "100.50", true},
		{"100.00000001", "100.00", true},
		{"not-a-number", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestSameAmount(t *testing.T) {
	// Values differing only in floating-point representation compare
	// equal after normalization.
	assert.True(t, SameAmount("100", "100.00"))
	assert.True(t, SameAmount("100.00000001", "100"))
	assert.False(t, SameAmount("100.00", "120.00"))
	assert.False(t, SameAmount("garbage", "100.00"))
}

func TestCentsConversion(t *testing.T) {
	assert.Equal(t, "120.00", CentsToAmount(12000))
	assert.Equal(t, "0.99", CentsToAmount(99))

	cents, ok := AmountToCents("120.00")
	assert.True(t, ok)
	assert.Equal(t, int64(12000), cents)

	_, ok = AmountToCents("bogus")
	assert.False(t, ok)
}

func TestPurchaser(t *testing.T) {
	o := &Order{People: []Person{{First: "Ada", Email: "ada@example.com"}, {First: "Grace"}}}
	assert.Equal(t, "ada@example.com", o.Purchaser().Email)

	empty := &Order{}
	assert.Equal(t, Person{}, empty.Purchaser())
}
