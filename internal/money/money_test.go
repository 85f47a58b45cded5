package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulBasisPointsHalfEven(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		bp     int64
		want   int64
	}{
		{"exact", 15000, 1500, 2250},
		{"round down", 1001, 1500, 150},
		{"round up", 1005, 1500, 151},
		{"half of even amount", 10, 5000, 5},
		{"tie to even from odd", 1, 5000, 0},
		{"tie to even from odd up", 3, 5000, 2},
		{"zero", 0, 1500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MulBasisPointsHalfEven(tt.amount, tt.bp))
		})
	}
}

func TestMulBasisPointsHalfUp(t *testing.T) {
	assert.Equal(t, int64(1725), MulBasisPointsHalfUp(17250, 1000))
	assert.Equal(t, int64(1), MulBasisPointsHalfUp(1, 5000))
	assert.Equal(t, int64(2), MulBasisPointsHalfUp(3, 5000))
	assert.Equal(t, int64(0), MulBasisPointsHalfUp(0, 5000))
}

func TestFromMajor(t *testing.T) {
	assert.Equal(t, int64(1000), FromMajor(10))
	assert.Equal(t, int64(1050), FromMajor(10.5))
	assert.Equal(t, int64(1999), FromMajor(19.99))
}

func TestFormatGBP(t *testing.T) {
	assert.Equal(t, "£10.00", FormatGBP(1000))
	assert.Equal(t, "£172.50", FormatGBP(17250))
	assert.Equal(t, "£0.05", FormatGBP(5))
	assert.Equal(t, "-£1.20", FormatGBP(-120))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "15%", FormatPercent(1500))
	assert.Equal(t, "12.5%", FormatPercent(1250))
	assert.Equal(t, "0.25%", FormatPercent(25))
}
