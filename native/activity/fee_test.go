package activity

import (
	"math"
	"testing"
)

func TestFee(t *testing.T) {
	cases := []struct {
		name     string
		gross    uint64
		ratioBps uint16
		want     uint64
	}{
		{"typical", 1_000, 250, 25},
		{"rounds down", 1, 1, 0},
		{"rounds down large", 9_999, 1, 0},
		{"zero ratio", 123_456, 0, 0},
		{"full ratio", 123_456, 10_000, 123_456},
		{"zero gross", 0, 250, 0},
		{"max gross half", math.MaxUint64, 5_000, math.MaxUint64 / 2},
		{"max gross full", math.MaxUint64, 10_000, math.MaxUint64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fee(tc.gross, tc.ratioBps); got != tc.want {
				t.Fatalf("Fee(%d, %d) = %d, want %d", tc.gross, tc.ratioBps, got, tc.want)
			}
		})
	}
}

func TestFeeNeverExceedsGross(t *testing.T) {
	for _, gross := range []uint64{1, 999, 10_000, math.MaxUint64} {
		for _, ratio := range []uint16{0, 1, 2_500, 9_999, 10_000} {
			if fee := Fee(gross, ratio); fee > gross {
				t.Fatalf("Fee(%d, %d) = %d exceeds gross", gross, ratio, fee)
			}
		}
	}
}
