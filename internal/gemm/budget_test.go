package gemm

import (
	"errors"
	"testing"
)

func TestInnerFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                                          string
		capacity, outBytes, width, mTile, nTile, core int
		want                                          InnerSplit
	}{
		{"fits", 256 << 10, 2, 1, 4, 8, 0, InnerSplit{FactorMax: 64, M: 4, N: 8}},
		{"no budget", 1 << 10, 2, 1, 4, 8, 0, InnerSplit{FactorMax: 0, M: 1, N: 8}},
		{"divisor search", 256 << 10, 2, 20, 4, 8, 0, InnerSplit{FactorMax: 3, M: 1, N: 2}},
		{"core cap", 256 << 10, 2, 1, 4, 8, 4, InnerSplit{FactorMax: 64, M: 4, N: 4}},
		{"prime tile", 256 << 10, 2, 13, 4, 7, 0, InnerSplit{FactorMax: 4, M: 1, N: 1}},
	}
	for _, tc := range tests {
		got := InnerFactor(tc.capacity, tc.outBytes, tc.width, tc.mTile, tc.nTile, tc.core)
		if got != tc.want {
			t.Fatalf("%s: InnerFactor() = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestLargestDivisorAtMost(t *testing.T) {
	t.Parallel()

	tests := []struct{ v, limit, want int }{
		{12, 5, 4},
		{12, 12, 12},
		{7, 6, 1},
		{8, 3, 2},
		{1, 1, 1},
	}
	for _, tc := range tests {
		if got := largestDivisorAtMost(tc.v, tc.limit); got != tc.want {
			t.Fatalf("largestDivisorAtMost(%d, %d) = %d, want %d", tc.v, tc.limit, got, tc.want)
		}
	}
}

func TestReduceScratchBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dtype  Dtype
		extent int
		want   int
	}{
		{Float16, 16, 64},
		{Float16, 17, 96},
		{Float32, 16, 96},
		{Int32, 8, 64},
	}
	for _, tc := range tests {
		got, err := ReduceScratchBytes(tc.dtype, tc.extent)
		if err != nil {
			t.Fatalf("ReduceScratchBytes(%s, %d) error = %v", tc.dtype, tc.extent, err)
		}
		if got != tc.want {
			t.Fatalf("ReduceScratchBytes(%s, %d) = %d, want %d", tc.dtype, tc.extent, got, tc.want)
		}
	}

	for _, d := range []Dtype{Int8, UInt8, BFloat16, DtypeInvalid} {
		_, err := ReduceScratchBytes(d, 16)
		var ude *UnsupportedDtypeError
		if !errors.As(err, &ude) || ude.Dtype != d {
			t.Fatalf("ReduceScratchBytes(%s) error = %v, want UnsupportedDtypeError", d, err)
		}
	}
}
