package gemm

// InnerSplit is the result of the budget-limited inner split. M and N are in
// block quanta.
type InnerSplit struct {
	FactorMax int `json:"factor_max"`
	M         int `json:"m"`
	N         int `json:"n"`
}

// InnerFactor sizes the UB-resident slice of an output tile.
//
// mTile and nTile are the output tile in blocks, coreNParts caps nTile at the
// per-core block count along N, and width is the fused width normalized to
// the output element size. Half of capacity is usable since the fused stages
// are double buffered.
func InnerFactor(capacity, outBytes, width, mTile, nTile, coreNParts int) InnerSplit {
	mTile = max(mTile, 1)
	nTile = max(nTile, 1)
	if coreNParts > 0 {
		nTile = min(nTile, coreNParts)
	}
	outBytes = max(outBytes, 1)
	width = max(width, 1)

	budget := capacity / 2 / (BlockQuantum * BlockQuantum * outBytes * mTile) / width

	switch {
	case budget == 0:
		return InnerSplit{FactorMax: 0, M: 1, N: nTile}
	case budget < nTile:
		return InnerSplit{FactorMax: budget, M: 1, N: largestDivisorAtMost(nTile, budget)}
	default:
		return InnerSplit{FactorMax: budget, M: mTile, N: nTile}
	}
}

// largestDivisorAtMost returns the largest divisor of v not above limit. Both
// must be positive, so 1 always qualifies.
func largestDivisorAtMost(v, limit int) int {
	for d := min(v, limit); d > 1; d-- {
		if v%d == 0 {
			return d
		}
	}
	return 1
}
