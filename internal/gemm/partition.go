package gemm

import "math/bits"

// ChooseCorePartition picks how many parallel units split M and N.
//
// When every (M, N) block pair can have its own unit the block counts are
// returned directly. Otherwise power-of-two splits of coreCount are searched
// for the one that re-copies the fewest operand bytes: each of the n units
// sharing an M stripe copies A again, and each of the m units sharing an N
// stripe copies B again. Ties keep the first candidate found.
func ChooseCorePartition(m, n, k, coreCount int) CorePartition {
	if coreCount < 1 {
		coreCount = 1
	}
	if m == 1 {
		return gevmPartition(n, coreCount)
	}
	nBlocks := blocks(n)
	mBlocks := blocks(m)
	if mBlocks*nBlocks <= coreCount {
		return CorePartition{M: mBlocks, N: nBlocks}
	}

	var (
		best     CorePartition
		bestCost int64
		found    bool
	)
	bound := bits.Len(uint(coreCount))
	for e := 0; e < bound; e++ {
		i := 1 << e
		if coreCount%i != 0 {
			continue
		}
		j := coreCount / i
		if i > mBlocks || j > nBlocks {
			continue
		}
		if cost := copyCost(mBlocks, nBlocks, i, j, k); !found || cost < bestCost {
			best = CorePartition{M: i, N: j}
			bestCost = cost
			found = true
		}
	}
	if !found {
		// The full block pair would exceed the budget.
		return clampPartition(mBlocks, nBlocks, coreCount)
	}
	return best
}

// partitionFor splits p across coreCount units. Vector problems spread N
// over every unit or stay on one.
func partitionFor(p Problem, coreCount int) CorePartition {
	if p.GEMV {
		return gevmPartition(p.N, max(coreCount, 1))
	}
	return ChooseCorePartition(p.M, p.N, p.K, coreCount)
}

func gevmPartition(n, coreCount int) CorePartition {
	if blocks(n) >= coreCount {
		return CorePartition{M: 1, N: coreCount}
	}
	return CorePartition{M: 1, N: 1}
}

// copyCost is the element count moved from off-chip when mf x nf units split
// the output. Stripes that do not divide evenly are charged as whole stripes.
func copyCost(mBlocks, nBlocks, mf, nf, k int) int64 {
	sizeA := int64(ceilDiv(mBlocks, mf)*mf*BlockQuantum) * int64(k)
	sizeB := int64(ceilDiv(nBlocks, nf)*nf*BlockQuantum) * int64(k)
	return int64(nf)*sizeA + int64(mf)*sizeB
}

// clampPartition keeps the full-block fallback inside the core budget.
func clampPartition(mBlocks, nBlocks, coreCount int) CorePartition {
	mf := min(mBlocks, coreCount)
	nf := max(1, min(nBlocks, coreCount/mf))
	return CorePartition{M: mf, N: nf}
}

// coreInner is the per-unit extent of a dimension split into parts.
func coreInner(dim, parts int) int {
	if dim == 1 {
		return 1
	}
	return ceilDiv(blocks(dim), max(parts, 1)) * BlockQuantum
}
