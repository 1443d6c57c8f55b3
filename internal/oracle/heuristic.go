package oracle

import (
	"context"
	"fmt"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/hardware"
)

const (
	maxTileMN = 256
	// iterOverhead charges each L0 iteration a fixed byte cost so that
	// fewer, deeper reduction steps win over many shallow ones.
	iterOverhead = 512
)

// Capacities are the buffer sizes the search must respect, in bytes.
type Capacities struct {
	L1  int
	L0A int
	L0B int
	L0C int
}

// Heuristic proposes tilings by enumerating block-aligned L0 tiles that fit
// half of each near-compute buffer and keeping the one that moves the fewest
// operand bytes from off-chip.
type Heuristic struct {
	Caps Capacities
}

func NewHeuristic(p hardware.Profile) *Heuristic {
	return &Heuristic{Caps: Capacities{L1: p.L1, L0A: p.L0A, L0B: p.L0B, L0C: p.L0C}}
}

type candidate struct {
	m, k, n int
	cost    int64
}

func (h *Heuristic) ProposeTiling(ctx context.Context, req gemm.OracleRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.M <= 0 || req.K <= 0 || req.N <= 0 {
		return "", fmt.Errorf("propose tiling: non-positive shape (%d,%d,%d)", req.M, req.K, req.N)
	}
	w := req.Widths
	if w.A <= 0 || w.B <= 0 || w.L0C <= 0 {
		return "", fmt.Errorf("propose tiling: missing byte widths %+v", w)
	}

	ms, err := dimCandidates("m", req.M, maxTileMN)
	if err != nil {
		return "", err
	}
	ns, err := dimCandidates("n", req.N, maxTileMN)
	if err != nil {
		return "", err
	}
	ks, err := dimCandidates("k", req.K, req.K)
	if err != nil {
		return "", err
	}

	best, ok := h.search(req, ms, ks, ns, req.NCutEven)
	if !ok && req.NCutEven {
		best, ok = h.search(req, ms, ks, ns, false)
	}
	if !ok {
		return "", fmt.Errorf("propose tiling: no L0 tile of (%d,%d,%d) fits the near-compute buffers", req.M, req.K, req.N)
	}

	k1 := h.l1Depth(req, best)
	return fmt.Sprintf("%d_%d_%d_%d_%d_%d", best.m, k1, best.n, best.m, best.k, best.n), nil
}

func (h *Heuristic) search(req gemm.OracleRequest, ms, ks, ns []int, evenN bool) (candidate, bool) {
	w := req.Widths
	var best candidate
	found := false
	for _, m := range ms {
		for _, n := range ns {
			if evenN && (n/gemm.BlockQuantum)%2 != 0 {
				continue
			}
			if m*n*w.L0C > h.Caps.L0C/2 {
				continue
			}
			for _, k := range ks {
				if m*k*w.A > h.Caps.L0A/2 || k*n*w.B > h.Caps.L0B/2 {
					continue
				}
				c := candidate{m: m, k: k, n: n, cost: traffic(req, m, k, n)}
				if !found || c.cost < best.cost || (c.cost == best.cost && m*k*n > best.m*best.k*best.n) {
					best = c
					found = true
				}
			}
		}
	}
	return best, found
}

// traffic estimates off-chip bytes read for one output pass: A is re-read
// for every N tile and B for every M tile.
func traffic(req gemm.OracleRequest, m, k, n int) int64 {
	w := req.Widths
	mTiles := int64(ceilDiv(req.M, m))
	nTiles := int64(ceilDiv(req.N, n))
	kTiles := int64(ceilDiv(req.K, k))
	a := int64(req.M) * int64(req.K) * int64(w.A) * nTiles
	b := int64(req.K) * int64(req.N) * int64(w.B) * mTiles
	return a + b + mTiles*nTiles*kTiles*iterOverhead
}

// l1Depth is the deepest multiple of the L0 depth whose A and B slices fit in
// half of L1, or the full K when that fits.
func (h *Heuristic) l1Depth(req gemm.OracleRequest, c candidate) int {
	w := req.Widths
	fits := func(k int) bool {
		return (c.m*k*w.A + k*c.n*w.B) <= h.Caps.L1/2
	}
	if req.K%gemm.BlockQuantum == 0 && fits(req.K) {
		return req.K
	}
	k1 := c.k
	for next := k1 + c.k; next <= req.K && fits(next); next += c.k {
		k1 = next
	}
	return k1
}

// dimCandidates lists block-aligned tile sizes up to min(dim, limit). A
// vector dimension only admits 1.
func dimCandidates(name string, dim, limit int) ([]int, error) {
	if dim == 1 {
		return []int{1}, nil
	}
	top := min(dim, limit) / gemm.BlockQuantum * gemm.BlockQuantum
	if top < gemm.BlockQuantum {
		return nil, fmt.Errorf("propose tiling: %s=%d is below the block quantum", name, dim)
	}
	out := make([]int, 0, top/gemm.BlockQuantum)
	for v := gemm.BlockQuantum; v <= top; v += gemm.BlockQuantum {
		out = append(out, v)
	}
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
