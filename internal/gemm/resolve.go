package gemm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TileSource records where a resolved tiling came from.
type TileSource uint8

const (
	SourceOracle TileSource = iota
	SourceKnowledge
	SourceOverride
)

func (s TileSource) String() string {
	switch s {
	case SourceKnowledge:
		return "knowledge"
	case SourceOverride:
		return "override"
	default:
		return "oracle"
	}
}

func (s TileSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolution is the output of ResolveTiles.
type Resolution struct {
	Tiling string
	Source TileSource
	Tiles  TilePair
}

// ResolveTiles fixes the L1 and L0 tiles for p.
//
// The curated table wins over the oracle on low-core-count parts with a
// transposed B operand. The parsed L0 tile is then corrected and L1 is set
// equal to it; the engine does not attempt distinct L1 and L0 tiles.
func ResolveTiles(ctx context.Context, p Problem, widths ByteWidths, nCutEven bool, hw Hardware, oracle Oracle) (Resolution, error) {
	res := Resolution{Source: SourceOracle}

	known := false
	if hw.LowCoreCount() && p.TransposeB {
		res.Tiling, known = LookupKnownTiling(ShapeKey{M: p.M, K: p.K, N: p.N, UBBytes: widths.UB})
		if known {
			res.Source = SourceKnowledge
		}
	}
	if !known {
		if oracle == nil {
			return res, fmt.Errorf("resolve tiles: no tile-size oracle configured")
		}
		s, err := oracle.ProposeTiling(ctx, OracleRequest{
			M:          p.M,
			K:          p.K,
			N:          p.N,
			Widths:     widths,
			Bias:       p.HasBias,
			NCutEven:   nCutEven,
			TransposeB: p.TransposeB,
		})
		if err != nil {
			return res, fmt.Errorf("resolve tiles: oracle: %w", err)
		}
		res.Tiling = s
	}

	tiles, err := ParseTiling(res.Tiling)
	if err != nil {
		return res, err
	}
	tiles.L0 = correctTile(p.Shape(), tiles.L0)
	tiles.L1 = tiles.L0
	res.Tiles = tiles

	if err := Validate(p.Shape(), tiles.L1, tiles.L0); err != nil {
		return res, err
	}
	return res, nil
}

// ParseTiling decodes "m1_k1_n1_m0_k0_n0".
func ParseTiling(s string) (TilePair, error) {
	fields := strings.Split(strings.TrimSpace(s), "_")
	if len(fields) != 6 {
		return TilePair{}, &InvalidTilingError{Tiling: s, Reason: fmt.Sprintf("want 6 fields, got %d", len(fields))}
	}
	var v [6]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return TilePair{}, &InvalidTilingError{Tiling: s, Reason: fmt.Sprintf("field %d: %v", i, err)}
		}
		if n <= 0 {
			return TilePair{}, &InvalidTilingError{Tiling: s, Reason: fmt.Sprintf("field %d is not positive", i)}
		}
		v[i] = n
	}
	return TilePair{
		L1: TileShape{M: v[0], K: v[1], N: v[2]},
		L0: TileShape{M: v[3], K: v[4], N: v[5]},
	}, nil
}

// FormatTiling is the inverse of ParseTiling.
func FormatTiling(t TilePair) string {
	return fmt.Sprintf("%d_%d_%d_%d_%d_%d", t.L1.M, t.L1.K, t.L1.N, t.L0.M, t.L0.K, t.L0.N)
}

// correctTile halves M when one L0 tile would cover the whole problem, so
// that more than one M iteration exists, then applies per-shape corrections.
func correctTile(problem, l0 TileShape) TileShape {
	if problem.Volume() == l0.Volume() && l0.M != 1 {
		l0.M = roundUp(ceilDiv(l0.M, 2), BlockQuantum)
	}
	if fixed, ok := shapeCorrections[problem]; ok {
		l0 = fixed
	}
	return l0
}

// ByteWidthsFor derives per-scope widths from the graph. A role with a fractal
// companion tensor counts twice.
func ByteWidthsFor(g *Graph) ByteWidths {
	p := g.Problem
	w := ByteWidths{
		A:   p.A.Bytes(),
		B:   p.B.Bytes(),
		L0C: p.Acc.Bytes(),
		UB:  p.Out.Bytes(),
	}
	if p.HasBias {
		w.Bias = p.Bias.Bytes()
	}
	for _, t := range g.Tensors {
		if !t.Fractal {
			continue
		}
		switch t.Role {
		case RoleOperandA:
			w.A *= 2
		case RoleOperandB:
			w.B *= 2
		case RoleAccumulator:
			w.L0C *= 2
		case RoleOutput:
			w.UB *= 2
		case RoleBias:
			w.Bias *= 2
		}
	}
	return w
}
