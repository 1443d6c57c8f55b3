package gemm

import "fmt"

// ReuseClass says how long an operand stays resident in L1.
type ReuseClass uint8

const (
	ReuseNone ReuseClass = iota
	// ReusePerReductionTile keeps the current tile's full-K slice across the
	// reduction loop.
	ReusePerReductionTile
	// ReusePerWholeOutputTile keeps the whole per-core operand resident.
	ReusePerWholeOutputTile
)

func (r ReuseClass) String() string {
	switch r {
	case ReusePerReductionTile:
		return "per_reduction_tile"
	case ReusePerWholeOutputTile:
		return "per_whole_output_tile"
	case ReuseNone:
		return "none"
	}
	return fmt.Sprintf("reuse(%d)", uint8(r))
}

func (r ReuseClass) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type ReuseInput struct {
	Batch      int
	CoreInnerM int
	CoreInnerN int
	K          int
	L1         TileShape
	WidthA     int
	WidthB     int
	// Capacity is the L1 size in bytes.
	Capacity int
}

type Reuse struct {
	A ReuseClass `json:"a"`
	B ReuseClass `json:"b"`
	// BatchDouble allows double buffering across batch iterations.
	BatchDouble bool `json:"batch_double"`
	// DoubleOnce is set when the per-core output has a tail tile.
	DoubleOnce bool `json:"double_once"`
}

// ClassifyReuse decides L1 residency for both operands. At most one operand
// is kept per reduction tile; when both qualify the one with the smaller
// reload product keeps it.
func ClassifyReuse(in ReuseInput) Reuse {
	k := int64(in.K)
	capacity := int64(in.Capacity)

	wholeA := int64(ceilDiv(in.CoreInnerM, in.L1.M)*in.L1.M) * k * int64(in.WidthA)
	wholeB := int64(ceilDiv(in.CoreInnerN, in.L1.N)*in.L1.N) * k * int64(in.WidthB)
	tileA := int64(in.L1.M) * k * int64(in.WidthA)
	tileB := int64(in.L1.N) * k * int64(in.WidthB)

	out := Reuse{
		A: classify(wholeA, tileA, capacity),
		B: classify(wholeB, tileB, capacity),
	}

	if out.A == ReusePerReductionTile && out.B == ReusePerReductionTile {
		mTiles := int64(ceilDiv(in.CoreInnerM, in.L1.M))
		nTiles := int64(ceilDiv(in.CoreInnerN, in.L1.N))
		costA := int64(in.CoreInnerM) * k * int64(in.WidthA) * nTiles
		costB := int64(in.CoreInnerN) * k * int64(in.WidthB) * mTiles
		if costA <= costB {
			out.B = ReuseNone
		} else {
			out.A = ReuseNone
		}
	}

	out.BatchDouble = in.Batch > 1 && wholeA+wholeB <= capacity
	out.DoubleOnce = in.CoreInnerM != in.L1.M || in.CoreInnerN != in.L1.N
	return out
}

func classify(whole, tile, capacity int64) ReuseClass {
	switch {
	case whole <= capacity:
		return ReusePerWholeOutputTile
	case tile <= capacity:
		return ReusePerReductionTile
	default:
		return ReuseNone
	}
}
