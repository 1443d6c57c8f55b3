package gemm

import (
	"fmt"

	"github.com/samcharles93/tilesched/internal/schedule"
)

// State is the planner's position in its state machine.
type State uint8

const (
	StateInit State = iota
	StateReductionIsWhole
	StateTileIsCompute
	StateEmitted
)

func (s State) String() string {
	switch s {
	case StateReductionIsWhole:
		return "reduction_is_whole"
	case StateTileIsCompute:
		return "tile_is_compute"
	case StateEmitted:
		return "emitted"
	default:
		return "init"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// tensorNames holds the graph tensors the plan refers to and the staging
// copies derived from them.
type tensorNames struct {
	a, b, acc, out, bias string

	aL1, bL1 string
	aL0, bL0 string
	accUB    string
	biasL0C  string
	biasUB   string
}

func namesFor(g *Graph) tensorNames {
	name := func(r Role, def string) string {
		if t, ok := g.byRole(r); ok && t.Name != "" {
			return t.Name
		}
		return def
	}
	n := tensorNames{
		a:    name(RoleOperandA, "a"),
		b:    name(RoleOperandB, "b"),
		acc:  name(RoleAccumulator, "c_l0c"),
		out:  name(RoleOutput, "c_gm"),
		bias: name(RoleBias, "bias"),
	}
	n.aL1 = n.a + "_l1"
	n.bL1 = n.b + "_l1"
	n.aL0 = n.a + "_l0a"
	n.bL0 = n.b + "_l0b"
	n.accUB = n.acc + "_ub"
	n.biasL0C = n.bias + "_l0c"
	n.biasUB = n.bias + "_ub"
	return n
}

// planner carries every decision made before loop-nest construction and the
// axes each stage hands to the next.
type planner struct {
	g      *Graph
	p      Problem
	hw     Hardware
	tiles  TilePair
	part   CorePartition
	reuse  Reuse
	fusion *FusionDescriptor
	names  tensorNames

	coreInnerM int
	coreInnerN int

	b     *schedule.Builder
	state State

	hasBatch bool
	batch    schedule.Axis
	coreM    schedule.Axis
	coreN    schedule.Axis
	// outOuter is the outermost per-core output-tile loop.
	outOuter schedule.Axis
	// outTile is where the accumulator is computed.
	outTile schedule.Axis
	// fuseAt is where the UB stages are computed.
	fuseAt     schedule.Axis
	outInner   schedule.Axis
	nTileElems int
	inner      InnerSplit

	reduceInner schedule.Axis
	overload    bool
}

// regime picks the loop-nest strategy for the resolved tiles.
func (pl *planner) regime() (State, error) {
	l1, l0 := pl.tiles.L1, pl.tiles.L0
	switch {
	case l1.K == pl.p.K:
		return StateReductionIsWhole, nil
	case l0.M == l1.M && l0.N == l1.N:
		return StateTileIsCompute, nil
	}
	return StateInit, &UnhandledTilingError{
		K:      pl.p.K,
		Tiles:  pl.tiles,
		Reason: "L1 K tile is not the full reduction and L0 M/N tiles differ from L1",
	}
}

func (pl *planner) run() error {
	if pl.state != StateInit {
		return fmt.Errorf("planner already in state %s", pl.state)
	}
	next, err := pl.regime()
	if err != nil {
		return err
	}
	pl.state = next

	switch next {
	case StateReductionIsWhole:
		err = pl.planReductionIsWhole()
	case StateTileIsCompute:
		err = pl.planTileIsCompute()
	}
	if err != nil {
		return err
	}

	pl.emit()
	pl.state = StateEmitted
	return nil
}

func (pl *planner) planReductionIsWhole() error {
	l1, l0 := pl.tiles.L1, pl.tiles.L0
	if err := pl.splitOutput(l1.M, l1.N); err != nil {
		return err
	}

	acc := pl.names.acc
	n1o, n1i := pl.b.Split(schedule.Axis{Tensor: acc, Name: "n"}, l1.N)
	m1o, m1i := pl.b.Split(schedule.Axis{Tensor: acc, Name: "m"}, l1.M)
	k1o, k1i := pl.b.Split(schedule.Axis{Tensor: acc, Name: "k"}, l1.K)
	n0o, n0i := pl.b.Split(n1i, l0.N)
	m0o, m0i := pl.b.Split(m1i, l0.M)
	k0o, k0i := pl.b.Split(k1i, l0.K)
	pl.b.Reorder(acc, n1o, m1o, k1o, n0o, m0o, k0o, n0i, m0i, k0i)
	pl.b.Attach(acc, pl.outTile)

	pl.attachOperand(pl.names.aL1, pl.reuse.A, k1o, m1o)
	pl.attachOperand(pl.names.bL1, pl.reuse.B, k1o, n1o)
	pl.b.Attach(pl.names.aL0, k0o)
	pl.b.Attach(pl.names.bL0, k0o)

	pl.reduceInner = k0i
	return nil
}

func (pl *planner) planTileIsCompute() error {
	l0 := pl.tiles.L0
	if err := pl.splitOutput(l0.M, l0.N); err != nil {
		return err
	}

	acc := pl.names.acc
	no, ni := pl.b.Split(schedule.Axis{Tensor: acc, Name: "n"}, l0.N)
	mo, mi := pl.b.Split(schedule.Axis{Tensor: acc, Name: "m"}, l0.M)
	ko, ki := pl.b.Split(schedule.Axis{Tensor: acc, Name: "k"}, l0.K)
	pl.b.Reorder(acc, no, mo, ko, ni, mi, ki)
	pl.b.Attach(acc, pl.outTile)

	pl.b.Attach(pl.names.aL1, ko)
	pl.b.Attach(pl.names.bL1, ko)
	pl.b.Attach(pl.names.aL0, ko)
	pl.b.Attach(pl.names.bL0, ko)

	pl.reduceInner = ki
	return nil
}

// attachOperand places an L1 staging copy according to its reuse class.
func (pl *planner) attachOperand(tensor string, class ReuseClass, reduceOuter, tileOuter schedule.Axis) {
	switch class {
	case ReusePerWholeOutputTile:
		pl.b.Attach(tensor, pl.outOuter)
		if !pl.reuse.DoubleOnce {
			pl.b.RunOnce(tensor, pl.outOuter)
		}
	case ReusePerReductionTile:
		pl.b.Attach(tensor, tileOuter)
	default:
		pl.b.Attach(tensor, reduceOuter)
	}
}

// splitOutput builds the output loop nest: core split, output tile split,
// then the UB budget split.
func (pl *planner) splitOutput(mTile, nTile int) error {
	out := pl.names.out

	if pl.fusion.ChangesOutputTile {
		nTile = max(BlockQuantum, roundUp(nTile/2, BlockQuantum))
	}
	pl.nTileElems = nTile

	if pl.p.Batch > 1 {
		pl.hasBatch = true
		pl.batch = schedule.Axis{Tensor: out, Name: "b"}
	}
	var mRest, nRest schedule.Axis
	pl.coreM, mRest = pl.b.SplitParts(schedule.Axis{Tensor: out, Name: "m"}, pl.part.M)
	pl.coreN, nRest = pl.b.SplitParts(schedule.Axis{Tensor: out, Name: "n"}, pl.part.N)
	nOuter, nInner := pl.b.Split(nRest, nTile)
	mOuter, mInner := pl.b.Split(mRest, mTile)

	width, err := fusedWidth(pl.g, pl.fusion)
	if err != nil {
		return err
	}
	pl.inner = InnerFactor(
		pl.hw.VectorBufferCapacity(),
		pl.p.Out.Bytes(),
		normalizedWidth(width, pl.p.Out),
		blocks(mTile),
		blocks(nTile),
		blocks(pl.coreInnerN),
	)

	order := make([]schedule.Axis, 0, 9)
	if pl.hasBatch {
		order = append(order, pl.batch)
	}
	order = append(order, pl.coreM, pl.coreN, nOuter, mOuter)
	pl.outOuter = nOuter
	pl.outTile = mOuter
	pl.fuseAt = mOuter

	if f := pl.inner.N * BlockQuantum; f < nTile {
		var io schedule.Axis
		io, nInner = pl.b.Split(nInner, f)
		order = append(order, io)
		pl.fuseAt = io
	}
	if f := pl.inner.M * BlockQuantum; mTile > 1 && f < mTile {
		var io schedule.Axis
		io, mInner = pl.b.Split(mInner, f)
		order = append(order, io)
		pl.fuseAt = io
	}
	order = append(order, nInner, mInner)
	pl.b.Reorder(out, order...)
	pl.outInner = mInner
	return nil
}
