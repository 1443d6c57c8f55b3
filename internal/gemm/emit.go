package gemm

import (
	"strconv"

	"github.com/samcharles93/tilesched/internal/schedule"
)

// ParallelUnit is the hardware axis output tiles are bound to.
const ParallelUnit = "blockIdx.x"

func (pl *planner) emit() {
	n := pl.names
	fused := pl.fusion.Tensors()
	biasPath := pl.p.HasBias && pl.fusion.Dequant == ""

	pl.b.SetScope(n.aL1, schedule.ScopeL1)
	pl.b.SetScope(n.bL1, schedule.ScopeL1)
	pl.b.SetScope(n.aL0, schedule.ScopeL0A)
	pl.b.SetScope(n.bL0, schedule.ScopeL0B)
	pl.b.SetScope(n.acc, schedule.ScopeL0C)
	pl.b.SetScope(n.accUB, schedule.ScopeUB)
	for _, name := range fused {
		pl.b.SetScope(name, schedule.ScopeUB)
	}

	pl.b.Attach(n.accUB, pl.fuseAt)
	for _, name := range fused {
		pl.b.Attach(name, pl.fuseAt)
	}

	switch {
	case biasPath:
		pl.b.SetScope(n.biasL0C, schedule.ScopeL0C)
		pl.b.Attach(n.biasL0C, pl.outTile)
		pl.b.Preload(n.biasL0C)
		pl.b.DoubleBuffer(n.biasL0C)
	case pl.p.HasBias:
		pl.b.SetScope(n.biasUB, schedule.ScopeUB)
		pl.b.Attach(n.biasUB, pl.fuseAt)
	}

	pl.bindCores()

	if pl.reuse.A == ReuseNone {
		pl.b.DoubleBuffer(n.aL1)
	}
	if pl.reuse.B == ReuseNone {
		pl.b.DoubleBuffer(n.bL1)
	}
	pl.b.DoubleBuffer(n.aL0)
	pl.b.DoubleBuffer(n.bL0)
	if pl.reuse.BatchDouble {
		pl.b.DoubleBuffer(n.accUB)
	}

	pl.b.Emit(schedule.Axis{Tensor: n.aL1, Name: "m"}, primDMACopy, nil)
	pl.b.Emit(schedule.Axis{Tensor: n.bL1, Name: "k"}, primDMACopy, nil)
	pl.b.Emit(schedule.Axis{Tensor: n.aL0, Name: "m"}, primDMACopy, nil)
	pl.b.Emit(schedule.Axis{Tensor: n.bL0, Name: "k"}, primDMACopy, nil)
	switch {
	case biasPath:
		pl.b.Emit(schedule.Axis{Tensor: n.biasL0C, Name: "n"}, primDMACopy, nil)
	case pl.p.HasBias:
		pl.b.Emit(schedule.Axis{Tensor: n.biasUB, Name: "n"}, primDMACopy, nil)
	}
	pl.b.Emit(pl.reduceInner, primMad, map[string]string{
		"init_bias": strconv.FormatBool(biasPath),
	})
	pl.b.Emit(schedule.Axis{Tensor: n.accUB, Name: "n"}, primDMACopy, nil)
	for _, name := range fused {
		t, _ := pl.g.lookup(name)
		pl.b.Emit(schedule.Axis{Tensor: name, Name: "n"}, primitiveFor(t), pl.fusedAttrs(t))
	}

	cacheMode := "default"
	if pl.overload {
		cacheMode = "nocache"
	}
	pl.b.Emit(pl.outInner, primDMACopy, map[string]string{"cache_mode": cacheMode})
}

func (pl *planner) fusedAttrs(t Tensor) map[string]string {
	switch t.Stage {
	case StageQuant:
		if t.RoundMode != "" {
			return map[string]string{"round_mode": t.RoundMode}
		}
	case StageDequant:
		if pl.fusion.Sqrt != "" {
			return map[string]string{"sqrt_mode": "true"}
		}
	case StageReform:
		for _, r := range pl.fusion.Reform {
			if r.Tensor == t.Name && r.ReuseTarget != "" {
				return map[string]string{"reuse": r.ReuseTarget}
			}
		}
	}
	return nil
}

// bindCores folds the core-split axes, and the batch axis when present, into
// one loop bound to the parallel unit. The overload flag asks the output
// write to bypass the cache when several units are active or a unit writes
// more than one N tile.
func (pl *planner) bindCores() {
	axes := make([]schedule.Axis, 0, 3)
	if pl.hasBatch {
		axes = append(axes, pl.batch)
	}
	axes = append(axes, pl.coreM, pl.coreN)
	fused := pl.b.Fuse(axes...)
	pl.b.Bind(fused, ParallelUnit)

	groups := pl.part.Cores()
	if pl.hasBatch {
		groups *= pl.p.Batch
	}
	perCoreNTiles := ceilDiv(pl.coreInnerN, max(pl.nTileElems, 1))
	pl.overload = groups > 1 || perCoreNTiles > 1
}
