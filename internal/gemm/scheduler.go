package gemm

import (
	"context"
	"fmt"

	"github.com/samcharles93/tilesched/internal/logger"
	"github.com/samcharles93/tilesched/internal/schedule"
)

// Decisions summarizes how a plan was derived.
type Decisions struct {
	Tiling       string           `json:"tiling"`
	TilingSource TileSource       `json:"tiling_source"`
	Tiles        TilePair         `json:"tiles"`
	Partition    CorePartition    `json:"partition"`
	CoreInnerM   int              `json:"core_inner_m"`
	CoreInnerN   int              `json:"core_inner_n"`
	Reuse        Reuse            `json:"reuse"`
	Fusion       FusionDescriptor `json:"fusion"`
	Regime       State            `json:"regime"`
	Inner        InnerSplit       `json:"inner"`
	Overload     bool             `json:"overload"`
}

// SchedulePlan is the ordered loop-nest program for one GEMM.
type SchedulePlan struct {
	Ops       []schedule.Op `json:"ops"`
	Decisions Decisions     `json:"decisions"`
}

// Replay drives an external schedule object with the plan.
func (p *SchedulePlan) Replay(s schedule.Surface) error {
	return schedule.Replay(p.Ops, s)
}

// Options adjust a single scheduling call.
type Options struct {
	// Tiles skips tile resolution and uses this L1/L0 pair as given.
	Tiles *TilePair
}

// Scheduler plans GEMM kernels for one device. It holds no per-call state
// and may be shared.
type Scheduler struct {
	HW     Hardware
	Oracle Oracle
}

func NewScheduler(hw Hardware, oracle Oracle) *Scheduler {
	return &Scheduler{HW: hw, Oracle: oracle}
}

// ScheduleGemm plans g on hw using oracle for tile proposals.
func ScheduleGemm(ctx context.Context, g *Graph, hw Hardware, oracle Oracle) (*SchedulePlan, error) {
	return NewScheduler(hw, oracle).Schedule(ctx, g, Options{})
}

func (s *Scheduler) Schedule(ctx context.Context, g *Graph, opts Options) (*SchedulePlan, error) {
	if g == nil {
		return nil, fmt.Errorf("schedule gemm: nil graph")
	}
	if s.HW == nil {
		return nil, fmt.Errorf("schedule gemm: no hardware description")
	}
	p := g.Problem
	if err := checkProblem(p.Shape()); err != nil {
		return nil, err
	}
	if p.Batch < 0 {
		return nil, &InvalidTilingError{Level: "problem", Dim: "batch", Value: p.Batch, Reason: "must not be negative"}
	}
	if p.GEMV && p.M != 1 {
		return nil, &InvalidTilingError{Level: "problem", Dim: "M", Value: p.M, Reason: "must be 1 for a vector problem"}
	}
	p.GEMV = p.M == 1

	log := logger.FromContext(ctx).With("m", p.M, "k", p.K, "n", p.N, "batch", p.Batch)

	part := partitionFor(p, s.HW.CoreCount())
	innerM := coreInner(p.M, part.M)
	innerN := coreInner(p.N, part.N)
	log.Debug("core partition", "m_factor", part.M, "n_factor", part.N, "core_inner_m", innerM, "core_inner_n", innerN)

	fusion, err := AnalyzeFusion(g, innerN)
	if err != nil {
		return nil, err
	}

	widths := ByteWidthsFor(g)
	var res Resolution
	if opts.Tiles != nil {
		if err := Validate(p.Shape(), opts.Tiles.L1, opts.Tiles.L0); err != nil {
			return nil, err
		}
		res = Resolution{Tiling: FormatTiling(*opts.Tiles), Source: SourceOverride, Tiles: *opts.Tiles}
	} else {
		res, err = ResolveTiles(ctx, p, widths, fusion.ChangesOutputTile, s.HW, s.Oracle)
		if err != nil {
			return nil, err
		}
	}
	log.Debug("tiles resolved", "tiling", res.Tiling, "source", res.Source, "l1", res.Tiles.L1, "l0", res.Tiles.L0)

	reuse := ClassifyReuse(ReuseInput{
		Batch:      p.Batch,
		CoreInnerM: innerM,
		CoreInnerN: innerN,
		K:          p.K,
		L1:         res.Tiles.L1,
		WidthA:     widths.A,
		WidthB:     widths.B,
		Capacity:   s.HW.MidLevelCapacity(),
	})
	log.Debug("reuse classified", "a", reuse.A, "b", reuse.B, "batch_double", reuse.BatchDouble, "double_once", reuse.DoubleOnce)

	pl := &planner{
		g:          g,
		p:          p,
		hw:         s.HW,
		tiles:      res.Tiles,
		part:       part,
		reuse:      reuse,
		fusion:     &fusion,
		names:      namesFor(g),
		coreInnerM: innerM,
		coreInnerN: innerN,
		b:          schedule.NewBuilder(),
	}
	if err := pl.run(); err != nil {
		return nil, err
	}

	regime, _ := pl.regime()
	log.Debug("plan emitted", "regime", regime, "ops", pl.b.Len(), "overload", pl.overload)

	return &SchedulePlan{
		Ops: pl.b.Ops(),
		Decisions: Decisions{
			Tiling:       res.Tiling,
			TilingSource: res.Source,
			Tiles:        res.Tiles,
			Partition:    part,
			CoreInnerM:   innerM,
			CoreInnerN:   innerN,
			Reuse:        reuse,
			Fusion:       fusion,
			Regime:       regime,
			Inner:        pl.inner,
			Overload:     pl.overload,
		},
	}, nil
}
