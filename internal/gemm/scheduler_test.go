package gemm

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samcharles93/tilesched/internal/schedule"
)

func opsOf(plan *SchedulePlan, kind schedule.OpKind, tensor string) []schedule.Op {
	var out []schedule.Op
	for _, op := range plan.Ops {
		if op.Kind == kind && (tensor == "" || op.Tensor == tensor) {
			out = append(out, op)
		}
	}
	return out
}

func mustSchedule(t *testing.T, g *Graph, hw Hardware, oracle Oracle) *SchedulePlan {
	t.Helper()
	plan, err := ScheduleGemm(context.Background(), g, hw, oracle)
	if err != nil {
		t.Fatalf("ScheduleGemm() error = %v", err)
	}
	return plan
}

func TestScheduleTinyProblemKeepsOperandsResident(t *testing.T) {
	t.Parallel()

	plan := mustSchedule(t, matmulGraph(16, 16, 16), singleCore(), fixedOracle("16_16_16_16_16_16"))
	d := plan.Decisions

	if d.Regime != StateReductionIsWhole {
		t.Fatalf("Regime = %s, want reduction_is_whole", d.Regime)
	}
	if d.Reuse.A != ReusePerWholeOutputTile || d.Reuse.B != ReusePerWholeOutputTile {
		t.Fatalf("Reuse = %+v, want both per_whole_output_tile", d.Reuse)
	}
	if d.Partition != (CorePartition{M: 1, N: 1}) {
		t.Fatalf("Partition = %+v", d.Partition)
	}
	if len(opsOf(plan, schedule.OpRunOnce, "a_l1")) != 1 || len(opsOf(plan, schedule.OpRunOnce, "b_l1")) != 1 {
		t.Fatal("resident operands should be copied once")
	}
	if len(opsOf(plan, schedule.OpDoubleBuffer, "a_l1")) != 0 {
		t.Fatal("resident operand must not be double buffered")
	}
	if len(opsOf(plan, schedule.OpDoubleBuffer, "a_l0a")) != 1 {
		t.Fatal("L0 copies are always double buffered")
	}

	attach := opsOf(plan, schedule.OpAttach, "a_l1")
	if len(attach) != 1 || attach[0].Target != "c_gm" || attach[0].TargetAxis != "n.inner.outer" {
		t.Fatalf("a_l1 attach = %+v, want c_gm.n.inner.outer", attach)
	}

	emits := opsOf(plan, schedule.OpEmit, "")
	last := emits[len(emits)-1]
	if last.Tensor != "c_gm" || last.Attrs["cache_mode"] != "default" {
		t.Fatalf("output emit = %+v, want default cache mode on c_gm", last)
	}
	if d.Overload {
		t.Fatal("single core, single tile should not be overloaded")
	}
}

func TestScheduleTailTilesRefetchResidentOperands(t *testing.T) {
	t.Parallel()

	plan := mustSchedule(t, matmulGraph(64, 64, 64), singleCore(), fixedOracle("32_64_32_32_64_32"))
	d := plan.Decisions

	if d.Regime != StateReductionIsWhole {
		t.Fatalf("Regime = %s, want reduction_is_whole", d.Regime)
	}
	if d.Reuse.A != ReusePerWholeOutputTile || d.Reuse.B != ReusePerWholeOutputTile {
		t.Fatalf("Reuse = %+v, want both per_whole_output_tile", d.Reuse)
	}
	if !d.Reuse.DoubleOnce {
		t.Fatal("64x64 per core over 32x32 L1 tiles should set DoubleOnce")
	}
	if ops := opsOf(plan, schedule.OpRunOnce, ""); len(ops) != 0 {
		t.Fatalf("run_once = %+v, want none when tiles repeat per core", ops)
	}
	for _, name := range []string{"a_l1", "b_l1"} {
		attach := opsOf(plan, schedule.OpAttach, name)
		if len(attach) != 1 || attach[0].Target != "c_gm" || attach[0].TargetAxis != "n.inner.outer" {
			t.Fatalf("%s attach = %+v, want c_gm.n.inner.outer", name, attach)
		}
	}
}

func TestScheduleUnhandledRegime(t *testing.T) {
	t.Parallel()

	s := NewScheduler(singleCore(), nil)
	_, err := s.Schedule(context.Background(), matmulGraph(64, 64, 64), Options{Tiles: &TilePair{
		L1: TileShape{M: 64, K: 32, N: 64},
		L0: TileShape{M: 32, K: 32, N: 64},
	}})
	var ute *UnhandledTilingError
	if !errors.As(err, &ute) {
		t.Fatalf("Schedule() error = %v, want *UnhandledTilingError", err)
	}
	if !errors.Is(err, ErrUnhandledTiling) || ute.K != 64 {
		t.Fatalf("unhandled = %+v", ute)
	}
}

func TestScheduleOverrideIsValidated(t *testing.T) {
	t.Parallel()

	s := NewScheduler(singleCore(), nil)
	_, err := s.Schedule(context.Background(), matmulGraph(64, 64, 64), Options{Tiles: &TilePair{
		L1: TileShape{M: 64, K: 64, N: 64},
		L0: TileShape{M: 24, K: 64, N: 64},
	}})
	if !errors.Is(err, ErrInvalidTiling) {
		t.Fatalf("Schedule() error = %v, want ErrInvalidTiling", err)
	}
}

func TestScheduleOverrideTileIsCompute(t *testing.T) {
	t.Parallel()

	tiles := TilePair{L1: TileShape{M: 32, K: 32, N: 32}, L0: TileShape{M: 32, K: 16, N: 32}}
	plan, err := NewScheduler(singleCore(), nil).Schedule(context.Background(), matmulGraph(64, 64, 64), Options{Tiles: &tiles})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if plan.Decisions.Regime != StateTileIsCompute || plan.Decisions.TilingSource != SourceOverride {
		t.Fatalf("Decisions = %+v", plan.Decisions)
	}
	if plan.Decisions.Tiling != "32_32_32_32_16_32" {
		t.Fatalf("Tiling = %q", plan.Decisions.Tiling)
	}
}

func TestScheduleKnownShapesOnLowCorePart(t *testing.T) {
	t.Parallel()

	for _, kt := range KnownTilings() {
		t.Run(kt.Tiling, func(t *testing.T) {
			t.Parallel()
			g := matmulGraph(kt.Key.M, kt.Key.K, kt.Key.N)
			g.Problem.TransposeB = true
			if kt.Key.UBBytes == 4 {
				g.Problem.Out = Float32
			}
			plan := mustSchedule(t, g, liteHW(), failingOracle())
			if plan.Decisions.Tiling != kt.Tiling || plan.Decisions.TilingSource != SourceKnowledge {
				t.Fatalf("Decisions = %+v, want %s from knowledge", plan.Decisions, kt.Tiling)
			}
			if len(opsOf(plan, schedule.OpBind, "")) != 1 {
				t.Fatal("want exactly one bind")
			}
		})
	}
}

func TestScheduleBiasPaths(t *testing.T) {
	t.Parallel()

	biased := func() *Graph {
		g := matmulGraph(64, 64, 64)
		g.Problem.HasBias = true
		g.Problem.Bias = Float32
		g.Tensors = append([]Tensor{{Name: "bias", Role: RoleBias, Dtype: Float32, Placeholder: true}}, g.Tensors...)
		return g
	}
	madInit := func(plan *SchedulePlan) string {
		for _, op := range opsOf(plan, schedule.OpEmit, "c_l0c") {
			if op.Primitive == primMad {
				return op.Attrs["init_bias"]
			}
		}
		return ""
	}

	plan := mustSchedule(t, biased(), singleCore(), fixedOracle("64_64_64_64_64_64"))
	if len(opsOf(plan, schedule.OpPreload, "bias_l0c")) != 1 {
		t.Fatal("bias should be preloaded into the accumulator")
	}
	if len(opsOf(plan, schedule.OpSetScope, "bias_ub")) != 0 {
		t.Fatal("bias should not be staged in UB without dequant")
	}
	if got := madInit(plan); got != "true" {
		t.Fatalf("init_bias = %q, want true", got)
	}

	g := withFused(biased(), Tensor{Name: "deq", Stage: StageDequant, Dtype: Float16, Inputs: []string{"c_l0c"}})
	plan = mustSchedule(t, g, singleCore(), fixedOracle("64_64_64_64_64_64"))
	if len(opsOf(plan, schedule.OpPreload, "")) != 0 {
		t.Fatal("dequantized output must not preload the bias")
	}
	scope := opsOf(plan, schedule.OpSetScope, "bias_ub")
	if len(scope) != 1 || scope[0].Scope != schedule.ScopeUB {
		t.Fatalf("bias_ub scope = %+v", scope)
	}
	if got := madInit(plan); got != "false" {
		t.Fatalf("init_bias = %q, want false", got)
	}

	// 64K of UB fits the 64x64 tile at width 6 but not once the staged
	// fp32 bias raises it to 10.
	small := fakeHW{cores: 1, l1: 1 << 20, ub: 64 << 10}
	plan = mustSchedule(t, g, small, fixedOracle("64_64_64_64_64_64"))
	if got, want := plan.Decisions.Inner, (InnerSplit{FactorMax: 3, M: 1, N: 2}); got != want {
		t.Fatalf("Inner = %+v, want %+v", got, want)
	}
}

func TestScheduleSmallL1DoubleBuffersOperands(t *testing.T) {
	t.Parallel()

	hw := fakeHW{cores: 1, l1: 1024, ub: 256 << 10}
	plan := mustSchedule(t, matmulGraph(64, 64, 64), hw, fixedOracle("64_64_64_64_64_64"))
	if plan.Decisions.Reuse.A != ReuseNone || plan.Decisions.Reuse.B != ReuseNone {
		t.Fatalf("Reuse = %+v, want none", plan.Decisions.Reuse)
	}
	for _, name := range []string{"a_l1", "b_l1"} {
		if len(opsOf(plan, schedule.OpDoubleBuffer, name)) != 1 {
			t.Fatalf("%s should be double buffered", name)
		}
		attach := opsOf(plan, schedule.OpAttach, name)
		if len(attach) != 1 || attach[0].Target != "c_l0c" || attach[0].TargetAxis != "k.outer" {
			t.Fatalf("%s attach = %+v, want c_l0c.k.outer", name, attach)
		}
	}
	if len(opsOf(plan, schedule.OpRunOnce, "")) != 0 {
		t.Fatal("streamed operands must not be marked run-once")
	}
}

func TestScheduleMultiCoreOutputBypassesCache(t *testing.T) {
	t.Parallel()

	hw := fakeHW{cores: 2, l1: 1 << 20, ub: 256 << 10}
	plan := mustSchedule(t, matmulGraph(32, 32, 16), hw, fixedOracle("16_32_16_16_32_16"))
	if plan.Decisions.Partition != (CorePartition{M: 2, N: 1}) {
		t.Fatalf("Partition = %+v", plan.Decisions.Partition)
	}
	if !plan.Decisions.Overload {
		t.Fatal("two active cores should overload the output")
	}
	emits := opsOf(plan, schedule.OpEmit, "c_gm")
	if got := emits[len(emits)-1].Attrs["cache_mode"]; got != "nocache" {
		t.Fatalf("cache_mode = %q, want nocache", got)
	}
	bind := opsOf(plan, schedule.OpBind, "")
	if len(bind) != 1 || bind[0].Axis != "m.outer+n.outer" || bind[0].Unit != ParallelUnit {
		t.Fatalf("bind = %+v", bind)
	}
}

func TestScheduleBatchFoldsIntoBinding(t *testing.T) {
	t.Parallel()

	g := matmulGraph(16, 16, 16)
	g.Problem.Batch = 4
	plan := mustSchedule(t, g, singleCore(), fixedOracle("16_16_16_16_16_16"))

	fuse := opsOf(plan, schedule.OpFuse, "c_gm")
	if len(fuse) != 1 || !reflect.DeepEqual(fuse[0].Results, []string{"b+m.outer+n.outer"}) {
		t.Fatalf("fuse = %+v", fuse)
	}
	if !plan.Decisions.Reuse.BatchDouble {
		t.Fatal("small operands should double buffer across batches")
	}
	if len(opsOf(plan, schedule.OpDoubleBuffer, "c_l0c_ub")) != 1 {
		t.Fatal("accumulator copy should be double buffered across batches")
	}
	if !plan.Decisions.Overload {
		t.Fatal("several batch groups should overload the output")
	}
}

func TestScheduleQuantizedOutput(t *testing.T) {
	t.Parallel()

	var req OracleRequest
	oracle := OracleFunc(func(_ context.Context, r OracleRequest) (string, error) {
		req = r
		return "64_64_64_64_64_64", nil
	})
	plan := mustSchedule(t, quantGraph(), singleCore(), oracle)

	if !req.NCutEven {
		t.Fatal("quantized output should ask for an even N cut")
	}
	if plan.Decisions.Regime != StateTileIsCompute {
		t.Fatalf("Regime = %s", plan.Decisions.Regime)
	}

	var nSplit *schedule.Op
	for _, op := range opsOf(plan, schedule.OpSplit, "c_gm") {
		if op.Axis == "n.inner" {
			nSplit = &op
			break
		}
	}
	if nSplit == nil || nSplit.Factor != 32 {
		t.Fatalf("output N tile split = %+v, want factor 32", nSplit)
	}

	attrs := map[string]map[string]string{}
	for _, op := range opsOf(plan, schedule.OpEmit, "") {
		attrs[op.Tensor] = op.Attrs
	}
	if attrs["q"]["round_mode"] != "Round" {
		t.Fatalf("quant attrs = %v", attrs["q"])
	}
	if attrs["deq"]["sqrt_mode"] != "true" {
		t.Fatalf("dequant attrs = %v", attrs["deq"])
	}
	if attrs["q_reform"]["reuse"] != "act" {
		t.Fatalf("reform attrs = %v", attrs["q_reform"])
	}
	for _, name := range []string{"deq", "deq_sqrt", "act", "q", "q_reform"} {
		scope := opsOf(plan, schedule.OpSetScope, name)
		if len(scope) != 1 || scope[0].Scope != schedule.ScopeUB {
			t.Fatalf("%s scope = %+v", name, scope)
		}
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	t.Parallel()

	s := NewScheduler(singleCore(), fixedOracle("16_16_16_16_16_16"))
	if _, err := s.Schedule(context.Background(), nil, Options{}); err == nil {
		t.Fatal("nil graph: want error")
	}
	if _, err := NewScheduler(nil, nil).Schedule(context.Background(), matmulGraph(16, 16, 16), Options{}); err == nil {
		t.Fatal("nil hardware: want error")
	}

	g := matmulGraph(0, 16, 16)
	if _, err := s.Schedule(context.Background(), g, Options{}); !errors.Is(err, ErrInvalidTiling) {
		t.Fatalf("zero M error = %v, want ErrInvalidTiling", err)
	}

	g = matmulGraph(16, 16, 16)
	g.Problem.Batch = -1
	if _, err := s.Schedule(context.Background(), g, Options{}); !errors.Is(err, ErrInvalidTiling) {
		t.Fatalf("negative batch error = %v, want ErrInvalidTiling", err)
	}

	g = withFused(matmulGraph(16, 16, 16), Tensor{Name: "x", Stage: StageElementwise, Op: "vadd", Dtype: Float16, Inputs: []string{"c_l0c", "a"}})
	if _, err := s.Schedule(context.Background(), g, Options{}); !errors.Is(err, ErrFusionConflict) {
		t.Fatalf("aliased operand error = %v, want ErrFusionConflict", err)
	}
}

func TestScheduleVectorProblem(t *testing.T) {
	t.Parallel()

	g := matmulGraph(1, 64, 1024)
	g.Problem.GEMV = true
	plan := mustSchedule(t, g, cloudHW(), fixedOracle("1_64_32_1_64_32"))
	if plan.Decisions.Partition != (CorePartition{M: 1, N: 32}) {
		t.Fatalf("Partition = %+v, want N spread over every core", plan.Decisions.Partition)
	}
	if plan.Decisions.CoreInnerM != 1 || plan.Decisions.CoreInnerN != 32 {
		t.Fatalf("core inner = %d x %d, want 1 x 32", plan.Decisions.CoreInnerM, plan.Decisions.CoreInnerN)
	}

	g = matmulGraph(32, 64, 1024)
	g.Problem.GEMV = true
	_, err := ScheduleGemm(context.Background(), g, cloudHW(), fixedOracle("16_64_32_16_64_32"))
	var ite *InvalidTilingError
	if !errors.As(err, &ite) || ite.Dim != "M" {
		t.Fatalf("vector problem with M=32 error = %v, want InvalidTilingError on M", err)
	}
}

func TestScheduleIsDeterministic(t *testing.T) {
	t.Parallel()

	first := mustSchedule(t, quantGraph(), cloudHW(), fixedOracle("64_64_64_64_64_64"))
	second := mustSchedule(t, quantGraph(), cloudHW(), fixedOracle("64_64_64_64_64_64"))
	if !reflect.DeepEqual(first.Ops, second.Ops) {
		t.Fatal("same inputs produced different plans")
	}
}

type countingSurface struct {
	n int
}

func (c *countingSurface) Split(string, string, int, int, string, string) error { c.n++; return nil }
func (c *countingSurface) Fuse(string, []string, string) error                  { c.n++; return nil }
func (c *countingSurface) Reorder(string, []string) error                       { c.n++; return nil }
func (c *countingSurface) Attach(string, string, string) error                  { c.n++; return nil }
func (c *countingSurface) Bind(string, string, string) error                    { c.n++; return nil }
func (c *countingSurface) SetScope(string, schedule.Scope) error                { c.n++; return nil }
func (c *countingSurface) DoubleBuffer(string) error                            { c.n++; return nil }
func (c *countingSurface) RunOnce(string, string) error                         { c.n++; return nil }
func (c *countingSurface) Preload(string) error                                 { c.n++; return nil }
func (c *countingSurface) Emit(string, string, string, map[string]string) error { c.n++; return nil }

func TestSchedulePlanReplay(t *testing.T) {
	t.Parallel()

	plan := mustSchedule(t, matmulGraph(64, 64, 64), cloudHW(), fixedOracle("64_64_64_64_64_64"))
	var s countingSurface
	if err := plan.Replay(&s); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if s.n != len(plan.Ops) {
		t.Fatalf("replayed %d ops, want %d", s.n, len(plan.Ops))
	}
}
