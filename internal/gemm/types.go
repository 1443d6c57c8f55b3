package gemm

import (
	"context"
	"fmt"
	"strings"
)

// BlockQuantum is the minimum tile granularity along M, K and N.
const BlockQuantum = 16

type Dtype uint8

const (
	DtypeInvalid Dtype = iota
	Float16
	Float32
	BFloat16
	Int8
	UInt8
	Int32
)

var dtypeNames = [...]string{
	DtypeInvalid: "invalid",
	Float16:      "float16",
	Float32:      "float32",
	BFloat16:     "bfloat16",
	Int8:         "int8",
	UInt8:        "uint8",
	Int32:        "int32",
}

func (d Dtype) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Bytes is the element width. Invalid types report 0.
func (d Dtype) Bytes() int {
	switch d {
	case Float16, BFloat16:
		return 2
	case Float32, Int32:
		return 4
	case Int8, UInt8:
		return 1
	default:
		return 0
	}
}

func (d Dtype) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dtype) UnmarshalText(b []byte) error {
	v, err := ParseDtype(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func ParseDtype(s string) (Dtype, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float16", "fp16", "half":
		return Float16, nil
	case "float32", "fp32", "float":
		return Float32, nil
	case "bfloat16", "bf16":
		return BFloat16, nil
	case "int8":
		return Int8, nil
	case "uint8":
		return UInt8, nil
	case "int32":
		return Int32, nil
	}
	return DtypeInvalid, fmt.Errorf("unknown dtype %q", s)
}

// Role is the part a tensor plays in the matmul.
type Role uint8

const (
	RoleNone Role = iota
	RoleOperandA
	RoleOperandB
	RoleAccumulator
	RoleBias
	RoleQuantScale
	RoleFusedElementwise
	RoleOutput
)

var roleNames = [...]string{
	RoleNone:             "none",
	RoleOperandA:         "operand_a",
	RoleOperandB:         "operand_b",
	RoleAccumulator:      "accumulator",
	RoleBias:             "bias",
	RoleQuantScale:       "quant_scale",
	RoleFusedElementwise: "fused_elementwise",
	RoleOutput:           "output",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Stage tags a fused post-processing tensor.
type Stage uint8

const (
	StageNone Stage = iota
	StageBiasAdd
	StageDequant
	StageSqrt
	StageRelu
	StageQuant
	StageReform
	StageElementwise
	StageCast
	StageReduce
)

var stageNames = [...]string{
	StageNone:        "none",
	StageBiasAdd:     "bias_add",
	StageDequant:     "dequant",
	StageSqrt:        "sqrt",
	StageRelu:        "relu",
	StageQuant:       "quant",
	StageReform:      "reform",
	StageElementwise: "elementwise",
	StageCast:        "cast",
	StageReduce:      "reduce",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Tensor is one already-classified node of the compute graph.
type Tensor struct {
	Name  string
	Role  Role
	Stage Stage
	// Op names the elementwise operation for StageElementwise, e.g. "vadd".
	Op    string
	Dtype Dtype
	// SrcDtype is the input type of a cast.
	SrcDtype    Dtype
	Inputs      []string
	Placeholder bool
	RoundMode   string
	// Fractal is set when the tensor has a paired fractal-layout companion.
	Fractal bool
}

// Problem is the logical GEMM being scheduled.
type Problem struct {
	M, K, N int
	Batch   int

	A, B, Acc, Out, Bias Dtype

	// GEMV marks a matrix-vector problem. M must then be 1, and a problem
	// with M of 1 is planned as one either way.
	GEMV       bool
	HasBias    bool
	TransposeB bool
}

func (p Problem) Shape() TileShape {
	return TileShape{M: p.M, K: p.K, N: p.N}
}

// Graph is what the compute-graph collaborator hands the engine.
type Graph struct {
	Problem Problem
	Tensors []Tensor
}

func (g *Graph) byRole(r Role) (Tensor, bool) {
	for _, t := range g.Tensors {
		if t.Role == r {
			return t, true
		}
	}
	return Tensor{}, false
}

func (g *Graph) lookup(name string) (Tensor, bool) {
	for _, t := range g.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return Tensor{}, false
}

type TileShape struct {
	M int `json:"m"`
	K int `json:"k"`
	N int `json:"n"`
}

func (t TileShape) String() string {
	return fmt.Sprintf("(%d,%d,%d)", t.M, t.K, t.N)
}

func (t TileShape) Volume() int {
	return t.M * t.K * t.N
}

// TilePair is a resolved L1/L0 tiling.
type TilePair struct {
	L1 TileShape `json:"l1"`
	L0 TileShape `json:"l0"`
}

// ByteWidths are the per-scope element widths handed to the tile-size oracle.
type ByteWidths struct {
	A    int `json:"a"`
	B    int `json:"b"`
	L0C  int `json:"l0c"`
	UB   int `json:"ub"`
	Bias int `json:"bias,omitempty"`
}

// CorePartition is how many parallel units split M and N.
type CorePartition struct {
	M int `json:"m"`
	N int `json:"n"`
}

func (c CorePartition) Cores() int {
	return c.M * c.N
}

// Hardware is the capability collaborator.
type Hardware interface {
	CoreCount() int
	// MidLevelCapacity is the L1 size in bytes.
	MidLevelCapacity() int
	// VectorBufferCapacity is the UB size in bytes.
	VectorBufferCapacity() int
	LowCoreCount() bool
}

// OracleRequest carries everything the tile-size oracle is told.
type OracleRequest struct {
	M, K, N    int
	Widths     ByteWidths
	Bias       bool
	NCutEven   bool
	TransposeB bool
}

// Oracle proposes a tiling as "m1_k1_n1_m0_k0_n0".
type Oracle interface {
	ProposeTiling(ctx context.Context, req OracleRequest) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, req OracleRequest) (string, error)

func (f OracleFunc) ProposeTiling(ctx context.Context, req OracleRequest) (string, error) {
	return f(ctx, req)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundUp(v, q int) int {
	return ceilDiv(v, q) * q
}

// blocks counts block quanta along a dimension; a vector dimension is one block.
func blocks(dim int) int {
	if dim <= 1 {
		return 1
	}
	return ceilDiv(dim, BlockQuantum)
}
