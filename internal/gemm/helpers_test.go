package gemm

import (
	"context"
	"errors"
)

type fakeHW struct {
	cores int
	l1    int
	ub    int
	low   bool
}

func (h fakeHW) CoreCount() int            { return h.cores }
func (h fakeHW) MidLevelCapacity() int     { return h.l1 }
func (h fakeHW) VectorBufferCapacity() int { return h.ub }
func (h fakeHW) LowCoreCount() bool        { return h.low }

func singleCore() fakeHW { return fakeHW{cores: 1, l1: 1 << 20, ub: 256 << 10} }
func cloudHW() fakeHW    { return fakeHW{cores: 32, l1: 1 << 20, ub: 256 << 10} }
func liteHW() fakeHW     { return fakeHW{cores: 2, l1: 1 << 20, ub: 248 << 10, low: true} }

func fixedOracle(s string) Oracle {
	return OracleFunc(func(context.Context, OracleRequest) (string, error) {
		return s, nil
	})
}

var errOracleDown = errors.New("oracle unavailable")

func failingOracle() Oracle {
	return OracleFunc(func(context.Context, OracleRequest) (string, error) {
		return "", errOracleDown
	})
}

// matmulGraph is a plain fp16 x fp16 -> fp32 -> fp16 GEMM with placeholder
// operands.
func matmulGraph(m, k, n int) *Graph {
	return &Graph{
		Problem: Problem{
			M: m, K: k, N: n,
			A: Float16, B: Float16, Acc: Float32, Out: Float16,
		},
		Tensors: []Tensor{
			{Name: "a", Role: RoleOperandA, Dtype: Float16, Placeholder: true},
			{Name: "b", Role: RoleOperandB, Dtype: Float16, Placeholder: true},
			{Name: "c_l0c", Role: RoleAccumulator, Dtype: Float32, Inputs: []string{"a", "b"}},
			{Name: "c_gm", Role: RoleOutput, Dtype: Float16, Inputs: []string{"c_l0c"}},
		},
	}
}

// withFused inserts fused tensors before the output.
func withFused(g *Graph, ts ...Tensor) *Graph {
	out := g.Tensors[len(g.Tensors)-1]
	g.Tensors = append(g.Tensors[:len(g.Tensors)-1], ts...)
	g.Tensors = append(g.Tensors, out)
	return g
}
