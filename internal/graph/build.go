package graph

import (
	"github.com/samcharles93/tilesched/internal/gemm"
)

// Default names for the matmul tensors a document leaves out.
const (
	DefaultA      = "a"
	DefaultB      = "b"
	DefaultAcc    = "c_l0c"
	DefaultOutput = "c_gm"
	DefaultBias   = "bias"
)

// PadDim rounds a dimension up to the block quantum. A vector dimension of
// one is kept as is.
func PadDim(d int) int {
	if d == 1 {
		return 1
	}
	q := gemm.BlockQuantum
	return (d + q - 1) / q * q
}

// Graph classifies the document into the engine's input.
func (d *Document) Graph() (*gemm.Graph, error) {
	if d.M <= 0 || d.K <= 0 || d.N <= 0 {
		return nil, invalidf("dimensions must be positive, got m=%d k=%d n=%d", d.M, d.K, d.N)
	}
	if d.Batch < 0 {
		return nil, invalidf("batch must not be negative, got %d", d.Batch)
	}

	p, err := d.problem()
	if err != nil {
		return nil, err
	}

	g := &gemm.Graph{Problem: p}
	seen := make(map[string]bool, len(d.Tensors))
	roles := map[gemm.Role]string{}
	for i, ts := range d.Tensors {
		if ts.Name == "" {
			return nil, invalidf("tensor %d has no name", i)
		}
		if seen[ts.Name] {
			return nil, invalidf("tensor %q declared twice", ts.Name)
		}
		seen[ts.Name] = true

		t, err := classifyTensor(ts)
		if err != nil {
			return nil, err
		}
		switch t.Role {
		case gemm.RoleOperandA, gemm.RoleOperandB, gemm.RoleAccumulator, gemm.RoleOutput:
			if prev, dup := roles[t.Role]; dup {
				return nil, invalidf("tensors %q and %q both tagged %s", prev, t.Name, t.Role)
			}
			roles[t.Role] = t.Name
		case gemm.RoleBias:
			g.Problem.HasBias = true
		}
		g.Tensors = append(g.Tensors, t)
	}

	for _, ts := range d.Tensors {
		for _, in := range ts.Inputs {
			if !seen[in] {
				return nil, invalidf("tensor %q reads undeclared tensor %q", ts.Name, in)
			}
		}
	}

	sorted, err := gemm.SortTensors(g.Tensors)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	g.Tensors = withDefaults(sorted, roles, g.Problem)
	return g, nil
}

func (d *Document) problem() (gemm.Problem, error) {
	p := gemm.Problem{
		M:          PadDim(d.M),
		K:          PadDim(d.K),
		N:          PadDim(d.N),
		Batch:      d.Batch,
		GEMV:       d.M == 1,
		HasBias:    d.Bias,
		TransposeB: d.TransposeB,
	}

	var err error
	if p.A, err = dtypeOr(d.Dtypes.A, gemm.Float16); err != nil {
		return p, err
	}
	if p.B, err = dtypeOr(d.Dtypes.B, p.A); err != nil {
		return p, err
	}
	acc := gemm.Float32
	if p.A == gemm.Int8 || p.A == gemm.UInt8 {
		acc = gemm.Int32
	}
	if p.Acc, err = dtypeOr(d.Dtypes.Acc, acc); err != nil {
		return p, err
	}
	if p.Out, err = dtypeOr(d.Dtypes.Out, gemm.Float16); err != nil {
		return p, err
	}
	if p.Bias, err = dtypeOr(d.Dtypes.Bias, p.Acc); err != nil {
		return p, err
	}
	return p, nil
}

func classifyTensor(ts TensorSpec) (gemm.Tensor, error) {
	t := gemm.Tensor{
		Name:        ts.Name,
		Inputs:      append([]string(nil), ts.Inputs...),
		Placeholder: ts.Placeholder,
		RoundMode:   ts.RoundMode,
		Fractal:     ts.Fractal,
	}
	if ts.Tag != "" {
		c, ok := Classify(ts.Tag)
		if !ok {
			return t, invalidf("tensor %q has unknown tag %q", ts.Name, ts.Tag)
		}
		t.Role, t.Stage, t.Op = c.Role, c.Stage, c.Op
	} else if !ts.Placeholder {
		return t, invalidf("tensor %q has no tag", ts.Name)
	}

	var err error
	if t.Dtype, err = dtypeOr(ts.Dtype, gemm.Float16); err != nil {
		return t, invalidf("tensor %q: %v", ts.Name, err)
	}
	if ts.SrcDtype != "" {
		if t.SrcDtype, err = gemm.ParseDtype(ts.SrcDtype); err != nil {
			return t, invalidf("tensor %q: %v", ts.Name, err)
		}
	}
	return t, nil
}

// withDefaults adds the matmul tensors the document did not declare. A
// problem file may then be just its dimensions.
func withDefaults(ts []gemm.Tensor, roles map[gemm.Role]string, p gemm.Problem) []gemm.Tensor {
	var head, tail []gemm.Tensor
	name := func(r gemm.Role, def string) string {
		if n, ok := roles[r]; ok {
			return n
		}
		return def
	}
	a, b := name(gemm.RoleOperandA, DefaultA), name(gemm.RoleOperandB, DefaultB)
	acc := name(gemm.RoleAccumulator, DefaultAcc)

	if _, ok := roles[gemm.RoleOperandA]; !ok {
		head = append(head, gemm.Tensor{Name: a, Role: gemm.RoleOperandA, Dtype: p.A, Placeholder: true})
	}
	if _, ok := roles[gemm.RoleOperandB]; !ok {
		head = append(head, gemm.Tensor{Name: b, Role: gemm.RoleOperandB, Dtype: p.B, Placeholder: true})
	}
	if p.HasBias && !hasRole(ts, gemm.RoleBias) {
		head = append(head, gemm.Tensor{Name: DefaultBias, Role: gemm.RoleBias, Dtype: p.Bias, Placeholder: true})
	}
	if _, ok := roles[gemm.RoleAccumulator]; !ok {
		head = append(head, gemm.Tensor{Name: acc, Role: gemm.RoleAccumulator, Dtype: p.Acc, Inputs: []string{a, b}})
	}
	if _, ok := roles[gemm.RoleOutput]; !ok {
		src := acc
		for _, t := range ts {
			if !t.Placeholder && t.Role != gemm.RoleBias && t.Role != gemm.RoleQuantScale {
				src = t.Name
			}
		}
		tail = append(tail, gemm.Tensor{Name: DefaultOutput, Role: gemm.RoleOutput, Dtype: p.Out, Inputs: []string{src}})
	}
	if len(head) == 0 && len(tail) == 0 {
		return ts
	}
	out := make([]gemm.Tensor, 0, len(head)+len(ts)+len(tail))
	out = append(out, head...)
	out = append(out, ts...)
	return append(out, tail...)
}

func hasRole(ts []gemm.Tensor, r gemm.Role) bool {
	for _, t := range ts {
		if t.Role == r {
			return true
		}
	}
	return false
}

func dtypeOr(s string, def gemm.Dtype) (gemm.Dtype, error) {
	if s == "" {
		return def, nil
	}
	d, err := gemm.ParseDtype(s)
	if err != nil {
		return 0, invalidf("%v", err)
	}
	return d, nil
}
