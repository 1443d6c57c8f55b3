package gemm

// ReformStage is a post-quantization reform tensor and the stage whose buffer
// it reuses.
type ReformStage struct {
	Tensor      string `json:"tensor"`
	ReuseTarget string `json:"reuse_target,omitempty"`
}

// FusionDescriptor characterizes the post-processing graph scheduled with the
// matmul.
type FusionDescriptor struct {
	Dequant     string        `json:"dequant,omitempty"`
	Sqrt        string        `json:"sqrt,omitempty"`
	Relu        string        `json:"relu,omitempty"`
	Quant       string        `json:"quant,omitempty"`
	RoundMode   string        `json:"round_mode,omitempty"`
	Reform      []ReformStage `json:"reform,omitempty"`
	BiasAdd     []string      `json:"bias_add,omitempty"`
	Elementwise []string      `json:"elementwise,omitempty"`

	// ChangesOutputTile halves the output N tile so quantized pairs stay
	// together.
	ChangesOutputTile bool `json:"changes_output_tile"`

	// order is every fused tensor, producers before consumers.
	order []string
}

func (f *FusionDescriptor) Active() bool {
	return len(f.order) > 0
}

func (f *FusionDescriptor) Tensors() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// AnalyzeFusion inspects the tagged post-processing tensors of g.
// coreInnerN is the per-core output extent along N.
func AnalyzeFusion(g *Graph, coreInnerN int) (FusionDescriptor, error) {
	var fd FusionDescriptor

	operands := map[string]Role{}
	for _, t := range g.Tensors {
		if t.Role == RoleOperandA || t.Role == RoleOperandB {
			operands[t.Name] = t.Role
			for _, in := range t.Inputs {
				if src, ok := g.lookup(in); ok && src.Placeholder {
					operands[src.Name] = t.Role
				}
			}
		}
	}

	sorted, err := SortTensors(g.Tensors)
	if err != nil {
		return FusionDescriptor{}, err
	}
	for _, t := range sorted {
		if !isFused(t) {
			continue
		}
		for _, in := range t.Inputs {
			src, ok := g.lookup(in)
			if !ok || !src.Placeholder {
				continue
			}
			if role, shared := operands[src.Name]; shared {
				return FusionDescriptor{}, &FusionConflictError{Tensor: t.Name, Placeholder: src.Name, Operand: role}
			}
		}

		fd.order = append(fd.order, t.Name)
		switch t.Stage {
		case StageDequant:
			if fd.Dequant == "" {
				fd.Dequant = t.Name
			}
		case StageSqrt:
			if fd.Dequant != "" && fd.Sqrt == "" {
				fd.Sqrt = t.Name
			} else {
				fd.Elementwise = append(fd.Elementwise, t.Name)
			}
		case StageRelu:
			if fd.Relu == "" {
				fd.Relu = t.Name
			}
		case StageQuant:
			if fd.Quant == "" {
				fd.Quant = t.Name
				fd.RoundMode = t.RoundMode
			}
		case StageReform:
			fd.Reform = append(fd.Reform, ReformStage{Tensor: t.Name})
		case StageBiasAdd:
			fd.BiasAdd = append(fd.BiasAdd, t.Name)
		default:
			fd.Elementwise = append(fd.Elementwise, t.Name)
		}
	}

	target := firstNonEmpty(fd.Relu, fd.Sqrt, fd.Dequant)
	for i := range fd.Reform {
		fd.Reform[i].ReuseTarget = target
	}

	fd.ChangesOutputTile = fd.Quant != "" && coreInnerN != BlockQuantum
	return fd, nil
}

func isFused(t Tensor) bool {
	if t.Placeholder {
		return false
	}
	switch t.Role {
	case RoleOperandA, RoleOperandB, RoleAccumulator, RoleOutput:
		return false
	}
	return t.Role == RoleFusedElementwise || t.Stage != StageNone
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// fusedWidth is the UB bytes per output element the fused graph needs, summed
// over the accumulator copy and every fused tensor. Casts hold both their
// source and destination types; reductions add their scratch space. A bias
// behind a dequant is staged in UB too.
func fusedWidth(g *Graph, fd *FusionDescriptor) (int, error) {
	width := g.Problem.Acc.Bytes()
	if g.Problem.HasBias && fd.Dequant != "" {
		width += g.Problem.Bias.Bytes()
	}
	for _, name := range fd.order {
		t, _ := g.lookup(name)
		width += t.Dtype.Bytes()
		switch t.Stage {
		case StageCast:
			width += t.SrcDtype.Bytes()
		case StageReduce:
			scratch, err := ReduceScratchBytes(t.Dtype, reduceProbe)
			if err != nil {
				return 0, err
			}
			width += ceilDiv(scratch, reduceProbe)
		}
	}
	return width, nil
}

// normalizedWidth expresses width in multiples of the output element size.
func normalizedWidth(width int, out Dtype) int {
	b := out.Bytes()
	if b <= 0 {
		b = 1
	}
	return max(1, ceilDiv(width, b))
}
