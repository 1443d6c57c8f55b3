package gemm

const (
	primDMACopy = "dma_copy"
	primMad     = "mad"
)

// stagePrimitives maps a fused stage to the instruction that implements it.
var stagePrimitives = map[Stage]string{
	StageBiasAdd: "vector_add",
	StageDequant: "vector_deq",
	StageSqrt:    "vector_sqrt",
	StageRelu:    "vector_relu",
	StageQuant:   "vector_quant",
	StageReform:  "vector_reform",
	StageCast:    "vector_conv",
	StageReduce:  "vector_reduce_sum",
}

// elementwisePrimitives maps an elementwise op name to its instruction.
var elementwisePrimitives = map[string]string{
	"vadd":  "vector_add",
	"vsub":  "vector_sub",
	"vmul":  "vector_mul",
	"vdiv":  "vector_div",
	"vmax":  "vector_max",
	"vmin":  "vector_min",
	"vadds": "vector_adds",
	"vmuls": "vector_muls",
	"vabs":  "vector_abs",
	"vexp":  "vector_exp",
	"vlog":  "vector_ln",
	"vrec":  "vector_rec",
	"vsqrt": "vector_sqrt",
	"vrelu": "vector_relu",
	"vconv": "vector_conv",
}

// primitiveFor picks the emission primitive for a fused tensor. Unknown
// elementwise ops fall back to the generic vector emitter.
func primitiveFor(t Tensor) string {
	if t.Stage == StageElementwise || t.Stage == StageNone {
		if p, ok := elementwisePrimitives[t.Op]; ok {
			return p
		}
		return "vector_auto"
	}
	if p, ok := stagePrimitives[t.Stage]; ok {
		return p
	}
	return "vector_auto"
}
