package graph

import (
	"strings"

	"github.com/samcharles93/tilesched/internal/gemm"
)

// roleTags are the exact tags naming a tensor's part in the matmul itself.
var roleTags = map[string]gemm.Role{
	"operand_a":   gemm.RoleOperandA,
	"tensor_a":    gemm.RoleOperandA,
	"operand_b":   gemm.RoleOperandB,
	"tensor_b":    gemm.RoleOperandB,
	"accumulator": gemm.RoleAccumulator,
	"mad":         gemm.RoleAccumulator,
	"bias":        gemm.RoleBias,
	"quant_scale": gemm.RoleQuantScale,
	"deq_scale":   gemm.RoleQuantScale,
	"output":      gemm.RoleOutput,
	"res":         gemm.RoleOutput,
}

// stageRules are tried in order against the tag; the first substring that
// matches decides the stage. "sqrt" precedes "dequant" so that dequant_sqrt
// is the sqrt stage, and both dequant spellings precede "quant".
var stageRules = []struct {
	substr string
	stage  gemm.Stage
}{
	{"reform", gemm.StageReform},
	{"sqrt", gemm.StageSqrt},
	{"requant", gemm.StageDequant},
	{"dequant", gemm.StageDequant},
	{"relu", gemm.StageRelu},
	{"quant", gemm.StageQuant},
	{"bias_add", gemm.StageBiasAdd},
	{"cast", gemm.StageCast},
	{"reduce", gemm.StageReduce},
	{"elewise", gemm.StageElementwise},
}

// Classification is the closed-enum form of a tag.
type Classification struct {
	Role  gemm.Role
	Stage gemm.Stage
	Op    string
}

// Classify maps a tensor tag onto a role or fused stage. Tags are matched
// case-insensitively. ok is false for a tag nothing recognizes.
func Classify(tag string) (c Classification, ok bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return Classification{}, false
	}
	if r, found := roleTags[tag]; found {
		return Classification{Role: r}, true
	}
	for _, rule := range stageRules {
		if strings.Contains(tag, rule.substr) {
			c = Classification{Role: gemm.RoleFusedElementwise, Stage: rule.stage}
			if rule.stage == gemm.StageElementwise {
				c.Op = elementwiseOp(tag)
			}
			return c, true
		}
	}
	return Classification{}, false
}

// elementwiseOp turns "elewise_binary_add" into "vadd" and
// "elewise_single_vs_mul" into "vmuls".
func elementwiseOp(tag string) string {
	i := strings.LastIndexByte(tag, '_')
	if i < 0 || i == len(tag)-1 {
		return ""
	}
	op := "v" + tag[i+1:]
	if strings.Contains(tag, "_vs_") {
		op += "s"
	}
	return op
}
