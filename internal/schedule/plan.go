package schedule

import (
	"fmt"
	"strings"
)

// OpKind enumerates the loop-nest mutations a plan can record.
type OpKind uint8

const (
	OpSplit OpKind = iota + 1
	OpFuse
	OpReorder
	OpAttach
	OpBind
	OpSetScope
	OpDoubleBuffer
	OpRunOnce
	OpPreload
	OpEmit
)

var opKindNames = [...]string{
	OpSplit:        "split",
	OpFuse:         "fuse",
	OpReorder:      "reorder",
	OpAttach:       "attach",
	OpBind:         "bind",
	OpSetScope:     "set_scope",
	OpDoubleBuffer: "double_buffer",
	OpRunOnce:      "run_once",
	OpPreload:      "preload",
	OpEmit:         "emit",
}

func (k OpKind) String() string {
	if k > 0 && int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

func (k OpKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OpKind) UnmarshalText(b []byte) error {
	for i, n := range opKindNames {
		if i > 0 && n == string(b) {
			*k = OpKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown op kind %q", string(b))
}

// Axis names one loop of one tensor's stage.
type Axis struct {
	Tensor string `json:"tensor"`
	Name   string `json:"name"`
}

func (a Axis) String() string {
	return a.Tensor + "." + a.Name
}

// Op is one recorded mutation. Only the fields relevant to Kind are set.
type Op struct {
	Kind       OpKind            `json:"kind"`
	Tensor     string            `json:"tensor"`
	Axis       string            `json:"axis,omitempty"`
	Factor     int               `json:"factor,omitempty"`
	NParts     int               `json:"nparts,omitempty"`
	Axes       []string          `json:"axes,omitempty"`
	Results    []string          `json:"results,omitempty"`
	Target     string            `json:"target,omitempty"`
	TargetAxis string            `json:"target_axis,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Scope      Scope             `json:"scope,omitempty"`
	Primitive  string            `json:"primitive,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

func (o Op) String() string {
	var sb strings.Builder
	sb.WriteString(o.Kind.String())
	sb.WriteByte(' ')
	sb.WriteString(o.Tensor)
	switch o.Kind {
	case OpSplit:
		fmt.Fprintf(&sb, ".%s", o.Axis)
		if o.NParts > 0 {
			fmt.Fprintf(&sb, " nparts=%d", o.NParts)
		} else {
			fmt.Fprintf(&sb, " factor=%d", o.Factor)
		}
		fmt.Fprintf(&sb, " -> %s", strings.Join(o.Results, ", "))
	case OpFuse:
		fmt.Fprintf(&sb, " [%s] -> %s", strings.Join(o.Axes, ", "), strings.Join(o.Results, ""))
	case OpReorder:
		fmt.Fprintf(&sb, " [%s]", strings.Join(o.Axes, ", "))
	case OpAttach:
		fmt.Fprintf(&sb, " at %s.%s", o.Target, o.TargetAxis)
	case OpBind:
		fmt.Fprintf(&sb, ".%s to %s", o.Axis, o.Unit)
	case OpSetScope:
		fmt.Fprintf(&sb, " %s", o.Scope)
	case OpRunOnce:
		fmt.Fprintf(&sb, ".%s", o.Axis)
	case OpEmit:
		fmt.Fprintf(&sb, ".%s %s", o.Axis, o.Primitive)
		if len(o.Attrs) > 0 {
			fmt.Fprintf(&sb, " %v", o.Attrs)
		}
	}
	return sb.String()
}

// Builder records operations in the order they are issued. Split and fuse
// hand back derived axis names so later operations can refer to them.
type Builder struct {
	ops []Op
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Split divides ax into an outer loop and an inner loop of length factor.
func (b *Builder) Split(ax Axis, factor int) (outer, inner Axis) {
	return b.split(ax, factor, 0)
}

// SplitParts divides ax into nparts outer iterations.
func (b *Builder) SplitParts(ax Axis, nparts int) (outer, inner Axis) {
	return b.split(ax, 0, nparts)
}

func (b *Builder) split(ax Axis, factor, nparts int) (Axis, Axis) {
	outer := Axis{Tensor: ax.Tensor, Name: ax.Name + ".outer"}
	inner := Axis{Tensor: ax.Tensor, Name: ax.Name + ".inner"}
	b.ops = append(b.ops, Op{
		Kind:    OpSplit,
		Tensor:  ax.Tensor,
		Axis:    ax.Name,
		Factor:  factor,
		NParts:  nparts,
		Results: []string{outer.Name, inner.Name},
	})
	return outer, inner
}

// Fuse folds adjacent axes of one tensor into a single loop.
func (b *Builder) Fuse(axes ...Axis) Axis {
	if len(axes) == 0 {
		return Axis{}
	}
	names := axisNames(axes)
	fused := Axis{Tensor: axes[0].Tensor, Name: strings.Join(names, "+")}
	if len(axes) == 1 {
		return axes[0]
	}
	b.ops = append(b.ops, Op{
		Kind:    OpFuse,
		Tensor:  fused.Tensor,
		Axes:    names,
		Results: []string{fused.Name},
	})
	return fused
}

func (b *Builder) Reorder(tensor string, axes ...Axis) {
	b.ops = append(b.ops, Op{Kind: OpReorder, Tensor: tensor, Axes: axisNames(axes)})
}

// Attach computes tensor inside the loop at.
func (b *Builder) Attach(tensor string, at Axis) {
	b.ops = append(b.ops, Op{Kind: OpAttach, Tensor: tensor, Target: at.Tensor, TargetAxis: at.Name})
}

func (b *Builder) Bind(ax Axis, unit string) {
	b.ops = append(b.ops, Op{Kind: OpBind, Tensor: ax.Tensor, Axis: ax.Name, Unit: unit})
}

func (b *Builder) SetScope(tensor string, s Scope) {
	b.ops = append(b.ops, Op{Kind: OpSetScope, Tensor: tensor, Scope: s})
}

func (b *Builder) DoubleBuffer(tensor string) {
	b.ops = append(b.ops, Op{Kind: OpDoubleBuffer, Tensor: tensor})
}

// RunOnce marks a staging copy that only needs to execute on the first
// iteration of ax.
func (b *Builder) RunOnce(tensor string, ax Axis) {
	b.ops = append(b.ops, Op{Kind: OpRunOnce, Tensor: tensor, Axis: ax.Name})
}

func (b *Builder) Preload(tensor string) {
	b.ops = append(b.ops, Op{Kind: OpPreload, Tensor: tensor})
}

func (b *Builder) Emit(ax Axis, primitive string, attrs map[string]string) {
	b.ops = append(b.ops, Op{Kind: OpEmit, Tensor: ax.Tensor, Axis: ax.Name, Primitive: primitive, Attrs: attrs})
}

// Ops returns the recorded operations. The slice is owned by the caller.
func (b *Builder) Ops() []Op {
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

func (b *Builder) Len() int {
	return len(b.ops)
}

func axisNames(axes []Axis) []string {
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.Name
	}
	return names
}
