package schedule

import "fmt"

// Surface is the host compiler's mutable schedule object.
type Surface interface {
	Split(tensor, axis string, factor, nparts int, outer, inner string) error
	Fuse(tensor string, axes []string, fused string) error
	Reorder(tensor string, axes []string) error
	Attach(tensor, target, targetAxis string) error
	Bind(tensor, axis, unit string) error
	SetScope(tensor string, scope Scope) error
	DoubleBuffer(tensor string) error
	RunOnce(tensor, axis string) error
	Preload(tensor string) error
	Emit(tensor, axis, primitive string, attrs map[string]string) error
}

// Replay applies ops to s in order and stops at the first failure.
func Replay(ops []Op, s Surface) error {
	for i, op := range ops {
		if err := apply(op, s); err != nil {
			return fmt.Errorf("replay op %d (%s): %w", i, op.Kind, err)
		}
	}
	return nil
}

func apply(op Op, s Surface) error {
	switch op.Kind {
	case OpSplit:
		if len(op.Results) != 2 {
			return fmt.Errorf("split of %s.%s has %d results", op.Tensor, op.Axis, len(op.Results))
		}
		return s.Split(op.Tensor, op.Axis, op.Factor, op.NParts, op.Results[0], op.Results[1])
	case OpFuse:
		if len(op.Results) != 1 {
			return fmt.Errorf("fuse on %s has %d results", op.Tensor, len(op.Results))
		}
		return s.Fuse(op.Tensor, op.Axes, op.Results[0])
	case OpReorder:
		return s.Reorder(op.Tensor, op.Axes)
	case OpAttach:
		return s.Attach(op.Tensor, op.Target, op.TargetAxis)
	case OpBind:
		return s.Bind(op.Tensor, op.Axis, op.Unit)
	case OpSetScope:
		return s.SetScope(op.Tensor, op.Scope)
	case OpDoubleBuffer:
		return s.DoubleBuffer(op.Tensor)
	case OpRunOnce:
		return s.RunOnce(op.Tensor, op.Axis)
	case OpPreload:
		return s.Preload(op.Tensor)
	case OpEmit:
		return s.Emit(op.Tensor, op.Axis, op.Primitive, op.Attrs)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}
