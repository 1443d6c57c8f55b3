package gemm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTiling    = errors.New("invalid tiling")
	ErrUnhandledTiling  = errors.New("unhandled tiling")
	ErrFusionConflict   = errors.New("fusion conflict")
	ErrUnsupportedDtype = errors.New("unsupported dtype")
)

// InvalidTilingError reports a tile or tiling string that breaks a hardware
// legality rule.
type InvalidTilingError struct {
	Level  string // "problem", "L1", "L0" or "oracle"
	Dim    string
	Value  int
	Limit  int
	Tiling string
	Reason string
}

func (e *InvalidTilingError) Error() string {
	if e.Tiling != "" && e.Dim == "" {
		return fmt.Sprintf("invalid tiling %q: %s", e.Tiling, e.Reason)
	}
	msg := fmt.Sprintf("invalid tiling: %s %s=%d %s", e.Level, e.Dim, e.Value, e.Reason)
	if e.Limit > 0 {
		msg += fmt.Sprintf(" (limit %d)", e.Limit)
	}
	return msg
}

func (e *InvalidTilingError) Unwrap() error {
	return ErrInvalidTiling
}

// UnhandledTilingError means the tiling fits neither planner regime.
type UnhandledTilingError struct {
	K      int
	Tiles  TilePair
	Reason string
}

func (e *UnhandledTilingError) Error() string {
	return fmt.Sprintf("unhandled tiling: K=%d L1=%s L0=%s: %s", e.K, e.Tiles.L1, e.Tiles.L0, e.Reason)
}

func (e *UnhandledTilingError) Unwrap() error {
	return ErrUnhandledTiling
}

// FusionConflictError means a matmul operand placeholder is also read by the
// fused post-processing graph.
type FusionConflictError struct {
	Tensor      string
	Placeholder string
	Operand     Role
}

func (e *FusionConflictError) Error() string {
	return fmt.Sprintf("fusion conflict: fused tensor %q reads %s placeholder %q", e.Tensor, e.Operand, e.Placeholder)
}

func (e *FusionConflictError) Unwrap() error {
	return ErrFusionConflict
}

type UnsupportedDtypeError struct {
	Dtype Dtype
	Op    string
}

func (e *UnsupportedDtypeError) Error() string {
	return fmt.Sprintf("unsupported dtype: no %s scratch rule for %s", e.Op, e.Dtype)
}

func (e *UnsupportedDtypeError) Unwrap() error {
	return ErrUnsupportedDtype
}
