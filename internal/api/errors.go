package api

import (
	"errors"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/graph"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// errorKind names a planning failure for clients.
func errorKind(err error) (string, bool) {
	switch {
	case errors.Is(err, gemm.ErrInvalidTiling):
		return "invalid_tiling", true
	case errors.Is(err, gemm.ErrUnhandledTiling):
		return "unhandled_tiling", true
	case errors.Is(err, gemm.ErrFusionConflict):
		return "fusion_conflict", true
	case errors.Is(err, gemm.ErrUnsupportedDtype):
		return "unsupported_dtype", true
	case errors.Is(err, graph.ErrInvalidDocument):
		return "invalid_problem", true
	}
	return "", false
}
