package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writePlanError reports engine failures as 422 with the failure kind as the
// code. Anything unclassified is a server error.
func writePlanError(c *echo.Context, err error) error {
	if kind, ok := errorKind(err); ok {
		return writeError(c, http.StatusUnprocessableEntity, "planning_error", err.Error(), "", kind)
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func newScheduleID() string {
	return "sched_" + uuid.NewString()
}
