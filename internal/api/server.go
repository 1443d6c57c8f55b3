package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/logger"
)

type Server struct {
	store   *ScheduleStore
	planner *Planner
	limiter *rate.Limiter
	log     logger.Logger
	clock   func() time.Time
}

type ServerOption func(*Server)

// WithRateLimit bounds planning requests to rps per second with the given
// burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

func NewServer(store *ScheduleStore, planner *Planner, opts ...ServerOption) *Server {
	if store == nil {
		store = NewScheduleStore(0)
	}
	if planner == nil {
		planner = NewPlanner(nil, "")
	}
	s := &Server{
		store:   store,
		planner: planner,
		log:     logger.Discard(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/schedules", s.handleCreateSchedule, s.rateLimit)
	e.GET("/v1/schedules/:id", s.handleGetSchedule)
	e.DELETE("/v1/schedules/:id", s.handleDeleteSchedule)

	e.GET("/v1/knowledge", s.handleKnowledge)
	e.GET("/v1/profiles", s.handleProfiles)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many schedule requests", "", "")
		}
		return next(c)
	}
}

func (s *Server) handleCreateSchedule(c *echo.Context) error {
	req, err := decodeJSON[ScheduleRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Problem == nil {
		return writeBadRequest(c, "problem is required")
	}
	g, err := req.Problem.Graph()
	if err != nil {
		return writePlanError(c, err)
	}

	ctx := logger.WithContext(c.Request().Context(), s.log)
	plan, prof, err := s.planner.Plan(ctx, req.Profile, g, gemm.Options{Tiles: req.Tiles})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeBadRequest(c, err.Error())
		}
		s.log.Warn("schedule failed", "problem", req.Problem.Name, "profile", prof.Name, "error", err)
		return writePlanError(c, err)
	}

	resp := ScheduleResponse{
		ID:        newScheduleID(),
		Object:    "schedule",
		CreatedAt: s.clock().Unix(),
		Name:      req.Problem.Name,
		Profile:   prof.Name,
		Plan:      plan,
	}
	if err := s.store.Save(resp); err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("schedule created", "id", resp.ID, "profile", prof.Name, "tiling", plan.Decisions.Tiling, "ops", len(plan.Ops))
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetSchedule(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "schedule not found")
	}
	b, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "schedule not found")
	}
	return c.JSON(http.StatusOK, rawJSON(b))
}

func (s *Server) handleDeleteSchedule(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.store.Delete(id) {
		return writeNotFound(c, "schedule not found")
	}
	return c.JSON(http.StatusOK, DeleteScheduleResp{
		ID:      id,
		Object:  "schedule",
		Deleted: true,
	})
}

func (s *Server) handleKnowledge(c *echo.Context) error {
	return c.JSON(http.StatusOK, KnowledgeResponse{
		Object:  "list",
		Version: gemm.KnowledgeVersion,
		Data:    gemm.KnownTilings(),
	})
}

func (s *Server) handleProfiles(c *echo.Context) error {
	return c.JSON(http.StatusOK, ProfilesResponse{
		Object:  "list",
		Default: s.planner.DefaultProfile(),
		Data:    s.planner.Profiles(),
	})
}

// rawJSON writes already-encoded JSON through c.JSON unchanged.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return r, nil
}
