package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stevedore-io/stevedore/pkg/catalog"
	"github.com/stevedore-io/stevedore/pkg/events"
	"github.com/stevedore-io/stevedore/pkg/metrics"
	"github.com/stevedore-io/stevedore/pkg/scheduler"
	"github.com/stevedore-io/stevedore/pkg/types"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"backends": s.repo.Len(),
	})
}

func (s *Server) handleReport(c echo.Context) error {
	var report types.CapabilityReport
	if err := c.Bind(&report); err != nil {
		metrics.ReportsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	state, err := s.repo.Apply(&report)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	metrics.ReportsTotal.WithLabelValues("applied").Inc()
	if s.broker != nil {
		s.broker.Publish(&events.Event{Type: events.EventReportApplied, Backend: state.Key()})
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handlePlacement(c echo.Context) error {
	var spec types.RequestSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	placement, err := s.scheduler.Schedule(c.Request().Context(), &spec)
	if err != nil {
		return s.placementError(c, err)
	}
	return c.JSON(http.StatusAccepted, placement)
}

// placementError maps the scheduling error taxonomy to status codes:
// impossible requests are client errors, an empty survivor set is a
// conflict with current capacity, and a malformed expression is an
// operator problem.
func (s *Server) placementError(c echo.Context, err error) error {
	var conflict *types.SpecificationConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "SpecificationConflict"})
	}
	var nvh *types.NoValidHostError
	if errors.As(err, &nvh) {
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Kind: "NoValidHost"})
	}
	var cfgErr *types.ConfigurationError
	if errors.As(err, &cfgErr) {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "ConfigurationError"})
	}
	return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func (s *Server) handleOutcome(c echo.Context) error {
	var outcome types.Outcome
	if err := c.Bind(&outcome); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	switch outcome.Status {
	case types.OutcomeSuccess, types.OutcomeRetryableFailure, types.OutcomeFatalFailure:
	default:
		return c.JSON(http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown outcome %q", outcome.Status)})
	}
	result, err := s.scheduler.HandleOutcome(&outcome)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
	}
	resp := outcomeResponse{
		RequestID: result.RequestID,
		State:     result.State,
		Placement: result.Placement,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// outcomeResponse is the JSON shape of a retry-machine transition.
type outcomeResponse struct {
	RequestID string           `json:"request_id"`
	State     scheduler.State  `json:"state"`
	Placement *types.Placement `json:"placement,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (s *Server) handleListBackends(c echo.Context) error {
	return c.JSON(http.StatusOK, s.repo.List())
}

func (s *Server) handleGetBackend(c echo.Context) error {
	host := c.Param("host")
	pool := c.QueryParam("pool")
	state, ok := s.repo.Get(host, pool)
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Error: fmt.Sprintf("backend %s not found", types.BackendKey(host, pool))})
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleDisableBackend(c echo.Context) error {
	return s.setBackendDisabled(c, true, events.EventBackendDisabled)
}

func (s *Server) handleEnableBackend(c echo.Context) error {
	return s.setBackendDisabled(c, false, events.EventBackendEnabled)
}

func (s *Server) setBackendDisabled(c echo.Context, disabled bool, evt events.EventType) error {
	host := c.Param("host")
	n := s.repo.SetDisabled(host, disabled)
	if n == 0 {
		return c.JSON(http.StatusNotFound, errorBody{Error: fmt.Sprintf("backend %s not found", host)})
	}
	if s.broker != nil {
		s.broker.Publish(&events.Event{Type: evt, Backend: host})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"host": host, "pools": n, "disabled": disabled})
}

func (s *Server) handleListVolumes(c echo.Context) error {
	if s.catalog == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "catalog not configured"})
	}
	return c.JSON(http.StatusOK, s.catalog.Volumes())
}

func (s *Server) handleAddVolume(c echo.Context) error {
	if s.catalog == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "catalog not configured"})
	}
	var rec catalog.VolumeRecord
	if err := c.Bind(&rec); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	if err := s.catalog.AddVolume(rec); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleAddSnapshot(c echo.Context) error {
	if s.catalog == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "catalog not configured"})
	}
	var req struct {
		SnapshotID string `json:"snapshot_id"`
		VolumeID   string `json:"volume_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	if err := s.catalog.AddSnapshot(req.SnapshotID, req.VolumeID); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, req)
}

func (s *Server) handleDecisions(c echo.Context) error {
	return s.journalTail(c, func(limit int) (interface{}, error) {
		return s.journal.Decisions(limit)
	})
}

func (s *Server) handleOutcomes(c echo.Context) error {
	return s.journalTail(c, func(limit int) (interface{}, error) {
		return s.journal.Outcomes(limit)
	})
}

func (s *Server) journalTail(c echo.Context, fetch func(int) (interface{}, error)) error {
	if s.journal == nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "journal not configured"})
	}
	limit := 50
	if q := c.QueryParam("limit"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &limit); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be an integer"})
		}
	}
	entries, err := fetch(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, entries)
}
