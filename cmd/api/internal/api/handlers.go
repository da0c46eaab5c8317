package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/internal/results"
	"thirdcoast.systems/scribe/internal/units"
)

type submitResponse struct {
	Accepted bool `json:"accepted"`
	pipeline.Submission
}

type rejectResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error"`
}

type waitResponse struct {
	Outcome pipeline.Outcome `json:"outcome"`
	Unit    *units.Unit      `json:"unit,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.opts.Health != nil {
		if err := s.opts.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req pipeline.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, rejectResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Reference) == "" {
		return c.JSON(http.StatusBadRequest, rejectResponse{Error: "reference is required"})
	}
	if req.MaxItems < 0 {
		return c.JSON(http.StatusBadRequest, rejectResponse{Error: "max_items must not be negative"})
	}
	if s.opts.MaxItems > 0 && (req.MaxItems == 0 || req.MaxItems > s.opts.MaxItems) {
		req.MaxItems = s.opts.MaxItems
	}

	sub, err := s.opts.Submitter.Submit(c.Request().Context(), req)
	if err != nil {
		if pipeline.IsRejection(err) {
			return c.JSON(http.StatusUnprocessableEntity, rejectResponse{Error: err.Error()})
		}
		slog.Error("submission failed", "reference", req.Reference, "error", err)
		return c.JSON(http.StatusInternalServerError, rejectResponse{Error: "submission could not be enqueued"})
	}
	return c.JSON(http.StatusAccepted, submitResponse{Accepted: true, Submission: sub})
}

func (s *Server) handleGetUnit(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	u, err := s.opts.Units.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, units.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unit not found")
		}
		slog.Error("failed to read unit", "id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read unit")
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleWait(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))

	timeout, err := durationParam(c, "timeout", s.opts.PollTimeout)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	interval, err := durationParam(c, "interval", s.opts.PollInterval)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.opts.PollTimeout > 0 && timeout > s.opts.PollTimeout {
		timeout = s.opts.PollTimeout
	}
	if interval < s.opts.MinPollInterval {
		interval = s.opts.MinPollInterval
	}

	outcome, u, err := s.poller.Poll(c.Request().Context(), id, timeout, interval)
	if err != nil {
		// Client went away.
		return nil
	}

	resp := waitResponse{Outcome: outcome}
	if u.ID != "" {
		resp.Unit = &u
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.opts.Search == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "search is not configured")
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	hits, err := s.opts.Search.Search(c.Request().Context(), results.SearchParams{
		Query:     q,
		VideoID:   c.QueryParam("video_id"),
		ChannelID: c.QueryParam("channel_id"),
		Limit:     limit,
	})
	if err != nil {
		slog.Error("search failed", "q", q, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"hits": hits})
}

// durationParam accepts Go durations ("90s", "5m") or bare seconds.
func durationParam(c echo.Context, name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New(name + " must be a positive duration")
	}
	return d, nil
}
