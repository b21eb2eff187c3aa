package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/metrics"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Worker  string `json:"worker"`
}

// StatusResponse answers GET /api/status.
type StatusResponse struct {
	metrics.Status
	Uptime string               `json:"uptime_human"`
	Job    coordinator.Snapshot `json:"job"`
}

func (s *Server) handleInpaint(w http.ResponseWriter, r *http.Request) {
	var req coordinator.InpaintRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}

	resp, err := s.coord.Submit(req)
	switch {
	case errors.Is(err, coordinator.ErrInvalidRequest):
		s.badRequest(w, r, err)
		return
	case err != nil:
		s.logger.Error("Submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submit failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	token, err := readToken(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Progress(token))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	token, err := readToken(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	resp, err := s.coord.CollectResult(token)
	if err != nil {
		s.logger.Error("Collect result failed", zap.String("token", token), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Worker:  s.coord.Status().Status,
	})
}

// handleStatus serves the metrics snapshot. ?limit= bounds the recent jobs.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not available")
		return
	}

	limit := s.config.StatusLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > s.config.StatusMaxLimit {
		limit = s.config.StatusMaxLimit
	}

	snap := s.collector.Snapshot(limit)
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: snap,
		Uptime: formatDuration(snap.System.Uptime),
		Job:    s.coord.Status(),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("Rejected request",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusBadRequest, err.Error())
}

// decodeBody reads a single JSON object from the request body.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}

// readToken takes the token from a JSON body, which is how the plugin sends it
// even on GET, and falls back to ?token= when the body is empty.
func readToken(r *http.Request) (string, error) {
	var req coordinator.TokenRequest
	if r.Body != nil && r.Body != http.NoBody {
		err := json.NewDecoder(r.Body).Decode(&req)
		switch {
		case err == nil:
			return req.Token, nil
		case !errors.Is(err, io.EOF):
			return "", fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	return r.URL.Query().Get("token"), nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// formatDuration renders uptime as "45s", "2m30s" or "3h4m5s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return strconv.Itoa(hours) + "h" + strconv.Itoa(minutes) + "m" + strconv.Itoa(seconds) + "s"
	}
	return strconv.Itoa(minutes) + "m" + strconv.Itoa(seconds) + "s"
}
