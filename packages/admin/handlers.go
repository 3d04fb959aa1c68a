package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"scrapemonitor/packages/domain"
	"scrapemonitor/packages/toggle"
)

// Toggle is the part of toggle.State the control plane drives.
type Toggle interface {
	IsEnabled() bool
	SetEnabledBy(enabled bool, source string)
}

// Fetcher performs a single on-demand fetch. It shares the proxy client with
// the loop but never touches loop state.
type Fetcher interface {
	Fetch(ctx context.Context, target domain.Target) domain.FetchResult
}

type Handlers struct {
	toggle  Toggle
	fetcher Fetcher
}

func NewHandlers(tg Toggle, fetcher Fetcher) *Handlers {
	return &Handlers{toggle: tg, fetcher: fetcher}
}

type statusResponse struct {
	Enabled bool `json:"enabled"`
}

type fetchResponse struct {
	Target         int64            `json:"target"`
	HTTPStatus     int              `json:"http_status"`
	ResponseTimeMs int64            `json:"response_time_ms"`
	Body           *string          `json:"body"`
	Blocked        bool             `json:"blocked"`
	BlockType      domain.BlockType `json:"block_type"`
	Error          *string          `json:"error"`
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Enabled: h.toggle.IsEnabled()})
}

func (h *Handlers) Toggle(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil || reqBody.Enabled == nil {
		http.Error(w, `request body must be {"enabled": true|false}`, http.StatusBadRequest)
		return
	}
	h.toggle.SetEnabledBy(*reqBody.Enabled, toggle.SourceOperator)
	writeJSON(w, http.StatusOK, statusResponse{Enabled: h.toggle.IsEnabled()})
}

// FetchOne handles GET /scrape-url/{id}.
func (h *Handlers) FetchOne(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}
	if h.fetcher == nil {
		http.Error(w, "proxy not configured", http.StatusServiceUnavailable)
		return
	}

	res := h.fetcher.Fetch(r.Context(), domain.Target(id))
	slog.Info("Manual fetch", "target", id, "status_code", res.HTTPStatus, "blocked", res.Blocked, "block_type", string(res.BlockType))
	writeJSON(w, http.StatusOK, toFetchResponse(res))
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func toFetchResponse(res domain.FetchResult) fetchResponse {
	out := fetchResponse{
		Target:         int64(res.Target),
		HTTPStatus:     res.HTTPStatus,
		ResponseTimeMs: res.ResponseTimeMs(),
		Blocked:        res.Blocked,
		BlockType:      res.BlockType,
	}
	if res.Body != nil {
		body := string(res.Body)
		out.Body = &body
	}
	if res.Error != "" {
		msg := res.Error
		out.Error = &msg
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
