// Package api serves the bot's read-only status endpoints over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cloudbot/internal/poll"
	"github.com/kalambet/cloudbot/internal/storage"
)

// LoopStats exposes the polling loop counters.
type LoopStats interface {
	Stats() poll.Stats
}

// ProcessedCounter reports the size of the processed-ID set.
type ProcessedCounter interface {
	Len() int
}

// History reads past publications.
type History interface {
	GetPublication(id string) (storage.Publication, error)
	ListPublications(limit int) ([]storage.Publication, error)
	CountPublications() (map[storage.Mode]int, error)
}

type StatusDeps struct {
	Loop      LoopStats // optional; nil when the loop is not running
	Processed ProcessedCounter
	History   History
	Token     string // optional bearer token
}

// StatusResponse is the body of GET /stats.
type StatusResponse struct {
	Loop         *poll.Stats          `json:"loop,omitempty"`
	ProcessedIDs int                  `json:"processed_ids"`
	Publications map[storage.Mode]int `json:"publications"`
}

func NewStatusHandler(deps StatusDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/stats", handleStats(deps))
		r.Get("/publications", handleListPublications(deps))
		r.Get("/publications/{id}", handleGetPublication(deps))
		r.Handle("/mcp", newMCPHandler(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := collectStatus(deps)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count publications: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func collectStatus(deps StatusDeps) (StatusResponse, error) {
	counts, err := deps.History.CountPublications()
	if err != nil {
		return StatusResponse{}, err
	}
	resp := StatusResponse{Publications: counts}
	if deps.Processed != nil {
		resp.ProcessedIDs = deps.Processed.Len()
	}
	if deps.Loop != nil {
		s := deps.Loop.Stats()
		resp.Loop = &s
	}
	return resp, nil
}

func handleListPublications(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		pubs, err := deps.History.ListPublications(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list publications: %v", err)
			return
		}
		if pubs == nil {
			pubs = []storage.Publication{}
		}
		writeJSON(w, http.StatusOK, pubs)
	}
}

func handleGetPublication(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		pub, err := deps.History.GetPublication(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "publication not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get publication: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, pub)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
