package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/phenomenon0/courtside/pkg/feed"
)

const maxIngestBody = 1 << 20

func (a *tradingAgent) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"status": "ok"}
		if a.wsSource != nil {
			resp["feed_connected"] = a.wsSource.Connected()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	// Strategy and pipeline state
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"snapshot":       a.strategy.Snapshot(),
			"runner":         a.runner.Stats(),
			"stream_clients": a.hub.ClientCount(),
		}
		feeds := map[string]feed.Stats{}
		if a.wsSource != nil {
			feeds["ws"] = a.wsSource.Stats()
		}
		if a.poller != nil {
			feeds["poll"] = a.poller.Stats()
		}
		status["feeds"] = feeds
		writeJSON(w, http.StatusOK, status)
	})

	// Paper venue
	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.paper.GetAccount())
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.paper.GetStats())
	})
	mux.HandleFunc("GET /policy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.policy.Status())
	})

	// Journal
	mux.HandleFunc("GET /games", func(w http.ResponseWriter, r *http.Request) {
		if a.journal == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		games, err := a.journal.ListGames(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, games)
	})

	// Event ingest: one feed message or a JSON array of them.
	mux.HandleFunc("POST /ingest", a.handleIngest)

	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /ws", a.hub.ServeWS)

	return mux
}

type ingestResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

func (a *tradingAgent) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}

	events, errs := feed.DecodeBatch(body)
	for _, ev := range events {
		a.runner.Submit(ev)
	}

	resp := ingestResponse{Accepted: len(events), Rejected: len(errs)}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, err.Error())
	}

	code := http.StatusAccepted
	if len(events) == 0 && len(errs) > 0 {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
