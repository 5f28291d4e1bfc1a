// Package api serves the world over HTTP: read-only observation endpoints
// for the chronicle, faction, and stats views, plus bearer-authenticated
// control endpoints that trigger turns.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/talgya/deus-ex/internal/engine"
	"github.com/talgya/deus-ex/internal/world"
)

// Server exposes the scheduler's world.
type Server struct {
	Sched    *engine.Scheduler
	Port     int
	AdminKey string // bearer token for control endpoints; empty disables them
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	turnLimiter := NewRateLimiter(30, time.Hour)
	portraitLimiter := NewRateLimiter(20, time.Hour)

	mux := http.NewServeMux()

	// Observation endpoints (public, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/factions", s.handleFactions)
	mux.HandleFunc("GET /api/v1/figures", s.handleFigures)
	mux.HandleFunc("GET /api/v1/chronicle", s.handleChronicle)
	mux.HandleFunc("GET /api/v1/decision", s.handleDecision)

	// Control endpoints (bearer auth, model-quota rate limits).
	mux.HandleFunc("POST /api/v1/command", s.auth(turnLimiter.Middleware(s.handleCommand)))
	mux.HandleFunc("POST /api/v1/decision", s.auth(turnLimiter.Middleware(s.handleAnswer)))
	mux.HandleFunc("POST /api/v1/figures/{id}/portrait", s.auth(portraitLimiter.Middleware(s.handlePortrait)))
	mux.HandleFunc("POST /api/v1/control", s.auth(s.handleControl))

	addr := fmt.Sprintf(":%d", s.Port)
	go func() {
		slog.Info("api listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("api server stopped", "error", err)
		}
	}()
}

// auth guards control endpoints with the admin bearer token. No token
// configured means the control plane is disabled entirely.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "control endpoints disabled", http.StatusForbidden)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type statusResponse struct {
	Stats    world.WorldStats `json:"stats"`
	Playing  bool             `json:"playing"`
	Loading  bool             `json:"loading"`
	Progress float64          `json:"progress"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sched.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Stats:    snap.Stats,
		Playing:  s.Sched.Playing(),
		Loading:  s.Sched.Loading(),
		Progress: s.Sched.Progress(),
	})
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sched.Snapshot().Factions)
}

func (s *Server) handleFigures(w http.ResponseWriter, r *http.Request) {
	figures := s.Sched.Snapshot().Figures
	if r.URL.Query().Get("alive") == "1" {
		figures = world.AliveFigures(figures)
	}
	writeJSON(w, http.StatusOK, figures)
}

func (s *Server) handleChronicle(w http.ResponseWriter, r *http.Request) {
	logs := s.Sched.Snapshot().Logs
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sched.Snapshot().PendingDecision)
}

type turnResponse struct {
	Dropped bool             `json:"dropped"`
	Failed  bool             `json:"failed"`
	Stats   world.WorldStats `json:"stats"`
	NewLogs []world.LogEntry `json:"newLogs"`
}

func turnResponseFrom(result *engine.TurnResult) turnResponse {
	resp := turnResponse{Dropped: result.Dropped, Failed: result.Failed}
	if result.Snapshot != nil {
		resp.Stats = result.Snapshot.Stats
		resp.NewLogs = result.NewLogs
	}
	return resp
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		http.Error(w, "command required", http.StatusBadRequest)
		return
	}

	result := s.Sched.SubmitCommand(r.Context(), req.Command)
	if result.Dropped {
		writeJSON(w, http.StatusConflict, turnResponseFrom(result))
		return
	}
	writeJSON(w, http.StatusOK, turnResponseFrom(result))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OptionID string `json:"optionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		http.Error(w, "optionId required", http.StatusBadRequest)
		return
	}

	result, err := s.Sched.AnswerDecision(r.Context(), req.OptionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if result.Dropped {
		writeJSON(w, http.StatusConflict, turnResponseFrom(result))
		return
	}
	writeJSON(w, http.StatusOK, turnResponseFrom(result))
}

func (s *Server) handlePortrait(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	url, err := s.Sched.GeneratePortrait(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"portraitUrl": url})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Playing *bool `json:"playing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Playing == nil {
		http.Error(w, "playing required", http.StatusBadRequest)
		return
	}
	s.Sched.SetPlaying(*req.Playing)
	writeJSON(w, http.StatusOK, map[string]bool{"playing": s.Sched.Playing()})
}
