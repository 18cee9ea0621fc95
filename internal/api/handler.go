package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/state"
)

// Server exposes a read-mostly HTTP surface over core state: a status
// snapshot, ban and whitelist management, and the recent audit trail.
type Server struct {
	store *state.Store
	audit repo.AuditRepo

	aiEnabled bool
	connected atomic.Bool
	startedAt time.Time

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(store *state.Store, audit repo.AuditRepo, aiEnabled bool, port int) *Server {
	return &Server{
		store:     store,
		audit:     audit,
		aiEnabled: aiEnabled,
		startedAt: time.Now(),
		port:      port,
	}
}

// SetConnected records the transport connection state for /api/status
func (s *Server) SetConnected(connected bool) {
	s.connected.Store(connected)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/bans", s.handleBans)
	mux.HandleFunc("/api/bans/", s.handleBanItem)
	mux.HandleFunc("/api/whitelist", s.handleWhitelist)
	mux.HandleFunc("/api/whitelist/", s.handleWhitelistItem)
	mux.HandleFunc("/api/audit", s.handleAudit)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: mux,
	}

	log.Info().Int("port", s.port).Msg("api: server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP server down
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}

type statusResponse struct {
	Connected bool           `json:"connected"`
	AIEnabled bool           `json:"ai_enabled"`
	UptimeSec int64          `json:"uptime_sec"`
	State     state.Snapshot `json:"state"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statusResponse{
		Connected: s.connected.Load(),
		AIEnabled: s.aiEnabled,
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		State:     s.store.StatusSnapshot(),
	})
}

func (s *Server) handleBans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string][]string{"bans": s.store.Bans()})
	case http.MethodPost:
		var body struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		s.store.Ban(body.ID)
		writeJSON(w, map[string]bool{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBanItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/bans/")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if !s.store.Unban(id) {
		http.Error(w, "not banned", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string][]string{"domains": s.store.AllowedDomains()})
	case http.MethodPost:
		var body struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Domain == "" {
			http.Error(w, "missing domain", http.StatusBadRequest)
			return
		}
		s.store.AllowDomain(body.Domain)
		writeJSON(w, map[string]bool{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWhitelistItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	domain := strings.TrimPrefix(r.URL.Path, "/api/whitelist/")
	if domain == "" {
		http.Error(w, "missing domain", http.StatusBadRequest)
		return
	}
	if !s.store.BlockDomain(domain) {
		http.Error(w, "not in whitelist", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		writeJSON(w, map[string]any{"records": []any{}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("api: audit query failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"records": records})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("api: response encoding failed")
	}
}
