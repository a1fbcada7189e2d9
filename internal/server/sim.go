package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/officesync/internal/model"
	"github.com/agentdesk/officesync/internal/store"
)

// SimServer exposes the persona roster and a minimal tick engine. Sim time
// advances a fixed interval per tick from a fixed epoch, so tick N always
// maps to the same simulated instant.
type SimServer struct {
	store  store.Store
	logger *slog.Logger

	mu          sync.Mutex
	currentTick int
	running     bool
	autoTick    bool
	epoch       time.Time
	tickStep    time.Duration
}

func NewSimServer(st store.Store, logger *slog.Logger) *SimServer {
	return &SimServer{
		store:    st,
		logger:   logger,
		epoch:    time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		tickStep: 15 * time.Minute,
	}
}

func (s *SimServer) Router() *chi.Mux {
	router := newRouter("sim", s.logger)
	router.Get("/api/v1/people", s.people)
	router.Post("/api/v1/people", s.registerPerson)
	router.Get("/api/v1/simulation", s.status)
	router.Post("/api/v1/simulation/tick", s.tick)
	router.Post("/api/v1/simulation/start", s.start)
	router.Post("/api/v1/simulation/stop", s.stop)
	return router
}

type simStatus struct {
	CurrentTick int    `json:"current_tick"`
	SimTime     string `json:"sim_time"`
	IsRunning   bool   `json:"is_running"`
	AutoTick    bool   `json:"auto_tick"`
}

func (s *SimServer) snapshot() simStatus {
	simTime := s.epoch.Add(time.Duration(s.currentTick) * s.tickStep)
	return simStatus{
		CurrentTick: s.currentTick,
		SimTime:     simTime.Format(time.RFC3339),
		IsRunning:   s.running,
		AutoTick:    s.autoTick,
	}
}

func (s *SimServer) people(w http.ResponseWriter, r *http.Request) {
	personas, err := s.store.Personas(r.Context())
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, personas)
}

func (s *SimServer) registerPerson(w http.ResponseWriter, r *http.Request) {
	var p model.Persona
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if p.EmailAddress == "" && p.ChatHandle == "" {
		writeError(w, http.StatusBadRequest, "an email address or chat handle is required")
		return
	}
	if err := s.store.UpsertPersona(r.Context(), p); err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *SimServer) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *SimServer) tick(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.currentTick++
	st := s.snapshot()
	s.mu.Unlock()
	s.logger.Info("simulation advanced", "tick", st.CurrentTick, "sim_time", st.SimTime)
	writeJSON(w, http.StatusOK, st)
}

func (s *SimServer) start(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.running = true
	st := s.snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *SimServer) stop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.running = false
	st := s.snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}
