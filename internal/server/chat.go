package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/officesync/internal/metrics"
	"github.com/agentdesk/officesync/internal/store"
)

// ChatServer serves rooms, room messages, and direct messages. Message ids
// come from the store's autoincrement, so clients can poll with since_id.
type ChatServer struct {
	store  store.Store
	logger *slog.Logger
}

func NewChatServer(st store.Store, logger *slog.Logger) *ChatServer {
	return &ChatServer{store: st, logger: logger}
}

func (s *ChatServer) Router() *chi.Mux {
	router := newRouter("chat", s.logger)
	router.Put("/users/{handle}", s.ensureUser)
	router.Post("/rooms", s.createRoom)
	router.Get("/rooms/{slug}", s.getRoom)
	router.Post("/rooms/{slug}/messages", s.postMessage)
	router.Get("/rooms/{slug}/messages", s.roomMessages)
	router.Post("/dms", s.postDM)
	router.Get("/users/{handle}/dms", s.userDMs)
	return router
}

func (s *ChatServer) ensureUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	handle := chi.URLParam(r, "handle")
	if store.NormalizeHandle(handle) == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}
	u, err := s.store.EnsureUser(r.Context(), handle, req.DisplayName)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *ChatServer) createRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug         string   `json:"slug"`
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Slug == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "slug and name are required")
		return
	}
	room, err := s.store.CreateRoom(r.Context(), req.Slug, req.Name, req.Participants)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *ChatServer) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *ChatServer) postMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender string `json:"sender"`
		Body   string `json:"body"`
		SentAt string `json:"sent_at"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "sender and body are required")
		return
	}
	msg, err := s.store.PostMessage(r.Context(), chi.URLParam(r, "slug"), req.Sender, req.Body, req.SentAt)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	metrics.ChatMessagesPosted.WithLabelValues("room").Inc()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *ChatServer) roomMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.RoomMessages(r.Context(), chi.URLParam(r, "slug"), parseListFilter(r))
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *ChatServer) postDM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
		Body      string `json:"body"`
		SentAt    string `json:"sent_at"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || req.Recipient == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "sender, recipient and body are required")
		return
	}
	msg, err := s.store.PostDM(r.Context(), req.Sender, req.Recipient, req.Body, req.SentAt)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	metrics.ChatMessagesPosted.WithLabelValues("dm").Inc()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *ChatServer) userDMs(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.UserDMs(r.Context(), chi.URLParam(r, "handle"), parseListFilter(r))
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
