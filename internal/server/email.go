package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/officesync/internal/metrics"
	"github.com/agentdesk/officesync/internal/store"
)

// EmailServer serves mailboxes, sent mail, and drafts.
type EmailServer struct {
	store  store.Store
	logger *slog.Logger
}

func NewEmailServer(st store.Store, logger *slog.Logger) *EmailServer {
	return &EmailServer{store: st, logger: logger}
}

func (s *EmailServer) Router() *chi.Mux {
	router := newRouter("email", s.logger)
	router.Put("/mailboxes/{address}", s.ensureMailbox)
	router.Post("/emails/send", s.sendEmail)
	router.Get("/emails/{id}", s.getEmail)
	router.Get("/mailboxes/{address}/emails", s.mailboxEmails)
	router.Post("/mailboxes/{address}/drafts", s.saveDraft)
	router.Get("/mailboxes/{address}/drafts", s.mailboxDrafts)
	return router
}

func (s *EmailServer) ensureMailbox(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	mb, err := s.store.EnsureMailbox(r.Context(), chi.URLParam(r, "address"), req.DisplayName)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, mb)
}

func (s *EmailServer) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req store.OutgoingEmail
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" {
		writeError(w, http.StatusBadRequest, "sender is required")
		return
	}
	if len(req.Recipients()) == 0 {
		writeError(w, http.StatusBadRequest, "at least one recipient is required")
		return
	}

	sender, err := store.NormalizeAddress(req.Sender)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	req.Sender = sender
	for _, bucket := range []*[]string{&req.To, &req.CC, &req.BCC} {
		for i, addr := range *bucket {
			normalized, err := store.NormalizeAddress(addr)
			if err != nil {
				storeError(w, s.logger, err)
				return
			}
			(*bucket)[i] = normalized
		}
	}

	email, err := s.store.SendEmail(r.Context(), req)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	metrics.EmailsSent.Inc()
	writeJSON(w, http.StatusCreated, email)
}

func (s *EmailServer) getEmail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}
	email, err := s.store.GetEmail(r.Context(), id)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, email)
}

func (s *EmailServer) mailboxEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := s.store.MailboxEmails(r.Context(), chi.URLParam(r, "address"), parseListFilter(r))
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

func (s *EmailServer) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject  string `json:"subject"`
		Body     string `json:"body"`
		ThreadID string `json:"thread_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	draft, err := s.store.SaveDraft(r.Context(), chi.URLParam(r, "address"), req.Subject, req.Body, req.ThreadID)
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

func (s *EmailServer) mailboxDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.store.MailboxDrafts(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		storeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}
