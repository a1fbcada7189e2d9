package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/agentdesk/officesync/internal/store"
)

func newChatRouter(t *testing.T) *chi.Mux {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	return NewChatServer(st, slog.Default()).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatHealth(t *testing.T) {
	router := newChatRouter(t)
	w := doJSON(t, router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCreateRoomAndPost(t *testing.T) {
	router := newChatRouter(t)

	w := doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"General","participants":["alice","bob"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "POST", "/rooms/general/messages", `{"sender":"alice","body":"hello","sent_at":"2024-03-15T09:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("post message: %d: %s", w.Code, w.Body.String())
	}
	var msg store.ChatMessage
	if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ID == 0 || msg.RoomSlug != "general" {
		t.Errorf("message = %+v", msg)
	}
}

func TestPostMessageNonMemberForbidden(t *testing.T) {
	router := newChatRouter(t)
	doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"General","participants":["alice"]}`)

	w := doJSON(t, router, "POST", "/rooms/general/messages", `{"sender":"mallory","body":"let me in"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPostMessageMissingRoom(t *testing.T) {
	router := newChatRouter(t)
	w := doJSON(t, router, "POST", "/rooms/ghost/messages", `{"sender":"alice","body":"hi"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDuplicateRoomConflict(t *testing.T) {
	router := newChatRouter(t)
	doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"General"}`)
	w := doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"Again"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRoomMessagesCursorQuery(t *testing.T) {
	router := newChatRouter(t)
	doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"General","participants":["alice"]}`)

	var ids []int64
	for i := 0; i < 3; i++ {
		w := doJSON(t, router, "POST", "/rooms/general/messages",
			fmt.Sprintf(`{"sender":"alice","body":"m%d","sent_at":"2024-03-15T09:0%d:00Z"}`, i, i))
		var msg store.ChatMessage
		json.NewDecoder(w.Body).Decode(&msg)
		ids = append(ids, msg.ID)
	}

	w := doJSON(t, router, "GET", fmt.Sprintf("/rooms/general/messages?since_id=%d", ids[0]), "")
	var msgs []store.ChatMessage
	if err := json.NewDecoder(w.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != ids[1] {
		t.Errorf("since_id result = %+v", msgs)
	}

	w = doJSON(t, router, "GET", "/rooms/general/messages?since_timestamp=2024-03-15T09:00:00Z&limit=1", "")
	msgs = nil
	json.NewDecoder(w.Body).Decode(&msgs)
	if len(msgs) != 1 || msgs[0].ID != ids[1] {
		t.Errorf("combined filter result = %+v", msgs)
	}
}

func TestDMsAcrossUsers(t *testing.T) {
	router := newChatRouter(t)

	w := doJSON(t, router, "POST", "/dms", `{"sender":"bob","recipient":"alice","body":"ping","sent_at":"2024-03-15T09:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("post dm: %d: %s", w.Code, w.Body.String())
	}
	doJSON(t, router, "POST", "/dms", `{"sender":"carol","recipient":"alice","body":"pong","sent_at":"2024-03-15T09:01:00Z"}`)

	w = doJSON(t, router, "GET", "/users/alice/dms", "")
	var msgs []store.ChatMessage
	if err := json.NewDecoder(w.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("alice sees %d dms, want 2", len(msgs))
	}
	if msgs[0].RoomSlug != "dm:alice:bob" || msgs[1].RoomSlug != "dm:alice:carol" {
		t.Errorf("slugs = %q, %q", msgs[0].RoomSlug, msgs[1].RoomSlug)
	}

	w = doJSON(t, router, "GET", "/users/bob/dms", "")
	msgs = nil
	json.NewDecoder(w.Body).Decode(&msgs)
	if len(msgs) != 1 {
		t.Errorf("bob sees %d dms, want 1", len(msgs))
	}
}

func TestEnsureUser(t *testing.T) {
	router := newChatRouter(t)
	w := doJSON(t, router, "PUT", "/users/Alice", `{"display_name":"Alice Wong"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("ensure: %d", w.Code)
	}
	var u store.User
	json.NewDecoder(w.Body).Decode(&u)
	if u.Handle != "alice" || u.DisplayName != "Alice Wong" {
		t.Errorf("user = %+v", u)
	}
}

func TestPostMessageBadBody(t *testing.T) {
	router := newChatRouter(t)
	doJSON(t, router, "POST", "/rooms", `{"slug":"general","name":"General","participants":["alice"]}`)

	w := doJSON(t, router, "POST", "/rooms/general/messages", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", w.Code)
	}
	w = doJSON(t, router, "POST", "/rooms/general/messages", `{"sender":"alice"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing body, got %d", w.Code)
	}
}
