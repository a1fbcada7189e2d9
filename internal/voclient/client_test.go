package voclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"not found", &APIError{StatusCode: 404}, false},
		{"unprocessable", &APIError{StatusCode: 422}, false},
		{"network failure", errors.New("dial tcp: connection refused"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestListOptionsQuery(t *testing.T) {
	q := ListOptions{SinceID: 42, SinceTimestamp: "2024-03-15T09:00:00Z", Limit: 10}.query()
	if q.Get("since_id") != "42" || q.Get("limit") != "10" {
		t.Errorf("query = %v", q)
	}
	if q.Get("since_timestamp") != "2024-03-15T09:00:00Z" {
		t.Errorf("since_timestamp = %q", q.Get("since_timestamp"))
	}

	empty := ListOptions{}.query()
	if len(empty) != 0 {
		t.Errorf("zero options produced query %v", empty)
	}
}

func TestMailboxEmailsPassesCursor(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Email{{ID: 1, Sender: "bob@office.test", Subject: "s", SentAt: "2024-03-15T08:00:00Z"}})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, srv.URL, time.Second, slog.Default())
	emails, err := c.MailboxEmails(context.Background(), "alice@office.test", ListOptions{SinceID: 7, Limit: 3})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(emails) != 1 || emails[0].ID != 1 {
		t.Errorf("emails = %+v", emails)
	}
	if gotQuery != "limit=3&since_id=7" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mailbox not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, srv.URL, time.Second, slog.Default())
	_, err := c.MailboxEmails(context.Background(), "ghost@office.test", ListOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if Retryable(err) {
		t.Error("404 classified as retryable")
	}
}

func TestTestConnection(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer down.Close()

	c := New(up.URL, down.URL, up.URL, time.Second, slog.Default())
	status := c.TestConnection(context.Background())
	if !status["email"] || !status["sim"] {
		t.Errorf("healthy backends reported down: %v", status)
	}
	if status["chat"] {
		t.Error("failing backend reported up")
	}
}
