// Package voclient is the HTTP client for the virtual office backends: the
// email server, the chat server, and the simulation manager.
package voclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentdesk/officesync/internal/model"
)

// APIError is a non-2xx response from a backend. Status codes of 500 and
// above are transient; 4xx responses are surfaced verbatim to the operator.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// Retryable classifies an error from this client. Network failures and 5xx
// responses are transient; anything else is not. The client itself never
// retries — backoff policy belongs to the caller.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

// ListOptions are the composable cursor filters every listing endpoint
// accepts. Zero values are omitted from the query.
type ListOptions struct {
	SinceID        int64
	SinceTimestamp string
	Limit          int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.SinceID > 0 {
		q.Set("since_id", strconv.FormatInt(o.SinceID, 10))
	}
	if o.SinceTimestamp != "" {
		q.Set("since_timestamp", o.SinceTimestamp)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

// ChatMessage is a chat record as the chat server returns it.
type ChatMessage struct {
	ID       int64  `json:"id"`
	RoomSlug string `json:"room_slug"`
	Sender   string `json:"sender"`
	Body     string `json:"body"`
	SentAt   string `json:"sent_at"`
}

// Email is an email record as the email server returns it.
type Email struct {
	ID       int64    `json:"id"`
	Sender   string   `json:"sender"`
	To       []string `json:"to"`
	CC       []string `json:"cc"`
	BCC      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id,omitempty"`
	SentAt   string   `json:"sent_at"`
}

// SimulationStatus is the tick engine's current state.
type SimulationStatus struct {
	CurrentTick int    `json:"current_tick"`
	SimTime     string `json:"sim_time"`
	IsRunning   bool   `json:"is_running"`
	AutoTick    bool   `json:"auto_tick"`
}

type Client struct {
	emailURL string
	chatURL  string
	simURL   string
	client   *http.Client
	logger   *slog.Logger
}

func New(emailURL, chatURL, simURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		emailURL: strings.TrimRight(emailURL, "/"),
		chatURL:  strings.TrimRight(chatURL, "/"),
		simURL:   strings.TrimRight(simURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Personas fetches the persona roster from the simulation manager.
func (c *Client) Personas(ctx context.Context) ([]model.Persona, error) {
	var personas []model.Persona
	if err := c.getJSON(ctx, c.simURL+"/api/v1/people", nil, &personas); err != nil {
		return nil, fmt.Errorf("fetch personas: %w", err)
	}
	return personas, nil
}

// MailboxEmails lists emails delivered to a mailbox, oldest qualifying
// first, honoring the cursor filters.
func (c *Client) MailboxEmails(ctx context.Context, mailbox string, opts ListOptions) ([]Email, error) {
	u := c.emailURL + "/mailboxes/" + url.PathEscape(mailbox) + "/emails"
	var emails []Email
	if err := c.getJSON(ctx, u, opts.query(), &emails); err != nil {
		return nil, fmt.Errorf("fetch emails for %s: %w", mailbox, err)
	}
	return emails, nil
}

// UserDMs lists a user's direct messages across every DM room the handle is
// a member of, oldest qualifying first.
func (c *Client) UserDMs(ctx context.Context, handle string, opts ListOptions) ([]ChatMessage, error) {
	u := c.chatURL + "/users/" + url.PathEscape(handle) + "/dms"
	var msgs []ChatMessage
	if err := c.getJSON(ctx, u, opts.query(), &msgs); err != nil {
		return nil, fmt.Errorf("fetch dms for %s: %w", handle, err)
	}
	return msgs, nil
}

// RoomMessages lists messages in a single room, oldest qualifying first.
func (c *Client) RoomMessages(ctx context.Context, slug string, opts ListOptions) ([]ChatMessage, error) {
	u := c.chatURL + "/rooms/" + url.PathEscape(slug) + "/messages"
	var msgs []ChatMessage
	if err := c.getJSON(ctx, u, opts.query(), &msgs); err != nil {
		return nil, fmt.Errorf("fetch messages for room %s: %w", slug, err)
	}
	return msgs, nil
}

// SimulationStatus fetches the tick engine state.
func (c *Client) SimulationStatus(ctx context.Context) (*SimulationStatus, error) {
	var status SimulationStatus
	if err := c.getJSON(ctx, c.simURL+"/api/v1/simulation", nil, &status); err != nil {
		return nil, fmt.Errorf("fetch simulation status: %w", err)
	}
	return &status, nil
}

// TestConnection probes each backend's health endpoint and reports
// reachability per backend.
func (c *Client) TestConnection(ctx context.Context) map[string]bool {
	status := make(map[string]bool, 3)
	for name, base := range map[string]string{
		"email": c.emailURL,
		"chat":  c.chatURL,
		"sim":   c.simURL,
	} {
		err := c.getJSON(ctx, base+"/health", nil, &struct{}{})
		status[name] = err == nil
		if err != nil && c.logger != nil {
			c.logger.Warn("backend unreachable", "backend", name, "error", err)
		}
	}
	return status
}

func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
