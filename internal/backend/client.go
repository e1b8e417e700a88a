package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// User is the user-detail record served by GET /api/users/{id}.
type User struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	CreatedAt        string `json:"created_at"`
	LastActivity     string `json:"last_activity"`
	ReferralCount    int    `json:"referral_count"`
	IsActive         bool   `json:"is_active"`
	ActivityScore    int    `json:"activity_score"`
	NotesCount       int    `json:"notes_count"`
	ReferrerUsername string `json:"referrer_username"`
}

// ActionResult is the backend's reply to a bot-control or message-send call.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Client talks to the bot backend HTTP API. Requests carry a hard timeout
// through the underlying http.Client only; there is no per-request
// cancellation tied to the advisory slow threshold.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL.
func New(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type userEnvelope struct {
	Success bool            `json:"success"`
	User    json.RawMessage `json:"user"`
	Message string          `json:"message"`
}

// GetUser fetches the detail record for a user. Failures are typed:
// *FetchError for transport/HTTP/envelope failures, *InvalidPayloadError
// when the payload lacks a required field.
func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	op := fmt.Sprintf("get user %d", id)

	var env userEnvelope
	if err := c.getJSON(ctx, fmt.Sprintf("/api/users/%d", id), op, &env); err != nil {
		return nil, err
	}
	if !env.Success || len(env.User) == 0 {
		return nil, &FetchError{Op: op, Msg: orDefault(env.Message, "user not found")}
	}

	var u User
	if err := json.Unmarshal(env.User, &u); err != nil {
		return nil, &InvalidPayloadError{UserID: id, Field: "user"}
	}
	if u.ID == 0 {
		return nil, &InvalidPayloadError{UserID: id, Field: "id"}
	}
	if u.Username == "" {
		return nil, &InvalidPayloadError{UserID: id, Field: "username"}
	}
	if u.Role == "" {
		return nil, &InvalidPayloadError{UserID: id, Field: "role"}
	}
	return &u, nil
}

// GetStats fetches the dashboard statistics document. The shape is owned
// by the backend; it is carried opaquely for the dashboard to render.
func (c *Client) GetStats(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/stats", "get stats")
}

// GetRealtimeStats fetches the realtime statistics document.
func (c *Client) GetRealtimeStats(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/realtime/stats", "get realtime stats")
}

// GetBotInfo fetches the bot process information document.
func (c *Client) GetBotInfo(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/bot/info", "get bot info")
}

// BotStatus dispatches a start/stop action to the bot process.
func (c *Client) BotStatus(ctx context.Context, action string) (*ActionResult, error) {
	return c.postAction(ctx, "/api/bot/status", action, map[string]any{"action": action})
}

// SendMessage asks the bot to deliver a message to a single user.
func (c *Client) SendMessage(ctx context.Context, userID int64, message string) (*ActionResult, error) {
	return c.postAction(ctx, "/api/bot/send-message", "send-message", map[string]any{
		"user_id": userID,
		"message": message,
	})
}

// SendMessageAll asks the bot to broadcast a message to every user.
func (c *Client) SendMessageAll(ctx context.Context, message string) (*ActionResult, error) {
	return c.postAction(ctx, "/api/bot/send-message-all", "send-message-all", map[string]any{
		"message": message,
	})
}

func (c *Client) getJSON(ctx context.Context, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path, op string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, op, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) postAction(ctx context.Context, path, action string, body map[string]any) (*ActionResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ActionError{Action: action, Msg: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &ActionError{Action: action, Msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ActionError{Action: action, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ActionError{Action: action, Msg: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var result ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ActionError{Action: action, Msg: "malformed response: " + err.Error()}
	}
	if !result.Success {
		return &result, &ActionError{Action: action, Msg: result.Message}
	}
	return &result, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
