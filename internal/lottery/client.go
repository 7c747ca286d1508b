package lottery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Billy-Davies-2/lottery-draft-ui/internal/logger"
	"github.com/Billy-Davies-2/lottery-draft-ui/internal/models"
)

const DefaultBaseURL = "http://localhost:5000/api"

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status from lottery service")
	// ErrRenameRejected is returned when the service answers a rename with success=false.
	ErrRenameRejected = errors.New("lottery service rejected team rename")
)

// API is the set of lottery service calls the draft view depends on.
type API interface {
	State(ctx context.Context) (models.ServerState, error)
	GeneratePick(ctx context.Context) (PickResult, error)
	UpdateTeamName(ctx context.Context, originalName, newName string) (models.ServerState, error)
	ResetDraft(ctx context.Context) error
	Health(ctx context.Context) error
}

// PickResult is the /generate-pick response. Only State is guaranteed by the contract.
type PickResult struct {
	State      models.ServerState `json:"state"`
	ChosenTeam *models.Team       `json:"chosen_team,omitempty"`
	PickNumber int                `json:"pick_number,omitempty"`
}

type renameRequest struct {
	OriginalName string `json:"original_name"`
	NewName      string `json:"new_name"`
}

type renameResponse struct {
	Success bool               `json:"success"`
	State   models.ServerState `json:"state"`
}

// Client talks to the lottery service over HTTP+JSON. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://localhost:5000/api).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service origin this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) State(ctx context.Context) (models.ServerState, error) {
	var s models.ServerState
	if err := c.do(ctx, http.MethodGet, "/state", nil, &s); err != nil {
		return models.ServerState{}, err
	}
	return s, nil
}

func (c *Client) GeneratePick(ctx context.Context) (PickResult, error) {
	var res PickResult
	if err := c.do(ctx, http.MethodPost, "/generate-pick", nil, &res); err != nil {
		return PickResult{}, err
	}
	return res, nil
}

func (c *Client) UpdateTeamName(ctx context.Context, originalName, newName string) (models.ServerState, error) {
	var res renameResponse
	req := renameRequest{OriginalName: originalName, NewName: newName}
	if err := c.do(ctx, http.MethodPost, "/update-team-name", req, &res); err != nil {
		return models.ServerState{}, err
	}
	if !res.Success {
		return models.ServerState{}, fmt.Errorf("%w: %q -> %q", ErrRenameRejected, originalName, newName)
	}
	return res.State, nil
}

// ResetDraft discards the response body; callers re-fetch State afterwards.
func (c *Client) ResetDraft(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset-draft", nil, nil)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug("Lottery API call", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
