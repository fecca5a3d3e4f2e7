// Package client talks to the boss-rush game service over HTTP.
package client

import (
	"bytes"
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
	"sync"

	"github.com/jwebster45206/boss-rush/pkg/api"
	"github.com/jwebster45206/boss-rush/pkg/encounter"
	"github.com/jwebster45206/boss-rush/pkg/stream"
)

// Client implements encounter.Backend. It remembers the session id issued by
// Start and sends it with every later call.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

var _ encounter.Backend = (*Client)(nil)

func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     logger,
	}
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// Health reports whether the service answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &encounter.TransportError{Op: "health", Err: err}
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	if resp.StatusCode != http.StatusOK {
		return &encounter.TransportError{Op: "health", Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) Start(ctx context.Context, player string, difficulty api.Difficulty) (*api.StartResponse, error) {
	var out api.StartResponse
	req := api.StartRequest{Username: player, Difficulty: difficulty}
	if err := c.do(ctx, "start game", http.MethodPost, "/api/start", req, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, &encounter.DecodingError{Op: "start game", Err: errors.New("no session id")}
	}
	c.setSessionID(out.SessionID)
	return &out, nil
}

func (c *Client) ResolveChoice(ctx context.Context, choiceID string) (*api.TurnResponse, error) {
	var out api.TurnResponse
	if err := c.do(ctx, "resolve choice", http.MethodPost, "/api/apply_choice", api.ChoiceRequest{ChoiceID: choiceID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UseItem(ctx context.Context, item api.ItemID) (*api.ItemResponse, error) {
	var out api.ItemResponse
	if err := c.do(ctx, "use item", http.MethodPost, "/api/use_item", api.ItemRequest{ItemID: item}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClaimReward(ctx context.Context, rewardID string) (*api.RewardResponse, error) {
	var out api.RewardResponse
	if err := c.do(ctx, "claim reward", http.MethodPost, "/api/claim_reward", api.RewardRequest{RewardID: rewardID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Scene(ctx context.Context, bossIndex int) (*api.SceneResponse, error) {
	var out api.SceneResponse
	if err := c.do(ctx, "fetch scene", http.MethodPost, "/api/scene", api.SceneRequest{BossIndex: bossIndex}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchFact(ctx context.Context, topic string) (string, error) {
	path := "/api/fact"
	if topic != "" {
		path += "?topic=" + url.QueryEscape(topic)
	}
	var out api.FactResponse
	if err := c.do(ctx, "fetch fact", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Fact, nil
}

func (c *Client) TriggerPrefetch(ctx context.Context) (*api.PrefetchResponse, error) {
	var out api.PrefetchResponse
	if err := c.do(ctx, "trigger prefetch", http.MethodPost, "/api/trigger_prefetch", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PrefetchStatus(ctx context.Context) (*api.PrefetchStatus, error) {
	var out api.PrefetchStatus
	if err := c.do(ctx, "prefetch status", http.MethodGet, "/api/prefetch_status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BossList(ctx context.Context) ([]api.BossInfo, error) {
	var out api.BossListResponse
	if err := c.do(ctx, "boss list", http.MethodGet, "/api/boss_list", nil, &out); err != nil {
		return nil, err
	}
	return out.Bosses, nil
}

// StreamScene reads the line-delimited scene stream, forwarding chunk text
// as it arrives. It fails with a TransportError when the connection breaks or
// the stream ends before a complete frame, so callers can fall back to Scene.
func (c *Client) StreamScene(ctx context.Context, bossIndex int, onChunk func(text string)) (*api.SceneResponse, error) {
	const op = "stream scene"

	u := c.baseURL + "/api/scene/stream?boss_index=" + strconv.Itoa(bossIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Cache-Control", "no-cache")
	c.setSession(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &encounter.TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &encounter.TransportError{Op: op, Status: resp.StatusCode, Err: remoteError(body)}
	}

	for f, err := range stream.Frames(ctx, resp.Body, c.log) {
		if err != nil {
			return nil, &encounter.TransportError{Op: op, Err: err}
		}
		switch f.Kind {
		case stream.KindChunk:
			if onChunk != nil {
				onChunk(f.Text)
			}
		case stream.KindComplete:
			return f.Scene, nil
		case stream.KindError:
			c.log.Warn("Scene stream reported an error", "boss_index", bossIndex, "error", f.Err)
		}
	}
	return nil, &encounter.TransportError{Op: op, Err: errors.New("stream ended before the scene was complete")}
}

// do sends one JSON request and decodes the JSON reply into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setSession(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &encounter.TransportError{Op: op, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &encounter.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("API returned an error", "op", op, "status", resp.StatusCode)
		return &encounter.TransportError{Op: op, Status: resp.StatusCode, Err: remoteError(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &encounter.DecodingError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) setSession(req *http.Request) {
	if id := c.SessionID(); id != "" {
		req.Header.Set(api.SessionHeader, id)
	}
}

// remoteError extracts the server's error message, falling back to the raw body.
func remoteError(body []byte) error {
	var errorResp api.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
		return errors.New(errorResp.Error)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return errors.New(text)
	}
	return nil
}
