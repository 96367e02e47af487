package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// TokenSource supplies the current bearer token. Reading it per request keeps
// the client from acting on a credential that was replaced or cleared after
// the call was queued.
type TokenSource interface {
	Token() string
}

// Client handles communication with the document-QA backend
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	tokens       TokenSource
	log          *zap.Logger
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout, uploadTimeout time.Duration, tokens TokenSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		uploadClient: &http.Client{
			Timeout: uploadTimeout,
		},
		tokens: tokens,
		log:    log,
	}
}

// dataEnvelope is the common response wrapper; data is decoded lazily so each
// endpoint can pick its own payload shape.
type dataEnvelope struct {
	envelope
	Data json.RawMessage `json:"data"`
}

// do executes one JSON request against the backend and decodes the data
// envelope. A nil out skips payload decoding. Missing data is tolerated and
// leaves out at its zero value.
func (c *Client) do(ctx context.Context, method, path string, body any, withAuth bool, out any) error {
	op := method + " " + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if withAuth {
		token := c.tokens.Token()
		if token == "" {
			return &AuthError{Message: "no session token"}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	// Envelope decoding is best effort; the server message improves errors
	// when present but its absence never masks the status code.
	var env dataEnvelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Warn("request rejected", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &AuthError{Message: env.Message}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.Warn("server error", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &ServerError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &ServerError{StatusCode: resp.StatusCode, Message: "malformed response envelope"}
		}
	}

	c.log.Debug("request completed", zap.String("op", op), zap.Int("status", resp.StatusCode))
	return nil
}

// doStatus executes a request whose success is signaled by status==1 in the
// envelope rather than by the payload.
func (c *Client) doStatus(ctx context.Context, method, path string, body any) error {
	op := method + " " + path

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token := c.tokens.Token()
	if token == "" {
		return &AuthError{Message: "no session token"}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Message: env.Message}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ServerError{StatusCode: resp.StatusCode, Message: env.Message}
	case env.Status != 1:
		c.log.Warn("operation rejected", zap.String("op", op), zap.String("message", env.Message))
		return &ServerError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return nil
}

// SignIn authenticates with email and password and returns a fresh session
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var wire signInWire
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signin", body, false, &wire); err != nil {
		return Session{}, err
	}

	session := wire.normalize()
	if session.Token == "" {
		return Session{}, &ServerError{StatusCode: http.StatusOK, Message: "sign-in response missing token"}
	}
	return session, nil
}

// ListChats fetches one page of chat history. An empty lastKey requests the
// first page.
func (c *Client) ListChats(ctx context.Context, limit int, lastKey string) (ChatPage, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if lastKey != "" {
		params.Set("lastKey", lastKey)
	}

	var wire struct {
		Chats         []chatWire `json:"chats"`
		NextPageToken string     `json:"nextPageToken"`
		Metadata      struct {
			HasMore bool `json:"hasMore"`
			Count   int  `json:"count"`
		} `json:"metadata"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats?"+params.Encode(), nil, true, &wire); err != nil {
		return ChatPage{}, err
	}

	page := ChatPage{
		NextPageToken: wire.NextPageToken,
		HasMore:       wire.Metadata.HasMore,
		Count:         wire.Metadata.Count,
	}
	for _, chat := range wire.Chats {
		page.Chats = append(page.Chats, chat.normalize())
	}
	// An exhausted cursor means no further pages regardless of the flag
	if page.NextPageToken == "" {
		page.HasMore = false
	}
	return page, nil
}

// Search submits a query and returns the retrieved answer
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	var wire searchWire
	body := map[string]string{"query": query}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats/search", body, true, &wire); err != nil {
		return SearchResult{}, err
	}
	return wire.normalize(), nil
}

// ListFiles fetches the signed-in user's documents
func (c *Client) ListFiles(ctx context.Context, userID string) ([]FileEntry, error) {
	var wire []fileWire
	path := "/api/v1/users/" + url.PathEscape(userID) + "/files"
	if err := c.do(ctx, http.MethodGet, path, nil, true, &wire); err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(wire))
	for _, f := range wire {
		entries = append(entries, f.normalize())
	}
	return entries, nil
}

// RequestUpload obtains a presigned write location for one file
func (c *Client) RequestUpload(ctx context.Context, key, fileType string, expiresIn int) (UploadTarget, error) {
	var target struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	body := map[string]any{"key": key, "fileType": fileType, "expiresIn": expiresIn}
	if err := c.do(ctx, http.MethodPost, "/api/v1/s3/upload", body, true, &target); err != nil {
		return UploadTarget{}, err
	}
	if target.URL == "" {
		return UploadTarget{}, &ServerError{StatusCode: http.StatusOK, Message: "upload response missing url"}
	}
	return UploadTarget{URL: target.URL, Key: target.Key}, nil
}

// UploadFile transfers file bytes to a presigned URL. The target is external
// storage, so no bearer header is attached.
func (c *Client) UploadFile(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("upload: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = size

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "PUT " + uploadURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{StatusCode: resp.StatusCode, Message: "storage upload failed"}
	}
	return nil
}

// ProcessPDF triggers ingestion of an uploaded document
func (c *Client) ProcessPDF(ctx context.Context, key, collectionName string) error {
	body := map[string]string{"key": key, "collectionName": collectionName}
	return c.doStatus(ctx, http.MethodPost, "/api/v1/processing/pdf", body)
}

// DeleteFile removes an uploaded document from storage
func (c *Client) DeleteFile(ctx context.Context, key string) error {
	body := map[string]string{"key": key}
	return c.doStatus(ctx, http.MethodDelete, "/api/v1/s3", body)
}

// Metrics fetches the backend's aggregate performance snapshot
func (c *Client) Metrics(ctx context.Context) (MetricsReport, error) {
	var report struct {
		Performance map[string]any `json:"performance"`
		Cache       map[string]any `json:"cache"`
		System      map[string]any `json:"system"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats/metrics", nil, true, &report); err != nil {
		return MetricsReport{}, err
	}
	return MetricsReport{
		Performance: report.Performance,
		Cache:       report.Cache,
		System:      report.System,
	}, nil
}

// ClearCache clears a backend cache ("all" clears every cache)
func (c *Client) ClearCache(ctx context.Context, cacheType string) error {
	body := map[string]string{"type": cacheType}
	return c.do(ctx, http.MethodPost, "/api/v1/chats/clear-cache", body, true, nil)
}

// HealthCheck verifies that the backend is reachable
func (c *Client) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend is unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}
