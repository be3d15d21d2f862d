package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Credentials supplies the logged-in player's identity to API calls.
// Both fields are empty before login.
type Credentials struct {
	Username string
	Token    string
}

// CredentialsFunc returns the current session credentials.
type CredentialsFunc func() Credentials

// Client is the game REST API client. All requests carry the session
// credentials and an anti-cache timestamp parameter.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialsFunc
	logger  *zap.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, creds CredentialsFunc, logger *zap.Logger) *Client {
	if creds == nil {
		creds = func() Credentials { return Credentials{} }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		logger:  logger,
	}
}

// Error is a structured API failure returned by the game server.
type Error struct {
	Message string `json:"error"`
}

func (e *Error) Error() string { return e.Message }

func (c *Client) params(extra url.Values) url.Values {
	v := url.Values{}
	for k, vals := range extra {
		v[k] = vals
	}
	// Cache buster, mirrored on every request.
	v.Set("v", strconv.FormatInt(time.Now().UnixMilli(), 10))

	creds := c.creds()
	if creds.Username != "" {
		v.Set("username", creds.Username)
		v.Set("token", creds.Token)
	}
	return v
}

// Get performs a GET request against the API and decodes the JSON response
// into out. A response body containing an "error" field is returned as *Error.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path + "?" + c.params(query).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	return c.do(req, path, out)
}

// PostForm performs a form-encoded POST request against the API.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	body := c.params(form).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("api request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	var apiErr Error
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return &apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response %s: %w", path, err)
		}
	}
	return nil
}
