// Package api implements the HTTP plumbing shared by every resource of the
// Socrata publishing API: an authenticated client, JSON request helpers and
// error unwrapping. Resource packages build their paths on top of it.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Config holds the connection settings of a publishing API client.
type Config struct {
	// Domain is the Socrata domain the datasets live on, e.g. "data.example.gov".
	Domain string
	// Username and Password are used for HTTP basic auth.
	Username string
	Password string
	// AppToken is sent as X-App-Token when set.
	AppToken string
	// BaseURL overrides the https://{Domain} base. Intended for tests.
	BaseURL string
	// Logger is used for request debugging. Defaults to log.NewLogger().
	Logger log.Logger
}

// ConfigFromEnv reads connection settings from SOCRATA_* environment variables.
func ConfigFromEnv(envRepo env.Repository) Config {
	return Config{
		Domain:   envRepo.Get("SOCRATA_DOMAIN"),
		Username: envRepo.Get("SOCRATA_USERNAME"),
		Password: envRepo.Get("SOCRATA_PASSWORD"),
		AppToken: envRepo.Get("SOCRATA_APP_TOKEN"),
	}
}

// Client issues authenticated requests against one Socrata domain.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	username   string
	password   string
	appToken   string
	logger     log.Logger
}

// NewClient creates a Client for the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Domain == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("domain must not be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s", cfg.Domain)
	}

	return &Client{
		httpClient: retryhttp.NewClient(logger),
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		appToken:   cfg.AppToken,
		logger:     logger,
	}, nil
}

// Logger returns the logger the client was created with.
func (c *Client) Logger() log.Logger {
	return c.logger
}

// BaseURL returns the base URL requests are issued against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with an optional JSON body and decodes the
// response into out. Both body and out may be nil.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request with an optional JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// PostBytes posts a raw payload with the given content type. Used by the
// chunked-upload pipeline to transmit chunk bytes.
func (c *Client) PostBytes(ctx context.Context, path, contentType string, payload []byte, out interface{}) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(payload))

	return c.do(req.WithContext(ctx), out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	req, err := retryablehttp.NewRequest(method, c.baseURL+path, rawBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if rawBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req.WithContext(ctx), out)
}

func (c *Client) do(req *retryablehttp.Request, out interface{}) error {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unwrapError(resp)
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
