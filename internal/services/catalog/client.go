package catalog

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
	"os"
	"strings"
	"sync"
	"time"

	"tracksync/internal/logging"
	"tracksync/internal/media"
	"tracksync/internal/services"
)

const userAgent = "Tracksync-Go/0.1.0"

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	// Timeout applies to requests without a body stream; uploads rely on the
	// caller's context deadline instead.
	Timeout time.Duration
	Client  HTTPDoer
	Logger  *slog.Logger
}

// Client is an authenticated catalog session. It is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	client   HTTPDoer
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

// New constructs a Client. Call Login before any other method.
func New(opts Options) *Client {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		username: strings.TrimSpace(opts.Username),
		password: opts.Password,
		timeout:  opts.Timeout,
		client:   client,
		logger:   logging.NewComponentLogger(opts.Logger, "catalog"),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type trackRequest struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Size int64             `json:"size"`
	Hash string            `json:"hash"`
	Tags map[string]string `json:"tags,omitempty"`
}

// Login exchanges the configured credentials for a session token.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return services.Wrap(services.ErrConfiguration, "login", "credentials", "catalog username and password are required", nil)
	}
	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Username: c.username, Password: c.password}, &resp, false)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return services.Wrap(services.ErrExternal, "login", "token", "catalog returned an empty token", nil)
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	c.logger.Debug("catalog login succeeded", logging.String("username", c.username))
	return nil
}

// CurrentUser returns the identity behind the session token.
func (c *Client) CurrentUser(ctx context.Context) (media.Identity, error) {
	var identity media.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/user", nil, &identity, true); err != nil {
		return media.Identity{}, err
	}
	if strings.TrimSpace(identity.ID) == "" {
		return media.Identity{}, services.Wrap(services.ErrExternal, "identity", "user", "catalog returned no user id", nil)
	}
	return identity, nil
}

// CreateTrack registers file. A track that already exists is not an error,
// so a re-dropped file can finish its pipeline.
func (c *Client) CreateTrack(ctx context.Context, file media.File) error {
	body := trackRequest{
		Name: file.Name,
		Type: file.MediaType,
		Size: file.Size,
		Hash: file.Fingerprint,
		Tags: file.Tags,
	}
	err := c.doJSON(ctx, http.MethodPost, "/tracks", body, nil, true)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		c.logger.Debug("track already registered", logging.String("fingerprint", file.Fingerprint))
		return nil
	}
	return err
}

// Upload streams the file bytes to the upload slot named by its fingerprint.
func (c *Client) Upload(ctx context.Context, file media.File) error {
	path := "/uploads/" + url.PathEscape(file.Fingerprint)
	open := func() (io.ReadCloser, error) {
		f, err := os.Open(file.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "uploaded", "open", "", err)
		}
		return f, nil
	}
	headers := map[string]string{"Content-Type": file.MediaType}
	resp, err := c.do(ctx, http.MethodPut, path, open, file.Size, headers, true)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog %s %s returned %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("catalog %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, authed bool) error {
	var open func() (io.ReadCloser, error)
	size := int64(-1)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		size = int64(len(data))
		open = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }
	}
	headers := map[string]string{"Accept": "application/json"}
	if body != nil {
		headers["Content-Type"] = "application/json"
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.do(ctx, method, path, open, size, headers, authed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternal, "", path, "decode response", err)
	}
	return nil
}

// do sends one request. An authenticated request answered with 401 triggers
// a single re-login and retry.
func (c *Client) do(ctx context.Context, method, path string, open func() (io.ReadCloser, error), size int64, headers map[string]string, authed bool) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, open, size, headers, authed)
	if err != nil {
		return nil, err
	}
	if authed && resp.StatusCode == http.StatusUnauthorized && c.password != "" {
		drain(resp)
		c.logger.Info("catalog session expired; logging in again")
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, method, path, open, size, headers, authed)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer drain(resp)
		return nil, classifyStatus(method, path, resp)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, open func() (io.ReadCloser, error), size int64, headers map[string]string, authed bool) (*http.Response, error) {
	var body io.ReadCloser
	if open != nil {
		var err error
		if body, err = open(); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("build request: %w", err)
	}
	if size >= 0 && body != nil {
		req.ContentLength = size
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	if authed {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternal, "", method+" "+path, "request failed", err)
	}
	return resp, nil
}

func classifyStatus(method, path string, resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	var marker error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		marker = services.ErrConfiguration
	case code == http.StatusNotFound:
		marker = services.ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		marker = services.ErrTransient
	case code >= 400:
		marker = services.ErrValidation
	default:
		marker = services.ErrExternal
	}
	return services.Wrap(marker, "", method+" "+path, "", statusErr)
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
