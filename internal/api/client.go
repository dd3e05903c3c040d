// Package api talks to the remote to-do service. Every task call goes
// through authTransport, which attaches, refreshes or drops the session's
// access token before the request leaves the process.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Joseda-hg/lazytodo/internal/model"
	"github.com/Joseda-hg/lazytodo/internal/session"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrEmptyTitle     = errors.New("title is required")
)

// StatusError is returned for any non-2xx answer from the API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s", e.Op, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, http.StatusText(e.StatusCode), e.Body)
}

type Client struct {
	baseURL string
	session session.Store
	logger  *log.Logger
	now     func() time.Time

	hookMu   sync.RWMutex
	onLogout func()

	transport http.RoundTripper
	timeout   time.Duration

	raw    *http.Client
	authed *http.Client
	flight singleflight.Group
}

type Option func(*Client)

// WithTransport sets the underlying round tripper, e.g. an httptest server's.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogoutHook registers fn to run whenever the client has to drop the
// session on its own (failed refresh, malformed token).
func WithLogoutHook(fn func()) Option {
	return func(c *Client) { c.onLogout = fn }
}

func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		session:   store,
		logger:    log.New(io.Discard, "", 0),
		now:       time.Now,
		transport: http.DefaultTransport,
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	logged := &loggingTransport{base: c.transport, logger: c.logger}
	c.raw = &http.Client{Transport: logged, Timeout: c.timeout}
	c.authed = &http.Client{Transport: &authTransport{client: c, base: logged}, Timeout: c.timeout}
	return c
}

// SetLogoutHook replaces the hook after construction; the TUI installs
// itself once the gocui loop exists.
func (c *Client) SetLogoutHook(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onLogout = fn
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tokens tokenPair
	if err := c.do(ctx, c.raw, "login", http.MethodPost, "/auth/login/", credentials{Username: username, Password: password}, &tokens); err != nil {
		return err
	}
	if tokens.Access == "" {
		return errors.New("login: response carried no access token")
	}

	if err := c.session.SetUsername(ctx, username); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := c.session.SetTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.logger.Printf("[INFO] logged in as %s", c.session.Username())
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx)
}

// RefreshAccess renews the access token. Concurrent callers share a single
// request; a token that became valid while waiting is reused as is.
func (c *Client) RefreshAccess(ctx context.Context) error {
	_, err, _ := c.flight.Do("refresh", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})
	return err
}

func (c *Client) refresh(ctx context.Context) error {
	if session.ShouldAttach(c.session.Access(), c.now()) {
		return nil
	}

	token := c.session.Refresh()
	if token == "" {
		c.expire(ctx, "no refresh token")
		return fmt.Errorf("refresh: %w", ErrSessionExpired)
	}

	var tokens tokenPair
	err := c.do(ctx, c.raw, "refresh", http.MethodPost, "/auth/token/refresh/", map[string]string{"refresh": token}, &tokens)
	if err == nil && tokens.Access == "" {
		err = errors.New("response carried no access token")
	}
	if err != nil {
		c.expire(ctx, err.Error())
		return fmt.Errorf("refresh: %w: %v", ErrSessionExpired, err)
	}

	if err := c.session.SetTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (c *Client) expire(ctx context.Context, reason string) {
	c.logger.Printf("[WARN] dropping session: %s", reason)
	if err := c.session.Clear(ctx); err != nil {
		c.logger.Printf("[ERROR] %v", err)
	}
	c.hookMu.RLock()
	hook := c.onLogout
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, c.authed, "list tasks", http.MethodGet, "/todos/", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

type createRequest struct {
	Title     string          `json:"title"`
	Group     string          `json:"group,omitempty"`
	Frequency model.Frequency `json:"frequency"`
	Status    model.Status    `json:"status"`
	Date      string          `json:"date"`
}

// CreateTask submits a new task dated today. New tasks always start as not started.
func (c *Client) CreateTask(ctx context.Context, in model.NewTask, today time.Time) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Task{}, ErrEmptyTitle
	}
	frequency := in.Frequency
	if frequency == "" {
		frequency = model.FrequencyDaily
	}

	payload := createRequest{
		Title:     title,
		Group:     strings.TrimSpace(in.Group),
		Frequency: frequency,
		Status:    model.StatusNotStarted,
		Date:      today.Format(model.DateLayout),
	}

	var created model.Task
	if err := c.do(ctx, c.authed, "create task", http.MethodPost, "/todos/", payload, &created); err != nil {
		return model.Task{}, err
	}
	return created, nil
}

// UpdateTask sends only the fields set in patch and returns the server's copy.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch model.Patch) (model.Task, error) {
	var updated model.Task
	if err := c.do(ctx, c.authed, "update task", http.MethodPatch, fmt.Sprintf("/todos/%d/", id), patch, &updated); err != nil {
		return model.Task{}, err
	}
	return updated, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, c.authed, "delete task", http.MethodDelete, fmt.Sprintf("/todos/%d/", id), nil, nil)
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
