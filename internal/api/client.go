// Package api is the request client for the portal's REST surface. It
// attaches the CSRF token to mutating calls, decodes the portal's
// {success, message, data} envelope, and keeps a short-lived read cache.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/order-desk/console/internal/order"
)

// Options configures a Client.
type Options struct {
	CSRFHeader    string
	CSRFToken     string
	SessionCookie string // "JSESSIONID=..." or a bare session id
	Token         string // optional bearer token
	TTL           time.Duration
	Timeout       time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Client makes REST calls to the portal.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *Cache
	log     *slog.Logger

	mu         sync.RWMutex
	csrfHeader string
	csrfToken  string
}

// envelope is the portal's response shape.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// New creates a client targeting baseURL (e.g. "http://127.0.0.1:8080").
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = "X-CSRF-TOKEN"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	jar, _ := cookiejar.New(nil)
	baseURL = strings.TrimRight(baseURL, "/")
	if opts.SessionCookie != "" {
		if u, err := url.Parse(baseURL); err == nil {
			jar.SetCookies(u, []*http.Cookie{sessionCookie(opts.SessionCookie)})
		}
	}

	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		client:     &http.Client{Timeout: opts.Timeout, Jar: jar},
		cache:      NewCache(opts.TTL, opts.Now),
		log:        logger.With("component", "api"),
		csrfHeader: opts.CSRFHeader,
		csrfToken:  opts.CSRFToken,
	}
}

func sessionCookie(v string) *http.Cookie {
	name, value, ok := strings.Cut(v, "=")
	if !ok {
		return &http.Cookie{Name: "JSESSIONID", Value: v}
	}
	return &http.Cookie{Name: name, Value: value}
}

// SetCSRF replaces the CSRF header name and token, e.g. after discovering
// them on the dashboard page. An empty header keeps the current one.
func (c *Client) SetCSRF(header, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if header != "" {
		c.csrfHeader = header
	}
	c.csrfToken = token
}

// CSRF returns the header name and token in use.
func (c *Client) CSRF() (header, token string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfHeader, c.csrfToken
}

// Cache exposes the read cache.
func (c *Client) Cache() *Cache { return c.cache }

// Invalidate drops cached reads that reference an entity id.
func (c *Client) Invalidate(id int64) {
	n := c.cache.Invalidate(fmt.Sprint(id))
	c.log.Debug("cache invalidated", "id", id, "entries", n)
}

// InvalidateBucket drops the cached order list of one bucket.
func (c *Client) InvalidateBucket(b order.Bucket) {
	n := c.cache.Invalidate(b.Key())
	c.log.Debug("cache invalidated", "bucket", b, "entries", n)
}

// ClearCache wipes all cached reads.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.log.Debug("cache cleared")
}

// Get performs a cached read. The data member of the envelope is decoded
// into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	key := CacheKey(path, params)
	if data, ok := c.cache.Get(key); ok {
		return decodeData(http.MethodGet+" "+path, data, out)
	}

	data, err := c.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return err
	}
	if err := decodeData(http.MethodGet+" "+path, data, out); err != nil {
		return err
	}
	c.cache.Put(key, data)
	return nil
}

// Request performs an uncached call. body, when non-nil, is sent as JSON.
// out receives the envelope's data member and may be nil.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decodeData(method+" "+path, data, out)
}

// do sends the request and returns the envelope's data bytes.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutating(method) {
		header, token := c.CSRF()
		if token != "" {
			req.Header.Set(header, token)
		}
	}
	c.setAuth(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("request failed", "op", op, "err", err)
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	c.log.Debug("request", "op", op, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Kind: KindHTTP, Op: op, Status: resp.StatusCode}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			e.Message = env.Message
		}
		return nil, e
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Err: err}
	}
	if env.Success != nil && !*env.Success {
		return nil, &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}

// Page fetches a server-rendered HTML page. No envelope is involved.
func (c *Client) Page(ctx context.Context, path string) ([]byte, error) {
	op := http.MethodGet + " " + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "text/html")
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTP, Op: op, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	return body, nil
}

func decodeData(op string, data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, Err: err}
	}
	return nil
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
