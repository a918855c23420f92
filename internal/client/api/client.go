// Package api is the client-side counterpart of the proxy: it speaks the
// proxy's HTTP surface and translates its uniform error shape back into
// typed errors the sync layer can branch on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

const profileTTL = 5 * time.Minute

// Options configures a proxy API client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  logger.Logger
	TimeNow func() time.Time
}

// Client talks to the bookmarkedditd proxy.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  logger.Logger
	now     func() time.Time

	// Profile reads are frequent (every screen shows the username) but the
	// answer rarely changes; cache it briefly and collapse concurrent
	// lookups into one upstream call.
	profileSF singleflight.Group
	profileMu sync.Mutex
	profile   *reddit.Identity
	profileAt time.Time
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 6 * time.Minute // saved-all pagination can take a while
	}
	if opts.TimeNow == nil {
		opts.TimeNow = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Client{
		baseURL: opts.BaseURL,
		httpc:   &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
		now:     opts.TimeNow,
	}
}

// LoginURL builds the Reddit authorization URL the user must visit to
// grant access. Scopes cover identity lookup, saved-history reads, and
// unsaving; duration=permanent is what makes Reddit issue a refresh token.
func LoginURL(clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	q.Set("duration", "permanent")
	q.Set("scope", "identity history save")
	return "https://www.reddit.com/api/v1/authorize?" + q.Encode()
}

// ExchangeCode trades an OAuth authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*reddit.TokenResponse, error) {
	body := map[string]string{"code": code, "redirectUri": redirectURI}
	var tok reddit.TokenResponse
	if err := c.postJSON(ctx, "/auth/token", "", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Refresh exchanges a refresh token for a new access token. The proxy
// echoes the refresh token back, so the caller can always persist the
// full response.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*reddit.TokenResponse, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var tok reddit.TokenResponse
	if err := c.postJSON(ctx, "/auth/refresh", "", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Me returns the authenticated user's profile, served from a short-lived
// in-memory cache when possible.
func (c *Client) Me(ctx context.Context, accessToken string) (*reddit.Identity, error) {
	c.profileMu.Lock()
	if c.profile != nil && c.now().Sub(c.profileAt) < profileTTL {
		p := *c.profile
		c.profileMu.Unlock()
		return &p, nil
	}
	c.profileMu.Unlock()

	v, err, _ := c.profileSF.Do("me", func() (any, error) {
		var id reddit.Identity
		if err := c.getJSON(ctx, "/me", accessToken, nil, &id); err != nil {
			return nil, err
		}
		c.profileMu.Lock()
		c.profile = &id
		c.profileAt = c.now()
		c.profileMu.Unlock()
		return &id, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*reddit.Identity)
	return &p, nil
}

// InvalidateProfile drops the cached profile, e.g. after logout.
func (c *Client) InvalidateProfile() {
	c.profileMu.Lock()
	c.profile = nil
	c.profileMu.Unlock()
}

// SavedPage fetches a single page of the saved listing.
func (c *Client) SavedPage(ctx context.Context, accessToken string, limit int, after string) (*reddit.Listing, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		q.Set("after", after)
	}
	var l reddit.Listing
	if err := c.getJSON(ctx, "/saved", accessToken, q, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SavedAll fetches the user's complete saved history as one unified
// listing. The proxy handles pagination; this is a single long request.
func (c *Client) SavedAll(ctx context.Context, accessToken string, limit int) (*reddit.Listing, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var l reddit.Listing
	if err := c.getJSON(ctx, "/saved-all", accessToken, q, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Unsave removes an item from the user's saved list. fullname is the
// kind-prefixed id (t3_xxx / t1_xxx).
func (c *Client) Unsave(ctx context.Context, accessToken, fullname string) error {
	body := map[string]string{"id": fullname}
	var out struct {
		Success bool `json:"success"`
	}
	return c.postJSON(ctx, "/unsave", accessToken, body, &out)
}

func (c *Client) getJSON(ctx context.Context, path, token string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, token, out)
}

func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		// Best effort: the proxy always sends the uniform shape, but a
		// reverse proxy in front of it might not.
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		c.logger.Debugf("api call %s %s failed: %d %s", req.Method, req.URL.Path, apiErr.Status, apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
