package reddit

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

	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/ratelimit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/utils"
)

const defaultRetryAfter = 60 // seconds, when Reddit omits the retry-after header

// Options configures the upstream client.
type Options struct {
	AuthURL      string // base for OAuth token calls, ex: https://www.reddit.com
	APIURL       string // base for authenticated API calls, ex: https://oauth.reddit.com
	ClientID     string
	ClientSecret string
	UserAgent    string
	PageLimit    int           // default saved-listing page size
	PageDelay    time.Duration // courtesy delay between pages of a fetch-all
	Timeout      time.Duration // per-call HTTP timeout
	Limiter      *ratelimit.Registry
	Logger       logger.Logger
	TimeNow      func() time.Time // injectable clock for tests
}

// Client talks to Reddit's OAuth and listing APIs on behalf of the proxy.
// Every token-authenticated call is gated on the rate-limit registry before
// any network traffic happens, and every 429 response feeds the registry
// before the error is surfaced.
type Client struct {
	httpc     *http.Client
	authURL   string
	apiURL    string
	clientID  string
	secret    string
	userAgent string
	pageLimit int
	pageDelay time.Duration
	limiter   *ratelimit.Registry
	log       logger.Logger
	now       func() time.Time
}

func New(opts Options) *Client {
	if opts.TimeNow == nil {
		opts.TimeNow = time.Now
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		httpc:     &http.Client{Timeout: opts.Timeout},
		authURL:   strings.TrimRight(opts.AuthURL, "/"),
		apiURL:    strings.TrimRight(opts.APIURL, "/"),
		clientID:  opts.ClientID,
		secret:    opts.ClientSecret,
		userAgent: opts.UserAgent,
		pageLimit: opts.PageLimit,
		pageDelay: opts.PageDelay,
		limiter:   opts.Limiter,
		log:       opts.Logger,
		now:       opts.TimeNow,
	}
}

// ─────────────────────────────────────────────────────────────────
// OAuth
// ─────────────────────────────────────────────────────────────────

// ExchangeCode trades an authorization code for access and refresh tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.tokenCall(ctx, form)
}

// RefreshToken obtains a fresh access token. Reddit does not echo the
// refresh token back on refresh responses, so we add it back ourselves and
// the client never has to special-case the two flows.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	tok, err := c.tokenCall(ctx, form)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (c *Client) tokenCall(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tok, nil
}

// ─────────────────────────────────────────────────────────────────
// Authenticated API calls
// ─────────────────────────────────────────────────────────────────

// Me returns the authenticated user's raw profile body.
func (c *Client) Me(ctx context.Context, token string) (json.RawMessage, error) {
	resp, err := c.call(ctx, token, http.MethodGet, c.apiURL+"/api/v1/me", nil)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile body: %w", err)
	}
	return body, nil
}

// ResolveUsername resolves the bearer token to a Reddit username via the
// identity endpoint. Saved listings are only addressable per-user, not as
// /user/me, so every fetch needs this first.
func (c *Client) ResolveUsername(ctx context.Context, token string) (string, error) {
	body, err := c.Me(ctx, token)
	if err != nil {
		return "", err
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	if id.Name == "" {
		return "", fmt.Errorf("identity response carried no username")
	}
	return id.Name, nil
}

// SavedPage fetches one page of the user's saved listing. An empty after
// fetches the first page.
func (c *Client) SavedPage(ctx context.Context, token, username string, limit int, after string) (*Listing, error) {
	if limit <= 0 {
		limit = c.pageLimit
	}

	u := fmt.Sprintf("%s/user/%s/saved?limit=%d&raw_json=1", c.apiURL, url.PathEscape(username), limit)
	if after != "" {
		u += "&after=" + url.QueryEscape(after)
	}

	resp, err := c.call(ctx, token, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	var page Listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode saved listing: %w", err)
	}
	return &page, nil
}

// SavedAll resolves the username and then follows the saved-listing cursor
// until exhaustion, returning one unified envelope with a null cursor.
//
// A 429 on any page aborts the whole operation and discards what was
// already accumulated; callers always get an all-or-nothing result. Pages
// are fetched strictly sequentially because each cursor comes from the
// previous response.
func (c *Client) SavedAll(ctx context.Context, token string, limit int) (*Listing, error) {
	username, err := c.ResolveUsername(ctx, token)
	if err != nil {
		return nil, err
	}

	c.log.Info("fetching all saved items",
		logger.String("user", username),
		logger.Int("page_limit", limit))

	var all []json.RawMessage
	after := ""
	page := 1

	for {
		batch, err := c.SavedPage(ctx, token, username, limit, after)
		if err != nil {
			return nil, err
		}

		if len(batch.Data.Children) > 0 {
			all = append(all, batch.Data.Children...)
		}
		c.log.Debug("fetched saved page",
			logger.Int("page", page),
			logger.Int("batch", len(batch.Data.Children)),
			logger.Int("total", len(all)))

		// An empty page with a cursor still continues: only a missing
		// cursor ends the listing.
		if batch.Data.After == nil || *batch.Data.After == "" {
			break
		}
		after = *batch.Data.After
		page++

		if c.pageDelay > 0 {
			select {
			case <-time.After(c.pageDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if all == nil {
		all = []json.RawMessage{}
	}

	c.log.Info("fetched all saved items",
		logger.String("user", username),
		logger.Int("count", len(all)),
		logger.Int("pages", page))

	return &Listing{
		Kind: "Listing",
		Data: ListingData{
			After:    nil,
			Before:   nil,
			Children: all,
			Dist:     len(all),
			Modhash:  "",
		},
	}, nil
}

// Unsave removes the saved flag from the item identified by fullname
// (kind-prefixed id, ex: t3_abc123).
func (c *Client) Unsave(ctx context.Context, token, fullname string) error {
	form := url.Values{"id": {fullname}}
	resp, err := c.call(ctx, token, http.MethodPost, c.apiURL+"/api/unsave", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	utils.Close(resp.Body)
	return nil
}

// call performs one token-authenticated request. It consults the rate-limit
// registry before touching the network and records any 429 it sees. Any
// non-2xx status is converted into a typed error; callers only ever see a
// response with a successful status.
func (c *Client) call(ctx context.Context, token, method, u string, body io.Reader) (*http.Response, error) {
	now := c.now()
	if secs, limited := c.limiter.IsLimited(token, now); limited {
		c.log.Warn("request blocked by rate-limit cooldown",
			logger.Int("retry_after", secs))
		return nil, &RateLimitError{RetryAfter: secs, Cooldown: true}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit request failed: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retry := retryAfterSeconds(resp.Header)
		c.limiter.SetLimit(token, retry, now)
		body := readBody(resp.Body)
		utils.Close(resp.Body)
		c.log.Warn("rate limited by reddit",
			logger.Int("retry_after", retry),
			logger.String("body", body))
		return nil, &RateLimitError{RetryAfter: retry}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readBody(resp.Body)
		utils.Close(resp.Body)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: body}
	}

	return resp, nil
}

func retryAfterSeconds(h http.Header) int {
	v := h.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return secs
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
