package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/config"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/ratelimit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

// fakeReddit plays both Reddit hosts: the www OAuth endpoint and the
// oauth API endpoint. It serves a 3-page saved listing for user "alice".
type fakeReddit struct {
	srv *httptest.Server

	mu         sync.Mutex
	pages      int
	rateLimit  bool // when true, saved-listing calls return 429
	retryAfter string
	savedCalls int
	unsaved    []string
}

func (f *fakeReddit) setRateLimit(v bool) {
	f.mu.Lock()
	f.rateLimit = v
	f.mu.Unlock()
}

func (f *fakeReddit) savedCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.savedCalls
}

func (f *fakeReddit) unsavedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsaved...)
}

func newFakeReddit(t *testing.T) *fakeReddit {
	t.Helper()
	f := &fakeReddit{pages: 3, retryAfter: "7"}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/access_token":
			_ = r.ParseForm()
			if r.Form.Get("grant_type") == "refresh_token" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"access_token": "at2", "expires_in": 3600, "token_type": "bearer",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at1", "refresh_token": "rt1", "expires_in": 3600,
				"token_type": "bearer", "scope": "identity history save",
			})
		case r.URL.Path == "/api/v1/me":
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "alice", "id": "u1"})
		case strings.HasPrefix(r.URL.Path, "/user/alice/saved"):
			f.mu.Lock()
			if f.rateLimit {
				retryAfter := f.retryAfter
				f.mu.Unlock()
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			f.savedCalls++
			page := f.savedCalls
			pages := f.pages
			f.mu.Unlock()
			var after any
			if page < pages {
				after = fmt.Sprintf("t3_p%d", page)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"kind": "Listing",
				"data": map[string]any{
					"after": after, "dist": 2, "modhash": "",
					"children": []any{
						map[string]any{"kind": "t3", "data": map[string]any{"id": fmt.Sprintf("a%d", page)}},
						map[string]any{"kind": "t1", "data": map[string]any{"id": fmt.Sprintf("b%d", page)}},
					},
				},
			})
		case r.URL.Path == "/api/unsave":
			_ = r.ParseForm()
			f.mu.Lock()
			f.unsaved = append(f.unsaved, r.Form.Get("id"))
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newProxy(t *testing.T, upstream *fakeReddit) http.Handler {
	t.Helper()
	cfg := &config.Config{
		ListenPort:      ":0",
		ShutdownTimeout: time.Second,
		PageLimit:       100,
		AllowedOrigins:  []string{"*"},
	}
	log := logger.Nop()
	limiter := ratelimit.New()
	client := reddit.New(reddit.Options{
		AuthURL:      upstream.srv.URL,
		APIURL:       upstream.srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		UserAgent:    "bookmarkeddit/1.0",
		PageLimit:    100,
		PageDelay:    time.Millisecond,
		Timeout:      5 * time.Second,
		Limiter:      limiter,
		Logger:       log,
	})
	d := deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		TimeNow:        time.Now,
		Reddit:         client,
		Limiter:        limiter,
		PageLimit:      100,
		AllowedOrigins: []string{"*"},
	}
	return httpserver.New(cfg, log, d).Handler()
}

func call(t *testing.T, h http.Handler, method, target, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	raw, _ := io.ReadAll(rec.Body)
	_ = json.Unmarshal(raw, &out)
	return rec.Code, out
}

func TestFullFlow(t *testing.T) {
	upstream := newFakeReddit(t)
	proxy := newProxy(t, upstream)

	// 1. OAuth code exchange.
	status, tok := call(t, proxy, http.MethodPost, "/auth/token", "",
		`{"code":"abc","redirectUri":"http://cb"}`)
	if status != http.StatusOK {
		t.Fatalf("token exchange failed: %d %v", status, tok)
	}
	access, _ := tok["access_token"].(string)
	if access == "" {
		t.Fatal("no access token in response")
	}

	// 2. Refresh echoes the refresh token back.
	status, refreshed := call(t, proxy, http.MethodPost, "/auth/refresh", "",
		`{"refreshToken":"rt1"}`)
	if status != http.StatusOK {
		t.Fatalf("refresh failed: %d %v", status, refreshed)
	}
	if refreshed["refresh_token"] != "rt1" {
		t.Errorf("refresh must echo the refresh token, got %v", refreshed["refresh_token"])
	}

	// 3. Identity passthrough.
	status, me := call(t, proxy, http.MethodGet, "/me", access, "")
	if status != http.StatusOK || me["name"] != "alice" {
		t.Fatalf("unexpected /me response: %d %v", status, me)
	}

	// 4. Full pagination: 3 pages x 2 items into one unified envelope.
	status, all := call(t, proxy, http.MethodGet, "/saved-all", access, "")
	if status != http.StatusOK {
		t.Fatalf("saved-all failed: %d %v", status, all)
	}
	data, _ := all["data"].(map[string]any)
	if data == nil {
		t.Fatalf("missing data envelope: %v", all)
	}
	children, _ := data["children"].([]any)
	if len(children) != 6 {
		t.Errorf("expected 6 children, got %d", len(children))
	}
	if data["after"] != nil {
		t.Errorf("unified envelope must have after=null, got %v", data["after"])
	}
	if data["dist"] != float64(6) {
		t.Errorf("dist must be the total count, got %v", data["dist"])
	}

	// 5. Unsave forwards the fullname as form data.
	status, unsave := call(t, proxy, http.MethodPost, "/unsave", access, `{"id":"t3_a1"}`)
	if status != http.StatusOK || unsave["success"] != true {
		t.Fatalf("unsave failed: %d %v", status, unsave)
	}
	if ids := upstream.unsavedIDs(); len(ids) != 1 || ids[0] != "t3_a1" {
		t.Errorf("upstream did not receive the fullname: %v", ids)
	}
}

func TestRateLimitLifecycle(t *testing.T) {
	upstream := newFakeReddit(t)
	upstream.setRateLimit(true)
	proxy := newProxy(t, upstream)

	// First hit records the cooldown from the upstream 429.
	status, body := call(t, proxy, http.MethodGet, "/saved-all", "tok", "")
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %v", status, body)
	}
	if body["retryAfter"] == nil {
		t.Fatal("429 must carry retryAfter")
	}

	// Second hit short-circuits in the registry without reaching Reddit.
	upstream.setRateLimit(false)
	before := upstream.savedCallCount()
	status, body = call(t, proxy, http.MethodGet, "/saved-all", "tok", "")
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected cooldown 429, got %d %v", status, body)
	}
	if upstream.savedCallCount() != before {
		t.Error("cooldown request must not reach the upstream")
	}

	// Clearing the cooldown unblocks the token.
	status, body = call(t, proxy, http.MethodPost, "/ratelimit/clear", "tok", "")
	if status != http.StatusOK {
		t.Fatalf("clear failed: %d %v", status, body)
	}
	status, _ = call(t, proxy, http.MethodGet, "/saved-all", "tok", "")
	if status != http.StatusOK {
		t.Fatalf("expected success after clear, got %d", status)
	}
}

func TestHealthzAndCORS(t *testing.T) {
	proxy := newProxy(t, newFakeReddit(t))

	status, body := call(t, proxy, http.MethodGet, "/healthz", "", "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected healthz: %d %v", status, body)
	}

	req := httptest.NewRequest(http.MethodOptions, "/saved-all", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight should 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS header on preflight")
	}
}
