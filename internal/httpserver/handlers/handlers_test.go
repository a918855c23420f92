package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/mw"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/ratelimit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

// fakeUpstream stands in for both Reddit hosts (www + oauth).
type fakeUpstream struct {
	srv *httptest.Server

	mu         sync.Mutex
	status     int    // non-zero forces this status on API calls
	retryAfter string // Retry-After header value for 429s
	meCalls    int
}

func (f *fakeUpstream) setStatus(status int, retryAfter string) {
	f.mu.Lock()
	f.status = status
	f.retryAfter = retryAfter
	f.mu.Unlock()
}

func (f *fakeUpstream) meCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status, retryAfter := f.status, f.retryAfter
		f.mu.Unlock()
		if status != 0 {
			if status == http.StatusTooManyRequests && retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"upstream says no"}`))
			return
		}
		switch {
		case r.URL.Path == "/api/v1/access_token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "at", "refresh_token": "rt", "expires_in": 3600,
				"token_type": "bearer", "scope": "identity history save",
			})
		case r.URL.Path == "/api/v1/me":
			f.mu.Lock()
			f.meCalls++
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "alice", "id": "u1"})
		case strings.HasPrefix(r.URL.Path, "/user/alice/saved"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"kind": "Listing",
				"data": map[string]any{"after": nil, "dist": 1, "modhash": "",
					"children": []any{map[string]any{"kind": "t3", "data": map[string]any{"id": "a"}}}},
			})
		case r.URL.Path == "/api/unsave":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newDeps(t *testing.T, upstream *fakeUpstream) deps.Deps {
	t.Helper()
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
		Logger:       logger.Nop(),
	})
	return deps.Deps{
		Logger:    logger.Nop(),
		StartTime: time.Now(),
		TimeNow:   time.Now,
		Reddit:    client,
		Limiter:   limiter,
		PageLimit: 100,
	}
}

func doJSON(t *testing.T, h http.Handler, method, target, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reqBody *strings.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	} else {
		reqBody = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestExchangeTokenMissingParams(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := ExchangeToken(d)

	rec, body := doJSON(t, h, http.MethodPost, "/auth/token", "", `{"code":"x"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["status"] != float64(400) {
		t.Errorf("error shape must carry status, got %v", body["status"])
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "redirectUri") {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestExchangeTokenSuccess(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := ExchangeToken(d)

	rec, body := doJSON(t, h, http.MethodPost, "/auth/token", "",
		`{"code":"abc","redirectUri":"http://cb"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["access_token"] != "at" || body["refresh_token"] != "rt" {
		t.Errorf("unexpected token response: %v", body)
	}
}

func TestBearerRequired(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := mw.Bearer()(Me(d))

	rec, body := doJSON(t, h, http.MethodGet, "/me", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["status"] != float64(401) {
		t.Errorf("error shape must carry status, got %v", body["status"])
	}
}

func TestSavedSessionExpiredMessage(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setStatus(http.StatusUnauthorized, "")
	d := newDeps(t, upstream)
	h := mw.Bearer()(Saved(d))

	rec, body := doJSON(t, h, http.MethodGet, "/saved", "tok", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["error"] != "Your session has expired. Please log in again." {
		t.Errorf("unexpected message: %v", body["error"])
	}
}

func TestSavedInsufficientPermissionsMessage(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setStatus(http.StatusBadRequest, "")
	d := newDeps(t, upstream)
	h := mw.Bearer()(SavedAll(d))

	rec, body := doJSON(t, h, http.MethodGet, "/saved-all", "tok", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "insufficient permissions") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestRateLimitShapeAndCooldown(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.setStatus(http.StatusTooManyRequests, "30")
	d := newDeps(t, upstream)
	h := mw.Bearer()(SavedAll(d))

	rec, body := doJSON(t, h, http.MethodGet, "/saved-all", "tok", "")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if body["retryAfter"] == nil {
		t.Fatal("429 response must carry retryAfter")
	}

	// The cooldown now gates the token: the next request must not reach
	// the upstream at all.
	upstream.setStatus(0, "")
	before := upstream.meCallCount()
	rec, body = doJSON(t, h, http.MethodGet, "/saved-all", "tok", "")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected cooldown 429, got %d", rec.Code)
	}
	if body["error"] != "Rate limit in effect, please try again later" {
		t.Errorf("unexpected cooldown message: %v", body["error"])
	}
	if upstream.meCallCount() != before {
		t.Error("cooldown request must not hit the upstream")
	}
}

func TestClearRateLimit(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := mw.Bearer()(ClearRateLimit(d))

	rec, body := doJSON(t, h, http.MethodPost, "/ratelimit/clear", "tok", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("clearing an unset limit should 400, got %d", rec.Code)
	}

	d.Limiter.SetLimit("tok", 30, time.Now())
	rec, body = doJSON(t, h, http.MethodPost, "/ratelimit/clear", "tok", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["success"] != true {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestUnsaveRequiresID(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := mw.Bearer()(Unsave(d))

	rec, body := doJSON(t, h, http.MethodPost, "/unsave", "tok", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] != "Post ID is required" {
		t.Errorf("unexpected message: %v", body["error"])
	}
}

func TestUnsaveSuccess(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := mw.Bearer()(Unsave(d))

	rec, body := doJSON(t, h, http.MethodPost, "/unsave", "tok", `{"id":"t3_abc"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHealthz(t *testing.T) {
	d := newDeps(t, newFakeUpstream(t))
	h := Healthz(d)

	rec, body := doJSON(t, h, http.MethodGet, "/healthz", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}
