// Package auth manages the OAuth session: token persistence, proactive
// refresh, and the uniform session-clear path for expired logins.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/api"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

// refreshHorizon is how close to expiry a token may get before it is
// refreshed proactively instead of being handed out.
const refreshHorizon = 5 * time.Minute

// ErrNotLoggedIn is returned when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Refresher is the slice of the proxy API the store needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*reddit.TokenResponse, error)
}

// Store persists tokens in the local state db and refreshes them before
// they expire. Safe for concurrent use; concurrent refreshes collapse
// into a single upstream call.
type Store struct {
	kv      *storage.KV
	api     Refresher
	logger  logger.Logger
	timeNow func() time.Time
	sf      singleflight.Group
}

func NewStore(kv *storage.KV, refresher Refresher, log logger.Logger, timeNow func() time.Time) *Store {
	if timeNow == nil {
		timeNow = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{kv: kv, api: refresher, logger: log, timeNow: timeNow}
}

// SaveSession persists a token response, computing the absolute expiry
// from expires_in.
func (s *Store) SaveSession(ctx context.Context, tok *reddit.TokenResponse) error {
	expiresAt := s.timeNow().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if err := s.kv.Set(ctx, storage.KeyAccessToken, tok.AccessToken); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		if err := s.kv.Set(ctx, storage.KeyRefreshToken, tok.RefreshToken); err != nil {
			return err
		}
	}
	return s.kv.Set(ctx, storage.KeyExpiresAt, strconv.FormatInt(expiresAt.Unix(), 10))
}

// AccessToken returns a token valid for at least the refresh horizon,
// refreshing first when the stored one is close to expiry. Returns
// ErrNotLoggedIn when no session exists, and api-layer errors when the
// refresh itself fails.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	access, ok, err := s.kv.Get(ctx, storage.KeyAccessToken)
	if err != nil {
		return "", err
	}
	if !ok || access == "" {
		return "", ErrNotLoggedIn
	}

	if !s.nearExpiry(ctx) {
		return access, nil
	}

	v, err, _ := s.sf.Do("refresh", func() (any, error) {
		// Re-check inside the flight: a concurrent caller may have
		// refreshed already.
		if !s.nearExpiry(ctx) {
			tok, ok, err := s.kv.Get(ctx, storage.KeyAccessToken)
			if err != nil {
				return "", err
			}
			if ok {
				return tok, nil
			}
		}
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// LoggedIn reports whether any session is stored, without refreshing.
func (s *Store) LoggedIn(ctx context.Context) bool {
	_, ok, err := s.kv.Get(ctx, storage.KeyAccessToken)
	return err == nil && ok
}

// Clear wipes the stored session. Called on logout and whenever the
// upstream reports the session as invalid.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx,
		storage.KeyAccessToken,
		storage.KeyRefreshToken,
		storage.KeyExpiresAt,
		storage.KeyUserProfile,
	)
}

func (s *Store) nearExpiry(ctx context.Context) bool {
	raw, ok, err := s.kv.Get(ctx, storage.KeyExpiresAt)
	if err != nil || !ok {
		// No expiry recorded: assume stale and refresh.
		return true
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true
	}
	return time.Unix(unix, 0).Sub(s.timeNow()) < refreshHorizon
}

func (s *Store) refresh(ctx context.Context) (string, error) {
	refreshToken, ok, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if !ok || refreshToken == "" {
		return "", ErrNotLoggedIn
	}

	s.logger.Debug("access token near expiry, refreshing")
	tok, err := s.api.Refresh(ctx, refreshToken)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.AuthFailed() {
			// Refresh token itself is dead; the session is unrecoverable.
			_ = s.Clear(ctx)
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.SaveSession(ctx, tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
