package auth

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/api"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

type fakeRefresher struct {
	calls atomic.Int32
	tok   *reddit.TokenResponse
	err   error
	delay time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*reddit.TokenResponse, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tok, nil
}

func newStore(t *testing.T, refresher Refresher, now func() time.Time) (*Store, *storage.KV) {
	t.Helper()
	kv, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv, refresher, nil, now), kv
}

func TestAccessTokenNotLoggedIn(t *testing.T) {
	s, _ := newStore(t, &fakeRefresher{}, nil)

	_, err := s.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestAccessTokenFreshSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := &fakeRefresher{}
	s, _ := newStore(t, ref, func() time.Time { return now })

	require.NoError(t, s.SaveSession(ctx, &reddit.TokenResponse{
		AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600,
	}))

	tok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at", tok)
	assert.Equal(t, int32(0), ref.calls.Load())
}

func TestAccessTokenRefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := &fakeRefresher{tok: &reddit.TokenResponse{AccessToken: "at2", ExpiresIn: 3600}}
	s, _ := newStore(t, ref, func() time.Time { return now })

	// 4 minutes left: inside the 5-minute horizon.
	require.NoError(t, s.SaveSession(ctx, &reddit.TokenResponse{
		AccessToken: "at1", RefreshToken: "rt", ExpiresIn: 240,
	}))

	tok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", tok)
	assert.Equal(t, int32(1), ref.calls.Load())

	// Refresh response without refresh_token keeps the stored one.
	rt, ok, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rt", rt)
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := &fakeRefresher{
		tok:   &reddit.TokenResponse{AccessToken: "at2", ExpiresIn: 3600},
		delay: 50 * time.Millisecond,
	}
	s, _ := newStore(t, ref, func() time.Time { return now })
	require.NoError(t, s.SaveSession(ctx, &reddit.TokenResponse{
		AccessToken: "at1", RefreshToken: "rt", ExpiresIn: 60,
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.AccessToken(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "at2", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestDeadRefreshTokenClearsSession(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	ref := &fakeRefresher{err: &api.Error{Status: 401, Message: "expired"}}
	s, kv := newStore(t, ref, func() time.Time { return now })
	require.NoError(t, s.SaveSession(ctx, &reddit.TokenResponse{
		AccessToken: "at1", RefreshToken: "rt", ExpiresIn: 60,
	}))

	_, err := s.AccessToken(ctx)
	require.Error(t, err)

	_, ok, err := kv.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok, "session should be cleared after unrecoverable refresh failure")
	assert.False(t, s.LoggedIn(ctx))
}

func TestCorruptExpiryTriggersRefresh(t *testing.T) {
	ctx := context.Background()
	ref := &fakeRefresher{tok: &reddit.TokenResponse{AccessToken: "at2", ExpiresIn: 3600}}
	s, kv := newStore(t, ref, nil)
	require.NoError(t, kv.Set(ctx, storage.KeyAccessToken, "at1"))
	require.NoError(t, kv.Set(ctx, storage.KeyRefreshToken, "rt"))
	require.NoError(t, kv.Set(ctx, storage.KeyExpiresAt, "not-a-number"))

	tok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "at2", tok)
}
