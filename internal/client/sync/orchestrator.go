// Package sync drives the client's item lifecycle: cache-first loading,
// background refresh with diff notifications, rate-limit retry scheduling,
// and unsave coordination.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/api"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/auth"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/cache"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

// SessionExpiredMessage is shown whenever auth fails anywhere in the app.
const SessionExpiredMessage = "Your session has expired. Please log in again."

// Fetcher is the slice of the proxy API the orchestrator needs.
type Fetcher interface {
	SavedAll(ctx context.Context, accessToken string, limit int) (*reddit.Listing, error)
	Unsave(ctx context.Context, accessToken, fullname string) error
}

// Sessions supplies valid access tokens and clears dead sessions.
type Sessions interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Options configures an Orchestrator.
type Options struct {
	API       Fetcher
	Sessions  Sessions
	Cache     *cache.Cache
	Logger    logger.Logger
	Notify    func(Event)
	PageLimit int

	// BackgroundDelay defers the refresh that follows a cache render, so
	// cached items paint before the network call starts.
	BackgroundDelay time.Duration
	// RetryTick is the unit one rate-limit "second" maps to. Shrunk in
	// tests so retry scheduling runs instantly.
	RetryTick time.Duration
}

// Orchestrator owns the displayed item set and all transitions around it.
// Only one fetch may be in flight at a time; a second request while one
// is outstanding is a silent no-op.
type Orchestrator struct {
	fetcher   Fetcher
	sessions  Sessions
	cache     *cache.Cache
	logger    logger.Logger
	notifyFn  func(Event)
	pageLimit int
	bgDelay   time.Duration
	retryTick time.Duration

	mu            sync.Mutex
	state         State
	items         []normalize.SavedItem
	filter        Selection
	lastError     string
	fetching      bool
	fetchedOnce   bool
	retryTimer    *time.Timer
	countdownStop chan struct{}
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.BackgroundDelay == 0 {
		opts.BackgroundDelay = 100 * time.Millisecond
	}
	if opts.RetryTick == 0 {
		opts.RetryTick = time.Second
	}
	return &Orchestrator{
		fetcher:   opts.API,
		sessions:  opts.Sessions,
		cache:     opts.Cache,
		logger:    opts.Logger,
		notifyFn:  opts.Notify,
		pageLimit: opts.PageLimit,
		bgDelay:   opts.BackgroundDelay,
		retryTick: opts.RetryTick,
		state:     StateIdle,
	}
}

// Start performs the initial load: cached items render immediately when a
// fresh cache exists, with a deferred background refresh; otherwise a
// blocking foreground fetch runs.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.fetchedOnce || o.state != StateIdle {
		o.mu.Unlock()
		return
	}
	o.state = StateLoadingFromCache
	o.mu.Unlock()

	items, ts, ok := o.cache.Load(ctx)
	if ok && o.cache.IsFresh(ts) && len(items) > 0 {
		o.mu.Lock()
		o.items = items
		o.state = StateServingCachedAndRefreshing
		o.mu.Unlock()
		o.logger.Debugf("serving %d cached items, refreshing in background", len(items))
		time.AfterFunc(o.bgDelay, func() { o.fetch(ctx, true) })
		return
	}

	o.fetch(ctx, false)
}

// Refresh runs a background-style refresh on demand. No-op while another
// fetch is in flight.
func (o *Orchestrator) Refresh(ctx context.Context) {
	o.fetch(ctx, true)
}

// RetryNow collapses a pending rate-limit wait and refetches immediately.
func (o *Orchestrator) RetryNow(ctx context.Context) {
	o.clearRetry()
	o.fetch(ctx, false)
}

// CancelRetry clears a scheduled automatic retry without refetching. The
// in-flight HTTP request, if any, is not aborted.
func (o *Orchestrator) CancelRetry() {
	o.clearRetry()
	o.mu.Lock()
	if o.state == StateWaitingToRetry {
		o.state = StateError
	}
	o.mu.Unlock()
}

// Unsave removes an item from Reddit and, on success, from local state.
// Auth failures route through the same session-expiry handling as fetches.
func (o *Orchestrator) Unsave(ctx context.Context, id string) {
	o.mu.Lock()
	var target *normalize.SavedItem
	for i := range o.items {
		if o.items[i].ID == id {
			target = &o.items[i]
			break
		}
	}
	if target == nil {
		o.mu.Unlock()
		o.notify(Event{Kind: EventError, Message: fmt.Sprintf("No item with id %q", id)})
		return
	}
	fullname := target.Fullname
	o.mu.Unlock()

	token, err := o.sessions.AccessToken(ctx)
	if err != nil {
		o.handleError(ctx, err)
		return
	}

	if err := o.fetcher.Unsave(ctx, token, fullname); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.AuthFailed() {
			o.sessionExpired(ctx)
			return
		}
		// Transient failure: item state stays untouched.
		o.notify(Event{Kind: EventError, Message: fmt.Sprintf("Failed to unsave: %v", err)})
		return
	}

	o.mu.Lock()
	kept := o.items[:0:0]
	for _, it := range o.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	o.items = kept
	pruned, removed, nsfwCleared := o.filter.Prune(o.items)
	o.filter = pruned
	items := o.items
	o.mu.Unlock()

	if err := o.cache.Save(ctx, items); err != nil {
		o.logger.Warnf("failed to persist cache after unsave: %v", err)
	}
	o.notify(Event{Kind: EventUnsaved, Message: "Item unsaved"})
	o.notifyPruned(removed, nsfwCleared)
}

func (o *Orchestrator) notifyPruned(removed []string, nsfwCleared bool) {
	if len(removed) > 0 {
		o.notify(Event{
			Kind:        EventFilterCleared,
			Message:     "Filter cleared: no items left",
			Communities: removed,
		})
	}
	if nsfwCleared {
		o.notify(Event{
			Kind:    EventFilterCleared,
			Message: "NSFW filter cleared: no items left",
		})
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the most recent user-facing error message.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastError
}

// Items returns a copy of the full displayed item set.
func (o *Orchestrator) Items() []normalize.SavedItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]normalize.SavedItem, len(o.items))
	copy(out, o.items)
	return out
}

// Filtered returns the items matching the active selection.
func (o *Orchestrator) Filtered() []normalize.SavedItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filter.Apply(o.items)
}

// Filter returns the active selection.
func (o *Orchestrator) Filter() Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filter
}

// SetFilter replaces the active selection.
func (o *Orchestrator) SetFilter(sel Selection) {
	o.mu.Lock()
	o.filter = sel
	o.mu.Unlock()
}

func (o *Orchestrator) fetch(ctx context.Context, background bool) {
	o.mu.Lock()
	if o.fetching {
		o.mu.Unlock()
		return
	}
	o.fetching = true
	if !background {
		o.state = StateLoadingForeground
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.fetching = false
		o.mu.Unlock()
	}()

	token, err := o.sessions.AccessToken(ctx)
	if err != nil {
		o.handleError(ctx, err)
		return
	}

	listing, err := o.fetcher.SavedAll(ctx, token, o.pageLimit)
	if err != nil {
		o.handleError(ctx, err)
		return
	}
	fresh := normalize.Items(listing.Data.Children)

	if background {
		o.applyBackground(ctx, fresh)
	} else {
		o.applyForeground(ctx, fresh)
	}
}

func (o *Orchestrator) applyForeground(ctx context.Context, fresh []normalize.SavedItem) {
	o.mu.Lock()
	o.items = fresh
	o.state = StateReady
	o.lastError = ""
	o.fetchedOnce = true
	o.mu.Unlock()

	if err := o.cache.Save(ctx, fresh); err != nil {
		o.logger.Warnf("failed to persist cache: %v", err)
	}
}

func (o *Orchestrator) applyBackground(ctx context.Context, fresh []normalize.SavedItem) {
	o.mu.Lock()
	d := cache.Compare(o.items, fresh)
	if !d.HasChanges {
		o.state = StateReady
		o.fetchedOnce = true
		o.mu.Unlock()
		o.notify(Event{Kind: EventUpToDate, Message: "Saved items are up to date"})
		return
	}

	o.items = fresh
	pruned, removed, nsfwCleared := o.filter.Prune(fresh)
	o.filter = pruned
	o.state = StateReady
	o.lastError = ""
	o.fetchedOnce = true
	o.mu.Unlock()

	if err := o.cache.Save(ctx, fresh); err != nil {
		o.logger.Warnf("failed to persist cache: %v", err)
	}
	o.notify(Event{
		Kind:    EventItemsChanged,
		Message: fmt.Sprintf("%d new, %d removed", d.NewCount, d.DeletedCount),
		Added:   d.NewCount,
		Removed: d.DeletedCount,
	})
	o.notifyPruned(removed, nsfwCleared)
}

func (o *Orchestrator) handleError(ctx context.Context, err error) {
	if errors.Is(err, auth.ErrNotLoggedIn) {
		o.sessionExpired(ctx)
		return
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.AuthFailed():
			o.sessionExpired(ctx)
			return
		case apiErr.RateLimited():
			o.scheduleRetry(ctx, apiErr.RetryAfter)
			return
		case apiErr.BadRequest():
			o.fail("Insufficient permissions. Please log in again with the required scopes.")
			return
		default:
			o.fail(fmt.Sprintf("Reddit API error (%d): %s", apiErr.Status, apiErr.Message))
			return
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		o.fail("Could not reach the server. Check your connection and try again.")
		return
	}

	o.fail(fmt.Sprintf("Unexpected error: %v", err))
}

func (o *Orchestrator) fail(message string) {
	o.mu.Lock()
	o.state = StateError
	o.lastError = message
	o.mu.Unlock()
	o.notify(Event{Kind: EventError, Message: message})
}

// sessionExpired is the single auth-failure path, regardless of whether
// the 401 came from a fetch or an unsave: clear tokens, clear cache, and
// send the UI back to login.
func (o *Orchestrator) sessionExpired(ctx context.Context) {
	if err := o.sessions.Clear(ctx); err != nil {
		o.logger.Warnf("failed to clear session: %v", err)
	}
	if err := o.cache.Clear(ctx); err != nil {
		o.logger.Warnf("failed to clear cache: %v", err)
	}

	o.mu.Lock()
	o.items = nil
	o.state = StateError
	o.lastError = SessionExpiredMessage
	o.mu.Unlock()

	o.notify(Event{Kind: EventSessionExpired, Message: SessionExpiredMessage})
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, retryAfter int) {
	if retryAfter <= 0 {
		retryAfter = 60
	}

	o.clearRetry()

	o.mu.Lock()
	o.state = StateWaitingToRetry
	o.lastError = fmt.Sprintf("Rate limited. Retrying in %d seconds", retryAfter)
	stop := make(chan struct{})
	o.countdownStop = stop
	o.retryTimer = time.AfterFunc(time.Duration(retryAfter)*o.retryTick, func() {
		o.clearRetry()
		o.fetch(ctx, false)
	})
	o.mu.Unlock()

	o.notify(Event{Kind: EventRateLimited, RetryIn: retryAfter,
		Message: fmt.Sprintf("Rate limited. Retrying in %d seconds", retryAfter)})

	// Countdown ticks are purely informational for the UI.
	go func() {
		ticker := time.NewTicker(o.retryTick)
		defer ticker.Stop()
		for remaining := retryAfter - 1; remaining > 0; remaining-- {
			select {
			case <-stop:
				return
			case <-ticker.C:
				o.notify(Event{Kind: EventRetryCountdown, RetryIn: remaining})
			}
		}
	}()
}

func (o *Orchestrator) clearRetry() {
	o.mu.Lock()
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	if o.countdownStop != nil {
		close(o.countdownStop)
		o.countdownStop = nil
	}
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ev Event) {
	if o.notifyFn != nil {
		o.notifyFn(ev)
	}
}
