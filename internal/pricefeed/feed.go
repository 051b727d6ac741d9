package pricefeed

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// DefaultTTL is how long a fetched quote set is served before the
// upstream is asked again.
const DefaultTTL = 60 * time.Second

// Feed caches quotes from a Client and degrades to FallbackQuotes when
// the upstream is unreachable. Quotes therefore never error out: the
// dashboard ticker always has something to show.
type Feed struct {
	client    *Client
	ttl       time.Duration
	now       func() time.Time
	logger    *log.Logger
	onRefresh func(outcome string)

	mu        sync.Mutex
	quotes    []domain.Quote
	refreshed time.Time
}

// FeedOption configures Feed.
type FeedOption func(*Feed)

// WithTTL overrides the cache lifetime.
func WithTTL(d time.Duration) FeedOption {
	return func(f *Feed) {
		f.ttl = d
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		f.now = now
	}
}

// WithLogger sets the feed's logger.
func WithLogger(l *log.Logger) FeedOption {
	return func(f *Feed) {
		f.logger = l
	}
}

// WithRefreshHook registers a callback invoked after every refresh
// attempt with outcome "ok" or "fallback".
func WithRefreshHook(fn func(outcome string)) FeedOption {
	return func(f *Feed) {
		f.onRefresh = fn
	}
}

// NewFeed creates a caching quote feed over the given client.
func NewFeed(client *Client, opts ...FeedOption) *Feed {
	f := &Feed{
		client: client,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Quotes returns the cached quote set, refreshing it when stale. A
// failed refresh serves FallbackQuotes instead of an error, so the
// ticker always has something to show.
func (f *Feed) Quotes(ctx context.Context) []domain.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.quotes != nil && f.now().Sub(f.refreshed) < f.ttl {
		return cloneQuotes(f.quotes)
	}

	outcome := "ok"
	quotes, err := f.client.Listings(ctx)
	if err != nil {
		f.logger.Printf("listings fetch failed, serving fallback: %v", err)
		quotes = FallbackQuotes()
		outcome = "fallback"
	}
	if f.onRefresh != nil {
		f.onRefresh(outcome)
	}

	f.quotes = quotes
	f.refreshed = f.now()
	return cloneQuotes(quotes)
}

func cloneQuotes(quotes []domain.Quote) []domain.Quote {
	out := make([]domain.Quote, len(quotes))
	copy(out, quotes)
	return out
}
