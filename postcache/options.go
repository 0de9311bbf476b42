package postcache

import (
	"log/slog"
	"time"

	"github.com/adeilh/scribe/telemetry"
)

const (
	DefaultListingTTL = 600 * time.Second
	DefaultEntityTTL  = 3600 * time.Second
	DefaultOpTimeout  = 250 * time.Millisecond
	// DefaultPurgeTimeout bounds one invalidation attempt, which has to
	// enumerate keys and is slower than a point lookup.
	DefaultPurgeTimeout = 2 * time.Second
)

// Options configures the Reader and the Invalidator.
type Options struct {
	ListingTTL   time.Duration
	EntityTTL    time.Duration
	OpTimeout    time.Duration
	PurgeTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *telemetry.Metrics
}

func (o Options) withDefaults() Options {
	if o.ListingTTL <= 0 {
		o.ListingTTL = DefaultListingTTL
	}
	if o.EntityTTL <= 0 {
		o.EntityTTL = DefaultEntityTTL
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.PurgeTimeout <= 0 {
		o.PurgeTimeout = DefaultPurgeTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// InvalidationPolicy decides what happens when a purge fails.
//
// Attempts purges are tried inline with Backoff between them. If all fail
// and QueueSize is positive, the purge is handed to a bounded background
// queue which retries it up to RetryAttempts times with exponential
// backoff starting at RetryBackoff. A full queue drops the purge.
type InvalidationPolicy struct {
	Attempts      int
	Backoff       time.Duration
	QueueSize     int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// DefaultInvalidationPolicy tries once inline and retries in the background.
func DefaultInvalidationPolicy() InvalidationPolicy {
	return InvalidationPolicy{
		Attempts:      1,
		Backoff:       50 * time.Millisecond,
		QueueSize:     256,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

func (p InvalidationPolicy) withDefaults() InvalidationPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.QueueSize < 0 {
		p.QueueSize = 0
	}
	if p.RetryAttempts <= 0 {
		p.RetryAttempts = 3
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = 500 * time.Millisecond
	}
	return p
}
