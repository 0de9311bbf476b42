package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.CacheLookup("listing", ResultHit)
	m.CacheStoreError("get")
	m.Invalidation("post_created", "ok", 3)
	m.RetryQueue(2)
	m.RateLimitReject("login")
	m.AIRequest("summary", time.Second, errors.New("boom"))
	m.HTTPRequest("GET", "/api/posts", 200, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}

func TestCacheLookupCounts(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())
	m.CacheLookup("entity", ResultMiss)
	m.CacheLookup("entity", ResultMiss)
	m.CacheLookup("entity", ResultHit)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("entity", ResultMiss)); got != 2 {
		t.Fatalf("miss count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.InvalidatedKeys); got != 0 {
		t.Fatalf("invalidated keys = %v, want 0", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.CacheLookup("listing", ResultHit)
	m.Invalidation("post_deleted", "failed", 1)
	m.RetryQueue(1)
	m.RetryDrop()
	m.HTTPRequest("GET", "/", 200, 0)
}
