package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adeilh/scribe/cache/memory"
	"github.com/adeilh/scribe/internal/testutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestProvider(t *testing.T, mutate func(*JWTProviderConfig)) (*JWTProvider, *testClock) {
	t.Helper()
	clk := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := JWTProviderConfig{
		Secret: testSecret,
		Issuer: "scribe",
		TTL:    time.Hour,
		Now:    clk.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewJWTProvider(cfg)
	if err != nil {
		t.Fatalf("NewJWTProvider() error = %v", err)
	}
	return p, clk
}

func TestNewJWTProviderValidatesSecret(t *testing.T) {
	if _, err := NewJWTProvider(JWTProviderConfig{}); !errors.Is(err, ErrJWTMissingSigningKey) {
		t.Fatalf("empty secret error = %v", err)
	}
	if _, err := NewJWTProvider(JWTProviderConfig{Secret: []byte("short")}); !errors.Is(err, ErrJWTWeakSigningKey) {
		t.Fatalf("short secret error = %v", err)
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, clk := newTestProvider(t, nil)

	tok, err := p.Issue(ctx, JWTClaims{Subject: "user-1", Name: "Ada", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if tok.Claims().ID == "" {
		t.Fatalf("Issue() left the token id empty")
	}
	if want := clk.Now().Add(time.Hour); !tok.ExpiresAt().Equal(want) {
		t.Fatalf("ExpiresAt() = %v, want %v", tok.ExpiresAt(), want)
	}
	if strings.Count(tok.Raw(), ".") != 2 {
		t.Fatalf("raw token is not a compact JWS: %q", tok.Raw())
	}

	parsed, err := p.ParseToken(ctx, tok.Raw())
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	got := parsed.Claims()
	if got.Subject != "user-1" || got.Name != "Ada" || got.Role != "admin" || got.Issuer != "scribe" {
		t.Fatalf("unexpected claims: %+v", got)
	}
	if got.ID != tok.Claims().ID {
		t.Fatalf("ID = %q, want %q", got.ID, tok.Claims().ID)
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	if _, err := p.Issue(context.Background(), JWTClaims{Name: "x"}); !errors.Is(err, ErrJWTInvalidClaims) {
		t.Fatalf("Issue() error = %v, want ErrJWTInvalidClaims", err)
	}
}

func TestParseExpiredToken(t *testing.T) {
	ctx := context.Background()
	p, clk := newTestProvider(t, nil)
	tok, err := p.Issue(ctx, JWTClaims{Subject: "u"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	clk.Advance(time.Hour + 10*time.Second)
	if _, err := p.ParseToken(ctx, tok.Raw()); err != nil {
		t.Fatalf("token inside leeway rejected: %v", err)
	}

	clk.Advance(time.Minute)
	if _, err := p.ParseToken(ctx, tok.Raw()); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("ParseToken() error = %v, want ErrJWTExpired", err)
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	other, _ := newTestProvider(t, func(c *JWTProviderConfig) {
		c.Secret = []byte("ffffffffffffffffffffffffffffffff")
	})
	otherIssuer, _ := newTestProvider(t, func(c *JWTProviderConfig) {
		c.Issuer = "someone-else"
	})

	foreign, _ := other.Issue(ctx, JWTClaims{Subject: "u"})
	wrongIss, _ := otherIssuer.Issue(ctx, JWTClaims{Subject: "u"})
	valid, _ := p.Issue(ctx, JWTClaims{Subject: "u"})
	vp := strings.Split(valid.Raw(), ".")
	fp := strings.Split(foreign.Raw(), ".")
	tampered := strings.Join([]string{vp[0], fp[1], vp[2]}, ".")

	for name, raw := range map[string]string{
		"wrong secret": foreign.Raw(),
		"wrong issuer": wrongIss.Raw(),
		"tampered":     tampered,
		"garbage":      "not-a-token",
	} {
		if _, err := p.ParseToken(ctx, raw); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("%s: ParseToken() error = %v, want ErrJWTInvalid", name, err)
		}
	}
}

func TestRevokeDenyListsToken(t *testing.T) {
	ctx := context.Background()
	store, err := memory.NewStore(memory.Options{})
	if err != nil {
		t.Fatalf("memory.NewStore() error = %v", err)
	}
	p, _ := newTestProvider(t, func(c *JWTProviderConfig) { c.Store = store })

	tok, _ := p.Issue(ctx, JWTClaims{Subject: "u"})
	other, _ := p.Issue(ctx, JWTClaims{Subject: "u"})
	if err := p.Revoke(ctx, tok); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	if _, err := p.ParseToken(ctx, tok.Raw()); !errors.Is(err, ErrJWTRevoked) {
		t.Fatalf("ParseToken() after revoke error = %v, want ErrJWTRevoked", err)
	}
	if _, err := p.ParseToken(ctx, other.Raw()); err != nil {
		t.Fatalf("sibling token rejected: %v", err)
	}
}

func TestRevocationFailsOpenWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	inner, err := memory.NewStore(memory.Options{})
	if err != nil {
		t.Fatalf("memory.NewStore() error = %v", err)
	}
	flaky := testutil.NewFlakyStore(inner)
	p, _ := newTestProvider(t, func(c *JWTProviderConfig) { c.Store = flaky })

	tok, _ := p.Issue(ctx, JWTClaims{Subject: "u"})
	flaky.SetFailing(true)

	if _, err := p.ParseToken(ctx, tok.Raw()); err != nil {
		t.Fatalf("ParseToken() with store down error = %v", err)
	}
	if err := p.Revoke(ctx, tok); err == nil {
		t.Fatalf("Revoke() with store down returned nil")
	}
}

func TestRevocationCheckIsBounded(t *testing.T) {
	ctx := context.Background()
	inner, err := memory.NewStore(memory.Options{})
	if err != nil {
		t.Fatalf("memory.NewStore() error = %v", err)
	}
	p, _ := newTestProvider(t, func(c *JWTProviderConfig) {
		c.Store = testutil.SlowStore{Store: inner}
		c.LookupTimeout = 20 * time.Millisecond
	})
	tok, _ := p.Issue(ctx, JWTClaims{Subject: "u"})

	start := time.Now()
	if _, err := p.ParseToken(ctx, tok.Raw()); err != nil {
		t.Fatalf("ParseToken() with a hanging store error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("ParseToken() waited %v on the revocation store", elapsed)
	}
}

func TestRevokeWithoutStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t, nil)
	tok, _ := p.Issue(ctx, JWTClaims{Subject: "u"})
	if err := p.Revoke(ctx, tok); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := p.ParseToken(ctx, tok.Raw()); err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
}
