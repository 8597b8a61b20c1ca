package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"academybot/internal/port"
)

// stubProvider returns scripted results in order, repeating the last one.
type stubProvider struct {
	name    string
	results []stubResult
	calls   int
}

type stubResult struct {
	text string
	err  error
}

func (s *stubProvider) Complete(ctx context.Context, _, _ string, _ port.CompletionParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CallError{Provider: s.name, Kind: FailTimeout, Err: err}
	}
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	res := s.results[i]
	return res.text, res.err
}

func (s *stubProvider) Name() string { return s.name }

func failure(name string, kind FailureKind) error {
	return &CallError{Provider: name, Kind: kind, Err: errors.New("boom")}
}

func newTestRouter(t *testing.T, providers ...*stubProvider) *Router {
	t.Helper()
	r := &Router{
		windowSize:       5,
		failureThreshold: 3,
		cooldown:         60 * time.Second,
		totalBudget:      20 * time.Second,
		now:              time.Now,
		log:              zap.NewNop(),
	}
	for _, p := range providers {
		r.addProvider(p, time.Second)
	}
	return r
}

func TestRouterFirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{{text: "from primary"}}}
	backup := &stubProvider{name: "backup", results: []stubResult{{text: "from backup"}}}
	r := newTestRouter(t, primary, backup)

	text, name, err := r.Complete(context.Background(), "", "hello", port.CompletionParams{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "from primary" || name != "primary" {
		t.Errorf("expected primary, got %q from %q", text, name)
	}
	if backup.calls != 0 {
		t.Errorf("backup should not have been called, got %d calls", backup.calls)
	}
}

func TestRouterFallsBackOnFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{{err: failure("primary", FailServerError)}}}
	backup := &stubProvider{name: "backup", results: []stubResult{{text: "from backup"}}}
	r := newTestRouter(t, primary, backup)

	text, name, err := r.Complete(context.Background(), "", "hello", port.CompletionParams{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "from backup" || name != "backup" {
		t.Errorf("expected backup, got %q from %q", text, name)
	}
}

func TestRouterExhaustion(t *testing.T) {
	p1 := &stubProvider{name: "p1", results: []stubResult{{err: failure("p1", FailServerError)}}}
	p2 := &stubProvider{name: "p2", results: []stubResult{{err: failure("p2", FailTimeout)}}}
	r := newTestRouter(t, p1, p2)

	_, _, err := r.Complete(context.Background(), "", "hello", port.CompletionParams{})
	if !errors.Is(err, ErrProvidersUnavailable) {
		t.Errorf("expected ErrProvidersUnavailable, got %v", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := newTestRouter(t)
	if r.Available() {
		t.Error("expected no providers available")
	}
	_, _, err := r.Complete(context.Background(), "", "hello", port.CompletionParams{})
	if !errors.Is(err, ErrProvidersUnavailable) {
		t.Errorf("expected ErrProvidersUnavailable, got %v", err)
	}
}

func TestRouterHealthWindowAndCooldown(t *testing.T) {
	fail := &stubProvider{name: "flaky", results: []stubResult{
		{err: failure("flaky", FailServerError)},
		{err: failure("flaky", FailServerError)},
		{err: failure("flaky", FailServerError)},
		{text: "recovered"},
	}}
	backup := &stubProvider{name: "backup", results: []stubResult{{text: "from backup"}}}
	r := newTestRouter(t, fail, backup)

	current := time.Now()
	r.now = func() time.Time { return current }

	// Three failing requests; each falls back to backup.
	for i := 0; i < 3; i++ {
		_, name, err := r.Complete(context.Background(), "", "q", port.CompletionParams{})
		if err != nil || name != "backup" {
			t.Fatalf("request %d: name=%q err=%v", i, name, err)
		}
	}
	if fail.calls != 3 {
		t.Fatalf("expected 3 attempts against flaky, got %d", fail.calls)
	}

	// Unhealthy now: flaky is skipped entirely during cooldown.
	_, name, err := r.Complete(context.Background(), "", "q", port.CompletionParams{})
	if err != nil || name != "backup" {
		t.Fatalf("expected backup during cooldown, got name=%q err=%v", name, err)
	}
	if fail.calls != 3 {
		t.Errorf("flaky should be skipped during cooldown, got %d calls", fail.calls)
	}

	// Cooldown elapses; next request probes flaky, which succeeds and resets.
	current = current.Add(61 * time.Second)
	text, name, err := r.Complete(context.Background(), "", "q", port.CompletionParams{})
	if err != nil || name != "flaky" || text != "recovered" {
		t.Fatalf("expected probe success, got text=%q name=%q err=%v", text, name, err)
	}

	health := r.Health()
	if !health[0].Healthy || health[0].Failures != 0 {
		t.Errorf("expected reset health after probe, got %+v", health[0])
	}
}

func TestRouterSingleProbeAfterCooldown(t *testing.T) {
	flaky := &stubProvider{name: "flaky", results: []stubResult{{text: "ok"}}}
	r := newTestRouter(t, flaky)

	current := time.Now()
	r.now = func() time.Time { return current }
	rp := r.providers[0]
	rp.cooldownUntil = current.Add(-time.Second) // cooldown just expired

	// The first caller claims the probe slot; a concurrent caller checking
	// before the probe resolves is turned away.
	if !r.attemptAllowed(rp) {
		t.Fatal("expected the probe attempt to be allowed")
	}
	if r.attemptAllowed(rp) {
		t.Error("second attempt should be blocked while the probe is in flight")
	}

	// A successful probe reopens the provider for everyone.
	r.recordSuccess(rp)
	if !r.attemptAllowed(rp) || !r.attemptAllowed(rp) {
		t.Error("healthy provider must not be limited to one attempt")
	}
}

func TestRouterAuthFailureIsTerminal(t *testing.T) {
	bad := &stubProvider{name: "bad", results: []stubResult{{err: failure("bad", FailAuth)}}}
	backup := &stubProvider{name: "backup", results: []stubResult{{text: "ok"}}}
	r := newTestRouter(t, bad, backup)

	current := time.Now()
	r.now = func() time.Time { return current }

	if _, _, err := r.Complete(context.Background(), "", "q", port.CompletionParams{}); err != nil {
		t.Fatal(err)
	}

	// Even far past any cooldown the provider stays down.
	current = current.Add(time.Hour)
	if _, _, err := r.Complete(context.Background(), "", "q", port.CompletionParams{}); err != nil {
		t.Fatal(err)
	}
	if bad.calls != 1 {
		t.Errorf("auth-failed provider should not be retried, got %d calls", bad.calls)
	}

	health := r.Health()
	if !health[0].AuthDown {
		t.Errorf("expected AuthDown, got %+v", health[0])
	}
}

func TestRouterRateLimitHonorsRetryAfter(t *testing.T) {
	limited := &stubProvider{name: "limited", results: []stubResult{
		{err: &CallError{Provider: "limited", Kind: FailRateLimit, RetryAfter: 10 * time.Second, Err: errors.New("429")}},
		{text: "after limit"},
	}}
	backup := &stubProvider{name: "backup", results: []stubResult{{text: "ok"}}}
	r := newTestRouter(t, limited, backup)

	current := time.Now()
	r.now = func() time.Time { return current }

	if _, name, _ := r.Complete(context.Background(), "", "q", port.CompletionParams{}); name != "backup" {
		t.Fatalf("expected backup while rate limited, got %q", name)
	}

	// Still inside the retry-after window.
	current = current.Add(5 * time.Second)
	if _, name, _ := r.Complete(context.Background(), "", "q", port.CompletionParams{}); name != "backup" {
		t.Fatalf("expected backup inside retry-after, got %q", name)
	}
	if limited.calls != 1 {
		t.Errorf("rate-limited provider retried too early: %d calls", limited.calls)
	}

	current = current.Add(6 * time.Second)
	if _, name, _ := r.Complete(context.Background(), "", "q", port.CompletionParams{}); name != "limited" {
		t.Errorf("expected limited provider after retry-after, got %q", name)
	}
}

func TestRouterPropagatesCancellation(t *testing.T) {
	slow := &stubProvider{name: "slow", results: []stubResult{{text: "never"}}}
	r := newTestRouter(t, slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Complete(ctx, "", "q", port.CompletionParams{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCallErrorFormatting(t *testing.T) {
	err := &CallError{Provider: "p", Kind: FailTimeout, Err: fmt.Errorf("deadline")}
	if err.Error() != "provider p: timeout: deadline" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose inner error")
	}
}
