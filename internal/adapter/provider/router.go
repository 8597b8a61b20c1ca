package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"academybot/config"
	"academybot/internal/port"
)

// Router dispatches completions to an ordered list of providers with health
// tracking and fallback. It holds no request content; its only state is the
// per-provider health table.
type Router struct {
	providers []*routedProvider

	windowSize       int
	failureThreshold int
	cooldown         time.Duration
	totalBudget      time.Duration

	mu  sync.Mutex
	now func() time.Time
	log *zap.Logger
}

type routedProvider struct {
	provider port.Provider
	timeout  time.Duration

	// Outcome ring: true marks a failure. Guarded by Router.mu.
	window        []bool
	pos           int
	filled        int
	authDown      bool
	cooldownUntil time.Time
}

// ProviderHealth is a snapshot of one provider's health state.
type ProviderHealth struct {
	Name          string
	Healthy       bool
	Failures      int
	AuthDown      bool
	CooldownUntil time.Time
}

// NewRouter builds a router from provider configs, in priority order.
// Providers whose credentials are missing are skipped with a warning so the
// rest of the pipeline still works.
func NewRouter(cfgs []config.ProviderConfig, rcfg config.RouterConfig, log *zap.Logger) *Router {
	r := &Router{
		windowSize:       rcfg.WindowSize,
		failureThreshold: rcfg.FailureThreshold,
		cooldown:         time.Duration(rcfg.CooldownSecs) * time.Second,
		totalBudget:      time.Duration(rcfg.TotalBudgetSecs) * time.Second,
		now:              time.Now,
		log:              log,
	}
	if r.windowSize <= 0 {
		r.windowSize = 5
	}
	if r.failureThreshold <= 0 {
		r.failureThreshold = 3
	}
	if r.cooldown <= 0 {
		r.cooldown = 60 * time.Second
	}
	if r.totalBudget <= 0 {
		r.totalBudget = 20 * time.Second
	}

	for _, cfg := range cfgs {
		p, err := newProvider(cfg)
		if err != nil {
			log.Warn("skipping provider", zap.String("provider", cfg.Name), zap.Error(err))
			continue
		}
		timeout := time.Duration(cfg.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		r.addProvider(p, timeout)
	}

	return r
}

// newProvider builds one provider by kind.
func newProvider(cfg config.ProviderConfig) (port.Provider, error) {
	switch cfg.Kind {
	case "openai", "groq":
		return NewOpenAIProvider(cfg)
	case "gemini":
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}

// addProvider appends a provider to the routing order.
func (r *Router) addProvider(p port.Provider, timeout time.Duration) {
	r.providers = append(r.providers, &routedProvider{
		provider: p,
		timeout:  timeout,
		window:   make([]bool, r.windowSize),
	})
}

// Available reports whether any provider is configured.
func (r *Router) Available() bool {
	return len(r.providers) > 0
}

// Complete tries providers in order until one succeeds. It returns the
// generated text and the name of the provider that produced it. The whole
// call is bounded by the router's total budget; caller cancellation is
// returned verbatim.
func (r *Router) Complete(ctx context.Context, systemPrompt, userPrompt string, params port.CompletionParams) (string, string, error) {
	if len(r.providers) == 0 {
		return "", "", ErrProvidersUnavailable
	}

	budgetCtx, cancel := context.WithTimeout(ctx, r.totalBudget)
	defer cancel()

	for _, rp := range r.providers {
		if !r.attemptAllowed(rp) {
			continue
		}

		attemptCtx, attemptCancel := context.WithTimeout(budgetCtx, rp.timeout)
		text, err := rp.provider.Complete(attemptCtx, systemPrompt, userPrompt, params)
		attemptCancel()

		if err == nil {
			r.recordSuccess(rp)
			return text, rp.provider.Name(), nil
		}

		r.recordFailure(rp, err)
		r.log.Warn("provider attempt failed",
			zap.String("provider", rp.provider.Name()),
			zap.Error(err))

		// Caller cancellation propagates verbatim.
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		if budgetCtx.Err() != nil {
			break
		}
	}

	return "", "", ErrProvidersUnavailable
}

// attemptAllowed reports whether the provider may be tried now. A provider
// in cooldown becomes eligible again when the window expires; the first call
// after expiry claims the probe slot by pushing the cooldown forward, so
// concurrent requests keep falling through until the probe resolves.
func (r *Router) attemptAllowed(rp *routedProvider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rp.authDown {
		return false
	}
	now := r.now()
	if now.Before(rp.cooldownUntil) {
		return false
	}
	if !rp.cooldownUntil.IsZero() {
		rp.cooldownUntil = now.Add(r.cooldown)
	}
	return true
}

// recordSuccess clears the provider's failure window and cooldown.
func (r *Router) recordSuccess(rp *routedProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rp.window = make([]bool, r.windowSize)
	rp.pos = 0
	rp.filled = 0
	rp.cooldownUntil = time.Time{}
}

// recordFailure updates health state according to the failure kind.
func (r *Router) recordFailure(rp *routedProvider, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var callErr *CallError
	if !errors.As(err, &callErr) {
		callErr = &CallError{Kind: FailServerError, Err: err}
	}

	switch callErr.Kind {
	case FailAuth:
		// Terminal until configuration changes.
		rp.authDown = true
		return
	case FailRateLimit:
		retryAfter := callErr.RetryAfter
		if retryAfter <= 0 {
			retryAfter = r.cooldown
		}
		rp.cooldownUntil = r.now().Add(retryAfter)
		return
	}

	// timeout, server_error and bad_response count toward the window.
	rp.window[rp.pos] = true
	rp.pos = (rp.pos + 1) % r.windowSize
	if rp.filled < r.windowSize {
		rp.filled++
	}

	if r.failureCount(rp) >= r.failureThreshold {
		rp.cooldownUntil = r.now().Add(r.cooldown)
	}
}

func (r *Router) failureCount(rp *routedProvider) int {
	var n int
	for _, failed := range rp.window[:rp.filled] {
		if failed {
			n++
		}
	}
	return n
}

// Health returns a snapshot of every provider's health state, in routing
// order.
func (r *Router) Health() []ProviderHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for _, rp := range r.providers {
		failures := r.failureCount(rp)
		out = append(out, ProviderHealth{
			Name:          rp.provider.Name(),
			Healthy:       !rp.authDown && r.now().After(rp.cooldownUntil),
			Failures:      failures,
			AuthDown:      rp.authDown,
			CooldownUntil: rp.cooldownUntil,
		})
	}
	return out
}
