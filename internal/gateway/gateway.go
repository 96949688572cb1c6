// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
)

const breakerName = "rating-surface"

// Options tunes the gateway's resilience behavior. Zero values fall
// back to conservative defaults.
type Options struct {
	StoreURL            string
	MaxRetries          int
	RetryDelay          time.Duration
	AvailabilityTTL     time.Duration
	RatePerMinute       int
	FallbackOnAllErrors bool
	FallbackAlert       bool
}

func (o *Options) applyDefaults() {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.AvailabilityTTL <= 0 {
		o.AvailabilityTTL = 5 * time.Minute
	}
	if o.RatePerMinute < 1 {
		o.RatePerMinute = 6
	}
}

// Gateway is the resilient front to the native rating surface.
type Gateway struct {
	surface RatingSurface
	cfg     *config.Manager
	opts    Options

	breaker *gobreaker.CircuitBreaker[models.ReviewAction]
	limiter *rate.Limiter

	inFlight atomic.Bool

	mu          sync.Mutex
	availValue  bool
	availAt     time.Time
	lastRequest time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a gateway over the given rating surface. The config
// manager is consulted per request for the simulate-errors override.
func New(surface RatingSurface, cfg *config.Manager, opts Options) *Gateway {
	opts.applyDefaults()

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.ReviewAction](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Rating surface breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Gateway{
		surface: surface,
		cfg:     cfg,
		opts:    opts,
		breaker: cb,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute),
		now:     time.Now,
	}
}

// IsAvailable reports whether the native review flow can be shown. The
// answer is cached for the configured TTL; probe errors are treated as
// unavailable and never propagated.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	g.mu.Lock()
	if !g.availAt.IsZero() && g.now().Sub(g.availAt) < g.opts.AvailabilityTTL {
		v := g.availValue
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	available, err := g.surface.Available(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Availability probe failed, treating as unavailable")
		available = false
	}

	g.mu.Lock()
	g.availValue = available
	g.availAt = g.now()
	g.mu.Unlock()
	return available
}

// LastRequest returns when the gateway last finished a review request.
func (g *Gateway) LastRequest() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRequest
}

// RequestReview runs the full review invocation sequence. It never
// returns an error: every failure mode maps onto a ReviewResult the
// orchestrator can act on.
func (g *Gateway) RequestReview(ctx context.Context) models.ReviewResult {
	if !g.inFlight.CompareAndSwap(false, true) {
		metrics.GatewayRequests.WithLabelValues("rejected_in_flight").Inc()
		return errorResult(models.ErrUnknown, "review request already in progress")
	}
	defer func() {
		g.mu.Lock()
		g.lastRequest = g.now()
		g.mu.Unlock()
		g.inFlight.Store(false)
	}()

	if o, ok := g.cfg.Overrides(); ok && o.SimulateErrors {
		metrics.GatewayRequests.WithLabelValues("simulated_error").Inc()
		return errorResult(models.ErrUnknown, "simulated error (developer override)")
	}

	if !g.IsAvailable(ctx) {
		metrics.GatewayRequests.WithLabelValues("not_available").Inc()
		return models.ReviewResult{Success: false, Action: models.ReviewNotAvailable}
	}

	if !g.limiter.Allow() {
		failure := g.newFailure(models.ErrAPIRateLimit, "local rate limit exceeded", nil)
		metrics.GatewayErrors.WithLabelValues(string(failure.Type)).Inc()
		metrics.GatewayRequests.WithLabelValues("rate_limited").Inc()
		return errorResult(failure.Type, failure.Error())
	}

	return g.requestWithRetry(ctx)
}

// requestWithRetry drives the native call through the breaker with the
// per-category retry policy, ending in the store fallback when retries
// are exhausted on a fallback-eligible category.
func (g *Gateway) requestWithRetry(ctx context.Context) models.ReviewResult {
	delay := g.opts.RetryDelay
	attempts := g.opts.MaxRetries + 1

	var failure *models.ReviewFailure
	for attempt := 1; attempt <= attempts; attempt++ {
		action, err := g.breaker.Execute(func() (models.ReviewAction, error) {
			return g.surface.RequestReview(ctx)
		})
		if err == nil {
			metrics.GatewayRequests.WithLabelValues(strings.ToLower(string(action))).Inc()
			return models.ReviewResult{Success: true, Action: action}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Rating surface breaker rejected request")
			metrics.GatewayRequests.WithLabelValues("rejected_breaker").Inc()
			return models.ReviewResult{Success: false, Action: models.ReviewNotAvailable}
		}

		failure = g.categorize(err)
		metrics.GatewayErrors.WithLabelValues(string(failure.Type)).Inc()
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("error_type", string(failure.Type)).
			Int("attempt", attempt).
			Msg("Native review request failed")

		if !failure.Retryable() {
			break
		}
		if attempt == attempts {
			break
		}

		metrics.GatewayRetries.Inc()
		if err := waitRetry(ctx, delay); err != nil {
			metrics.GatewayRequests.WithLabelValues("canceled").Inc()
			return errorResult(models.ErrUnknown, fmt.Sprintf("canceled while retrying: %v", err))
		}
		delay *= 2
	}

	if failure.Retryable() || g.opts.FallbackOnAllErrors {
		metrics.GatewayFallbacks.Inc()
		metrics.GatewayRequests.WithLabelValues("store_fallback").Inc()
		if err := g.OpenStoreListing(ctx); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Store listing fallback failed")
		}
		return models.ReviewResult{
			Success:   false,
			Action:    models.ReviewNotAvailable,
			ErrorType: failure.Type,
			Err:       failure.Error(),
		}
	}

	metrics.GatewayRequests.WithLabelValues("error").Inc()
	return errorResult(failure.Type, failure.Error())
}

// OpenStoreListing opens the configured store page; on a missing URL or
// a bridge failure it degrades to the generic rate-us alert when
// fallback alerting is enabled.
func (g *Gateway) OpenStoreListing(ctx context.Context) error {
	var openErr error
	if g.opts.StoreURL == "" {
		openErr = errors.New("no store URL configured")
	} else {
		openErr = g.surface.OpenStoreListing(ctx, g.opts.StoreURL)
	}
	if openErr == nil {
		return nil
	}

	if !g.opts.FallbackAlert {
		return fmt.Errorf("open store listing: %w", openErr)
	}
	if err := g.surface.ShowRateUsAlert(ctx); err != nil {
		return fmt.Errorf("open store listing (%v) and rate-us alert both failed: %w", openErr, err)
	}
	logging.Ctx(ctx).Info().Err(openErr).Msg("Store listing unavailable, showed rate-us alert instead")
	return nil
}

// categorize maps a raw native error onto an ErrorType by message
// content, mirroring how the platform reports these conditions.
func (g *Gateway) categorize(err error) *models.ReviewFailure {
	msg := strings.ToLower(err.Error())
	var t models.ErrorType
	switch {
	case strings.Contains(msg, "play services") || strings.Contains(msg, "play_services") ||
		strings.Contains(msg, "service unavailable"):
		t = models.ErrPlayServicesUnavailable
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "no such host"):
		t = models.ErrNetwork
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota"):
		t = models.ErrAPIRateLimit
	default:
		t = models.ErrUnknown
	}
	return g.newFailure(t, err.Error(), err)
}

func (g *Gateway) newFailure(t models.ErrorType, msg string, cause error) *models.ReviewFailure {
	return &models.ReviewFailure{
		Type:        t,
		Message:     msg,
		OriginalErr: cause,
		Context:     "requestReview",
		Timestamp:   g.now(),
	}
}

// waitRetry sleeps for the delay unless the context ends first.
func waitRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorResult(t models.ErrorType, msg string) models.ReviewResult {
	return models.ReviewResult{Success: false, Action: models.ReviewError, ErrorType: t, Err: msg}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
