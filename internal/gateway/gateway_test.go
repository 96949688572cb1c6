// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/models"
	"github.com/mealprint/reviewpulse/internal/store"
)

// fakeSurface is a scriptable RatingSurface.
type fakeSurface struct {
	mu sync.Mutex

	available    bool
	availableErr error
	reviewAction models.ReviewAction
	reviewErr    error

	availableCalls int32
	reviewCalls    int32
	storeCalls     int32
	alertCalls     int32

	storeErr error
	release  chan struct{}
}

func (f *fakeSurface) Available(context.Context) (bool, error) {
	atomic.AddInt32(&f.availableCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available, f.availableErr
}

func (f *fakeSurface) RequestReview(context.Context) (models.ReviewAction, error) {
	atomic.AddInt32(&f.reviewCalls, 1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reviewAction, f.reviewErr
}

func (f *fakeSurface) OpenStoreListing(context.Context, string) error {
	atomic.AddInt32(&f.storeCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeErr
}

func (f *fakeSurface) ShowRateUsAlert(context.Context) error {
	atomic.AddInt32(&f.alertCalls, 1)
	return nil
}

func newTestGateway(t *testing.T, surface RatingSurface, opts Options) (*Gateway, *config.Manager) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.NewManager(s)
	if err := cfg.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize config: %v", err)
	}
	if opts.StoreURL == "" {
		opts.StoreURL = "https://play.example/store/apps/details?id=com.mealprint.app"
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	return New(surface, cfg, opts), cfg
}

func TestRequestReviewCompleted(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{available: true, reviewAction: models.ReviewCompleted}
	g, _ := newTestGateway(t, surface, Options{})

	res := g.RequestReview(context.Background())
	if !res.Success || res.Action != models.ReviewCompleted {
		t.Errorf("result = %+v, want COMPLETED", res)
	}
	if g.LastRequest().IsZero() {
		t.Error("last-request timestamp not recorded")
	}
}

func TestRequestReviewDismissed(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{available: true, reviewAction: models.ReviewDismissed}
	g, _ := newTestGateway(t, surface, Options{})

	res := g.RequestReview(context.Background())
	if !res.Success || res.Action != models.ReviewDismissed {
		t.Errorf("result = %+v, want DISMISSED", res)
	}
}

func TestNotAvailableShortCircuits(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{available: false}
	g, _ := newTestGateway(t, surface, Options{})

	res := g.RequestReview(context.Background())
	if res.Action != models.ReviewNotAvailable {
		t.Errorf("action = %s, want NOT_AVAILABLE", res.Action)
	}
	if atomic.LoadInt32(&surface.reviewCalls) != 0 {
		t.Error("native request made despite unavailability")
	}
}

func TestAvailabilityIsCached(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{available: true}
	g, _ := newTestGateway(t, surface, Options{AvailabilityTTL: time.Hour})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if !g.IsAvailable(ctx) {
			t.Fatal("availability false")
		}
	}
	if calls := atomic.LoadInt32(&surface.availableCalls); calls != 1 {
		t.Errorf("probe calls = %d, want 1 within TTL", calls)
	}
}

func TestAvailabilityProbeErrorMeansUnavailable(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{availableErr: errors.New("bridge down")}
	g, _ := newTestGateway(t, surface, Options{})

	if g.IsAvailable(context.Background()) {
		t.Error("probe error reported as available")
	}
}

func TestSingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	surface := &fakeSurface{available: true, reviewAction: models.ReviewCompleted, release: release}
	g, _ := newTestGateway(t, surface, Options{})

	ctx := context.Background()
	firstDone := make(chan models.ReviewResult, 1)
	go func() { firstDone <- g.RequestReview(ctx) }()

	// Wait until the first call holds the native layer.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&surface.reviewCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("first request never reached the native layer")
		case <-time.After(time.Millisecond):
		}
	}

	second := g.RequestReview(ctx)
	if second.Action != models.ReviewError {
		t.Errorf("second action = %s, want ERROR", second.Action)
	}
	if !containsFold(second.Err, "already in progress") {
		t.Errorf("second error = %q, want already-in-progress", second.Err)
	}

	close(release)
	first := <-firstDone
	if !first.Success {
		t.Errorf("first result = %+v, want success", first)
	}
	if calls := atomic.LoadInt32(&surface.reviewCalls); calls != 1 {
		t.Errorf("native invocations = %d, want exactly 1", calls)
	}
}

func TestRetryableErrorRetriesThenFallsBack(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{
		available: true,
		reviewErr: errors.New("play services not installed"),
	}
	g, _ := newTestGateway(t, surface, Options{MaxRetries: 2})

	res := g.RequestReview(context.Background())
	if res.Action != models.ReviewNotAvailable {
		t.Errorf("action = %s, want NOT_AVAILABLE after fallback", res.Action)
	}
	if calls := atomic.LoadInt32(&surface.reviewCalls); calls != 3 {
		t.Errorf("native attempts = %d, want 3 (1 + 2 retries)", calls)
	}
	if atomic.LoadInt32(&surface.storeCalls) != 1 {
		t.Error("store-listing fallback not invoked")
	}
}

func TestNetworkErrorSurfacesWithoutRetry(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{
		available: true,
		reviewErr: errors.New("network unreachable"),
	}
	g, _ := newTestGateway(t, surface, Options{MaxRetries: 3})

	res := g.RequestReview(context.Background())
	if res.Action != models.ReviewError {
		t.Errorf("action = %s, want ERROR", res.Action)
	}
	if calls := atomic.LoadInt32(&surface.reviewCalls); calls != 1 {
		t.Errorf("native attempts = %d, want 1 (no retry)", calls)
	}
	if atomic.LoadInt32(&surface.storeCalls) != 0 {
		t.Error("store fallback invoked for a network error")
	}
}

func TestFallbackOnAllErrorsKnob(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{
		available: true,
		reviewErr: errors.New("network unreachable"),
	}
	g, _ := newTestGateway(t, surface, Options{MaxRetries: 1, FallbackOnAllErrors: true})

	res := g.RequestReview(context.Background())
	if res.Action != models.ReviewNotAvailable {
		t.Errorf("action = %s, want NOT_AVAILABLE via widened fallback", res.Action)
	}
	if calls := atomic.LoadInt32(&surface.reviewCalls); calls != 1 {
		t.Errorf("native attempts = %d, want 1 (the knob widens fallback, not retry)", calls)
	}
	if atomic.LoadInt32(&surface.storeCalls) != 1 {
		t.Error("store fallback not invoked")
	}
}

func TestSimulateErrorsOverride(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{available: true, reviewAction: models.ReviewCompleted}
	g, cfg := newTestGateway(t, surface, Options{})

	if _, err := cfg.SetDevOverrides(context.Background(), models.DevOverrides{SimulateErrors: true}); err != nil {
		t.Fatalf("set overrides: %v", err)
	}

	res := g.RequestReview(context.Background())
	if res.Action != models.ReviewError || !containsFold(res.Err, "simulated") {
		t.Errorf("result = %+v, want simulated ERROR", res)
	}
	if atomic.LoadInt32(&surface.reviewCalls) != 0 {
		t.Error("native layer touched under simulate-errors")
	}
}

func TestOpenStoreListingAlertFallback(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{storeErr: errors.New("no browser")}
	g, _ := newTestGateway(t, surface, Options{FallbackAlert: true})

	if err := g.OpenStoreListing(context.Background()); err != nil {
		t.Fatalf("open store listing: %v", err)
	}
	if atomic.LoadInt32(&surface.alertCalls) != 1 {
		t.Error("rate-us alert not shown after store failure")
	}
}

func TestErrorCategorization(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{}
	g, _ := newTestGateway(t, surface, Options{})

	tests := []struct {
		msg  string
		want models.ErrorType
	}{
		{"Play Services not installed", models.ErrPlayServicesUnavailable},
		{"network unreachable", models.ErrNetwork},
		{"request timeout waiting for bridge", models.ErrNetwork},
		{"quota exceeded: rate limit", models.ErrAPIRateLimit},
		{"something inexplicable", models.ErrUnknown},
	}
	for _, tt := range tests {
		got := g.categorize(errors.New(tt.msg))
		if got.Type != tt.want {
			t.Errorf("categorize(%q) = %s, want %s", tt.msg, got.Type, tt.want)
		}
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
