// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/mealprint/reviewpulse/internal/models"
)

// RatingSurface is the outbound contract to the platform's native
// rating layer. Implementations must be safe for concurrent use.
type RatingSurface interface {
	// Available probes whether the native in-app review flow can be
	// shown right now.
	Available(ctx context.Context) (bool, error)

	// RequestReview runs the native review flow and reports how it
	// ended: COMPLETED when the flow finished, DISMISSED when the user
	// declined it.
	RequestReview(ctx context.Context) (models.ReviewAction, error)

	// OpenStoreListing opens the app's store page at the given URL.
	OpenStoreListing(ctx context.Context, url string) error

	// ShowRateUsAlert presents a generic rate-us prompt, used as the
	// last fallback when the store listing cannot be opened.
	ShowRateUsAlert(ctx context.Context) error
}

// BridgeClient talks to the mobile shell's localhost bridge over HTTP.
// The shell owns the actual platform calls; this client only carries
// the request/response envelopes.
type BridgeClient struct {
	baseURL string
	client  *http.Client
}

// NewBridgeClient creates a client for the shell bridge. The timeout
// bounds each individual bridge call, not a retry sequence.
func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BridgeClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type reviewResponse struct {
	Declined bool   `json:"declined"`
	Error    string `json:"error,omitempty"`
}

// Available implements RatingSurface.
func (b *BridgeClient) Available(ctx context.Context) (bool, error) {
	var out availabilityResponse
	if err := b.call(ctx, http.MethodGet, "/bridge/v1/review/availability", nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// RequestReview implements RatingSurface.
func (b *BridgeClient) RequestReview(ctx context.Context) (models.ReviewAction, error) {
	var out reviewResponse
	if err := b.call(ctx, http.MethodPost, "/bridge/v1/review/request", nil, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("bridge review failed: %s", out.Error)
	}
	if out.Declined {
		return models.ReviewDismissed, nil
	}
	return models.ReviewCompleted, nil
}

// OpenStoreListing implements RatingSurface.
func (b *BridgeClient) OpenStoreListing(ctx context.Context, url string) error {
	body := map[string]string{"url": url}
	return b.call(ctx, http.MethodPost, "/bridge/v1/review/open-store", body, nil)
}

// ShowRateUsAlert implements RatingSurface.
func (b *BridgeClient) ShowRateUsAlert(ctx context.Context) error {
	return b.call(ctx, http.MethodPost, "/bridge/v1/review/rate-us-alert", nil, nil)
}

// call performs one bridge round-trip with JSON envelopes.
func (b *BridgeClient) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal bridge request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("bridge call %s: rate limit exceeded", path)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge call %s: status %d: %s", path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}
