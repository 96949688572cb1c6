// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package services

import (
	"context"
	"time"

	"github.com/mealprint/reviewpulse/internal/store"
)

// GCService runs the store's value-log garbage collection loop under
// supervision.
type GCService struct {
	store    *store.Store
	interval time.Duration
}

// NewGCService wraps the store's GC loop.
func NewGCService(s *store.Store, interval time.Duration) *GCService {
	return &GCService{store: s, interval: interval}
}

// Serve implements suture.Service.
func (g *GCService) Serve(ctx context.Context) error {
	return g.store.RunGC(ctx, g.interval)
}

// String implements fmt.Stringer for suture's log messages.
func (g *GCService) String() string {
	return "badger-gc"
}
