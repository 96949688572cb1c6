// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mealprint/reviewpulse/internal/logging"
)

// RunGC runs Badger value-log garbage collection until the context is
// canceled. Intended to run as a supervised service; it returns the
// context error on shutdown so the supervisor sees a clean stop.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.gcOnce(ctx)
		}
	}
}

// gcOnce runs one GC pass. ErrNoRewrite just means there was nothing
// worth compacting.
func (s *Store) gcOnce(ctx context.Context) {
	err := s.db.RunValueLogGC(0.5)
	switch {
	case err == nil:
		logging.Ctx(ctx).Debug().Msg("Badger value log GC completed")
	case errors.Is(err, badger.ErrNoRewrite):
		// Nothing to collect.
	default:
		logging.Ctx(ctx).Warn().Err(err).Msg("Badger value log GC failed")
	}
}
