// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/metrics"
	"github.com/mealprint/reviewpulse/internal/models"
)

// Fixed keys for the two durable records.
const (
	keyUserMetrics    = "review:user_metrics"
	keyReviewSettings = "review:review_settings"
	probeKeyPrefix    = "review:probe:"
)

// Store is the BadgerDB-backed metrics & settings store.
type Store struct {
	db *badger.DB

	mu       sync.RWMutex
	metrics  *models.UserMetrics
	settings *models.ReviewSettings
	lastLoad time.Duration
	lastSave time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// Open opens (or creates) a BadgerDB at dir and returns a store on top
// of it. Badger's own logger is silenced; store-level events go through
// internal/logging.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return New(db), nil
}

// New creates a store on an already-open BadgerDB. The caller keeps
// ownership of the DB only if it was not created via Open.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying BadgerDB for maintenance (GC service).
func (s *Store) DB() *badger.DB {
	return s.db
}

// Load eagerly loads both records into the cache. Unlike the getters,
// it is strict about storage-level failures: the trigger engine's
// initialize path must know the medium is broken rather than silently
// operate on defaults. Malformed payloads are still sanitized, not
// failed - corruption is a data problem, not a medium problem.
func (s *Store) Load(ctx context.Context) error {
	start := s.now()
	m, err := s.readMetrics(ctx)
	if err != nil {
		return fmt.Errorf("load user metrics: %w", err)
	}
	cfg, err := s.readSettings(ctx)
	if err != nil {
		return fmt.Errorf("load review settings: %w", err)
	}

	s.mu.Lock()
	s.metrics = &m
	s.settings = &cfg
	s.lastLoad = s.now().Sub(start)
	s.mu.Unlock()
	return nil
}

// Timings reports the durations of the most recent full load and the
// most recent durable write. Zero means the operation has not run yet.
func (s *Store) Timings() (load, save time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLoad, s.lastSave
}

// UserMetrics returns the cached metrics record, loading it on first
// access. Failures degrade to a fully-defaulted record and are
// reported, never returned.
func (s *Store) UserMetrics(ctx context.Context) models.UserMetrics {
	s.mu.RLock()
	if s.metrics != nil {
		out := s.metrics.Clone()
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	m, err := s.readMetrics(ctx)
	if err != nil {
		metrics.StoreLoadFailures.WithLabelValues("user_metrics").Inc()
		logging.Ctx(ctx).Error().Err(err).Msg("User metrics load failed, using defaults")
		return models.NewUserMetrics(s.now())
	}

	s.mu.Lock()
	s.metrics = &m
	out := m.Clone()
	s.mu.Unlock()
	return out
}

// ReviewSettings returns the cached settings record, loading it on
// first access. Same degradation policy as UserMetrics.
func (s *Store) ReviewSettings(ctx context.Context) models.ReviewSettings {
	s.mu.RLock()
	if s.settings != nil {
		out := s.settings.Clone()
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	cfg, err := s.readSettings(ctx)
	if err != nil {
		metrics.StoreLoadFailures.WithLabelValues("review_settings").Inc()
		logging.Ctx(ctx).Error().Err(err).Msg("Review settings load failed, using defaults")
		return models.DefaultReviewSettings()
	}

	s.mu.Lock()
	s.settings = &cfg
	out := cfg.Clone()
	s.mu.Unlock()
	return out
}

// UpdateUserMetrics merges the patch onto the current record, writes
// the merged result durably, and refreshes the cache. Returns the
// merged record. A durable-write failure is returned and the cache is
// left untouched.
func (s *Store) UpdateUserMetrics(ctx context.Context, patch models.MetricsPatch) (models.UserMetrics, error) {
	start := s.now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("update", "user_metrics").Observe(s.now().Sub(start).Seconds())
	}()

	merged := s.UserMetrics(ctx)
	patch.Apply(&merged)

	if err := s.writeRecord(keyUserMetrics, merged); err != nil {
		return models.UserMetrics{}, fmt.Errorf("write user metrics: %w", err)
	}

	s.mu.Lock()
	cached := merged.Clone()
	s.metrics = &cached
	s.mu.Unlock()
	return merged, nil
}

// UpdateReviewSettings merges the patch onto the current record, writes
// it durably, and refreshes the cache. No clamping happens here; the
// configuration manager sanitizes patches before they reach the store.
func (s *Store) UpdateReviewSettings(ctx context.Context, patch models.SettingsPatch) (models.ReviewSettings, error) {
	start := s.now()
	defer func() {
		metrics.StoreOperationDuration.WithLabelValues("update", "review_settings").Observe(s.now().Sub(start).Seconds())
	}()

	merged := s.ReviewSettings(ctx)
	applySettingsPatch(&merged, patch)

	if err := s.writeRecord(keyReviewSettings, merged); err != nil {
		return models.ReviewSettings{}, fmt.Errorf("write review settings: %w", err)
	}

	s.mu.Lock()
	cached := merged.Clone()
	s.settings = &cached
	s.mu.Unlock()
	return merged, nil
}

// IsAvailable probes the durable layer with a self-contained
// write/read/delete cycle. It never returns an error; an unusable
// medium is simply reported as false.
func (s *Store) IsAvailable(ctx context.Context) bool {
	key := []byte(probeKeyPrefix + uuid.New().String())
	value := []byte("probe")

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Storage probe write failed")
		return false
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) != string(value) {
				return errors.New("probe value mismatch")
			}
			return nil
		})
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Storage probe read failed")
		return false
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Storage probe delete failed")
		return false
	}
	return true
}

// ClearAll removes both records durably and invalidates the cache.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyUserMetrics)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete user metrics: %w", err)
		}
		if err := txn.Delete([]byte(keyReviewSettings)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete review settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.metrics = nil
	s.settings = nil
	s.mu.Unlock()

	logging.Ctx(ctx).Info().Msg("All review data cleared")
	return nil
}

// readMetrics reads and sanitizes the metrics record. A missing record
// is a defaulted record, not an error.
func (s *Store) readMetrics(ctx context.Context) (models.UserMetrics, error) {
	raw, found, err := s.readRaw(keyUserMetrics)
	if err != nil {
		return models.UserMetrics{}, err
	}
	if !found {
		return models.NewUserMetrics(s.now()), nil
	}
	return sanitizeMetrics(ctx, raw, s.now()), nil
}

// readSettings reads and sanitizes the settings record.
func (s *Store) readSettings(ctx context.Context) (models.ReviewSettings, error) {
	raw, found, err := s.readRaw(keyReviewSettings)
	if err != nil {
		return models.ReviewSettings{}, err
	}
	if !found {
		return models.DefaultReviewSettings(), nil
	}
	return sanitizeSettings(ctx, raw), nil
}

// readRaw fetches a key's payload. Not-found is (nil, false, nil).
func (s *Store) readRaw(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// writeRecord marshals and durably stores one record.
func (s *Store) writeRecord(key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	start := s.now()
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastSave = s.now().Sub(start)
	s.mu.Unlock()
	return nil
}

// applySettingsPatch merges a settings patch verbatim.
func applySettingsPatch(s *models.ReviewSettings, p models.SettingsPatch) {
	if p.MinimumAppOpens != nil {
		s.MinimumAppOpens = *p.MinimumAppOpens
	}
	if p.CooldownDays != nil {
		s.CooldownDays = *p.CooldownDays
	}
	if p.EnabledTriggers != nil {
		s.EnabledTriggers = append([]models.TriggerKind(nil), (*p.EnabledTriggers)...)
	}
	if p.DebugMode != nil {
		s.DebugMode = *p.DebugMode
	}
	if p.MaxPromptsPerUser != nil {
		s.MaxPromptsPerUser = *p.MaxPromptsPerUser
	}
}
