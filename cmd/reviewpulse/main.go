// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Command reviewpulse runs the review decision daemon: it persists
// engagement metrics, evaluates review triggers, talks to the mobile
// shell's rating bridge, and serves the admin/debug HTTP surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mealprint/reviewpulse/internal/analytics"
	"github.com/mealprint/reviewpulse/internal/api"
	"github.com/mealprint/reviewpulse/internal/config"
	"github.com/mealprint/reviewpulse/internal/gateway"
	"github.com/mealprint/reviewpulse/internal/logging"
	"github.com/mealprint/reviewpulse/internal/review"
	"github.com/mealprint/reviewpulse/internal/store"
	"github.com/mealprint/reviewpulse/internal/supervisor"
	"github.com/mealprint/reviewpulse/internal/supervisor/services"
	"github.com/mealprint/reviewpulse/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("reviewpulse exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("storage", cfg.Storage.Path).
		Str("bridge", cfg.Bridge.URL).
		Msg("Starting reviewpulse")

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	cfgMgr := config.NewManager(st)
	recorder := analytics.New()
	bridge := gateway.NewBridgeClient(cfg.Bridge.URL, cfg.Bridge.Timeout)
	gw := gateway.New(bridge, cfgMgr, gateway.Options{
		StoreURL:            cfg.Gateway.StoreURL,
		MaxRetries:          cfg.Gateway.MaxRetries,
		RetryDelay:          cfg.Gateway.RetryDelay,
		AvailabilityTTL:     cfg.Gateway.AvailabilityTTL,
		RatePerMinute:       cfg.Gateway.RatePerMinute,
		FallbackOnAllErrors: cfg.Gateway.FallbackOnAllErrors,
		FallbackAlert:       cfg.Gateway.FallbackAlert,
	})
	engine := trigger.New(st, cfgMgr)
	manager := review.New(st, cfgMgr, engine, gw, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Initialize(ctx); err != nil {
		return err
	}

	router := api.NewRouter(manager, cfg.Server)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddDataService(services.NewGCService(st, cfg.Storage.GCInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("reviewpulse stopped")
	return nil
}
