package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/folio/internal/batch"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/imagetx"
	"github.com/jackzampolin/folio/internal/ledger"
	"github.com/jackzampolin/folio/internal/pipeline"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/split"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// setupServices wires the full service graph from config and attaches it to
// the context. Commands pull what they need via svcctx extractors.
func setupServices(ctx context.Context) (context.Context, *svcctx.Services, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	h, err := home.New(homeDir)
	if err != nil {
		return ctx, nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return ctx, nil, err
	}

	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return ctx, nil, err
	}
	cfg := cm.Get()

	client := store.NewClient(cfg.Store.URL)
	if err := client.HealthCheck(ctx); err != nil {
		return ctx, nil, fmt.Errorf("store at %s is unreachable: %w", cfg.Store.URL, err)
	}
	if err := store.ApplySchema(ctx, client); err != nil {
		return ctx, nil, err
	}
	st, err := store.NewDefraStore(client)
	if err != nil {
		return ctx, nil, err
	}

	led := ledger.New(st, logger)

	ai := providers.NewOpenAIClient(providers.OpenAIConfig{
		APIKey:       config.ResolveEnvVars(cfg.Provider.APIKey),
		BaseURL:      cfg.Provider.BaseURL,
		DefaultModel: cfg.Provider.Model,
		Timeout:      time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		RPM:          int(cfg.Provider.RateLimit),
		MaxRetries:   cfg.Provider.MaxRetries,
	})

	images := imagetx.NewClient(cfg.ImageService.URL)
	resolver := prompts.NewResolver()

	pipe := pipeline.New(ai, resolver, cfg.Provider.Model, logger)

	visionModel := cfg.Provider.VisionModel
	if visionModel == "" {
		visionModel = cfg.Provider.Model
	}
	engine := split.NewEngine(split.Config{
		Store:   st,
		Ledger:  led,
		AI:      ai,
		Images:  images,
		Prompts: resolver,
		Model:   visionModel,
		Logger:  logger,
	})

	orch := batch.New(batch.Config{
		Store:    st,
		Stages:   pipe,
		Detector: engine,
		Images:   images,
		Pacing:   time.Duration(cfg.Batch.PacingMillis) * time.Millisecond,
		Logger:   logger,
	})

	svcs := &svcctx.Services{
		Store:        st,
		Ledger:       led,
		Pipeline:     pipe,
		SplitEngine:  engine,
		Orchestrator: orch,
		Images:       images,
		Config:       cm,
		Logger:       logger,
		Home:         h,
	}
	return svcctx.WithServices(ctx, svcs), svcs, nil
}
