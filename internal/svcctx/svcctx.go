// Package svcctx provides service context for dependency injection via context.
// This package is separate from the CLI to avoid import cycles with commands.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/folio/internal/batch"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/imagetx"
	"github.com/jackzampolin/folio/internal/ledger"
	"github.com/jackzampolin/folio/internal/pipeline"
	"github.com/jackzampolin/folio/internal/split"
	"github.com/jackzampolin/folio/internal/store"
)

// Services holds the core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store        store.Store
	Ledger       *ledger.Ledger
	Pipeline     *pipeline.Pipeline
	SplitEngine  *split.Engine
	Orchestrator *batch.Orchestrator
	Images       *imagetx.Client
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the record store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// LedgerFrom extracts the page ledger from context.
func LedgerFrom(ctx context.Context) *ledger.Ledger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ledger
	}
	return nil
}

// PipelineFrom extracts the transcription pipeline from context.
func PipelineFrom(ctx context.Context) *pipeline.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// SplitEngineFrom extracts the split engine from context.
func SplitEngineFrom(ctx context.Context) *split.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.SplitEngine
	}
	return nil
}

// OrchestratorFrom extracts the batch orchestrator from context.
func OrchestratorFrom(ctx context.Context) *batch.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
