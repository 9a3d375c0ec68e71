// Package batch drives a single stage-action across an ordered list of a
// book's pages: sequentially, with progress reporting, inter-call pacing,
// and cooperative cancellation via context.
//
// Sequential processing is deliberate, not an accidental limitation: it lets
// each page's stage read the previous page's just-produced result in book
// order, and it naturally rate-limits the external inference service.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/pipeline"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/types"
)

// Action selects what the orchestrator applies to each page.
type Action string

const (
	ActionTranscribe  Action = "transcribe"
	ActionTranslate   Action = "translate"
	ActionSummarize   Action = "summarize"
	ActionDetectSplit Action = "detect-split"
)

// State is the orchestrator-level run state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
)

// ItemState tracks one page through a run.
type ItemState string

const (
	ItemPending  ItemState = "pending"
	ItemInFlight ItemState = "in_flight"
	ItemDone     ItemState = "done"
	ItemFailed   ItemState = "failed"
)

// DefaultPacing is the inter-item delay that keeps runs under external rate
// limits.
const DefaultPacing = time.Second

// ProgressEvent reports incremental progress to the caller.
type ProgressEvent struct {
	CurrentIndex  int      `json:"current_index"`
	TotalCount    int      `json:"total_count"`
	CurrentPageID string   `json:"current_page_id"`
	CompletedIDs  []string `json:"completed_ids"`
	FailedIDs     []string `json:"failed_ids"`
}

// StageRunner is the pipeline surface the orchestrator drives.
type StageRunner interface {
	Transcribe(ctx context.Context, image []byte, sourceLanguage, previous, override string) (string, error)
	Translate(ctx context.Context, transcription, sourceLanguage, targetLanguage, previous, override string) (string, error)
	Summarize(ctx context.Context, translation, targetLanguage, previous, override string) (string, error)
	Model() string
}

// SpreadDetector is the split-engine surface the orchestrator drives for
// detect-split runs. Detection results are cached by the detector itself.
type SpreadDetector interface {
	DetectSpread(ctx context.Context, pageID string) (*types.SplitDetection, error)
}

// ImageFetcher loads page image bytes by reference.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Orchestrator applies one action across a page-id sequence.
type Orchestrator struct {
	store    store.Store
	stages   StageRunner
	detector SpreadDetector
	images   ImageFetcher
	pacing   time.Duration
	logger   *slog.Logger
}

// Config assembles an Orchestrator.
type Config struct {
	Store    store.Store
	Stages   StageRunner
	Detector SpreadDetector
	Images   ImageFetcher
	Pacing   time.Duration
	Logger   *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		store:    cfg.Store,
		stages:   cfg.Stages,
		detector: cfg.Detector,
		images:   cfg.Images,
		pacing:   cfg.Pacing,
		logger:   cfg.Logger,
	}
}

// Request describes one batch run.
//
// PageIDs are processed in exactly the supplied order; the orchestrator does
// not re-sort. Callers must supply ids in the book's canonical page_number
// order when continuity chaining matters — a misordered list chains against
// the wrong previous page.
type Request struct {
	BookID         string
	PageIDs        []string
	Action         Action
	TargetLanguage string
	Overrides      prompts.Overrides

	// OnProgress, when set, is invoked at the start of each item.
	OnProgress func(ProgressEvent)
}

// Result is the final accounting for a run. Every attempted id ends in
// exactly one of CompletedIDs or FailedIDs.
type Result struct {
	BatchID      string               `json:"batch_id"`
	State        State                `json:"state"`
	TotalCount   int                  `json:"total_count"`
	CompletedIDs []string             `json:"completed_ids"`
	FailedIDs    []string             `json:"failed_ids"`
	Errors       map[string]string    `json:"errors,omitempty"`
	ItemStates   map[string]ItemState `json:"item_states"`
}

// Run executes the batch. Cancellation is cooperative: the context is
// checked before starting each item, so an in-flight item finishes and the
// run reports Stopped with the accounting so far. A failed item does not
// halt the batch.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	switch req.Action {
	case ActionTranscribe, ActionTranslate, ActionSummarize, ActionDetectSplit:
	default:
		return nil, errdefs.InvalidArgument("action %q", req.Action)
	}

	book, err := o.store.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}

	batchID, err := o.store.CreateBatch(ctx, map[string]any{
		"book_id":    req.BookID,
		"action":     string(req.Action),
		"state":      string(StateRunning),
		"total":      len(req.PageIDs),
		"completed":  0,
		"failed":     0,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create batch record: %w", err)
	}

	result := &Result{
		BatchID:    batchID,
		State:      StateRunning,
		TotalCount: len(req.PageIDs),
		Errors:     make(map[string]string),
		ItemStates: make(map[string]ItemState, len(req.PageIDs)),
	}
	for _, id := range req.PageIDs {
		result.ItemStates[id] = ItemPending
	}

	o.logger.Info("batch started",
		"batch_id", batchID,
		"book_id", req.BookID,
		"action", string(req.Action),
		"total", len(req.PageIDs))

loop:
	for i, pageID := range req.PageIDs {
		// Cooperative cancellation: stop before starting the next item.
		select {
		case <-ctx.Done():
			result.State = StateStopped
			break loop
		default:
		}

		// Inter-call pacing, skipped when cancellation has been requested.
		if i > 0 {
			select {
			case <-ctx.Done():
				result.State = StateStopped
				break loop
			case <-time.After(o.pacing):
			}
		}

		if req.OnProgress != nil {
			req.OnProgress(ProgressEvent{
				CurrentIndex:  i,
				TotalCount:    len(req.PageIDs),
				CurrentPageID: pageID,
				CompletedIDs:  append([]string(nil), result.CompletedIDs...),
				FailedIDs:     append([]string(nil), result.FailedIDs...),
			})
		}

		result.ItemStates[pageID] = ItemInFlight
		if err := o.processItem(ctx, book, pageID, req); err != nil {
			result.ItemStates[pageID] = ItemFailed
			result.FailedIDs = append(result.FailedIDs, pageID)
			result.Errors[pageID] = err.Error()
			o.logger.Warn("batch item failed",
				"batch_id", batchID,
				"page_id", pageID,
				"error", err)
			continue
		}
		result.ItemStates[pageID] = ItemDone
		result.CompletedIDs = append(result.CompletedIDs, pageID)
	}

	if result.State == StateRunning {
		result.State = StateCompleted
	}

	// The closing write must land even when the run stopped because ctx was
	// cancelled, otherwise the record stays "running" forever.
	if err := o.store.UpdateBatch(context.WithoutCancel(ctx), batchID, map[string]any{
		"state":       string(result.State),
		"completed":   len(result.CompletedIDs),
		"failed":      len(result.FailedIDs),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		o.logger.Warn("failed to update batch record", "batch_id", batchID, "error", err)
	}

	o.logger.Info("batch finished",
		"batch_id", batchID,
		"state", string(result.State),
		"completed", len(result.CompletedIDs),
		"failed", len(result.FailedIDs))
	return result, nil
}

// processItem applies the requested action to one page. Results are written
// back only on stage success; a failed item persists nothing.
func (o *Orchestrator) processItem(ctx context.Context, book *types.Book, pageID string, req Request) error {
	page, err := o.store.GetPage(ctx, pageID)
	if err != nil {
		return err
	}

	switch req.Action {
	case ActionDetectSplit:
		_, err := o.detector.DetectSpread(ctx, pageID)
		return err

	case ActionTranscribe:
		image, err := o.images.Fetch(ctx, page.ImageRef)
		if err != nil {
			return err
		}
		previous := o.previousStageText(ctx, page, types.StageOCR)
		text, err := o.stages.Transcribe(ctx, image, book.SourceLanguage, previous, req.Overrides.For(types.StageOCR))
		if err != nil {
			return err
		}
		return o.writeStageResult(ctx, pageID, "ocr_json", text, book.SourceLanguage)

	case ActionTranslate:
		var transcription string
		if page.OCR != nil {
			transcription = page.OCR.Text
		}
		previous := o.previousStageText(ctx, page, types.StageTranslation)
		text, err := o.stages.Translate(ctx, transcription, book.SourceLanguage, req.TargetLanguage, previous, req.Overrides.For(types.StageTranslation))
		if err != nil {
			return err
		}
		return o.writeStageResult(ctx, pageID, "translation_json", text, req.TargetLanguage)

	case ActionSummarize:
		var translation string
		if page.Translation != nil {
			translation = page.Translation.Text
		}
		previous := o.previousStageText(ctx, page, types.StageSummary)
		text, err := o.stages.Summarize(ctx, translation, req.TargetLanguage, previous, req.Overrides.For(types.StageSummary))
		if err != nil {
			return err
		}
		return o.writeStageResult(ctx, pageID, "summary_json", text, req.TargetLanguage)
	}

	return errdefs.InvalidArgument("action %q", req.Action)
}

// previousStageText re-reads the preceding page by number and returns its
// stored result for the given stage, or "". The read happens per item so a
// sequential run chains against the result produced moments earlier.
func (o *Orchestrator) previousStageText(ctx context.Context, page *types.Page, stage types.Stage) string {
	if page.PageNumber <= 1 {
		return ""
	}
	prev, err := o.store.GetPageByNumber(ctx, page.BookID, page.PageNumber-1)
	if err != nil {
		// First page of a run, a renumbering race, or a deleted neighbor:
		// continuity context is optional, so proceed without it.
		o.logger.Debug("no previous page context",
			"page_id", page.ID,
			"page_number", page.PageNumber,
			"error", err)
		return ""
	}
	if result := prev.StageResultFor(stage); result != nil {
		return result.Text
	}
	return ""
}

// writeStageResult persists a stage output on success.
func (o *Orchestrator) writeStageResult(ctx context.Context, pageID, field, text, language string) error {
	encoded, err := store.EncodeStageResult(&types.StageResult{
		Text:      text,
		Language:  language,
		Model:     o.stages.Model(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := o.store.UpdatePage(ctx, pageID, map[string]any{field: encoded}); err != nil {
		return fmt.Errorf("failed to persist stage result: %w", err)
	}
	return nil
}

// ensure the pipeline satisfies StageRunner.
var _ StageRunner = (*pipeline.Pipeline)(nil)
