// Package split decides whether a page image is a two-page spread and, when
// instructed, materializes the two resulting page records with complementary
// crop regions. Renumbering is delegated to the ledger.
package split

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/ledger"
	"github.com/jackzampolin/folio/internal/prompts"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/types"
)

// Side names which half of the spread the origin page keeps after a split.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// DefaultSplitRatio is the boundary position as a percentage of the page
// width. 50 puts the boundary at the center (coordinate 500).
const DefaultSplitRatio = 50

// ImageFetcher loads page image bytes by reference.
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Engine implements spread detection and page splitting.
type Engine struct {
	store   store.Store
	ledger  *ledger.Ledger
	ai      providers.Client
	images  ImageFetcher
	prompts *prompts.Resolver
	model   string
	logger  *slog.Logger
}

// Config assembles an Engine.
type Config struct {
	Store   store.Store
	Ledger  *ledger.Ledger
	AI      providers.Client
	Images  ImageFetcher
	Prompts *prompts.Resolver
	Model   string // vision model for geometry detection
	Logger  *slog.Logger
}

// NewEngine creates a split engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewResolver()
	}
	return &Engine{
		store:   cfg.Store,
		ledger:  cfg.Ledger,
		ai:      cfg.AI,
		images:  cfg.Images,
		prompts: cfg.Prompts,
		model:   cfg.Model,
		logger:  cfg.Logger,
	}
}

// DetectSpread asks the geometry model whether the page image depicts two
// facing physical pages. The result is cached on the page but never
// auto-applied; splitting is always a separate, explicit step.
func (e *Engine) DetectSpread(ctx context.Context, pageID string) (*types.SplitDetection, error) {
	page, err := e.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.ImageRef == "" {
		return nil, errdefs.InvalidState("page %s has no image", pageID)
	}

	img, err := e.images.Fetch(ctx, page.ImageRef)
	if err != nil {
		return nil, errdefs.DetectionFailed("image %s unreachable: %v", page.ImageRef, err)
	}

	prompt, err := e.prompts.Resolve(prompts.KeySplitDetect, "", nil)
	if err != nil {
		return nil, err
	}

	result, err := e.ai.Chat(ctx, &providers.ChatRequest{
		Model: e.model,
		Messages: []providers.Message{
			{Role: "user", Content: prompt, Images: [][]byte{img}},
		},
		ResponseFormat: &providers.ResponseFormat{
			Name:   "split_detection",
			Schema: DetectionSchema(),
		},
	})
	if err != nil {
		return nil, errdefs.DetectionFailed("geometry call failed: %v", err)
	}

	detection, err := parseDetection(result.ParsedJSON)
	if err != nil {
		return nil, err
	}

	if err := e.cacheDetection(ctx, pageID, detection); err != nil {
		return nil, err
	}

	e.logger.Info("spread detection complete",
		"page_id", pageID,
		"is_spread", detection.IsTwoPageSpread,
		"confidence", detection.Confidence)
	return detection, nil
}

// Result holds the two pages produced by a split.
type Result struct {
	// Kept is the origin page, mutated in place with its new crop.
	Kept *types.Page
	// Created is the new page carrying the complementary crop.
	Created *types.Page
}

// ApplySplit splits a page into two records. Deterministic; no AI call.
//
// splitRatio is the boundary position as a percentage (1-99) of the page
// width. The page named by side keeps its identity and receives the
// corresponding crop; a new page is created with the other crop, the same
// underlying uncropped image, and split_from set to the origin. The ledger
// then renumbers the book so the new page lands directly after its origin.
//
// Invoking ApplySplit twice on the same origin produces two independent new
// pages; the operation is deliberately not idempotent.
func (e *Engine) ApplySplit(ctx context.Context, pageID string, side Side, splitRatio int) (*Result, error) {
	if side != SideLeft && side != SideRight {
		return nil, errdefs.InvalidArgument("side %q", side)
	}
	if splitRatio <= 0 || splitRatio >= 100 {
		return nil, errdefs.InvalidArgument("split ratio %d: must be between 1 and 99", splitRatio)
	}

	page, err := e.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.ImageRef == "" {
		return nil, errdefs.InvalidState("cannot split page %s: no image", pageID)
	}
	// Defensive check: a cached detection that says "not a spread" blocks a
	// direct ApplySplit call. Manual splits synthesize a spread detection
	// first (see SplitManual).
	if page.SplitDetection != nil && !page.SplitDetection.IsTwoPageSpread {
		return nil, errdefs.InvalidState("page %s is not a two-page spread per last detection", pageID)
	}

	boundary := splitRatio * types.CoordMax / 100
	leftCrop := types.CropRegion{XStart: 0, XEnd: boundary, YStart: 0, YEnd: types.CoordMax}
	rightCrop := types.CropRegion{XStart: boundary, XEnd: types.CoordMax, YStart: 0, YEnd: types.CoordMax}

	keptCrop, newCrop := leftCrop, rightCrop
	if side == SideRight {
		keptCrop, newCrop = rightCrop, leftCrop
	}

	// Both halves crop the same underlying uncropped image.
	underlying := page.OriginalImageRef
	if underlying == "" {
		underlying = page.ImageRef
	}

	created := &types.Page{
		BookID:           page.BookID,
		ImageRef:         underlying,
		OriginalImageRef: underlying,
		SplitFrom:        page.ID,
		Crop:             &newCrop,
	}

	if err := e.ledger.InsertAfter(ctx, page.ID, created); err != nil {
		return nil, fmt.Errorf("failed to place split page: %w", err)
	}

	cropJSON, err := store.EncodeCrop(&keptCrop)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpdatePage(ctx, page.ID, map[string]any{
		"crop_json":          cropJSON,
		"original_image_ref": underlying,
	}); err != nil {
		return nil, fmt.Errorf("failed to update origin page crop: %w", err)
	}

	kept, err := e.store.GetPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("split applied",
		"origin_id", kept.ID,
		"created_id", created.ID,
		"side", string(side),
		"boundary", boundary)
	return &Result{Kept: kept, Created: created}, nil
}

// ManualDetection synthesizes a detection for a human-marked split: a fixed
// 50/50 boundary with confidence "manual".
func ManualDetection() types.SplitDetection {
	mid := types.CoordMax / 2
	return types.SplitDetection{
		IsTwoPageSpread: true,
		Confidence:      types.ConfidenceManual,
		Reasoning:       "marked as spread by operator",
		LeftPage:        types.BoundingBox{XMin: 0, XMax: mid, YMin: 0, YMax: types.CoordMax},
		RightPage:       types.BoundingBox{XMin: mid, XMax: types.CoordMax, YMin: 0, YMax: types.CoordMax},
	}
}

// SplitManual marks a page for splitting without running detection: it
// caches a synthesized 50/50 detection, then applies the split identically
// to the AI-detected path.
func (e *Engine) SplitManual(ctx context.Context, pageID string, side Side) (*Result, error) {
	page, err := e.store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.ImageRef == "" {
		return nil, errdefs.InvalidState("cannot split page %s: no image", pageID)
	}

	detection := ManualDetection()
	if err := e.cacheDetection(ctx, pageID, &detection); err != nil {
		return nil, err
	}
	return e.ApplySplit(ctx, pageID, side, DefaultSplitRatio)
}

func (e *Engine) cacheDetection(ctx context.Context, pageID string, d *types.SplitDetection) error {
	encoded, err := store.EncodeSplitDetection(d)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePage(ctx, pageID, map[string]any{"split_detection_json": encoded}); err != nil {
		return fmt.Errorf("failed to cache detection on page %s: %w", pageID, err)
	}
	return nil
}
