// Package ledger is the single source of truth for a book's page ordering.
//
// All structural mutations (insert, delete, reorder, split insertion) go
// through the ledger so the contiguous-numbering invariant is checked and
// repaired in one place: after every structural change, page_number values
// for a book form the run 1..N with no gaps or duplicates.
//
// The ledger always fully renumbers after a structural change rather than
// attempting incremental shifts. Stage-result writes are page-scoped and do
// not pass through here.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/types"
)

// updateRetries bounds per-page write retries during a renumbering pass.
// The store offers no multi-document transaction, so the pass is a loop of
// independent per-page updates that must be safe to retry.
const updateRetries = 3

// Ledger maintains the ordered page collection for each book.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a ledger over the given store.
func New(s store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, logger: logger}
}

// ListOrdered returns the book's pages sorted by page_number ascending.
// This is the canonical read for "the previous page" and "the next page".
func (l *Ledger) ListOrdered(ctx context.Context, bookID string) ([]types.Page, error) {
	return l.store.ListPagesOrdered(ctx, bookID)
}

// InsertPages appends pages for the given image refs, numbered starting at
// the current maximum plus one. Appends never introduce gaps.
func (l *Ledger) InsertPages(ctx context.Context, bookID string, imageRefs []string) ([]types.Page, error) {
	if len(imageRefs) == 0 {
		return nil, nil
	}
	if _, err := l.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	existing, err := l.store.ListPagesOrdered(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	next := 1
	if n := len(existing); n > 0 {
		next = existing[n-1].PageNumber + 1
	}

	pages := make([]*types.Page, 0, len(imageRefs))
	for i, ref := range imageRefs {
		pages = append(pages, &types.Page{
			BookID:     bookID,
			PageNumber: next + i,
			ImageRef:   ref,
		})
	}
	if err := l.store.CreatePages(ctx, pages); err != nil {
		return nil, fmt.Errorf("failed to create pages: %w", err)
	}

	l.logger.Info("inserted pages", "book_id", bookID, "count", len(pages), "first_number", next)

	out := make([]types.Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, *p)
	}
	return out, nil
}

// DeletePage removes a page and renumbers the remaining pages of its book.
func (l *Ledger) DeletePage(ctx context.Context, pageID string) error {
	page, err := l.store.GetPage(ctx, pageID)
	if err != nil {
		return err
	}

	if err := l.store.DeletePage(ctx, pageID); err != nil {
		return fmt.Errorf("failed to delete page %s: %w", pageID, err)
	}

	l.logger.Info("deleted page", "page_id", pageID, "book_id", page.BookID, "page_number", page.PageNumber)

	return l.Renumber(ctx, page.BookID)
}

// Reorder assigns page numbers from the position of each id in the supplied
// sequence. The sequence must be exactly the set of the book's current page
// ids; a partial or mismatched list signals caller desynchronization and is
// rejected with no write applied.
func (l *Ledger) Reorder(ctx context.Context, bookID string, pageIDs []string) error {
	pages, err := l.store.ListPagesOrdered(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	if len(pageIDs) != len(pages) {
		return errdefs.InvalidArgument("reorder sequence has %d ids, book %s has %d pages", len(pageIDs), bookID, len(pages))
	}
	current := make(map[string]types.Page, len(pages))
	for _, p := range pages {
		current[p.ID] = p
	}
	seen := make(map[string]bool, len(pageIDs))
	for _, id := range pageIDs {
		if _, ok := current[id]; !ok {
			return errdefs.InvalidArgument("reorder sequence contains unknown page id %s", id)
		}
		if seen[id] {
			return errdefs.InvalidArgument("reorder sequence contains duplicate page id %s", id)
		}
		seen[id] = true
	}

	// Validation passed; apply the new numbering.
	for i, id := range pageIDs {
		want := i + 1
		if current[id].PageNumber == want {
			continue
		}
		if err := l.updatePageNumber(ctx, id, want); err != nil {
			return err
		}
	}

	l.logger.Info("reordered pages", "book_id", bookID, "count", len(pageIDs))
	return nil
}

// Renumber reassigns 1..N over a book's pages in their current order,
// repairing any gaps left by structural changes.
func (l *Ledger) Renumber(ctx context.Context, bookID string) error {
	pages, err := l.store.ListPagesOrdered(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	for i, p := range pages {
		want := i + 1
		if p.PageNumber == want {
			continue
		}
		if err := l.updatePageNumber(ctx, p.ID, want); err != nil {
			return err
		}
	}
	return nil
}

// InsertAfter creates newPage positioned directly after the origin page and
// renumbers the book so subsequent pages shift down by one.
//
// The insert-between position is held as an in-memory fractional sort key
// (origin + 0.5) only; every persisted page_number is an integer.
func (l *Ledger) InsertAfter(ctx context.Context, originID string, newPage *types.Page) error {
	origin, err := l.store.GetPage(ctx, originID)
	if err != nil {
		return err
	}
	if newPage.BookID != origin.BookID {
		return errdefs.InvalidArgument("new page book %s does not match origin book %s", newPage.BookID, origin.BookID)
	}

	pages, err := l.store.ListPagesOrdered(ctx, origin.BookID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	// Provisional integer number; the renumbering below assigns the final one.
	newPage.PageNumber = origin.PageNumber + 1
	if _, err := l.store.CreatePage(ctx, newPage); err != nil {
		return fmt.Errorf("failed to create split page: %w", err)
	}

	type keyed struct {
		id      string
		current int
		key     float64
	}
	ordered := make([]keyed, 0, len(pages)+1)
	for _, p := range pages {
		ordered = append(ordered, keyed{id: p.ID, current: p.PageNumber, key: float64(p.PageNumber)})
	}
	ordered = append(ordered, keyed{id: newPage.ID, current: 0, key: float64(origin.PageNumber) + 0.5})
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	for i, entry := range ordered {
		want := i + 1
		if entry.current == want {
			continue
		}
		if err := l.updatePageNumber(ctx, entry.id, want); err != nil {
			return err
		}
		if entry.id == newPage.ID {
			newPage.PageNumber = want
		}
	}

	l.logger.Info("inserted page after origin",
		"book_id", origin.BookID,
		"origin_id", originID,
		"new_page_id", newPage.ID,
		"new_page_number", newPage.PageNumber)
	return nil
}

// updatePageNumber writes a single page's number with bounded retries.
func (l *Ledger) updatePageNumber(ctx context.Context, pageID string, number int) error {
	err := retry.Do(
		func() error {
			return l.store.UpdatePage(ctx, pageID, map[string]any{"page_number": number})
		},
		retry.Context(ctx),
		retry.Attempts(updateRetries),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to renumber page %s to %d: %w", pageID, number, err)
	}
	return nil
}
