package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/types"
)

func newTestLedger(t *testing.T) (*Ledger, *store.MemoryStore, string) {
	t.Helper()
	ms := store.NewMemoryStore()
	bookID, err := ms.CreateBook(context.Background(), &types.Book{Title: "Codex"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return New(ms, nil), ms, bookID
}

func seedPages(t *testing.T, l *Ledger, bookID string, n int) []types.Page {
	t.Helper()
	refs := make([]string, n)
	for i := range refs {
		refs[i] = fmt.Sprintf("%s/pages/page_%04d.png", bookID, i+1)
	}
	pages, err := l.InsertPages(context.Background(), bookID, refs)
	if err != nil {
		t.Fatalf("InsertPages: %v", err)
	}
	return pages
}

func assertContiguous(t *testing.T, l *Ledger, bookID string) []types.Page {
	t.Helper()
	pages, err := l.ListOrdered(context.Background(), bookID)
	if err != nil {
		t.Fatalf("ListOrdered: %v", err)
	}
	for i, p := range pages {
		if p.PageNumber != i+1 {
			t.Fatalf("page %d has number %d, want %d", i, p.PageNumber, i+1)
		}
	}
	return pages
}

func TestInsertPagesAppends(t *testing.T) {
	l, _, bookID := newTestLedger(t)
	ctx := context.Background()

	first := seedPages(t, l, bookID, 3)
	for i, p := range first {
		if p.PageNumber != i+1 {
			t.Errorf("page %d numbered %d, want %d", i, p.PageNumber, i+1)
		}
	}

	more, err := l.InsertPages(ctx, bookID, []string{"ref-a", "ref-b"})
	if err != nil {
		t.Fatalf("InsertPages: %v", err)
	}
	if more[0].PageNumber != 4 || more[1].PageNumber != 5 {
		t.Errorf("appended numbers = %d, %d, want 4, 5", more[0].PageNumber, more[1].PageNumber)
	}
	assertContiguous(t, l, bookID)
}

func TestInsertPagesUnknownBook(t *testing.T) {
	l, _, _ := newTestLedger(t)

	_, err := l.InsertPages(context.Background(), "missing", []string{"ref"})
	if !errdefs.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestDeletePageRenumbers(t *testing.T) {
	l, ms, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 5)

	// Stage data on a later page must survive renumbering untouched.
	ocr, err := store.EncodeStageResult(&types.StageResult{Text: "folio five", Language: "Latin"})
	if err != nil {
		t.Fatalf("EncodeStageResult: %v", err)
	}
	if err := ms.UpdatePage(ctx, pages[4].ID, map[string]any{"ocr_json": ocr}); err != nil {
		t.Fatalf("UpdatePage: %v", err)
	}

	if err := l.DeletePage(ctx, pages[2].ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	remaining := assertContiguous(t, l, bookID)
	if len(remaining) != 4 {
		t.Fatalf("got %d pages, want 4", len(remaining))
	}
	wantOrder := []string{pages[0].ID, pages[1].ID, pages[3].ID, pages[4].ID}
	for i, p := range remaining {
		if p.ID != wantOrder[i] {
			t.Errorf("position %d holds %s, want %s", i+1, p.ID, wantOrder[i])
		}
	}

	last := remaining[3]
	if last.OCR == nil || last.OCR.Text != "folio five" {
		t.Errorf("stage result lost during renumber: %+v", last.OCR)
	}
	if last.PageNumber != 4 {
		t.Errorf("last page numbered %d, want 4", last.PageNumber)
	}
}

// A write failure that outlasts the per-page retries aborts the renumbering
// pass and surfaces the store error rather than swallowing it.
func TestRenumberAbortsOnPersistentWriteFailure(t *testing.T) {
	l, ms, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 4)

	ms.ErrAfterNPageWrites = 1
	err := l.DeletePage(ctx, pages[0].ID)
	if err == nil {
		t.Fatal("expected renumber failure")
	}
	if !strings.Contains(err.Error(), "failed to renumber") {
		t.Errorf("error = %v", err)
	}

	// The first shift landed before the failure; nothing after it was written.
	got, listErr := l.ListOrdered(ctx, bookID)
	if listErr != nil {
		t.Fatalf("ListOrdered: %v", listErr)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pages, want 3", len(got))
	}
	if got[0].ID != pages[1].ID || got[0].PageNumber != 1 {
		t.Errorf("first page = %s number %d", got[0].ID, got[0].PageNumber)
	}
	if got[2].ID != pages[3].ID || got[2].PageNumber != 4 {
		t.Errorf("last page = %s number %d, want untouched number 4", got[2].ID, got[2].PageNumber)
	}
}

func TestReorderSurfacesWriteFailure(t *testing.T) {
	l, ms, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 3)

	injected := errors.New("store offline")
	ms.UpdatePageErr = injected

	err := l.Reorder(ctx, bookID, []string{pages[2].ID, pages[1].ID, pages[0].ID})
	if !errors.Is(err, injected) {
		t.Fatalf("error = %v, want wrapped %v", err, injected)
	}
}

func TestDeleteMissingPage(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if err := l.DeletePage(context.Background(), "nope"); !errdefs.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestReorderAppliesPermutation(t *testing.T) {
	l, _, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 4)

	reversed := []string{pages[3].ID, pages[2].ID, pages[1].ID, pages[0].ID}
	if err := l.Reorder(ctx, bookID, reversed); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	got := assertContiguous(t, l, bookID)
	for i, id := range reversed {
		if got[i].ID != id {
			t.Errorf("position %d holds %s, want %s", i+1, got[i].ID, id)
		}
	}
}

func TestReorderRejectsBadSequences(t *testing.T) {
	l, _, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 3)

	cases := []struct {
		name string
		ids  []string
	}{
		{"too short", []string{pages[0].ID, pages[1].ID}},
		{"unknown id", []string{pages[0].ID, pages[1].ID, "stranger"}},
		{"duplicate id", []string{pages[0].ID, pages[1].ID, pages[1].ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Reorder(ctx, bookID, tc.ids)
			if !errdefs.IsInvalidArgument(err) {
				t.Fatalf("expected invalid-argument error, got %v", err)
			}
			// Rejection must leave the original numbering untouched.
			got := assertContiguous(t, l, bookID)
			for i, p := range pages {
				if got[i].ID != p.ID {
					t.Errorf("position %d holds %s, want %s", i+1, got[i].ID, p.ID)
				}
			}
		})
	}
}

func TestInsertAfter(t *testing.T) {
	l, _, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 3)

	newPage := &types.Page{BookID: bookID, ImageRef: "split-ref", SplitFrom: pages[1].ID}
	if err := l.InsertAfter(ctx, pages[1].ID, newPage); err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}

	if newPage.PageNumber != 3 {
		t.Errorf("inserted page numbered %d, want 3", newPage.PageNumber)
	}
	got := assertContiguous(t, l, bookID)
	wantOrder := []string{pages[0].ID, pages[1].ID, newPage.ID, pages[2].ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d holds %s, want %s", i+1, got[i].ID, id)
		}
	}
}

func TestInsertAfterBookMismatch(t *testing.T) {
	l, ms, bookID := newTestLedger(t)
	ctx := context.Background()
	pages := seedPages(t, l, bookID, 1)

	otherID, err := ms.CreateBook(ctx, &types.Book{Title: "Other"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	err = l.InsertAfter(ctx, pages[0].ID, &types.Page{BookID: otherID})
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument error, got %v", err)
	}
}

// TestContiguityUnderRandomOps drives a random sequence of structural
// mutations and checks the 1..N numbering invariant after every one.
func TestContiguityUnderRandomOps(t *testing.T) {
	l, _, bookID := newTestLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	seedPages(t, l, bookID, 4)

	for op := 0; op < 40; op++ {
		pages, err := l.ListOrdered(ctx, bookID)
		if err != nil {
			t.Fatalf("op %d: ListOrdered: %v", op, err)
		}

		switch choice := rng.Intn(3); {
		case choice == 0:
			ref := fmt.Sprintf("ref-%d", op)
			if _, err := l.InsertPages(ctx, bookID, []string{ref}); err != nil {
				t.Fatalf("op %d: InsertPages: %v", op, err)
			}
		case choice == 1 && len(pages) > 1:
			victim := pages[rng.Intn(len(pages))]
			if err := l.DeletePage(ctx, victim.ID); err != nil {
				t.Fatalf("op %d: DeletePage: %v", op, err)
			}
		default:
			origin := pages[rng.Intn(len(pages))]
			p := &types.Page{BookID: bookID, ImageRef: fmt.Sprintf("split-%d", op), SplitFrom: origin.ID}
			if err := l.InsertAfter(ctx, origin.ID, p); err != nil {
				t.Fatalf("op %d: InsertAfter: %v", op, err)
			}
			if p.PageNumber != origin.PageNumber+1 {
				t.Fatalf("op %d: inserted page numbered %d, want %d", op, p.PageNumber, origin.PageNumber+1)
			}
		}

		assertContiguous(t, l, bookID)
	}
}
