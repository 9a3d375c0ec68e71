package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/ledger"
	"github.com/jackzampolin/folio/internal/store"
	"github.com/jackzampolin/folio/internal/types"
)

type stubStages struct {
	mu sync.Mutex

	transcribeFn func(pageIndex int, previous string) (string, error)
	calls        int
	previouses   []string
}

func (s *stubStages) Transcribe(_ context.Context, _ []byte, _, previous, _ string) (string, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.previouses = append(s.previouses, previous)
	fn := s.transcribeFn
	s.mu.Unlock()

	if fn != nil {
		return fn(idx, previous)
	}
	return fmt.Sprintf("transcription %d", idx+1), nil
}

func (s *stubStages) Translate(_ context.Context, transcription, _, _, previous, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.previouses = append(s.previouses, previous)
	s.mu.Unlock()
	if transcription == "" {
		return "", errdefs.InvalidState("translate requires a transcription")
	}
	return "translated: " + transcription, nil
}

func (s *stubStages) Summarize(_ context.Context, translation, _, previous, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.previouses = append(s.previouses, previous)
	s.mu.Unlock()
	return "summary of: " + translation, nil
}

func (s *stubStages) Model() string { return "stub-model" }

type stubDetector struct {
	calls []string
	err   error
}

func (d *stubDetector) DetectSpread(_ context.Context, pageID string) (*types.SplitDetection, error) {
	d.calls = append(d.calls, pageID)
	if d.err != nil {
		return nil, d.err
	}
	return &types.SplitDetection{IsTwoPageSpread: false}, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	return []byte("image:" + ref), nil
}

type harness struct {
	orch   *Orchestrator
	store  *store.MemoryStore
	stages *stubStages
	bookID string
	pages  []types.Page
}

func newHarness(t *testing.T, pageCount int) *harness {
	t.Helper()
	ms := store.NewMemoryStore()
	ctx := context.Background()

	bookID, err := ms.CreateBook(ctx, &types.Book{Title: "Codex", SourceLanguage: "Latin"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	led := ledger.New(ms, nil)
	refs := make([]string, pageCount)
	for i := range refs {
		refs[i] = fmt.Sprintf("scan-%d.png", i+1)
	}
	pages, err := led.InsertPages(ctx, bookID, refs)
	if err != nil {
		t.Fatalf("InsertPages: %v", err)
	}

	stages := &stubStages{}
	orch := New(Config{
		Store:  ms,
		Stages: stages,
		Images: stubFetcher{},
		Pacing: time.Millisecond,
	})
	return &harness{orch: orch, store: ms, stages: stages, bookID: bookID, pages: pages}
}

func (h *harness) pageIDs() []string {
	ids := make([]string, len(h.pages))
	for i, p := range h.pages {
		ids[i] = p.ID
	}
	return ids
}

func TestRunTranscribesSequentially(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	result, err := h.orch.Run(ctx, Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateCompleted {
		t.Errorf("state = %s, want %s", result.State, StateCompleted)
	}
	if len(result.CompletedIDs) != 3 || len(result.FailedIDs) != 0 {
		t.Errorf("completed %d failed %d", len(result.CompletedIDs), len(result.FailedIDs))
	}

	for i, p := range h.pages {
		got, err := h.store.GetPage(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		if got.OCR == nil {
			t.Fatalf("page %d has no transcription", i+1)
		}
		want := fmt.Sprintf("transcription %d", i+1)
		if got.OCR.Text != want {
			t.Errorf("page %d text = %q, want %q", i+1, got.OCR.Text, want)
		}
		if got.OCR.Model != "stub-model" {
			t.Errorf("page %d model = %q", i+1, got.OCR.Model)
		}
		if got.OCR.Language != "Latin" {
			t.Errorf("page %d language = %q", i+1, got.OCR.Language)
		}
	}
}

// Each item chains against the result its predecessor wrote moments
// earlier, re-read from the store rather than carried in memory.
func TestRunChainsPreviousPageContext(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.orch.Run(context.Background(), Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"", "transcription 1", "transcription 2"}
	if len(h.stages.previouses) != len(want) {
		t.Fatalf("got %d calls", len(h.stages.previouses))
	}
	for i, prev := range want {
		if h.stages.previouses[i] != prev {
			t.Errorf("call %d previous = %q, want %q", i+1, h.stages.previouses[i], prev)
		}
	}
}

func TestRunStopsAfterInFlightItemOnCancel(t *testing.T) {
	h := newHarness(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	h.stages.transcribeFn = func(idx int, _ string) (string, error) {
		if idx == 2 {
			close(started)
			<-release
		}
		return fmt.Sprintf("transcription %d", idx+1), nil
	}

	go func() {
		<-started
		cancel()
		close(release)
	}()

	result, err := h.orch.Run(ctx, Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateStopped {
		t.Errorf("state = %s, want %s", result.State, StateStopped)
	}
	// The in-flight item finishes; nothing after it starts.
	if len(result.CompletedIDs) != 3 {
		t.Errorf("completed %d items, want 3", len(result.CompletedIDs))
	}
	if h.stages.calls != 3 {
		t.Errorf("stage invoked %d times, want 3", h.stages.calls)
	}
	for _, id := range h.pageIDs()[3:] {
		if result.ItemStates[id] != ItemPending {
			t.Errorf("unstarted item %s in state %s", id, result.ItemStates[id])
		}
	}
}

// ctxStore refuses batch-record writes once the context is cancelled, the
// way the HTTP-backed store does.
type ctxStore struct {
	*store.MemoryStore
}

func (s ctxStore) UpdateBatch(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.UpdateBatch(ctx, id, fields)
}

// A cancelled run must still land its closing batch-record write, otherwise
// the persisted record reads "running" forever.
func TestRunPersistsRecordAfterCancel(t *testing.T) {
	h := newHarness(t, 3)
	h.orch.store = ctxStore{h.store}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.stages.transcribeFn = func(idx int, _ string) (string, error) {
		if idx == 0 {
			cancel()
		}
		return fmt.Sprintf("transcription %d", idx+1), nil
	}

	result, err := h.orch.Run(ctx, Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateStopped {
		t.Fatalf("state = %s, want %s", result.State, StateStopped)
	}

	record, ok := h.store.GetBatch(result.BatchID)
	if !ok {
		t.Fatal("batch record not persisted")
	}
	if record["state"] != string(StateStopped) {
		t.Errorf("record state = %v, want %s", record["state"], StateStopped)
	}
	if record["completed"] != 1 {
		t.Errorf("record completed = %v, want 1", record["completed"])
	}
	if record["finished_at"] == nil {
		t.Error("record missing finished_at")
	}
}

func TestRunContinuesPastFailedItem(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	h.stages.transcribeFn = func(idx int, _ string) (string, error) {
		if idx == 1 {
			return "", errdefs.Service("model unavailable")
		}
		return fmt.Sprintf("transcription %d", idx+1), nil
	}

	result, err := h.orch.Run(ctx, Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != StateCompleted {
		t.Errorf("state = %s, want %s", result.State, StateCompleted)
	}
	if len(result.CompletedIDs) != 2 || len(result.FailedIDs) != 1 {
		t.Errorf("completed %d failed %d", len(result.CompletedIDs), len(result.FailedIDs))
	}
	failedID := h.pages[1].ID
	if result.FailedIDs[0] != failedID {
		t.Errorf("failed id = %s, want %s", result.FailedIDs[0], failedID)
	}
	if result.Errors[failedID] == "" {
		t.Error("no error recorded for failed item")
	}

	// A failed item persists nothing.
	page, err := h.store.GetPage(ctx, failedID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.OCR != nil {
		t.Errorf("failed item wrote a stage result: %+v", page.OCR)
	}
}

func TestRunTranslateAndSummarize(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	for i, p := range h.pages {
		ocr, err := store.EncodeStageResult(&types.StageResult{Text: fmt.Sprintf("ocr %d", i+1)})
		if err != nil {
			t.Fatalf("EncodeStageResult: %v", err)
		}
		if err := h.store.UpdatePage(ctx, p.ID, map[string]any{"ocr_json": ocr}); err != nil {
			t.Fatalf("UpdatePage: %v", err)
		}
	}

	result, err := h.orch.Run(ctx, Request{
		BookID:         h.bookID,
		PageIDs:        h.pageIDs(),
		Action:         ActionTranslate,
		TargetLanguage: "English",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.CompletedIDs) != 2 {
		t.Fatalf("completed %d items", len(result.CompletedIDs))
	}

	page, err := h.store.GetPage(ctx, h.pages[0].ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Translation == nil || page.Translation.Text != "translated: ocr 1" {
		t.Errorf("translation = %+v", page.Translation)
	}
	if page.Translation.Language != "English" {
		t.Errorf("translation language = %q", page.Translation.Language)
	}

	// Summarize consumes the translations just written.
	result, err = h.orch.Run(ctx, Request{
		BookID:         h.bookID,
		PageIDs:        h.pageIDs(),
		Action:         ActionSummarize,
		TargetLanguage: "English",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.CompletedIDs) != 2 {
		t.Fatalf("completed %d items", len(result.CompletedIDs))
	}
	page, err = h.store.GetPage(ctx, h.pages[1].ID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Summary == nil || page.Summary.Text != "summary of: translated: ocr 2" {
		t.Errorf("summary = %+v", page.Summary)
	}
}

func TestRunDetectSplit(t *testing.T) {
	h := newHarness(t, 2)
	detector := &stubDetector{}
	h.orch.detector = detector

	result, err := h.orch.Run(context.Background(), Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionDetectSplit,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.CompletedIDs) != 2 {
		t.Errorf("completed %d items", len(result.CompletedIDs))
	}
	if len(detector.calls) != 2 {
		t.Errorf("detector invoked %d times", len(detector.calls))
	}
}

func TestRunValidation(t *testing.T) {
	h := newHarness(t, 1)

	t.Run("unknown action", func(t *testing.T) {
		_, err := h.orch.Run(context.Background(), Request{
			BookID:  h.bookID,
			PageIDs: h.pageIDs(),
			Action:  Action("polish"),
		})
		if !errdefs.IsInvalidArgument(err) {
			t.Errorf("expected invalid-argument error, got %v", err)
		}
	})
	t.Run("unknown book", func(t *testing.T) {
		_, err := h.orch.Run(context.Background(), Request{
			BookID: "missing",
			Action: ActionTranscribe,
		})
		if !errdefs.IsNotFound(err) {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}

func TestRunPersistsBatchRecord(t *testing.T) {
	h := newHarness(t, 2)

	var events []ProgressEvent
	result, err := h.orch.Run(context.Background(), Request{
		BookID:  h.bookID,
		PageIDs: h.pageIDs(),
		Action:  ActionTranscribe,
		OnProgress: func(ev ProgressEvent) {
			events = append(events, ev)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	record, ok := h.store.GetBatch(result.BatchID)
	if !ok {
		t.Fatal("batch record not persisted")
	}
	if record["state"] != string(StateCompleted) {
		t.Errorf("record state = %v", record["state"])
	}
	if record["completed"] != 2 {
		t.Errorf("record completed = %v", record["completed"])
	}
	if record["finished_at"] == nil {
		t.Error("record missing finished_at")
	}

	if len(events) != 2 {
		t.Fatalf("got %d progress events", len(events))
	}
	if events[1].CurrentIndex != 1 || len(events[1].CompletedIDs) != 1 {
		t.Errorf("second event = %+v", events[1])
	}
}
