package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/types"
)

// MemoryStore implements Store with in-memory maps for unit tests.
// Error injection fields let tests exercise partial-failure paths.
type MemoryStore struct {
	mu sync.RWMutex

	books   map[string]*types.Book
	pages   map[string]*types.Page
	batches map[string]map[string]any

	// UpdatePageErr is returned by UpdatePage when non-nil.
	UpdatePageErr error

	// ErrAfterNPageWrites causes page writes to fail after N successes.
	// Zero disables injection.
	ErrAfterNPageWrites int
	pageWriteCount      int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:   make(map[string]*types.Book),
		pages:   make(map[string]*types.Page),
		batches: make(map[string]map[string]any),
	}
}

func (m *MemoryStore) CreateBook(_ context.Context, book *types.Book) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	clone := *book
	clone.ID = id
	m.books[id] = &clone
	book.ID = id
	return id, nil
}

func (m *MemoryStore) GetBook(_ context.Context, id string) (*types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.books[id]
	if !ok {
		return nil, errdefs.NotFound("book %s", id)
	}
	clone := *b
	return &clone, nil
}

func (m *MemoryStore) ListBooks(_ context.Context) ([]types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := make([]types.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, *b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (m *MemoryStore) UpdateBook(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return errdefs.NotFound("book %s", id)
	}
	for k, v := range fields {
		switch k {
		case "title":
			b.Title, _ = v.(string)
		case "subtitle":
			b.Subtitle, _ = v.(string)
		case "author":
			b.Author, _ = v.(string)
		case "source_language":
			b.SourceLanguage, _ = v.(string)
		case "status":
			if s, ok := v.(string); ok {
				b.Status = types.BookStatus(s)
			}
		case "tenant":
			b.Tenant, _ = v.(string)
		default:
			return fmt.Errorf("unknown book field %q", k)
		}
	}
	return nil
}

func (m *MemoryStore) CreatePage(_ context.Context, page *types.Page) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.countPageWrite(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	clone := clonePage(page)
	clone.ID = id
	m.pages[id] = clone
	page.ID = id
	return id, nil
}

func (m *MemoryStore) CreatePages(ctx context.Context, pages []*types.Page) error {
	for _, p := range pages {
		if _, err := m.CreatePage(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) GetPage(_ context.Context, id string) (*types.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[id]
	if !ok {
		return nil, errdefs.NotFound("page %s", id)
	}
	return clonePage(p), nil
}

func (m *MemoryStore) GetPageByNumber(_ context.Context, bookID string, pageNumber int) (*types.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.pages {
		if p.BookID == bookID && p.PageNumber == pageNumber {
			return clonePage(p), nil
		}
	}
	return nil, errdefs.NotFound("page %d of book %s", pageNumber, bookID)
}

func (m *MemoryStore) ListPagesOrdered(_ context.Context, bookID string) ([]types.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pages []types.Page
	for _, p := range m.pages {
		if p.BookID == bookID {
			pages = append(pages, *clonePage(p))
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

func (m *MemoryStore) UpdatePage(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdatePageErr != nil {
		return m.UpdatePageErr
	}
	if err := m.countPageWrite(); err != nil {
		return err
	}

	p, ok := m.pages[id]
	if !ok {
		return errdefs.NotFound("page %s", id)
	}
	for k, v := range fields {
		switch k {
		case "page_number":
			switch n := v.(type) {
			case int:
				p.PageNumber = n
			case float64:
				p.PageNumber = int(n)
			}
		case "image_ref":
			p.ImageRef, _ = v.(string)
		case "original_image_ref":
			p.OriginalImageRef, _ = v.(string)
		case "split_from":
			p.SplitFrom, _ = v.(string)
		case "crop_json":
			if err := decodeInto(v, &p.Crop); err != nil {
				return err
			}
		case "ocr_json":
			if err := decodeInto(v, &p.OCR); err != nil {
				return err
			}
		case "translation_json":
			if err := decodeInto(v, &p.Translation); err != nil {
				return err
			}
		case "summary_json":
			if err := decodeInto(v, &p.Summary); err != nil {
				return err
			}
		case "split_detection_json":
			if err := decodeInto(v, &p.SplitDetection); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown page field %q", k)
		}
	}
	return nil
}

func (m *MemoryStore) DeletePage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[id]; !ok {
		return errdefs.NotFound("page %s", id)
	}
	delete(m.pages, id)
	return nil
}

func (m *MemoryStore) CreateBatch(_ context.Context, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	m.batches[id] = doc
	return id, nil
}

func (m *MemoryStore) UpdateBatch(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.batches[id]
	if !ok {
		return errdefs.NotFound("batch %s", id)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// GetBatch returns a stored batch record for test assertions.
func (m *MemoryStore) GetBatch(id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.batches[id]
	return doc, ok
}

// countPageWrite applies the ErrAfterNPageWrites injection. Caller holds mu.
func (m *MemoryStore) countPageWrite() error {
	if m.ErrAfterNPageWrites <= 0 {
		return nil
	}
	m.pageWriteCount++
	if m.pageWriteCount > m.ErrAfterNPageWrites {
		return fmt.Errorf("injected write failure after %d writes", m.ErrAfterNPageWrites)
	}
	return nil
}

// decodeInto unmarshals a JSON-string field value into target.
// An empty string clears the field.
func decodeInto[T any](v any, target **T) error {
	raw, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected JSON string field, got %T", v)
	}
	if raw == "" {
		*target = nil
		return nil
	}
	out := new(T)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode field: %w", err)
	}
	*target = out
	return nil
}

func clonePage(p *types.Page) *types.Page {
	clone := *p
	if p.Crop != nil {
		c := *p.Crop
		clone.Crop = &c
	}
	if p.OCR != nil {
		r := *p.OCR
		clone.OCR = &r
	}
	if p.Translation != nil {
		r := *p.Translation
		clone.Translation = &r
	}
	if p.Summary != nil {
		r := *p.Summary
		clone.Summary = &r
	}
	if p.SplitDetection != nil {
		d := *p.SplitDetection
		clone.SplitDetection = &d
	}
	return &clone
}
