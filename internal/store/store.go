package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/types"
)

// Store abstracts record persistence for books, pages, and batch runs.
// The default implementation (DefraStore) targets DefraDB; MemoryStore is
// provided for unit tests.
//
// Field-map updates use the store field names from schema.go (for example
// "page_number", "ocr_json"). The Encode* helpers in records.go produce the
// JSON-string values for nested fields.
type Store interface {
	CreateBook(ctx context.Context, book *types.Book) (string, error)
	GetBook(ctx context.Context, id string) (*types.Book, error)
	ListBooks(ctx context.Context) ([]types.Book, error)
	UpdateBook(ctx context.Context, id string, fields map[string]any) error

	CreatePage(ctx context.Context, page *types.Page) (string, error)
	CreatePages(ctx context.Context, pages []*types.Page) error
	GetPage(ctx context.Context, id string) (*types.Page, error)
	GetPageByNumber(ctx context.Context, bookID string, pageNumber int) (*types.Page, error)
	ListPagesOrdered(ctx context.Context, bookID string) ([]types.Page, error)
	UpdatePage(ctx context.Context, id string, fields map[string]any) error
	DeletePage(ctx context.Context, id string) error

	CreateBatch(ctx context.Context, fields map[string]any) (string, error)
	UpdateBatch(ctx context.Context, id string, fields map[string]any) error
}

// idPattern matches valid document IDs (bae-<uuid> format and simple
// identifiers). IDs are validated before interpolation to prevent GraphQL
// injection.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks if a string is safe to use as a document ID in queries.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty ID")
	}
	if len(id) > 500 {
		return fmt.Errorf("ID too long: %d characters", len(id))
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid ID format: contains unsafe characters")
	}
	return nil
}

// DefraStore implements Store against a DefraDB endpoint.
type DefraStore struct {
	client *Client
}

// NewDefraStore creates a DefraStore with the given client.
func NewDefraStore(client *Client) (*DefraStore, error) {
	if client == nil {
		return nil, fmt.Errorf("DefraStore requires non-nil Client")
	}
	return &DefraStore{client: client}, nil
}

func (s *DefraStore) CreateBook(ctx context.Context, book *types.Book) (string, error) {
	return s.client.Create(ctx, CollectionBook, bookInput(book))
}

func (s *DefraStore) GetBook(ctx context.Context, id string) (*types.Book, error) {
	if err := ValidateID(id); err != nil {
		return nil, errdefs.InvalidArgument("book id %q", id)
	}
	query := fmt.Sprintf(`{ %s(docID: %q) { %s } }`, CollectionBook, id, bookFields)

	doc, err := s.querySingle(ctx, query, CollectionBook)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errdefs.NotFound("book %s", id)
	}
	return decodeBook(doc), nil
}

func (s *DefraStore) ListBooks(ctx context.Context) ([]types.Book, error) {
	query := fmt.Sprintf(`{ %s { %s } }`, CollectionBook, bookFields)

	docs, err := s.queryMany(ctx, query, CollectionBook)
	if err != nil {
		return nil, err
	}
	books := make([]types.Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, *decodeBook(doc))
	}
	return books, nil
}

func (s *DefraStore) UpdateBook(ctx context.Context, id string, fields map[string]any) error {
	if err := ValidateID(id); err != nil {
		return errdefs.InvalidArgument("book id %q", id)
	}
	return s.client.Update(ctx, CollectionBook, id, fields)
}

func (s *DefraStore) CreatePage(ctx context.Context, page *types.Page) (string, error) {
	input, err := pageInput(page)
	if err != nil {
		return "", err
	}
	id, err := s.client.Create(ctx, CollectionPage, input)
	if err != nil {
		return "", err
	}
	page.ID = id
	return id, nil
}

// CreatePages bulk-creates pages in one mutation. DefraDB may return created
// documents out of input order, so ids are matched back by page_number.
func (s *DefraStore) CreatePages(ctx context.Context, pages []*types.Page) error {
	if len(pages) == 0 {
		return nil
	}

	inputs := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		input, err := pageInput(p)
		if err != nil {
			return err
		}
		inputs = append(inputs, input)
	}

	docs, err := s.client.CreateMany(ctx, CollectionPage, inputs, "page_number")
	if err != nil {
		return err
	}

	byNumber := make(map[int]string, len(docs))
	for _, doc := range docs {
		num, ok := doc["page_number"].(float64)
		if !ok {
			continue
		}
		if docID, ok := doc["_docID"].(string); ok {
			byNumber[int(num)] = docID
		}
	}
	for _, p := range pages {
		if id, ok := byNumber[p.PageNumber]; ok {
			p.ID = id
		}
	}
	return nil
}

func (s *DefraStore) GetPage(ctx context.Context, id string) (*types.Page, error) {
	if err := ValidateID(id); err != nil {
		return nil, errdefs.InvalidArgument("page id %q", id)
	}
	query := fmt.Sprintf(`{ %s(docID: %q) { %s } }`, CollectionPage, id, pageFields)

	doc, err := s.querySingle(ctx, query, CollectionPage)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errdefs.NotFound("page %s", id)
	}
	return decodePage(doc)
}

func (s *DefraStore) GetPageByNumber(ctx context.Context, bookID string, pageNumber int) (*types.Page, error) {
	if err := ValidateID(bookID); err != nil {
		return nil, errdefs.InvalidArgument("book id %q", bookID)
	}
	query := fmt.Sprintf(`{ %s(filter: {book_id: {_eq: %q}, page_number: {_eq: %d}}) { %s } }`,
		CollectionPage, bookID, pageNumber, pageFields)

	doc, err := s.querySingle(ctx, query, CollectionPage)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errdefs.NotFound("page %d of book %s", pageNumber, bookID)
	}
	return decodePage(doc)
}

// ListPagesOrdered returns a book's pages sorted by page_number ascending.
// This is the canonical read used by every component needing "the previous
// page" or "the next page".
func (s *DefraStore) ListPagesOrdered(ctx context.Context, bookID string) ([]types.Page, error) {
	if err := ValidateID(bookID); err != nil {
		return nil, errdefs.InvalidArgument("book id %q", bookID)
	}
	query := fmt.Sprintf(`{ %s(filter: {book_id: {_eq: %q}}, order: {page_number: ASC}) { %s } }`,
		CollectionPage, bookID, pageFields)

	docs, err := s.queryMany(ctx, query, CollectionPage)
	if err != nil {
		return nil, err
	}
	pages := make([]types.Page, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePage(doc)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}

func (s *DefraStore) UpdatePage(ctx context.Context, id string, fields map[string]any) error {
	if err := ValidateID(id); err != nil {
		return errdefs.InvalidArgument("page id %q", id)
	}
	return s.client.Update(ctx, CollectionPage, id, fields)
}

func (s *DefraStore) DeletePage(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return errdefs.InvalidArgument("page id %q", id)
	}
	return s.client.Delete(ctx, CollectionPage, id)
}

func (s *DefraStore) CreateBatch(ctx context.Context, fields map[string]any) (string, error) {
	return s.client.Create(ctx, CollectionBatch, fields)
}

func (s *DefraStore) UpdateBatch(ctx context.Context, id string, fields map[string]any) error {
	if err := ValidateID(id); err != nil {
		return errdefs.InvalidArgument("batch id %q", id)
	}
	return s.client.Update(ctx, CollectionBatch, id, fields)
}

// querySingle runs a query expected to match at most one document.
func (s *DefraStore) querySingle(ctx context.Context, query, collection string) (map[string]any, error) {
	docs, err := s.queryMany(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (s *DefraStore) queryMany(ctx context.Context, query, collection string) ([]map[string]any, error) {
	resp, err := s.client.Execute(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", collection, err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("%s query error: %s", collection, errMsg)
	}

	raw, ok := resp.Data[collection].([]any)
	if !ok {
		return nil, nil
	}
	docs := make([]map[string]any, 0, len(raw))
	for _, d := range raw {
		if doc, ok := d.(map[string]any); ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
