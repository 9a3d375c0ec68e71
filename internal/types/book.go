// Package types provides shared types used across multiple packages.
// This package has no dependencies on other folio packages to avoid import cycles.
package types

// BookStatus tracks the digitization state of a book.
type BookStatus string

const (
	// BookStatusNew indicates a book with no ingested pages yet.
	BookStatusNew BookStatus = "new"
	// BookStatusIngested indicates page images have been loaded.
	BookStatusIngested BookStatus = "ingested"
	// BookStatusProcessing indicates a batch run is working through the pages.
	BookStatusProcessing BookStatus = "processing"
	// BookStatusComplete indicates all pages carry stage results.
	BookStatusComplete BookStatus = "complete"
)

// Book is the parent record for an ordered set of pages.
// Pages reference the book by id; the book does not embed them.
type Book struct {
	ID             string     `json:"_docID,omitempty"`
	Title          string     `json:"title"`
	Subtitle       string     `json:"subtitle,omitempty"`
	Author         string     `json:"author,omitempty"`
	SourceLanguage string     `json:"source_language"`
	Status         BookStatus `json:"status"`

	// Tenant is a nominal owner tag. Multi-tenant isolation beyond this
	// tag is out of scope.
	Tenant string `json:"tenant,omitempty"`
}
