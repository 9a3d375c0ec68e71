package store

import (
	"context"
	"fmt"
	"strings"
)

// Collection names in the record store.
const (
	CollectionBook  = "Book"
	CollectionPage  = "Page"
	CollectionBatch = "Batch"
)

// Nested structures (crop, stage results, detection) are stored as
// JSON-encoded strings; DefraDB embedded objects are avoided so field
// updates stay single-level.
const schemaSDL = `
type Book {
	title: String
	subtitle: String
	author: String
	source_language: String
	status: String
	tenant: String
}

type Page {
	book_id: String @index
	page_number: Int @index
	image_ref: String
	original_image_ref: String
	crop_json: String
	split_from: String
	ocr_json: String
	translation_json: String
	summary_json: String
	split_detection_json: String
}

type Batch {
	book_id: String @index
	action: String
	state: String
	total: Int
	completed: Int
	failed: Int
	created_at: String
	finished_at: String
}
`

// ApplySchema registers the folio collections with the store.
// Safe to call on every startup; an already-registered schema is not an error.
func ApplySchema(ctx context.Context, client *Client) error {
	if err := client.AddSchema(ctx, schemaSDL); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
