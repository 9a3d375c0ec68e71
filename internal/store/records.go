package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/folio/internal/types"
)

// bookInput converts a Book to store field values.
func bookInput(b *types.Book) map[string]any {
	return map[string]any{
		"title":           b.Title,
		"subtitle":        b.Subtitle,
		"author":          b.Author,
		"source_language": b.SourceLanguage,
		"status":          string(b.Status),
		"tenant":          b.Tenant,
	}
}

// pageInput converts a Page to store field values.
// Nested structures are JSON-encoded strings (see schema.go).
func pageInput(p *types.Page) (map[string]any, error) {
	input := map[string]any{
		"book_id":     p.BookID,
		"page_number": p.PageNumber,
		"image_ref":   p.ImageRef,
	}
	if p.OriginalImageRef != "" {
		input["original_image_ref"] = p.OriginalImageRef
	}
	if p.SplitFrom != "" {
		input["split_from"] = p.SplitFrom
	}

	for field, v := range map[string]any{
		"crop_json":            p.Crop,
		"ocr_json":             p.OCR,
		"translation_json":     p.Translation,
		"summary_json":         p.Summary,
		"split_detection_json": p.SplitDetection,
	} {
		encoded, err := encodeJSONField(v)
		if err != nil {
			return nil, err
		}
		if encoded != "" {
			input[field] = encoded
		}
	}

	return input, nil
}

// encodeJSONField marshals a nested structure for storage.
// Returns "" for nil pointers so absent fields stay absent.
func encodeJSONField(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case *types.CropRegion:
		if val == nil {
			return "", nil
		}
	case *types.StageResult:
		if val == nil {
			return "", nil
		}
	case *types.SplitDetection:
		if val == nil {
			return "", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode field: %w", err)
	}
	return string(b), nil
}

// EncodeStageResult marshals a stage result for an UpdatePage field map.
func EncodeStageResult(r *types.StageResult) (string, error) {
	return encodeJSONField(r)
}

// EncodeCrop marshals a crop region for an UpdatePage field map.
func EncodeCrop(c *types.CropRegion) (string, error) {
	return encodeJSONField(c)
}

// EncodeSplitDetection marshals a detection for an UpdatePage field map.
func EncodeSplitDetection(d *types.SplitDetection) (string, error) {
	return encodeJSONField(d)
}

// decodeBook converts a GraphQL response document to a Book.
func decodeBook(doc map[string]any) *types.Book {
	b := &types.Book{}
	b.ID, _ = doc["_docID"].(string)
	b.Title, _ = doc["title"].(string)
	b.Subtitle, _ = doc["subtitle"].(string)
	b.Author, _ = doc["author"].(string)
	b.SourceLanguage, _ = doc["source_language"].(string)
	if s, ok := doc["status"].(string); ok {
		b.Status = types.BookStatus(s)
	}
	b.Tenant, _ = doc["tenant"].(string)
	return b
}

// decodePage converts a GraphQL response document to a Page.
func decodePage(doc map[string]any) (*types.Page, error) {
	p := &types.Page{}
	p.ID, _ = doc["_docID"].(string)
	p.BookID, _ = doc["book_id"].(string)
	if n, ok := doc["page_number"].(float64); ok {
		p.PageNumber = int(n)
	}
	p.ImageRef, _ = doc["image_ref"].(string)
	p.OriginalImageRef, _ = doc["original_image_ref"].(string)
	p.SplitFrom, _ = doc["split_from"].(string)

	if raw, ok := doc["crop_json"].(string); ok && raw != "" {
		p.Crop = &types.CropRegion{}
		if err := json.Unmarshal([]byte(raw), p.Crop); err != nil {
			return nil, fmt.Errorf("failed to decode crop for page %s: %w", p.ID, err)
		}
	}
	if raw, ok := doc["split_detection_json"].(string); ok && raw != "" {
		p.SplitDetection = &types.SplitDetection{}
		if err := json.Unmarshal([]byte(raw), p.SplitDetection); err != nil {
			return nil, fmt.Errorf("failed to decode split detection for page %s: %w", p.ID, err)
		}
	}

	for field, target := range map[string]**types.StageResult{
		"ocr_json":         &p.OCR,
		"translation_json": &p.Translation,
		"summary_json":     &p.Summary,
	} {
		raw, ok := doc[field].(string)
		if !ok || raw == "" {
			continue
		}
		result := &types.StageResult{}
		if err := json.Unmarshal([]byte(raw), result); err != nil {
			return nil, fmt.Errorf("failed to decode %s for page %s: %w", field, p.ID, err)
		}
		*target = result
	}

	return p, nil
}

// pageFields is the field selection used by all page queries.
const pageFields = `_docID book_id page_number image_ref original_image_ref crop_json split_from ocr_json translation_json summary_json split_detection_json`

// bookFields is the field selection used by all book queries.
const bookFields = `_docID title subtitle author source_language status tenant`
