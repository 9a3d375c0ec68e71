package types

import "time"

// CoordMax is the upper bound of the normalized coordinate space used for
// crop regions and detection boxes. Both axes run 0..1000 regardless of the
// source image's pixel dimensions.
const CoordMax = 1000

// Stage identifies one step of the transcription pipeline.
type Stage string

const (
	StageOCR         Stage = "ocr"
	StageTranslation Stage = "translation"
	StageSummary     Stage = "summary"
)

// StageResult holds the output of one pipeline stage for one page.
type StageResult struct {
	Text      string    `json:"text"`
	Language  string    `json:"language,omitempty"`
	Model     string    `json:"model,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CropRegion is a sub-rectangle of a page's source image in normalized
// 0-1000 units. Vertical cropping is representable but the split workflow
// only partitions horizontally.
type CropRegion struct {
	XStart int `json:"x_start"`
	XEnd   int `json:"x_end"`
	YStart int `json:"y_start"`
	YEnd   int `json:"y_end"`
}

// FullFrame returns a crop covering the entire image.
func FullFrame() CropRegion {
	return CropRegion{XStart: 0, XEnd: CoordMax, YStart: 0, YEnd: CoordMax}
}

// BoundingBox is a detection rectangle in normalized 0-1000 units.
type BoundingBox struct {
	XMin int `json:"xmin"`
	XMax int `json:"xmax"`
	YMin int `json:"ymin"`
	YMax int `json:"ymax"`
}

// IsZero reports whether the box is the zero rectangle.
func (b BoundingBox) IsZero() bool {
	return b.XMin == 0 && b.XMax == 0 && b.YMin == 0 && b.YMax == 0
}

// ConfidenceManual marks a SplitDetection synthesized from a manual
// instruction rather than an AI geometry call.
const ConfidenceManual = "manual"

// SplitDetection is the result of two-page-spread geometry detection,
// cached on the page. It is never auto-applied; splitting is a separate,
// explicit step.
type SplitDetection struct {
	IsTwoPageSpread bool        `json:"isTwoPageSpread"`
	Confidence      string      `json:"confidence"`
	Reasoning       string      `json:"reasoning,omitempty"`
	LeftPage        BoundingBox `json:"leftPage"`
	RightPage       BoundingBox `json:"rightPage"`
}

// Page is one logical manuscript page. page_number values within a book
// always form the contiguous run 1..N; the ledger repairs numbering after
// every structural change.
type Page struct {
	ID         string `json:"_docID,omitempty"`
	BookID     string `json:"book_id"`
	PageNumber int    `json:"page_number"`

	// ImageRef locates the page's source bitmap. For split products this
	// points at the same underlying image as the origin page; the crop
	// selects the half.
	ImageRef string `json:"image_ref"`

	// OriginalImageRef preserves the pre-crop image for split products so
	// crops are always revertible.
	OriginalImageRef string `json:"original_image_ref,omitempty"`

	Crop *CropRegion `json:"crop,omitempty"`

	// SplitFrom is the id of the page this page was derived from. Absent
	// for pages that are not split products. Never self-referential and
	// immutable once set.
	SplitFrom string `json:"split_from,omitempty"`

	OCR         *StageResult `json:"ocr,omitempty"`
	Translation *StageResult `json:"translation,omitempty"`
	Summary     *StageResult `json:"summary,omitempty"`

	// SplitDetection caches the most recent geometry-detection result.
	SplitDetection *SplitDetection `json:"split_detection,omitempty"`
}

// StageResultFor returns the stored result for a stage, or nil.
func (p *Page) StageResultFor(stage Stage) *StageResult {
	switch stage {
	case StageOCR:
		return p.OCR
	case StageTranslation:
		return p.Translation
	case StageSummary:
		return p.Summary
	}
	return nil
}
