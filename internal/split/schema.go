package split

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/types"
)

// detectionSchemaJSON is the contract for the geometry model's response.
// Coordinates are normalized to 0-1000 on each axis.
const detectionSchemaJSON = `{
	"type": "object",
	"properties": {
		"isTwoPageSpread": {"type": "boolean"},
		"confidence": {"type": "string", "enum": ["high", "medium", "low"]},
		"reasoning": {"type": "string"},
		"leftPage": {"$ref": "#/$defs/box"},
		"rightPage": {"$ref": "#/$defs/box"}
	},
	"required": ["isTwoPageSpread", "confidence", "leftPage", "rightPage"],
	"additionalProperties": false,
	"$defs": {
		"box": {
			"type": "object",
			"properties": {
				"xmin": {"type": "integer", "minimum": 0, "maximum": 1000},
				"xmax": {"type": "integer", "minimum": 0, "maximum": 1000},
				"ymin": {"type": "integer", "minimum": 0, "maximum": 1000},
				"ymax": {"type": "integer", "minimum": 0, "maximum": 1000}
			},
			"required": ["xmin", "xmax", "ymin", "ymax"],
			"additionalProperties": false
		}
	}
}`

var detectionSchema = jsonschema.MustCompileString("split_detection.json", detectionSchemaJSON)

// DetectionSchema returns the raw JSON schema sent with structured-output
// requests.
func DetectionSchema() json.RawMessage {
	return json.RawMessage(detectionSchemaJSON)
}

// parseDetection validates raw model output against the detection schema and
// decodes it. Schema violations surface as DetectionFailed so callers can
// retry the geometry call.
func parseDetection(raw json.RawMessage) (*types.SplitDetection, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errdefs.DetectionFailed("response is not valid JSON: %v", err)
	}
	if err := detectionSchema.Validate(doc); err != nil {
		return nil, errdefs.DetectionFailed("response failed schema validation: %v", err)
	}

	detection := &types.SplitDetection{}
	if err := json.Unmarshal(raw, detection); err != nil {
		return nil, errdefs.DetectionFailed("failed to decode detection: %v", err)
	}

	if err := checkBoxes(detection); err != nil {
		return nil, err
	}
	return detection, nil
}

// checkBoxes applies the geometry rules the schema cannot express.
func checkBoxes(d *types.SplitDetection) error {
	if d.IsTwoPageSpread {
		if d.LeftPage.IsZero() || d.RightPage.IsZero() {
			return errdefs.DetectionFailed("spread detection with zeroed page box")
		}
		if d.LeftPage.XMin >= d.LeftPage.XMax || d.RightPage.XMin >= d.RightPage.XMax {
			return errdefs.DetectionFailed("degenerate page box")
		}
		return nil
	}
	// Single page: full-frame left box, zeroed right box.
	if d.LeftPage.XMin >= d.LeftPage.XMax {
		return errdefs.DetectionFailed("degenerate left box for single page")
	}
	if !d.RightPage.IsZero() {
		return errdefs.DetectionFailed("single-page detection with non-zero right box")
	}
	return nil
}
