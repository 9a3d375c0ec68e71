package split

import (
	"encoding/json"
	"testing"

	"github.com/jackzampolin/folio/internal/errdefs"
)

func TestParseDetection(t *testing.T) {
	t.Run("valid spread", func(t *testing.T) {
		raw := json.RawMessage(`{
			"isTwoPageSpread": true,
			"confidence": "high",
			"reasoning": "gutter shadow at center",
			"leftPage": {"xmin": 0, "xmax": 505, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 495, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`)
		d, err := parseDetection(raw)
		if err != nil {
			t.Fatalf("parseDetection: %v", err)
		}
		if !d.IsTwoPageSpread || d.LeftPage.XMax != 505 {
			t.Errorf("unexpected detection: %+v", d)
		}
	})

	t.Run("valid single page", func(t *testing.T) {
		raw := json.RawMessage(`{
			"isTwoPageSpread": false,
			"confidence": "medium",
			"leftPage": {"xmin": 0, "xmax": 1000, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 0, "xmax": 0, "ymin": 0, "ymax": 0}
		}`)
		d, err := parseDetection(raw)
		if err != nil {
			t.Fatalf("parseDetection: %v", err)
		}
		if d.IsTwoPageSpread {
			t.Error("expected single-page detection")
		}
	})
}

func TestParseDetectionRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `the page appears to be a spread`},
		{"missing confidence", `{
			"isTwoPageSpread": true,
			"leftPage": {"xmin": 0, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`},
		{"confidence outside enum", `{
			"isTwoPageSpread": true,
			"confidence": "certain",
			"leftPage": {"xmin": 0, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`},
		{"coordinate above range", `{
			"isTwoPageSpread": true,
			"confidence": "high",
			"leftPage": {"xmin": 0, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1200, "ymin": 0, "ymax": 1000}
		}`},
		{"spread with zeroed box", `{
			"isTwoPageSpread": true,
			"confidence": "high",
			"leftPage": {"xmin": 0, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 0, "xmax": 0, "ymin": 0, "ymax": 0}
		}`},
		{"degenerate box", `{
			"isTwoPageSpread": true,
			"confidence": "high",
			"leftPage": {"xmin": 500, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`},
		{"single page with right box", `{
			"isTwoPageSpread": false,
			"confidence": "low",
			"leftPage": {"xmin": 0, "xmax": 1000, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`},
		{"extra property", `{
			"isTwoPageSpread": true,
			"confidence": "high",
			"verdict": "split it",
			"leftPage": {"xmin": 0, "xmax": 500, "ymin": 0, "ymax": 1000},
			"rightPage": {"xmin": 500, "xmax": 1000, "ymin": 0, "ymax": 1000}
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseDetection(json.RawMessage(tc.raw))
			if !errdefs.IsDetectionFailed(err) {
				t.Errorf("expected detection-failed error, got %v", err)
			}
		})
	}
}
