package usecase

import (
	"fmt"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// AnnotatorKind mirrors model.FineUnitKind for the two annotation passes the
// orchestrator drives per segment. Grammar rules are reserved but have no
// annotator implementation yet.
type AnnotatorKind string

const (
	AnnotatorKindWord   AnnotatorKind = "word_sense"
	AnnotatorKindPhrase AnnotatorKind = "phrase_sense"
)

// RawAnnotation is the annotation shape as the language model emits it,
// before it's turned into a model.Occurrence by the caller (who supplies
// the segment's database ID, detection method, and ontology version).
type RawAnnotation struct {
	SegmentIndex             int
	FineID                   int64
	Span                     model.Span
	Rationale                string
	VisualComprehensibility  float64
	TextualComprehensibility float64
}

// Annotator builds the per-segment prompt for one annotation pass and
// validates the model's response against that segment's bounds.
type Annotator interface {
	Kind() AnnotatorKind
	BuildPrompt(segment *model.Segment, segmentIndex int) string
	Validate(ann RawAnnotation, segment *model.Segment, segmentIndex int) bool
	OutputSchema() map[string]any
}

// annotationOutputSchema is identical across word and phrase annotators:
// both ask the model for the same annotation shape, just with a different
// prompt steering what gets identified.
func annotationOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"annotations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"segment_index":             map[string]any{"type": "integer"},
						"fine_id":                   map[string]any{"type": "integer"},
						"span": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"start": map[string]any{"type": "integer"},
								"end":   map[string]any{"type": "integer"},
							},
							"required": []string{"start", "end"},
						},
						"rationale":                 map[string]any{"type": "string"},
						"visual_comprehensibility":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
						"textual_comprehensibility": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
					"required": []string{
						"segment_index", "fine_id", "span", "rationale",
						"visual_comprehensibility", "textual_comprehensibility",
					},
				},
			},
		},
		"required": []string{"annotations"},
	}
}

// parseRawAnnotations extracts the "annotations" array from a language
// model response (already JSON-repaired by the driver) into RawAnnotations.
// Entries missing a required field or carrying the wrong type are dropped,
// not treated as a parse error, matching Validate-or-drop semantics.
func parseRawAnnotations(response map[string]any) ([]RawAnnotation, error) {
	raw, ok := response["annotations"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("annotations field is not an array")
	}

	out := make([]RawAnnotation, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ann, ok := decodeRawAnnotation(m)
		if !ok {
			continue
		}
		out = append(out, ann)
	}
	return out, nil
}

func decodeRawAnnotation(m map[string]any) (RawAnnotation, bool) {
	segmentIndex, ok := asInt(m["segment_index"])
	if !ok {
		return RawAnnotation{}, false
	}
	fineID, ok := asInt(m["fine_id"])
	if !ok {
		return RawAnnotation{}, false
	}
	spanMap, ok := m["span"].(map[string]any)
	if !ok {
		return RawAnnotation{}, false
	}
	start, ok := asInt(spanMap["start"])
	if !ok {
		return RawAnnotation{}, false
	}
	end, ok := asInt(spanMap["end"])
	if !ok {
		return RawAnnotation{}, false
	}
	rationale, ok := m["rationale"].(string)
	if !ok || rationale == "" {
		return RawAnnotation{}, false
	}
	visual, ok := asFloat(m["visual_comprehensibility"])
	if !ok {
		return RawAnnotation{}, false
	}
	textual, ok := asFloat(m["textual_comprehensibility"])
	if !ok {
		return RawAnnotation{}, false
	}

	return RawAnnotation{
		SegmentIndex:             segmentIndex,
		FineID:                   int64(fineID),
		Span:                     model.Span{Start: start, End: end},
		Rationale:                rationale,
		VisualComprehensibility:  visual,
		TextualComprehensibility: textual,
	}, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
