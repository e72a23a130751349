package usecase

import (
	"fmt"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// WordAnnotator drives the word-sense annotation pass: nouns, verbs,
// adjectives, and adverbs.
type WordAnnotator struct{}

func NewWordAnnotator() *WordAnnotator { return &WordAnnotator{} }

func (a *WordAnnotator) Kind() AnnotatorKind { return AnnotatorKindWord }

func (a *WordAnnotator) BuildPrompt(segment *model.Segment, segmentIndex int) string {
	return fmt.Sprintf(`Focus on segment #%d:

Time: %.1fs - %.1fs
Text: %s

Task: identify the words in this segment (nouns, verbs, adjectives, adverbs)
and annotate their meaning.

Workflow:
1. Identify a word worth annotating (e.g. "running").
2. Reduce it to its lemma ("run").
3. Call query_fine_units to get a candidate list (e.g. lemma="run", kind="word_sense", pos="v").
4. Choose the best fine_id from the candidates returned by the tool — never invent one.
   If the tool returns no candidates, skip the word.
5. Score visual_comprehensibility and textual_comprehensibility in [0.0, 1.0]:
   how strongly the video frame, and the surrounding text, each hint at the meaning.

Only annotate segment #%d; segment_index must equal %d. Span is a character
offset into this segment's text.`,
		segmentIndex, segment.TStart, segment.TEnd, segment.Text, segmentIndex, segmentIndex)
}

func (a *WordAnnotator) Validate(ann RawAnnotation, segment *model.Segment, segmentIndex int) bool {
	return validateCommon(ann, segment, segmentIndex)
}

func (a *WordAnnotator) OutputSchema() map[string]any {
	return annotationOutputSchema()
}

func validateCommon(ann RawAnnotation, segment *model.Segment, segmentIndex int) bool {
	if ann.SegmentIndex != segmentIndex {
		return false
	}
	textLen := len(segment.Text)
	if ann.Span.Start < 0 || ann.Span.Start >= ann.Span.End || ann.Span.End > textLen {
		return false
	}
	if ann.Rationale == "" {
		return false
	}
	if ann.VisualComprehensibility < 0 || ann.VisualComprehensibility > 1 {
		return false
	}
	if ann.TextualComprehensibility < 0 || ann.TextualComprehensibility > 1 {
		return false
	}
	return true
}
