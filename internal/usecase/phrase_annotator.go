package usecase

import (
	"fmt"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// PhraseAnnotator drives the phrase-sense annotation pass: phrasal verbs,
// collocations, idioms. Run before WordAnnotator so multi-word spans win
// over their constituent words.
type PhraseAnnotator struct{}

func NewPhraseAnnotator() *PhraseAnnotator { return &PhraseAnnotator{} }

func (a *PhraseAnnotator) Kind() AnnotatorKind { return AnnotatorKindPhrase }

func (a *PhraseAnnotator) BuildPrompt(segment *model.Segment, segmentIndex int) string {
	return fmt.Sprintf(`Focus on segment #%d:

Time: %.1fs - %.1fs
Text: %s

Task: identify the phrases in this segment and annotate their meaning.
Common phrase types: phrasal verbs (give up, run out of), collocations
(heavy rain, strong wind), idioms (piece of cake).

Workflow:
1. Identify a phrase (e.g. "give up", "run out of", "heavy rain").
2. Call query_fine_units to get a candidate list (e.g. lemma="give up", kind="phrase_sense").
3. Choose the best fine_id from the candidates returned by the tool — never invent one.
   If the tool returns no candidates, skip the phrase.
4. Score visual_comprehensibility and textual_comprehensibility in [0.0, 1.0]
   for the phrase's overall meaning, not its individual words.

Prefer phrases over their constituent words: "give up" is a phrase, not
standalone "give". Only annotate segment #%d; segment_index must equal %d.
Span covers the entire phrase and is a character offset into this segment's
text.`,
		segmentIndex, segment.TStart, segment.TEnd, segment.Text, segmentIndex, segmentIndex)
}

func (a *PhraseAnnotator) Validate(ann RawAnnotation, segment *model.Segment, segmentIndex int) bool {
	return validateCommon(ann, segment, segmentIndex)
}

func (a *PhraseAnnotator) OutputSchema() map[string]any {
	return annotationOutputSchema()
}
