package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DetectionMethod records which cache-fallback level produced an occurrence.
// Kept independent of OntologyVersion: the two are easy to conflate (the
// original system only tracked one label) but answer different questions —
// this answers "how was it detected", OntologyVersion answers "which model
// revision".
type DetectionMethod string

const (
	DetectionModelVideo  DetectionMethod = "model_video"
	DetectionModelText   DetectionMethod = "model_text"
	DetectionModelNoCache DetectionMethod = "model_nocache"
)

// defaultReliabilityScore is used because no annotator currently emits a
// score field; see DESIGN.md Open Question decisions.
const defaultReliabilityScore = 0.5

var (
	ErrInvalidSpan            = errors.New("span start must be less than end and within text bounds")
	ErrInvalidComprehensibility = errors.New("comprehensibility score must be in [0,1]")
	ErrEmptyRationale         = errors.New("rationale cannot be empty")
)

// Span is a character-offset range (UTF code units) into a Segment's text.
type Span struct {
	Start int
	End   int
}

// Evidence captures why the bound FineUnit sense applies to the span.
type Evidence struct {
	Span                    Span
	Rationale               string
	VisualComprehensibility float64
	TextualComprehensibility float64
}

// Occurrence binds a Segment span to a FineUnit.
type Occurrence struct {
	ID               uuid.UUID
	SegmentID        uuid.UUID
	FineID           int64
	ReliabilityScore float64
	DetectionMethod  DetectionMethod
	OntologyVersion  string
	Evidence         Evidence
	CreatedAt        time.Time
}

// NewOccurrence validates and constructs an Occurrence. textLen is the
// length of the owning segment's text, used to bound the span.
func NewOccurrence(segmentID uuid.UUID, fineID int64, evidence Evidence, method DetectionMethod, ontologyVer string, textLen int) (*Occurrence, error) {
	if evidence.Span.Start < 0 || evidence.Span.Start >= evidence.Span.End || evidence.Span.End > textLen {
		return nil, ErrInvalidSpan
	}
	if evidence.Rationale == "" {
		return nil, ErrEmptyRationale
	}
	if !inUnitRange(evidence.VisualComprehensibility) || !inUnitRange(evidence.TextualComprehensibility) {
		return nil, ErrInvalidComprehensibility
	}

	return &Occurrence{
		ID:               uuid.New(),
		SegmentID:        segmentID,
		FineID:           fineID,
		ReliabilityScore: defaultReliabilityScore,
		DetectionMethod:  method,
		OntologyVersion:  ontologyVer,
		Evidence:         evidence,
		CreatedAt:        time.Now(),
	}, nil
}

func inUnitRange(v float64) bool {
	return v >= 0.0 && v <= 1.0
}
