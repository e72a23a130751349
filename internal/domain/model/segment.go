package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTimeRange = errors.New("t_end must be greater than t_start")
	ErrEmptySegmentText = errors.New("segment text cannot be empty")
	ErrNegativeStart    = errors.New("t_start cannot be negative")
)

// Segment is a time-aligned transcript slice produced by ASR for one video.
type Segment struct {
	ID        uuid.UUID
	VideoID   uuid.UUID
	Index     int
	TStart    float64
	TEnd      float64
	Text      string
	Lang      string
	Meta      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSegment validates and constructs a Segment. Index is the segment's
// position in the ASR output, used to reassemble annotation output in order
// and to resolve Occurrence.segment_index during persistence.
func NewSegment(videoID uuid.UUID, index int, tStart, tEnd float64, text, lang string, meta map[string]any) (*Segment, error) {
	if tStart < 0 {
		return nil, ErrNegativeStart
	}
	if tEnd <= tStart {
		return nil, ErrInvalidTimeRange
	}
	if text == "" {
		return nil, ErrEmptySegmentText
	}

	now := time.Now()
	return &Segment{
		ID:        uuid.New(),
		VideoID:   videoID,
		Index:     index,
		TStart:    tStart,
		TEnd:      tEnd,
		Text:      text,
		Lang:      lang,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
