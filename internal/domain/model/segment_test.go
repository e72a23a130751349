package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewSegment(t *testing.T) {
	videoID := uuid.New()

	tests := []struct {
		name    string
		tStart  float64
		tEnd    float64
		text    string
		wantErr error
	}{
		{"valid", 0.0, 3.5, "I want to give up learning English", nil},
		{"negative start", -1.0, 3.5, "text", ErrNegativeStart},
		{"end before start", 3.5, 3.5, "text", ErrInvalidTimeRange},
		{"empty text", 0.0, 3.5, "", ErrEmptySegmentText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, err := NewSegment(videoID, 0, tt.tStart, tt.tEnd, tt.text, "en", nil)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seg.VideoID != videoID {
				t.Errorf("got video id %v, want %v", seg.VideoID, videoID)
			}
		})
	}
}
