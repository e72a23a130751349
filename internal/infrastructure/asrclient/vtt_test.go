package asrclient

import (
	"strings"
	"testing"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{3.5, "00:00:03.500"},
		{83.456, "00:01:23.456"},
		{3661.001, "01:01:01.001"},
	}

	for _, tt := range tests {
		if got := formatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestGenerateVTT(t *testing.T) {
	raw := []any{
		map[string]any{"start": 0.5, "end": 3.2, "text": " Hello world "},
		map[string]any{"start": 3.2, "end": 6.0, "text": "Second segment"},
	}

	vtt := generateVTT(raw)

	if !strings.HasPrefix(vtt, "WEBVTT\n\n") {
		t.Errorf("vtt does not start with WEBVTT header: %q", vtt)
	}
	if !strings.Contains(vtt, "00:00:00.500 --> 00:00:03.200") {
		t.Errorf("vtt missing first cue timing: %q", vtt)
	}
	if !strings.Contains(vtt, "Hello world") {
		t.Errorf("vtt missing trimmed text: %q", vtt)
	}
	if !strings.Contains(vtt, "2\n00:00:03.200 --> 00:00:06.000") {
		t.Errorf("vtt missing second cue: %q", vtt)
	}
}

func TestParseSegments(t *testing.T) {
	raw := []any{
		map[string]any{
			"start":    0.5,
			"end":      3.2,
			"text":     " Hello world ",
			"language": "en",
			"words":    []any{"Hello", "world"},
			"speaker":  "SPEAKER_00",
		},
	}

	segments, err := parseSegments(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	seg := segments[0]
	if seg.TStart != 0.5 || seg.TEnd != 3.2 {
		t.Errorf("got timing %v-%v, want 0.5-3.2", seg.TStart, seg.TEnd)
	}
	if seg.Text != "Hello world" {
		t.Errorf("got text %q, want trimmed Hello world", seg.Text)
	}
	if seg.Meta["speaker"] != "SPEAKER_00" {
		t.Errorf("got meta speaker %v, want SPEAKER_00", seg.Meta["speaker"])
	}
}

func TestParseSegments_MissingStart(t *testing.T) {
	raw := []any{
		map[string]any{"end": 3.2, "text": "oops"},
	}

	if _, err := parseSegments(raw); err == nil {
		t.Error("expected an error for a segment missing start")
	}
}
