package asrclient

import (
	"fmt"
	"strings"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// parseSegments converts the provider's raw segment maps (WhisperX shape:
// start, end, text, language, words, speaker) into ASRSegments.
func parseSegments(raw []any) ([]repository.ASRSegment, error) {
	segments := make([]repository.ASRSegment, 0, len(raw))

	for i, item := range raw {
		seg, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("asr segment %d is not an object", i)
		}

		start, ok := seg["start"].(float64)
		if !ok {
			return nil, fmt.Errorf("asr segment %d missing start", i)
		}
		end, ok := seg["end"].(float64)
		if !ok {
			return nil, fmt.Errorf("asr segment %d missing end", i)
		}
		text, _ := seg["text"].(string)

		lang, _ := seg["language"].(string)
		if lang == "" {
			lang = "en"
		}

		meta := map[string]any{
			"words":      seg["words"],
			"chars":      seg["chars"],
			"confidence": seg["confidence"],
		}
		if speaker, ok := seg["speaker"]; ok {
			meta["speaker"] = speaker
		}

		segments = append(segments, repository.ASRSegment{
			TStart: start,
			TEnd:   end,
			Text:   strings.TrimSpace(text),
			Lang:   lang,
			Meta:   meta,
		})
	}

	return segments, nil
}

// generateVTT renders the provider's raw segments as a WebVTT cue list.
func generateVTT(raw []any) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	cue := 1
	for _, item := range raw {
		seg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, _ := seg["start"].(float64)
		end, _ := seg["end"].(float64)
		text, _ := seg["text"].(string)

		fmt.Fprintf(&b, "%d\n", cue)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(start), formatTimestamp(end))
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
		cue++
	}

	return b.String()
}

// formatTimestamp renders seconds as a VTT timestamp, e.g. "00:01:23.456".
func formatTimestamp(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600+minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}
