package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
	"github.com/videoannot/ingestworker/internal/infrastructure/tracing"
	"golang.org/x/sync/semaphore"
)

var annotationTracer = tracing.Tracer("ingestworker/annotation_orchestrator")

const systemInstruction = `You are a video content analysis expert. You will see the full video and
transcript, or transcript only.

Task: process each segment in turn, identify the words and phrases in it,
and you MUST call query_fine_units to look up candidates in the catalog —
lookups usually need the lemma/citation form.
Disambiguate using the video frame and surrounding text, and score
comprehensibility.

Core rules:
1. Phrases before words: identify phrases first (e.g. "give up"), then words.
2. You must call the tool: never invent a fine_id, always get it from query_fine_units.
3. Empty candidates means skip: if nothing comes back, don't emit that annotation.
4. Score objectively, from a learner's point of view.
5. Output strict JSON matching the given schema.

One segment at a time. Span is a character offset into that segment's text.`

// AnnotationOrchestratorConfig bounds the orchestrator's resource usage.
type AnnotationOrchestratorConfig struct {
	MaxConcurrency  int64
	CacheTTLSeconds int
	ModelName       string
}

// AnnotationOrchestrator drives the per-video annotation pass: cache
// creation with fallback, bounded concurrent per-segment annotation
// (phrase before word), and aggregation into persistable Occurrences.
type AnnotationOrchestrator struct {
	lm      *LMDriver
	catalog CatalogQuerier
	notify  repository.NotifierGateway

	phrase Annotator
	word   Annotator

	cfg AnnotationOrchestratorConfig
}

func NewAnnotationOrchestrator(lm *LMDriver, catalog CatalogQuerier, notify repository.NotifierGateway, cfg AnnotationOrchestratorConfig) *AnnotationOrchestrator {
	return &AnnotationOrchestrator{
		lm:      lm,
		catalog: catalog,
		notify:  notify,
		phrase:  NewPhraseAnnotator(),
		word:    NewWordAnnotator(),
		cfg:     cfg,
	}
}

// ProcessVideo annotates every segment and returns the occurrences keyed by
// the segment's index in segments (SegmentID is not yet populated; the
// caller fills it in once segments are persisted and have real IDs), along
// with which cache-fallback level produced them.
func (o *AnnotationOrchestrator) ProcessVideo(ctx context.Context, videoUID string, videoURI *string, segments []*model.Segment) (map[int][]*model.Occurrence, model.DetectionMethod, error) {
	cached, method := o.createCachedContentWithFallback(ctx, videoURI, segments)

	occurrences := o.processSegmentsConcurrent(ctx, cached, segments, videoUID, method)

	count := 0
	for _, anns := range occurrences {
		count += len(anns)
	}
	slog.Info("annotation pass complete",
		"video_uid", videoUID,
		"segments", len(segments),
		"occurrences", count,
		"method", method,
	)

	return occurrences, method, nil
}

func (o *AnnotationOrchestrator) createCachedContentWithFallback(ctx context.Context, videoURI *string, segments []*model.Segment) (*repository.CachedContent, model.DetectionMethod) {
	transcript := o.buildTranscript(segments)
	tools := o.catalog.ToolDefinitions()

	if videoURI != nil {
		cached, err := o.lm.CreateCachedContent(ctx, videoURI, transcript, strPtr(systemInstruction), tools, o.cfg.CacheTTLSeconds)
		if err == nil {
			return cached, model.DetectionModelVideo
		}
		slog.Warn("multimodal cache creation failed, falling back to text-only", "error", err)
	}

	cached, err := o.lm.CreateCachedContent(ctx, nil, transcript, strPtr(systemInstruction), tools, o.cfg.CacheTTLSeconds)
	if err == nil {
		return cached, model.DetectionModelText
	}
	slog.Warn("text-only cache creation failed, falling back to no-cache mode", "error", err)

	return nil, model.DetectionModelNoCache
}

func (o *AnnotationOrchestrator) buildTranscript(segments []*model.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "Segment #%d (%.1fs - %.1fs):\n%s\n\n", i, seg.TStart, seg.TEnd, seg.Text)
	}
	return b.String()
}

func (o *AnnotationOrchestrator) processSegmentsConcurrent(ctx context.Context, cached *repository.CachedContent, segments []*model.Segment, videoUID string, method model.DetectionMethod) map[int][]*model.Occurrence {
	sem := semaphore.NewWeighted(o.cfg.MaxConcurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	byIndex := make(map[int][]*model.Occurrence, len(segments))

	for idx, seg := range segments {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(idx int, seg *model.Segment) {
			defer wg.Done()
			defer sem.Release(1)

			anns := o.processSegmentIsolated(ctx, cached, seg, idx, videoUID, method)

			mu.Lock()
			byIndex[idx] = anns
			mu.Unlock()
		}(idx, seg)
	}

	wg.Wait()
	return byIndex
}

// processSegmentIsolated never lets a single segment's failure abort the
// others: an error is logged and notified, and the segment simply
// contributes no occurrences.
func (o *AnnotationOrchestrator) processSegmentIsolated(ctx context.Context, cached *repository.CachedContent, seg *model.Segment, idx int, videoUID string, method model.DetectionMethod) []*model.Occurrence {
	var out []*model.Occurrence

	// Phrases before words, per segment.
	for _, annotator := range []Annotator{o.phrase, o.word} {
		anns, err := o.processSegment(ctx, cached, seg, idx, annotator, videoUID, method)
		if err != nil {
			slog.Error("segment annotation failed",
				"video_uid", videoUID, "segment_index", idx, "annotator", annotator.Kind(), "error", err)
			_ = o.notify.Notify(ctx, repository.Notification{
				Severity: repository.SeverityError,
				Title:    "segment annotation failed",
				Content: map[string]string{
					"video_uid":     videoUID,
					"segment_index": fmt.Sprintf("%d", idx),
					"segment_text":  truncate(seg.Text, 100),
					"error":         err.Error(),
				},
			})
			continue
		}
		out = append(out, anns...)
	}

	return out
}

func (o *AnnotationOrchestrator) processSegment(ctx context.Context, cached *repository.CachedContent, seg *model.Segment, idx int, annotator Annotator, videoUID string, method model.DetectionMethod) ([]*model.Occurrence, error) {
	ctx, span := annotationTracer.Start(ctx, "annotation.process_segment")
	defer span.End()
	span.SetAttributes(
		attribute.String("video_uid", videoUID),
		attribute.Int("segment_index", idx),
		attribute.String("annotator", string(annotator.Kind())),
	)

	instruction := fmt.Sprintf("Now process segment #%d:\nTime: %.1fs - %.1fs\nText: %s\n\nUse %s mode.",
		idx, seg.TStart, seg.TEnd, seg.Text, annotator.Kind())
	prompt := instruction + "\n\n" + annotator.BuildPrompt(seg, idx)

	tools := o.catalog.ToolDefinitions()

	var sysInstr *string
	if cached == nil {
		sysInstr = strPtr(systemInstruction)
	}

	handler := o.toolHandler(seg, idx, videoUID)

	start := time.Now()
	raw, err := o.lm.Annotate(ctx, cached, prompt, tools, handler, sysInstr, annotator.OutputSchema())
	metrics.AnnotationLMCallDuration.WithLabelValues(string(annotator.Kind())).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var occurrences []*model.Occurrence
	for _, ann := range raw {
		if !annotator.Validate(ann, seg, idx) {
			slog.Warn("dropping invalid annotation", "video_uid", videoUID, "segment_index", idx, "fine_id", ann.FineID)
			continue
		}

		evidence := model.Evidence{
			Span:                     ann.Span,
			Rationale:                ann.Rationale,
			VisualComprehensibility:  ann.VisualComprehensibility,
			TextualComprehensibility: ann.TextualComprehensibility,
		}

		occ, err := model.NewOccurrence(uuid.Nil, ann.FineID, evidence, method, o.cfg.ModelName, len(seg.Text))
		if err != nil {
			slog.Warn("dropping annotation that failed domain validation", "video_uid", videoUID, "segment_index", idx, "error", err)
			continue
		}
		occurrences = append(occurrences, occ)
	}

	return occurrences, nil
}

// toolHandler wires query_fine_units/create_fine_unit into the LM driver's
// ToolHandler shape, dispatching a not-found notification (phrase=warning,
// word=info) whenever a lookup comes back empty.
func (o *AnnotationOrchestrator) toolHandler(seg *model.Segment, idx int, videoUID string) repository.ToolHandler {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		switch name {
		case "query_fine_units":
			lemma, _ := args["lemma"].(string)
			kind, _ := args["kind"].(string)
			pos, _ := args["pos"].(string)
			lang, _ := args["lang"].(string)

			result, err := o.catalog.QueryFineUnits(ctx, lemma, model.FineUnitKind(kind), pos, lang)
			if err != nil {
				return nil, err
			}
			if !result.Found {
				o.handleNotFound(ctx, result, seg, idx, videoUID)
			}

			return map[string]any{"candidates": candidatesToMaps(result.Candidates), "lemma": lemma}, nil

		case "create_fine_unit":
			lemma, _ := args["lemma"].(string)
			kind, _ := args["kind"].(string)
			pos, _ := args["pos"].(string)
			definition, _ := args["definition"].(string)
			lang, _ := args["lang"].(string)

			created, err := o.catalog.CreateFineUnit(ctx, lemma, model.FineUnitKind(kind), pos, definition, lang, videoUID)
			if err != nil {
				return nil, err
			}

			return map[string]any{"candidates": candidatesToMaps([]*model.FineUnit{created}), "lemma": lemma}, nil

		default:
			return nil, fmt.Errorf("unknown function: %s", name)
		}
	}
}

func (o *AnnotationOrchestrator) handleNotFound(ctx context.Context, result *CatalogQueryResult, seg *model.Segment, idx int, videoUID string) {
	timestampRange := fmt.Sprintf("%.1fs - %.1fs", seg.TStart, seg.TEnd)

	switch result.Kind {
	case model.FineUnitPhraseSense:
		_ = o.notify.Notify(ctx, repository.Notification{
			Severity: repository.SeverityWarning,
			Title:    "phrase not matched",
			Content: map[string]string{
				"phrase":        result.Lemma,
				"lang":          result.Lang,
				"video_uid":     videoUID,
				"segment_index": fmt.Sprintf("%d", idx),
				"segment_text":  seg.Text,
				"timestamp":     timestampRange,
			},
			Metadata: map[string]string{
				"suggestion": suggestedInsert(result.Lemma, "phrase_sense", result.Lang),
			},
		})
	case model.FineUnitWordSense:
		_ = o.notify.Notify(ctx, repository.Notification{
			Severity: repository.SeverityInfo,
			Title:    "word not matched",
			Content: map[string]string{
				"word":          result.Lemma,
				"pos":           result.POS,
				"lang":          result.Lang,
				"video_uid":     videoUID,
				"segment_index": fmt.Sprintf("%d", idx),
				"segment_text":  seg.Text,
			},
			Metadata: map[string]string{
				"note": "word not found is usually normal",
			},
		})
	}
}

func suggestedInsert(label, kind, lang string) string {
	return fmt.Sprintf(
		"INSERT INTO semantic.fine_unit (kind, label, lang, status) VALUES ('%s', '%s', '%s', 'pending');",
		kind, label, lang,
	)
}

func candidatesToMaps(units []*model.FineUnit) []map[string]any {
	out := make([]map[string]any, 0, len(units))
	for _, u := range units {
		m := map[string]any{
			"fine_id":    u.ID,
			"label":      u.Label,
			"definition": u.Definition,
		}
		if u.POS != nil {
			m["pos"] = string(*u.POS)
		}
		out = append(out, m)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func strPtr(s string) *string { return &s }
