package usecase

import (
	"context"
	"testing"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
)

func newTestOrchestrator(lmClient repository.LanguageModelClient, fineUnits repository.FineUnitRepository, notifier repository.NotifierGateway) *AnnotationOrchestrator {
	lm := NewLMDriver(lmClient)
	catalog := NewCatalogTool(fineUnits, "gemini-2.5")
	return NewAnnotationOrchestrator(lm, catalog, notifier, AnnotationOrchestratorConfig{
		MaxConcurrency:  4,
		CacheTTLSeconds: 3600,
		ModelName:       "gemini-2.5",
	})
}

func TestAnnotationOrchestrator_CacheFallback_MultimodalSucceeds(t *testing.T) {
	lmClient := &mockLanguageModelClient{
		createCachedContentFn: func(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
			if videoURI == nil {
				t.Fatal("expected videoURI to be passed on the first attempt")
			}
			return &repository.CachedContent{Name: "multimodal-cache"}, nil
		},
	}

	o := newTestOrchestrator(lmClient, &mockFineUnitRepository{}, &mockNotifierGateway{})
	uri := "gs://bucket/video.mp4"
	cached, method := o.createCachedContentWithFallback(context.Background(), &uri, nil)

	if cached == nil || cached.Name != "multimodal-cache" {
		t.Fatalf("expected multimodal cache, got %+v", cached)
	}
	if method != model.DetectionModelVideo {
		t.Errorf("got method %v, want %v", method, model.DetectionModelVideo)
	}
}

func TestAnnotationOrchestrator_CacheFallback_TextOnly(t *testing.T) {
	calls := 0
	lmClient := &mockLanguageModelClient{
		createCachedContentFn: func(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
			calls++
			if calls == 1 {
				return nil, errVertexUnavailable
			}
			if videoURI != nil {
				t.Fatal("expected videoURI to be nil on the text-only fallback")
			}
			return &repository.CachedContent{Name: "text-cache"}, nil
		},
	}

	o := newTestOrchestrator(lmClient, &mockFineUnitRepository{}, &mockNotifierGateway{})
	uri := "gs://bucket/video.mp4"
	cached, method := o.createCachedContentWithFallback(context.Background(), &uri, nil)

	if cached == nil || cached.Name != "text-cache" {
		t.Fatalf("expected text-only cache, got %+v", cached)
	}
	if method != model.DetectionModelText {
		t.Errorf("got method %v, want %v", method, model.DetectionModelText)
	}
}

func TestAnnotationOrchestrator_CacheFallback_NoCache(t *testing.T) {
	lmClient := &mockLanguageModelClient{
		createCachedContentFn: func(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
			return nil, errVertexUnavailable
		},
	}

	o := newTestOrchestrator(lmClient, &mockFineUnitRepository{}, &mockNotifierGateway{})
	cached, method := o.createCachedContentWithFallback(context.Background(), nil, nil)

	if cached != nil {
		t.Fatalf("expected nil cache, got %+v", cached)
	}
	if method != model.DetectionModelNoCache {
		t.Errorf("got method %v, want %v", method, model.DetectionModelNoCache)
	}
}

func TestAnnotationOrchestrator_ToolHandler_NotFoundNotifiesPhrase(t *testing.T) {
	fineUnits := &mockFineUnitRepository{
		queryFn: func(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error) {
			return nil, nil
		},
	}
	notifier := &mockNotifierGateway{}

	o := newTestOrchestrator(&mockLanguageModelClient{}, fineUnits, notifier)
	seg := &model.Segment{Text: "they gave up quickly"}
	handler := o.toolHandler(seg, 0, "video-1")

	_, err := handler(context.Background(), "query_fine_units", map[string]any{
		"lemma": "give up",
		"kind":  "phrase_sense",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.received) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifier.received))
	}
	if notifier.received[0].Severity != repository.SeverityWarning {
		t.Errorf("got severity %v, want warning", notifier.received[0].Severity)
	}
}

func TestAnnotationOrchestrator_ToolHandler_NotFoundNotifiesWord(t *testing.T) {
	fineUnits := &mockFineUnitRepository{
		queryFn: func(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error) {
			return nil, nil
		},
	}
	notifier := &mockNotifierGateway{}

	o := newTestOrchestrator(&mockLanguageModelClient{}, fineUnits, notifier)
	seg := &model.Segment{Text: "zyzzyva is rare"}
	handler := o.toolHandler(seg, 0, "video-1")

	_, err := handler(context.Background(), "query_fine_units", map[string]any{
		"lemma": "zyzzyva",
		"kind":  "word_sense",
		"pos":   "n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.received) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifier.received))
	}
	if notifier.received[0].Severity != repository.SeverityInfo {
		t.Errorf("got severity %v, want info", notifier.received[0].Severity)
	}
}

func TestAnnotationOrchestrator_ToolHandler_Found_NoNotification(t *testing.T) {
	fineUnits := &mockFineUnitRepository{
		queryFn: func(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error) {
			return []*model.FineUnit{{ID: 1, Label: "run"}}, nil
		},
	}
	notifier := &mockNotifierGateway{}

	o := newTestOrchestrator(&mockLanguageModelClient{}, fineUnits, notifier)
	seg := &model.Segment{Text: "they run fast"}
	handler := o.toolHandler(seg, 0, "video-1")

	_, err := handler(context.Background(), "query_fine_units", map[string]any{
		"lemma": "run",
		"kind":  "word_sense",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.received) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifier.received))
	}
}

func TestAnnotationOrchestrator_ProcessVideo_SegmentIsolation(t *testing.T) {
	lmClient := &mockLanguageModelClient{
		callWithToolsFn: func(ctx context.Context, cachedContent *repository.CachedContent, prompt string, tools []repository.Tool, handler repository.ToolHandler, systemInstruction *string, generationConfig map[string]any) (map[string]any, error) {
			return nil, errVertexUnavailable
		},
	}
	notifier := &mockNotifierGateway{}
	o := newTestOrchestrator(lmClient, &mockFineUnitRepository{}, notifier)

	segments := []*model.Segment{
		{Text: "segment one"},
		{Text: "segment two"},
	}

	occurrences, method, err := o.ProcessVideo(context.Background(), "video-1", nil, segments)
	if err != nil {
		t.Fatalf("ProcessVideo must isolate per-segment failures, got error: %v", err)
	}
	if method != model.DetectionModelText {
		t.Errorf("got method %v, want text (no video URI was supplied, cache creation itself succeeded)", method)
	}
	for idx, anns := range occurrences {
		if len(anns) != 0 {
			t.Errorf("segment %d: expected zero occurrences on LM failure, got %d", idx, len(anns))
		}
	}
	if len(notifier.received) == 0 {
		t.Error("expected at least one failure notification")
	}
}

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

const errVertexUnavailable = sentinelError("vertex: service unavailable")
