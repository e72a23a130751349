package usecase

import (
	"context"
	"fmt"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// LMDriver wraps a LanguageModelClient with the annotation-specific
// contract: a nil response, or one without an "annotations" field, is an
// empty annotation set rather than an error — a tool-grounded model that
// found nothing said so. Errors from the client are returned wrapped.
type LMDriver struct {
	client repository.LanguageModelClient
}

func NewLMDriver(client repository.LanguageModelClient) *LMDriver {
	return &LMDriver{client: client}
}

func (d *LMDriver) CreateCachedContent(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
	return d.client.CreateCachedContent(ctx, videoURI, textContent, systemInstruction, tools, ttlSeconds)
}

// Annotate runs prompt through the model and returns its raw annotation
// list. A nil response or a missing "annotations" field yields zero
// annotations, not an error. A client error (for example a reply that
// cannot be parsed as JSON) and a non-array "annotations" field are
// returned as errors.
func (d *LMDriver) Annotate(ctx context.Context, cached *repository.CachedContent, prompt string, tools []repository.Tool, handler repository.ToolHandler, systemInstruction *string, schema map[string]any) ([]RawAnnotation, error) {
	genConfig := map[string]any{
		"response_mime_type": "application/json",
		"response_schema":    schema,
		"temperature":        0.0,
		"max_output_tokens":  8192,
	}

	response, err := d.client.CallWithTools(ctx, cached, prompt, tools, handler, systemInstruction, genConfig)
	if err != nil {
		return nil, fmt.Errorf("call with tools: %w", err)
	}
	if response == nil {
		return nil, nil
	}

	return parseRawAnnotations(response)
}
