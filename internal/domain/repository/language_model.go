package repository

import "context"

// Tool describes a function the language model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CachedContent is an opaque handle to context cached with the provider
// (video bytes, transcript text, system instruction, tools) so repeated
// calls don't re-send the whole payload.
type CachedContent struct {
	Name      string
	ExpiresAt int64
}

// ToolHandler executes a single tool call by name and returns its result.
// An error is carried back to the model as a function_response error field,
// not raised to the caller.
type ToolHandler func(ctx context.Context, name string, args map[string]any) (any, error)

// LanguageModelClient wraps a multimodal, tool-using language model. Callers
// first try to build a CachedContent (video+transcript, then text-only),
// falling back to per-call instructions with no cache at all.
type LanguageModelClient interface {
	// CreateCachedContent caches videoURI and/or textContent alongside the
	// system instruction and tool declarations. Either videoURI or
	// textContent (or both) may be supplied.
	CreateCachedContent(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []Tool, ttlSeconds int) (*CachedContent, error)

	// CallWithTools sends prompt against the model (via cachedContent if
	// non-nil, else constructing tools/systemInstruction fresh) and drives
	// the function-call loop: each function_call in a reply is executed via
	// handler and its result sent back as a function_response, up to an
	// internal iteration cap. Returns the final parsed JSON response.
	CallWithTools(ctx context.Context, cachedContent *CachedContent, prompt string, tools []Tool, handler ToolHandler, systemInstruction *string, generationConfig map[string]any) (map[string]any, error)
}
