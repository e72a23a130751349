// Package languagemodel calls a multimodal, tool-using language model over
// its REST API and drives the function-call loop to a final JSON answer.
package languagemodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// defaultMaxIterations bounds the function-call loop a single CallWithTools
// invocation may drive; a model that keeps calling tools past this many
// rounds gets its last response force-parsed instead of looping forever.
const defaultMaxIterations = 10

// Config holds the settings needed to call the model and cache content
// against it.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxIterations int
}

// Client implements repository.LanguageModelClient against a Gemini-style
// generateContent REST API.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return &Client{httpClient: &http.Client{Timeout: 60 * time.Second}, cfg: cfg}
}

type part struct {
	Text         string          `json:"text,omitempty"`
	FileData     *fileData       `json:"fileData,omitempty"`
	FunctionCall *functionCall   `json:"functionCall,omitempty"`
	FunctionResp *functionResult `json:"functionResponse,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResult struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolPayload struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

func toToolPayload(tools []repository.Tool) []toolPayload {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]functionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, functionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return []toolPayload{{FunctionDeclarations: decls}}
}

// CreateCachedContent caches the video/text payload, the system instruction
// and the tool declarations so later calls can reference it by name instead
// of re-sending the whole thing.
func (c *Client) CreateCachedContent(ctx context.Context, videoURI *string, textContent string, systemInstruction *string, tools []repository.Tool, ttlSeconds int) (*repository.CachedContent, error) {
	var parts []part
	if videoURI != nil && *videoURI != "" {
		parts = append(parts, part{FileData: &fileData{MimeType: "video/mp4", FileURI: *videoURI}})
	}
	if textContent != "" {
		parts = append(parts, part{Text: textContent})
	}

	reqBody := map[string]any{
		"model":    c.cfg.Model,
		"contents": []content{{Role: "user", Parts: parts}},
		"ttl":      fmt.Sprintf("%ds", ttlSeconds),
	}
	if tools := toToolPayload(tools); tools != nil {
		reqBody["tools"] = tools
	}
	if systemInstruction != nil && *systemInstruction != "" {
		reqBody["systemInstruction"] = content{Parts: []part{{Text: *systemInstruction}}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/cachedContents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build cache request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("cache creation failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out struct {
		Name       string `json:"name"`
		ExpireTime string `json:"expireTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode cache response: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second).Unix()
	if out.ExpireTime != "" {
		if parsed, err := time.Parse(time.RFC3339, out.ExpireTime); err == nil {
			expiresAt = parsed.Unix()
		}
	}

	return &repository.CachedContent{Name: out.Name, ExpiresAt: expiresAt}, nil
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// permissiveSafetySettings relaxes every harm category to BLOCK_NONE: the
// annotation pass runs over arbitrary video transcripts and a blocked
// candidate would surface as an unexplained empty annotation set.
var permissiveSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
}

type generateRequest struct {
	CachedContent     string          `json:"cachedContent,omitempty"`
	Contents          []content       `json:"contents"`
	Tools             []toolPayload   `json:"tools,omitempty"`
	SystemInstruction *content        `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
	SafetySettings    []safetySetting `json:"safetySettings,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// CallWithTools drives the function-call loop: each turn sends the
// accumulated conversation, executes any function calls the model asks for
// via handler, and feeds the results back, until the model answers with
// plain text or the iteration cap is reached.
func (c *Client) CallWithTools(ctx context.Context, cachedContent *repository.CachedContent, prompt string, tools []repository.Tool, handler repository.ToolHandler, systemInstruction *string, generationConfig map[string]any) (map[string]any, error) {
	conversation := []content{{Role: "user", Parts: []part{{Text: prompt}}}}

	base := generateRequest{GenerationConfig: generationConfig, SafetySettings: permissiveSafetySettings}
	if cachedContent != nil {
		base.CachedContent = cachedContent.Name
	} else {
		base.Tools = toToolPayload(tools)
		if systemInstruction != nil && *systemInstruction != "" {
			base.SystemInstruction = &content{Parts: []part{{Text: *systemInstruction}}}
		}
	}

	var response *generateResponse
	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		resp, err := c.generate(ctx, base, conversation)
		if err != nil {
			return nil, err
		}
		response = resp

		calls := extractFunctionCalls(resp)
		if len(calls) == 0 {
			return parseResponse(resp)
		}

		conversation = append(conversation, modelTurn(resp))

		responseParts := make([]part, 0, len(calls))
		for _, fc := range calls {
			result, err := handler(ctx, fc.Name, fc.Args)
			if err != nil {
				responseParts = append(responseParts, part{FunctionResp: &functionResult{Name: fc.Name, Response: map[string]any{"error": err.Error()}}})
				continue
			}
			responseParts = append(responseParts, part{FunctionResp: &functionResult{Name: fc.Name, Response: map[string]any{"result": result}}})
		}
		conversation = append(conversation, content{Role: "user", Parts: responseParts})
	}

	// Iteration cap reached: force a final parse of the last response rather
	// than erroring out.
	return parseResponse(response)
}

func (c *Client) generate(ctx context.Context, base generateRequest, conversation []content) (*generateResponse, error) {
	reqBody := base
	reqBody.Contents = conversation

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/models/"+c.cfg.Model+":generateContent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generate request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call language model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("language model quota exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("language model call failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode language model response: %w", err)
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}
}

func modelTurn(resp *generateResponse) content {
	if len(resp.Candidates) == 0 {
		return content{Role: "model"}
	}
	turn := resp.Candidates[0].Content
	turn.Role = "model"
	return turn
}

func extractFunctionCalls(resp *generateResponse) []functionCall {
	var calls []functionCall
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.FunctionCall != nil {
				calls = append(calls, *p.FunctionCall)
			}
		}
	}
	return calls
}

var codeFenceRE = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(\{.*?\})\s*` + "```")

// parseResponse turns the model's first candidate into a JSON object. An
// empty response means the model found nothing to report, not an error.
func parseResponse(resp *generateResponse) (map[string]any, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in language model response")
	}

	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return map[string]any{"annotations": []any{}}, nil
	}

	text := parts[0].Text
	if strings.Contains(text, "```") {
		if match := codeFenceRE.FindStringSubmatch(text); match != nil {
			text = match[1]
		} else {
			text = strings.ReplaceAll(text, "```json", "")
			text = strings.ReplaceAll(text, "```", "")
			text = strings.TrimSpace(text)
		}
	}

	text = strings.TrimSpace(text)
	if !(strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start != -1 && end != -1 && end >= start {
			text = text[start : end+1]
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return data, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}

var _ repository.LanguageModelClient = (*Client)(nil)
