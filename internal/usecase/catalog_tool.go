package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// createdByAgent identifies the language-model agentic loop as the author
// of a pending catalog entry, in FineUnitMeta.CreatedBy.
const createdByAgent = "lm_agentic"

// CatalogQueryResult carries the candidates returned by a catalog lookup
// plus the original query parameters, so the caller can decide whether a
// not-found condition is worth notifying about.
type CatalogQueryResult struct {
	Candidates []*model.FineUnit
	Found      bool
	Lemma      string
	Kind       model.FineUnitKind
	POS        string
	Lang       string
}

// CatalogQuerier is the surface AnnotationOrchestrator drives the catalog
// tool through; CachedCatalogTool and the plain CatalogTool both satisfy it.
type CatalogQuerier interface {
	ToolDefinitions() []repository.Tool
	QueryFineUnits(ctx context.Context, lemma string, kind model.FineUnitKind, pos, lang string) (*CatalogQueryResult, error)
	CreateFineUnit(ctx context.Context, lemma string, kind model.FineUnitKind, pos, definition, lang, videoUID string) (*model.FineUnit, error)
}

// CatalogTool exposes the query_fine_units / create_fine_unit functions the
// language model calls during annotation. It never mutates active rows;
// create_fine_unit only ever inserts pending ones.
type CatalogTool struct {
	repo      repository.FineUnitRepository
	modelName string
}

func NewCatalogTool(repo repository.FineUnitRepository, modelName string) *CatalogTool {
	return &CatalogTool{repo: repo, modelName: modelName}
}

// ToolDefinitions returns the Gemini-style function declarations for both
// catalog functions, to be baked into cached content or passed per call.
func (t *CatalogTool) ToolDefinitions() []repository.Tool {
	return []repository.Tool{
		{
			Name:        "query_fine_units",
			Description: "Query candidate catalog entries for a word or phrase, for disambiguation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"lemma": map[string]any{"type": "string"},
					"pos":   map[string]any{"type": "string", "enum": []string{"n", "v", "a", "r", "prep", "conj", "pron", "det", "interj"}},
					"kind":  map[string]any{"type": "string", "enum": []string{"word_sense", "phrase_sense"}},
					"lang":  map[string]any{"type": "string"},
				},
				"required": []string{"lemma", "kind"},
			},
		},
		{
			Name:        "create_fine_unit",
			Description: "Create a new catalog entry, only when query_fine_units returned nothing and the word/phrase is general enough.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"lemma":      map[string]any{"type": "string"},
					"kind":       map[string]any{"type": "string", "enum": []string{"word_sense", "phrase_sense"}},
					"pos":        map[string]any{"type": "string", "enum": []string{"n", "v", "a", "r", "prep", "conj", "pron", "det", "interj", "N/A"}},
					"definition": map[string]any{"type": "string"},
					"lang":       map[string]any{"type": "string"},
				},
				"required": []string{"lemma", "kind", "pos", "definition"},
			},
		},
	}
}

// QueryFineUnits looks up candidates for lemma/kind, optionally narrowed by
// part of speech and language (defaulting to "en").
func (t *CatalogTool) QueryFineUnits(ctx context.Context, lemma string, kind model.FineUnitKind, pos, lang string) (*CatalogQueryResult, error) {
	if lang == "" {
		lang = "en"
	}

	q := repository.FineUnitQuery{Label: lemma, Kind: kind, Lang: lang, Limit: 50}
	if pos != "" {
		if code, ok := model.MapPOS(pos); ok {
			q.POS = &code
		}
	}

	units, err := t.repo.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query fine units: %w", err)
	}

	return &CatalogQueryResult{
		Candidates: units,
		Found:      len(units) > 0,
		Lemma:      lemma,
		Kind:       kind,
		POS:        pos,
		Lang:       lang,
	}, nil
}

// CreateFineUnit inserts a new pending catalog entry. A collision on the
// content-addressable external_key is not an error: the existing row is
// returned. meta records the entry's provenance — the proposing model, the
// original long-form part of speech, and the video that prompted it — for a
// human reviewer to judge the pending row against.
func (t *CatalogTool) CreateFineUnit(ctx context.Context, lemma string, kind model.FineUnitKind, pos, definition, lang, videoUID string) (*model.FineUnit, error) {
	if lang == "" {
		lang = "en"
	}

	externalKey := t.externalKey(lemma, definition)

	var posCode *model.POSCode
	if code, ok := model.MapPOS(pos); ok {
		posCode = &code
	}

	unit := &model.FineUnit{
		Kind:        kind,
		Label:       lemma,
		Lang:        lang,
		POS:         posCode,
		Definition:  definition,
		Status:      model.FineUnitPending,
		ExternalKey: &externalKey,
		Meta: &model.FineUnitMeta{
			Source:             t.modelName,
			LemmaName:          lemma,
			POS:                pos,
			Definition:         definition,
			CreatedBy:          createdByAgent,
			CreatedAtTimestamp: time.Now().UTC().Format(time.RFC3339),
			VideoUID:           videoUID,
		},
	}

	created, err := t.repo.Create(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("create fine unit: %w", err)
	}
	return created, nil
}

// externalKey is model:lemma:md5(definition)[:8] — content-addressable so
// repeated language-model proposals for the same sense collapse to one row.
func (t *CatalogTool) externalKey(lemma, definition string) string {
	sum := md5.Sum([]byte(definition))
	defHash := hex.EncodeToString(sum[:])[:8]
	return fmt.Sprintf("%s:%s:def_%s", t.modelName, lemma, defHash)
}
