package model

import "time"

// FineUnitKind enumerates the catalog entry kinds.
type FineUnitKind string

const (
	FineUnitWordSense    FineUnitKind = "word_sense"
	FineUnitPhraseSense  FineUnitKind = "phrase_sense"
	FineUnitGrammarRule  FineUnitKind = "grammar_rule"
)

// FineUnitStatus enumerates the lifecycle of a catalog entry.
type FineUnitStatus string

const (
	FineUnitActive  FineUnitStatus = "active"
	FineUnitPending FineUnitStatus = "pending"
)

// POSCode is the single-letter part-of-speech storage code used by the
// catalog. The core never invents its own codes; it maps the long-form POS
// names an annotator works with onto these before querying or creating.
type POSCode string

const (
	POSNoun          POSCode = "n"
	POSVerb          POSCode = "v"
	POSAdjective     POSCode = "a"
	POSAdverb        POSCode = "r"
	POSPreposition   POSCode = "p"
	POSConjunction   POSCode = "c"
	POSPronoun       POSCode = "m"
	POSDeterminer    POSCode = "d"
	POSInterjection  POSCode = "i"
)

// posToDB mirrors the catalog's long-name-to-storage-code mapping. "N/A"
// (used for phrases, which have no single part of speech) maps to no code.
var posToDB = map[string]POSCode{
	"n":        POSNoun,
	"v":        POSVerb,
	"a":        POSAdjective,
	"r":        POSAdverb,
	"prep":     POSPreposition,
	"conj":     POSConjunction,
	"pron":     POSPronoun,
	"det":      POSDeterminer,
	"interj":   POSInterjection,
}

// MapPOS translates a long-form part-of-speech name to its single-letter
// storage code. It returns ("", false) for "N/A" or any unrecognized name,
// signaling the caller to store/query a NULL pos.
func MapPOS(longForm string) (POSCode, bool) {
	code, ok := posToDB[longForm]
	return code, ok
}

// FineUnit is a canonical catalog entry: a sense of a word, a phrase, or a
// grammar rule. The core never mutates active rows; it may insert pending
// rows via CatalogTool.create_fine_unit.
type FineUnit struct {
	ID          int64
	Kind        FineUnitKind
	Label       string
	Lang        string
	POS         *POSCode
	Definition  string
	Status      FineUnitStatus
	ExternalKey *string
	Meta        *FineUnitMeta
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FineUnitMeta records the provenance of a pending catalog entry created by
// the language model, so a reviewer can see what proposed it and why.
type FineUnitMeta struct {
	Source             string `json:"source"`
	LemmaName          string `json:"lemma_name"`
	POS                string `json:"pos"`
	Definition         string `json:"definition"`
	CreatedBy          string `json:"created_by"`
	CreatedAtTimestamp string `json:"created_at_timestamp"`
	VideoUID           string `json:"video_uid"`
}
