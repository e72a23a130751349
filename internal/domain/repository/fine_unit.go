package repository

import (
	"context"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// FineUnitQuery narrows a catalog lookup.
type FineUnitQuery struct {
	Label string
	Kind  model.FineUnitKind
	Lang  string
	POS   *model.POSCode
	Limit int
}

// FineUnitRepository defines the interface for catalog persistence. The core
// never mutates active rows directly; it only reads them and inserts new
// pending rows proposed by the language model.
type FineUnitRepository interface {
	// Query performs a case-insensitive label match restricted to active,
	// status-matching rows, honoring Kind/Lang/POS filters and Limit.
	Query(ctx context.Context, q FineUnitQuery) ([]*model.FineUnit, error)

	// Create inserts a new pending catalog entry. A collision on
	// ExternalKey is not an error: Create returns the existing row.
	Create(ctx context.Context, unit *model.FineUnit) (*model.FineUnit, error)
}
