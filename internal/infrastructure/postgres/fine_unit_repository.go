package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
)

const pgUniqueViolation = "23505"

// FineUnitRepository implements repository.FineUnitRepository using
// PostgreSQL. Query is a case-insensitive label match against active rows;
// Create inserts a pending row, returning the existing row on an
// external_key collision instead of erroring.
type FineUnitRepository struct {
	db DBTX
}

func NewFineUnitRepository(db DBTX) *FineUnitRepository {
	return &FineUnitRepository{db: db}
}

func (r *FineUnitRepository) Query(ctx context.Context, q repository.FineUnitQuery) ([]*model.FineUnit, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, kind, label, lang, pos, def, status, external_key, meta, created_at, updated_at
		FROM fine_unit
		WHERE kind = $1 AND LOWER(label) = LOWER($2) AND lang = $3 AND status = 'active'`)

	args := []any{string(q.Kind), q.Label, q.Lang}
	if q.POS != nil {
		args = append(args, string(*q.POS))
		b.WriteString(fmt.Sprintf(" AND pos = $%d", len(args)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	b.WriteString(fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args)))

	rows, err := r.db.Query(ctx, b.String(), args...)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableFineUnit).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to query fine units: %w", err)
	}
	defer rows.Close()

	var units []*model.FineUnit
	for rows.Next() {
		unit, err := scanFineUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fine unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fine units: %w", err)
	}
	return units, nil
}

// Create inserts a pending fine unit. On a collision of the
// content-addressable external_key, the existing row is fetched and
// returned instead of propagating the unique-violation error.
func (r *FineUnitRepository) Create(ctx context.Context, unit *model.FineUnit) (*model.FineUnit, error) {
	const insert = `
		INSERT INTO fine_unit (kind, label, lang, pos, def, status, external_key, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	metaJSON, err := marshalFineUnitMeta(unit.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fine unit meta: %w", err)
	}

	err = r.db.QueryRow(ctx, insert,
		string(unit.Kind), unit.Label, unit.Lang, unit.POS, unit.Definition, string(unit.Status), unit.ExternalKey, metaJSON,
	).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableFineUnit).Inc()
	if err == nil {
		return unit, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil, fmt.Errorf("failed to create fine unit: %w", err)
	}

	const selectExisting = `
		SELECT id, kind, label, lang, pos, def, status, external_key, meta, created_at, updated_at
		FROM fine_unit
		WHERE external_key = $1
	`

	existing, err := scanFineUnitRow(r.db.QueryRow(ctx, selectExisting, unit.ExternalKey))
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableFineUnit).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to load existing fine unit: %w", err)
	}
	return existing, nil
}

func scanFineUnit(rows pgx.Rows) (*model.FineUnit, error) {
	var unit model.FineUnit
	var kind, status string
	var metaJSON []byte
	err := rows.Scan(&unit.ID, &kind, &unit.Label, &unit.Lang, &unit.POS, &unit.Definition, &status, &unit.ExternalKey, &metaJSON, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, err
	}
	unit.Kind = model.FineUnitKind(kind)
	unit.Status = model.FineUnitStatus(status)
	if unit.Meta, err = unmarshalFineUnitMeta(metaJSON); err != nil {
		return nil, err
	}
	return &unit, nil
}

func scanFineUnitRow(row pgx.Row) (*model.FineUnit, error) {
	var unit model.FineUnit
	var kind, status string
	var metaJSON []byte
	err := row.Scan(&unit.ID, &kind, &unit.Label, &unit.Lang, &unit.POS, &unit.Definition, &status, &unit.ExternalKey, &metaJSON, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, err
	}
	unit.Kind = model.FineUnitKind(kind)
	unit.Status = model.FineUnitStatus(status)
	if unit.Meta, err = unmarshalFineUnitMeta(metaJSON); err != nil {
		return nil, err
	}
	return &unit, nil
}

func marshalFineUnitMeta(meta *model.FineUnitMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

func unmarshalFineUnitMeta(raw []byte) (*model.FineUnitMeta, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var meta model.FineUnitMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode fine unit meta: %w", err)
	}
	return &meta, nil
}

var _ repository.FineUnitRepository = (*FineUnitRepository)(nil)
