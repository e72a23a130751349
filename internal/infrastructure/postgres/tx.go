package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

type txKey struct{}

// TxManager runs a function within a single pgx transaction, for operations
// that must commit or roll back together — persisting a video's segments
// and the occurrences annotated against them is one such unit.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx begins a transaction and stashes it in ctx: repositories
// constructed against the same pool pick it up via dbFrom instead of
// running against a plain pool connection. Commits on success, rolls back
// on error or panic.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dbFrom returns the transaction stashed in ctx by WithinTx, falling back
// to fallback (the repository's own constructor-bound DBTX) outside one.
func dbFrom(ctx context.Context, fallback DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(DBTX); ok {
		return tx
	}
	return fallback
}

var _ repository.Transactor = (*TxManager)(nil)
