package repository

import "context"

// Transactor runs fn within a single database transaction, committing on
// success and rolling back on error or panic. Used where two or more
// repository calls must land atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
