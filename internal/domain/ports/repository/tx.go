package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// Repositories accept nil (non-transactional path); the concrete type is
// infra-defined (pgx.Tx for Postgres).
type Tx interface{}

// NoTX marks an explicitly non-transactional call site.
var NoTX Tx = nil

// TransactionManager executes fn inside one database transaction, passing
// the transaction handle via tx. Rolled back when fn errors, committed
// otherwise. Keeps use-case interfaces free of driver types; repositories
// detect the handle implementation-side and can issue SELECT ... FOR UPDATE
// through it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
