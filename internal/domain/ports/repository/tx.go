package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX selects the non-transactional path on the pool.
var NoTX Tx = nil

// TransactionManager executes a function within a storage transaction,
// passing the transaction handle to repositories via their `tx` argument.
//
// Repositories accept a nil handle for the non-transactional path; the
// concrete type is infra-defined (pgx.Tx for Postgres). Keeping the handle
// opaque keeps use-case signatures free of storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
