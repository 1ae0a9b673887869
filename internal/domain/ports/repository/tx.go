package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the storage-specific transaction handle (pgx.Tx for postgres).
// Repository methods take it as their qx argument; nil means no transaction.
type Tx interface{}

// TransactionManager runs fn in one transaction. fn's error rolls it back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
