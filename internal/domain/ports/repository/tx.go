package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via tx.
//
// Repository methods accept a Tx handle so the implementation can detect a
// transaction and run SELECT ... FOR UPDATE / tx-bound Exec as needed. The
// concrete type is infra-defined (pgx.Tx for Postgres). Repositories MUST
// gracefully accept a nil handle (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
