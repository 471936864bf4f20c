package ports

import "context"

// Tx is an opaque transaction handle carried through context so
// repositories join an ambient transaction without depending on the
// driver. Infrastructure owns the concrete type (*gorm.DB here).
type Tx interface{}

// UnitOfWork is the transaction boundary for multi-repository writes,
// such as the connect callback's create+audit pair or a conflict
// resolution's status CAS plus side effects.
//
// Callback-style: returning an error rolls back, returning nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
