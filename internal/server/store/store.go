// Package store scopes repository access into units of work. Services receive
// a Store and never touch *sql.DB directly, which lets tests swap Postgres for
// the in-memory implementation.
package store

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/verifications"
)

// Repos exposes repositories bound to one handle: either the plain
// connection or a single transaction.
type Repos interface {
	Users() users.Repository
	Sessions() sessions.Repository
	Accounts() accounts.Repository
	Verifications() verifications.Repository
}

// Func is a unit of work.
type Func func(ctx context.Context, r Repos) error

type Store interface {
	// Do runs fn without a transaction; each statement commits on its own.
	Do(ctx context.Context, fn Func) error

	// InTx runs fn in one serializable transaction. Either every write made
	// through r commits or none does. fn may be invoked more than once when
	// the transaction is retried, so it must not have side effects outside r.
	InTx(ctx context.Context, fn Func) error

	Close() error
}
