// Package storage persists users, transactions and subscriptions and provides
// the atomic unit every balance mutation runs in.
package storage

import (
	"context"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/transaction"
)

// Store is the persisted state of the platform.
type Store interface {
	// WithinTx runs fn as one atomic unit. Rows read through the Tx stay
	// locked until fn returns; a non-nil error discards every write.
	WithinTx(ctx context.Context, fn func(Tx) error) error

	CreateUser(ctx context.Context, u account.User) error
	User(ctx context.Context, id string) (account.User, error)
	ActiveUserIDs(ctx context.Context) ([]string, error)

	Transaction(ctx context.Context, id string) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, f transaction.Filter) ([]transaction.Transaction, error)
	// InsertTransaction stores a record outside of a unit. Used for pending
	// submissions, which do not touch balances.
	InsertTransaction(ctx context.Context, t transaction.Transaction) error

	Subscriptions(ctx context.Context, userID string) ([]account.Subscription, error)
	UpdateAutoRenew(ctx context.Context, userID, subscriptionID string, autoRenew bool) (account.Subscription, error)
}

// Tx is the view of the store inside one atomic unit.
type Tx interface {
	User(ctx context.Context, id string) (account.User, error)
	UpdateBalances(ctx context.Context, userID string, b ledger.Balances) error

	Transaction(ctx context.Context, id string) (transaction.Transaction, error)
	InsertTransaction(ctx context.Context, t transaction.Transaction) error
	// FinalizeTransaction writes a decided record only if the stored status is
	// still pending; otherwise it returns apperr.ErrAlreadyProcessed.
	FinalizeTransaction(ctx context.Context, t transaction.Transaction) error
	UpdateNotes(ctx context.Context, id, notes string) error
	CountTransactions(ctx context.Context, userID string, typ transaction.Type) (int, error)

	Subscriptions(ctx context.Context, userID string) ([]account.Subscription, error)
	InsertSubscription(ctx context.Context, s account.Subscription) error
	UpdateSubscription(ctx context.Context, s account.Subscription) error
}
