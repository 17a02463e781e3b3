// Package approval decides pending deposits and withdrawals. A decision and
// its balance effect commit together, guarded by a compare-and-set on the
// pending status, so a retried or concurrent approval can never apply twice.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/fee"
	"github.com/pointvest/pointvest/internal/metrics"
	"github.com/pointvest/pointvest/internal/notification"
	"github.com/pointvest/pointvest/internal/storage"
	"github.com/pointvest/pointvest/internal/transaction"
)

// Service runs the approval workflow.
type Service struct {
	store     storage.Store
	fees      fee.Policy
	notifier  *notification.Dispatcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	approvers map[string]bool
	now       func() time.Time
}

// NewService builds the workflow. approverRoles lists the roles allowed to
// decide transactions.
func NewService(store storage.Store, fees fee.Policy, approverRoles []string, notifier *notification.Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Service {
	approvers := make(map[string]bool, len(approverRoles))
	for _, r := range approverRoles {
		approvers[strings.ToLower(r)] = true
	}
	return &Service{
		store:     store,
		fees:      fees,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		approvers: approvers,
		now:       time.Now,
	}
}

// CanDecide reports whether the actor may approve, reject or annotate.
func (s *Service) CanDecide(actor account.Actor) bool {
	return s.approvers[actor.Role]
}

// Approve applies the balance effect of a pending transaction and marks it
// approved. Deposits credit the net after the fee; withdrawals debit the net
// stored at submission.
func (s *Service) Approve(ctx context.Context, actor account.Actor, txID, note string) (transaction.Transaction, error) {
	if !s.CanDecide(actor) {
		return transaction.Transaction{}, apperr.ErrForbidden
	}

	var decided transaction.Transaction
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		rec, err := tx.Transaction(ctx, txID)
		if err != nil {
			return err
		}
		if rec.Status != transaction.StatusPending {
			return apperr.ErrAlreadyProcessed
		}
		user, err := tx.User(ctx, rec.UserID)
		if err != nil {
			return err
		}

		if err := rec.Approve(actor.ID, note, s.now()); err != nil {
			return err
		}

		switch rec.Type {
		case transaction.TypeDeposit:
			quote, err := s.fees.Quote(rec.AmountPrimary, user.Role, fee.DirectionDeposit)
			if err != nil {
				return err
			}
			if quote.Net.IsPositive() {
				if user.Balances, err = user.CreditPrimary(quote.Net); err != nil {
					return err
				}
			}
			rec.FeeAmount = quote.Fee
			rec.AppendNote(quote.Describe())
		case transaction.TypeWithdrawal:
			if user.Balances, err = user.DebitPrimary(rec.AmountPrimary); err != nil {
				return err
			}
		default:
			return apperr.Validation("%s transactions are not approvable", rec.Type)
		}

		if err := tx.UpdateBalances(ctx, user.ID, user.Balances); err != nil {
			return err
		}
		if err := tx.FinalizeTransaction(ctx, rec); err != nil {
			return err
		}
		decided = rec
		return nil
	})
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("approve transaction %s: %w", txID, err)
	}

	s.metrics.Decided(string(decided.Type), string(transaction.StatusApproved))
	s.logger.Info("transaction approved",
		slog.String("transaction_id", decided.ID),
		slog.String("type", string(decided.Type)),
		slog.String("user_id", decided.UserID),
		slog.String("actor_id", actor.ID),
		slog.String("amount", decided.AmountPrimary.StringFixed(2)),
		slog.String("fee", decided.FeeAmount.StringFixed(2)),
	)
	s.notifier.Notify(decided.UserID, approvedKind(decided.Type), payload(decided))
	return decided, nil
}

// Reject closes a pending transaction without touching any balance.
func (s *Service) Reject(ctx context.Context, actor account.Actor, txID, reason string) (transaction.Transaction, error) {
	if !s.CanDecide(actor) {
		return transaction.Transaction{}, apperr.ErrForbidden
	}

	var decided transaction.Transaction
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		rec, err := tx.Transaction(ctx, txID)
		if err != nil {
			return err
		}
		if err := rec.Reject(actor.ID, reason, s.now()); err != nil {
			return err
		}
		if err := tx.FinalizeTransaction(ctx, rec); err != nil {
			return err
		}
		decided = rec
		return nil
	})
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("reject transaction %s: %w", txID, err)
	}

	s.metrics.Decided(string(decided.Type), string(transaction.StatusRejected))
	s.logger.Info("transaction rejected",
		slog.String("transaction_id", decided.ID),
		slog.String("type", string(decided.Type)),
		slog.String("user_id", decided.UserID),
		slog.String("actor_id", actor.ID),
	)
	s.notifier.Notify(decided.UserID, rejectedKind(decided.Type), payload(decided))
	return decided, nil
}

// EditNotes replaces the notes of any transaction, decided or not.
func (s *Service) EditNotes(ctx context.Context, actor account.Actor, txID, notes string) (transaction.Transaction, error) {
	if !s.CanDecide(actor) {
		return transaction.Transaction{}, apperr.ErrForbidden
	}
	var updated transaction.Transaction
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		rec, err := tx.Transaction(ctx, txID)
		if err != nil {
			return err
		}
		rec.EditNotes(notes)
		if err := tx.UpdateNotes(ctx, rec.ID, rec.Notes); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	s.logger.Info("transaction notes edited", slog.String("transaction_id", txID), slog.String("actor_id", actor.ID))
	return updated, nil
}

// Get returns a transaction. Non-approvers only see their own.
func (s *Service) Get(ctx context.Context, actor account.Actor, txID string) (transaction.Transaction, error) {
	rec, err := s.store.Transaction(ctx, txID)
	if err != nil {
		return transaction.Transaction{}, err
	}
	if !s.CanDecide(actor) && rec.UserID != actor.ID {
		return transaction.Transaction{}, apperr.NotFound("transaction", txID)
	}
	return rec, nil
}

// List returns transactions matching f. Non-approvers are pinned to their own.
func (s *Service) List(ctx context.Context, actor account.Actor, f transaction.Filter) ([]transaction.Transaction, error) {
	if !s.CanDecide(actor) {
		f.UserID = actor.ID
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperr.Validation("unknown transaction type %q", f.Type)
	}
	return s.store.ListTransactions(ctx, f)
}

func approvedKind(t transaction.Type) string {
	if t == transaction.TypeWithdrawal {
		return notification.KindWithdrawalApproved
	}
	return notification.KindDepositApproved
}

func rejectedKind(t transaction.Type) string {
	if t == transaction.TypeWithdrawal {
		return notification.KindWithdrawalRejected
	}
	return notification.KindDepositRejected
}

func payload(t transaction.Transaction) map[string]any {
	return map[string]any{
		"transaction_id": t.ID,
		"amount":         t.AmountPrimary.StringFixed(2),
		"fee":            t.FeeAmount.StringFixed(2),
		"notes":          t.Notes,
	}
}
