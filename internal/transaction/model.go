// Package transaction models deposit and withdrawal requests and the settled
// records produced by income, purchases, renewals and referral bonuses.
package transaction

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/apperr"
)

// Type of a transaction.
type Type string

const (
	TypeDeposit       Type = "deposit"
	TypeWithdrawal    Type = "withdrawal"
	TypeIncome        Type = "income"
	TypeReferralBonus Type = "referral_bonus"
	TypePurchase      Type = "purchase"
	TypeRenewal       Type = "renewal"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeIncome, TypeReferralBonus, TypePurchase, TypeRenewal:
		return true
	}
	return false
}

// RequiresApproval reports whether records of this type start pending.
func (t Type) RequiresApproval() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// Status of a transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SystemActor approves records created without a human in the loop.
const SystemActor = "system"

// Transaction is a single ledger-affecting record. Records are never deleted.
type Transaction struct {
	ID              string
	UserID          string
	Type            Type
	AmountPrimary   decimal.Decimal
	AmountSecondary decimal.Decimal
	FeeAmount       decimal.Decimal
	Status          Status
	ApprovedBy      string
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Notes           string
	ProductID       string
	PaymentMethod   string
	Address         string
	Network         string
}

// NewPending creates a deposit or withdrawal awaiting approval.
func NewPending(userID string, typ Type, amountPrimary, amountSecondary decimal.Decimal, now time.Time) (Transaction, error) {
	if !typ.RequiresApproval() {
		return Transaction{}, apperr.Validation("%s transactions cannot be pending", typ)
	}
	return Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Type:            typ,
		AmountPrimary:   amountPrimary,
		AmountSecondary: amountSecondary,
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
	}, nil
}

// NewSettled creates an already approved record for a system-driven movement.
func NewSettled(userID string, typ Type, amount decimal.Decimal, productID, notes string, now time.Time) (Transaction, error) {
	if !typ.Valid() || typ.RequiresApproval() {
		return Transaction{}, apperr.Validation("%s transactions cannot be settled directly", typ)
	}
	completed := now.UTC()
	return Transaction{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          typ,
		AmountPrimary: amount,
		Status:        StatusApproved,
		ApprovedBy:    SystemActor,
		CreatedAt:     completed,
		CompletedAt:   &completed,
		Notes:         notes,
		ProductID:     productID,
	}, nil
}

// Approve moves a pending record to approved.
func (t *Transaction) Approve(actor, note string, now time.Time) error {
	if err := t.transition(actor); err != nil {
		return err
	}
	completed := now.UTC()
	t.Status = StatusApproved
	t.ApprovedBy = actor
	t.CompletedAt = &completed
	t.AppendNote(note)
	return nil
}

// Reject moves a pending record to rejected and records the reason.
func (t *Transaction) Reject(actor, reason string, now time.Time) error {
	if err := t.transition(actor); err != nil {
		return err
	}
	completed := now.UTC()
	t.Status = StatusRejected
	t.ApprovedBy = actor
	t.CompletedAt = &completed
	t.AppendNote(reason)
	return nil
}

func (t *Transaction) transition(actor string) error {
	if t.Status != StatusPending {
		return apperr.ErrAlreadyProcessed
	}
	if strings.TrimSpace(actor) == "" {
		return apperr.Validation("actor is required")
	}
	return nil
}

// AppendNote adds text to the notes, separated by "; ".
func (t *Transaction) AppendNote(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if t.Notes == "" {
		t.Notes = text
		return
	}
	t.Notes = t.Notes + "; " + text
}

// EditNotes replaces the notes. Notes stay editable after a decision.
func (t *Transaction) EditNotes(text string) {
	t.Notes = strings.TrimSpace(text)
}

// Filter narrows transaction listings.
type Filter struct {
	UserID string
	Type   Type
	Status Status
	Limit  int
	Offset int
}

// Matches reports whether t satisfies the non-pagination parts of the filter.
func (f Filter) Matches(t Transaction) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// PageSize clamps the limit to [1, 100], defaulting to 20.
func (f Filter) PageSize() int {
	switch {
	case f.Limit <= 0:
		return 20
	case f.Limit > 100:
		return 100
	default:
		return f.Limit
	}
}
