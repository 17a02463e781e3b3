package funding

import (
	"time"

	"github.com/pointvest/pointvest/internal/transaction"
)

// DepositRequest is the body of POST /deposits.
type DepositRequest struct {
	Amount        string `json:"amount" validate:"required,numeric"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	Notes         string `json:"notes" validate:"max=500"`
}

// WithdrawalRequest is the body of POST /withdrawals.
type WithdrawalRequest struct {
	Amount  string `json:"amount" validate:"required,numeric"`
	Address string `json:"address" validate:"required,min=10,max=128,excludesall= \t\n"`
	Network string `json:"network" validate:"required"`
}

// TransactionResponse is the JSON form of a transaction.
type TransactionResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Type            string     `json:"type"`
	AmountPrimary   string     `json:"amount_primary"`
	AmountSecondary string     `json:"amount_secondary"`
	FeeAmount       string     `json:"fee_amount"`
	Status          string     `json:"status"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	ProductID       string     `json:"product_id,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	Address         string     `json:"address,omitempty"`
	Network         string     `json:"network,omitempty"`
}

// ToResponse renders a transaction with fixed two-decimal amounts.
func ToResponse(t transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Type:            string(t.Type),
		AmountPrimary:   t.AmountPrimary.StringFixed(2),
		AmountSecondary: t.AmountSecondary.StringFixed(2),
		FeeAmount:       t.FeeAmount.StringFixed(2),
		Status:          string(t.Status),
		ApprovedBy:      t.ApprovedBy,
		CreatedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
		Notes:           t.Notes,
		ProductID:       t.ProductID,
		PaymentMethod:   t.PaymentMethod,
		Address:         t.Address,
		Network:         t.Network,
	}
}
