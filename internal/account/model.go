package account

import (
	"time"

	"github.com/pointvest/pointvest/internal/ledger"
)

// Status of a user account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

const (
	RoleUser    = "user"
	RoleFinance = "finance"
	RoleAdmin   = "admin"
)

// User is a balance holder.
type User struct {
	ID         string
	Role       string
	Status     Status
	ReferredBy string
	ledger.Balances
	CreatedAt time.Time
}

// Active reports whether the user takes part in submissions and batch jobs.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Subscription is a purchased product held by a user.
type Subscription struct {
	ID           string
	UserID       string
	ProductID    string
	PurchaseDate time.Time
	ExpiresAt    time.Time
	AutoRenew    bool
	IsActive     bool
	// LastAccruedOn is the UTC calendar day income was last credited, zero if never.
	LastAccruedOn time.Time
	RenewalCount  int
}

// Earning reports whether the subscription accrues income at now.
func (s Subscription) Earning(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// DueForRenewal reports whether the subscription expires within the next 24h
// and should be renewed automatically.
func (s Subscription) DueForRenewal(now time.Time) bool {
	if !s.IsActive || !s.AutoRenew {
		return false
	}
	return s.ExpiresAt.After(now) && !s.ExpiresAt.After(now.Add(24*time.Hour))
}

// AccruedOn reports whether income was already credited on day's calendar date.
func (s Subscription) AccruedOn(day time.Time) bool {
	if s.LastAccruedOn.IsZero() {
		return false
	}
	return Day(s.LastAccruedOn).Equal(Day(day))
}

// Renew pushes the expiry forward by validityDays.
func (s *Subscription) Renew(validityDays int) {
	s.ExpiresAt = s.ExpiresAt.AddDate(0, 0, validityDays)
	s.RenewalCount++
}

// Deactivate switches the subscription off permanently.
func (s *Subscription) Deactivate() {
	s.IsActive = false
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Actor is the authenticated caller as asserted by the gateway.
type Actor struct {
	ID   string
	Role string
}
