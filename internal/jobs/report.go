// Package jobs holds the daily batch jobs and the runner that schedules them.
// Each job's Run is a plain entry point; scheduling and cross-instance
// exclusion live in Runner.
package jobs

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	JobDailyIncome = "daily_income"
	JobAutoRenewal = "auto_renewal"
)

// Report summarises one batch run.
type Report struct {
	Job         string          `json:"job"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration_ns"`
	Users       int             `json:"users"`
	Processed   int             `json:"processed"`
	Failed      int             `json:"failed"`
	Records     int             `json:"records"`
	Amount      decimal.Decimal `json:"amount"`
	Deactivated int             `json:"deactivated"`
	Lapsing     int             `json:"lapsing"`
}
