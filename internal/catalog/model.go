// Package catalog serves the read-only product catalog.
package catalog

import "github.com/shopspring/decimal"

// Product is a yield-bearing item users can buy with primary balance.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DailyIncome  decimal.Decimal `json:"daily_income"`
	ValidityDays int             `json:"validity_days"`
	Active       bool            `json:"active"`
}
