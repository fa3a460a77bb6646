package entity

import "time"

// Company is the tenant boundary. Every expense and policy is scoped to a
// company; cross-company access is always denied.
type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Country        string    `json:"country"`
	Currency       string    `json:"currency"`
	CurrencySymbol string    `json:"currency_symbol"`
	AdminID        string    `json:"admin_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
