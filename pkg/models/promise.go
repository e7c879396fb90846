package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Promise statuses.
const (
	PromisePending   = "pending"
	PromiseFulfilled = "fulfilled"
	PromiseBroken    = "broken"
)

// IsValidPromiseStatus checks if the given promise status is valid.
func IsValidPromiseStatus(status string) bool {
	switch status {
	case PromisePending, PromiseFulfilled, PromiseBroken:
		return true
	}
	return false
}

// Promise is a payment commitment against a case.
// FulfilledDate is only set when Status is fulfilled.
type Promise struct {
	ID            int64           `json:"id"`
	CaseID        int64           `json:"case_id"`
	Amount        decimal.Decimal `json:"amount"`
	PromiseDate   Date            `json:"promise_date"`
	Status        string          `json:"status"`
	FulfilledDate *Date           `json:"fulfilled_date"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MarshalJSON writes Amount as a plain number.
func (p Promise) MarshalJSON() ([]byte, error) {
	type promise Promise
	return json.Marshal(struct {
		promise
		Amount float64 `json:"amount"`
	}{promise: promise(p), Amount: Money(p.Amount)})
}
