package models

import "time"

// Activity types.
const (
	ActivityCall    = "call"
	ActivityEmail   = "email"
	ActivityVisit   = "visit"
	ActivityNote    = "note"
	ActivityPayment = "payment"
	ActivityPromise = "promise"
)

// ValidActivityTypes contains all valid activity types.
var ValidActivityTypes = []string{ActivityCall, ActivityEmail, ActivityVisit, ActivityNote, ActivityPayment, ActivityPromise}

// IsValidActivityType checks if the given activity type is valid.
func IsValidActivityType(t string) bool {
	for _, v := range ValidActivityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Activity is a logged interaction with the debtor. Activities are append-only.
type Activity struct {
	ID            int64     `json:"id"`
	CaseID        int64     `json:"case_id"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes"`
	CreatedByID   int64     `json:"created_by_id"`
	CreatedByName string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
