// Package fines computes late-return fines.
package fines

import "time"

// Defaults used when configuration leaves the values unset.
const (
	DefaultPerDay     int64 = 10
	DefaultBorrowDays       = 14
)

const day = 24 * time.Hour

// Calculate returns the fine for an item due at due and returned at returned.
// Every started day past the due date is charged in full; an on-time or
// early return costs nothing.
func Calculate(due, returned time.Time, perDay int64) int64 {
	if !returned.After(due) || perDay <= 0 {
		return 0
	}
	return DaysLate(due, returned) * perDay
}

// DaysLate returns the number of started days between due and returned.
func DaysLate(due, returned time.Time) int64 {
	late := returned.Sub(due)
	if late <= 0 {
		return 0
	}
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days
}

// DueDate returns the default due date for a borrow requested at now.
func DueDate(now time.Time, borrowDays int) time.Time {
	if borrowDays <= 0 {
		borrowDays = DefaultBorrowDays
	}
	return now.AddDate(0, 0, borrowDays)
}
