// Package errors provides payout outcome error types.

package errors

import "fmt"

type (
	// RejectedError means the payout was definitely not made.
	RejectedError struct {
		StatusCode int
		Reason     string
	}
	// UnavailableError means the rail kept failing and the payout outcome is not known.
	UnavailableError struct {
		StatusCode int
		Reason     string
	}
)

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payout rejected with status %d: %s", e.StatusCode, e.Reason)
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("payout rail unavailable with status %d: %s", e.StatusCode, e.Reason)
}
