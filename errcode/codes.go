package errcode

import "net/http"

// Admission module codes (module 42)
var (
	// ErrTooManyRequests request rejected by the admission gate
	ErrTooManyRequests = Register(New(42, 1, "admission", "too many requests", http.StatusTooManyRequests))

	// ErrAdmissionUnavailable counter store unreachable under fail-closed posture
	ErrAdmissionUnavailable = Register(New(42, 2, "admission", "admission check unavailable", http.StatusServiceUnavailable))

	// ErrInvalidAdmissionConfig resource configuration rejected at setup
	ErrInvalidAdmissionConfig = Register(New(42, 3, "admission", "invalid admission configuration", http.StatusInternalServerError))
)
