// Package auth implements the authentication coordinator for the vendor
// feed API. This file centralizes the classified error values surfaced by
// Authenticate so that callers (the web layer's login flow) can pick the
// right remediation prompt with errors.Is instead of parsing prose.
package auth

import "errors"

var (
	// ErrValidation indicates the supplied credentials were incomplete:
	// neither a refresh token nor a username+password pair was present.
	// It is returned before any vendor call is made.
	ErrValidation = errors.New("credentials incomplete")

	// ErrCredentialsInvalid indicates the vendor rejected the username,
	// password, or stored refresh token.
	ErrCredentialsInvalid = errors.New("credentials rejected")

	// ErrOTPInvalid indicates the vendor rejected an exchange that included
	// a one-time code. The caller must restart from the password path to
	// obtain a fresh 2FA challenge; retrying the same code is pointless.
	ErrOTPInvalid = errors.New("one-time code rejected")

	// ErrNetwork indicates the exchange failed before the vendor could
	// answer (DNS, connect, reset).
	ErrNetwork = errors.New("network failure")

	// ErrTimeout indicates the exchange exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrVendor indicates an unclassified vendor-side failure.
	ErrVendor = errors.New("vendor error")
)
