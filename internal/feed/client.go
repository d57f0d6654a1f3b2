// Package feed defines the contract of the vendor session API the monitor
// is built against. The vendor client itself (network calls, OAuth token
// plumbing) lives outside this module; the monitor only consumes these
// interfaces, which makes every caller testable with in-memory fakes.
package feed

import (
	"context"
	"strings"

	"github.com/mvardas/go-neighborhood-watch/internal/domain"
)

// TokenUpdateFunc is invoked by the vendor client whenever it rotates the
// refresh token backing an active session (typically on expiry). It may fire
// asynchronously at any point while the session is in use, including from
// inside a FetchPosts call on another goroutine.
type TokenUpdateFunc func(refreshToken string)

// Client exchanges credentials for an authenticated session. Implementations
// wrap the vendor's OAuth-like token endpoint.
type Client interface {
	// ExchangeRefreshToken trades a previously persisted refresh token for a
	// session without involving username or password.
	ExchangeRefreshToken(ctx context.Context, refreshToken string, onRotate TokenUpdateFunc) (Session, error)

	// ExchangePassword trades username+password (and, on a second attempt,
	// an SMS one-time code) for a session. otpCode is empty on the first
	// attempt; vendors with 2FA enabled reject that attempt with an error
	// whose text carries one of the markers recognized by Requires2FA.
	ExchangePassword(ctx context.Context, username, password, otpCode string, onRotate TokenUpdateFunc) (Session, error)
}

// Session is an authenticated handle onto the vendor feed.
type Session interface {
	// FetchPosts retrieves the current neighborhood posts visible to the
	// authenticated account.
	FetchPosts(ctx context.Context) ([]domain.Post, error)

	// RefreshToken returns the refresh token currently backing the session,
	// suitable for durable persistence and later ExchangeRefreshToken calls.
	RefreshToken() string
}

// twoFactorMarkers are the substrings the vendor is known to include in
// error text when a login attempt is rejected pending SMS verification.
var twoFactorMarkers = []string{"2fa", "verification", "code", "otp"}

// Requires2FA reports whether an exchange error's text carries a vendor
// two-factor marker. Matching is case-insensitive substring containment;
// the vendor does not expose a structured error code for this condition.
func Requires2FA(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range twoFactorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
