// Package auth – Coordinator
//
// This file implements the authentication coordinator, which drives the
// vendor's three login paths in strict order (persisted refresh token,
// password, password+OTP) and reduces the outcome to a three-valued result
// the caller can map directly onto a UI: success, "enter the SMS code", or a
// classified failure.
//
// The coordinator is stateless across Authenticate calls: each attempt is
// reconstructed from the credentials it is handed plus whatever refresh
// token the caller already persisted. The only shared state is the
// SessionHandle, written under its lock on success.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mvardas/go-neighborhood-watch/internal/feed"
)

// Credentials carries one login attempt's inputs. OTPCode is transient: it
// is consumed by a single exchange attempt and never retained or logged by
// the coordinator.
type Credentials struct {
	Username     string
	Password     string
	OTPCode      string
	RefreshToken string
}

// Complete reports whether the credentials can back a login attempt:
// either a refresh token, or both username and password.
func (c Credentials) Complete() bool {
	return c.RefreshToken != "" || (c.Username != "" && c.Password != "")
}

// Status is the three-valued outcome of an Authenticate call.
type Status int

const (
	// StatusFailed means the attempt terminally failed; Result.Err carries
	// the classified reason.
	StatusFailed Status = iota
	// StatusSuccess means a session was obtained and swapped into the handle.
	StatusSuccess
	// StatusRequiresOTP means the vendor wants an SMS code: the caller must
	// re-invoke Authenticate with the same username/password plus OTPCode.
	StatusRequiresOTP
)

// String returns a short lower-case label for logs.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRequiresOTP:
		return "requires_otp"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of Authenticate. Session is non-nil only for
// StatusSuccess; Err is non-nil only for StatusFailed and always wraps one
// of the sentinel errors in errors.go.
type Result struct {
	Status  Status
	Session feed.Session
	Err     error
}

// Coordinator owns the login protocol against a feed.Client and the
// resulting session state.
type Coordinator struct {
	// Client is the vendor exchange API.
	Client feed.Client
	// Handle is the shared session holder the scheduler polls through.
	Handle *SessionHandle

	// OnTokenUpdate, when set, receives the refresh token after every
	// successful exchange and after every vendor-side rotation, so the
	// owning layer can persist it durably. It runs under the session lock
	// and must not call back into the coordinator or handle.
	OnTokenUpdate func(refreshToken string)

	// Log is used for structured auth events. Credentials and codes are
	// never logged.
	Log zerolog.Logger
}

// NewCoordinator constructs a Coordinator around a vendor client with a
// fresh session handle.
func NewCoordinator(client feed.Client, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		Client: client,
		Handle: &SessionHandle{},
		Log:    log.With().Str("component", "auth").Logger(),
	}
}

// Authenticate runs one login attempt through the three vendor paths.
//
// Path order is strict: a non-empty refresh token short-circuits to the
// token exchange and never touches username/password; otherwise the
// password exchange runs, and only a vendor 2FA marker on its failure leads
// to the OTP decision (prompt the caller, or retry with the supplied code).
func (c *Coordinator) Authenticate(ctx context.Context, creds Credentials) Result {
	tr := otel.Tracer("auth/Coordinator")
	ctx, span := tr.Start(ctx, "Authenticate",
		trace.WithAttributes(
			attribute.Bool("auth.has_refresh_token", creds.RefreshToken != ""),
			attribute.Bool("auth.has_otp", creds.OTPCode != ""),
		),
	)
	defer span.End()

	if !creds.Complete() {
		return c.fail(span, fmt.Errorf("%w: need a refresh token or username and password", ErrValidation))
	}

	if creds.RefreshToken != "" {
		return c.refreshPath(ctx, span, creds.RefreshToken)
	}
	return c.passwordPath(ctx, span, creds)
}

// refreshPath exchanges a persisted refresh token for a session.
func (c *Coordinator) refreshPath(ctx context.Context, span trace.Span, token string) Result {
	sess, err := c.Client.ExchangeRefreshToken(ctx, token, c.tokenRotated)
	if err != nil {
		c.Log.Warn().Err(err).Msg("refresh token exchange failed")
		return c.fail(span, classify(err))
	}
	c.Log.Info().Msg("authenticated with refresh token")
	return c.succeed(span, sess)
}

// passwordPath exchanges username+password, escalating to the OTP path only
// when the vendor's rejection carries a 2FA marker.
func (c *Coordinator) passwordPath(ctx context.Context, span trace.Span, creds Credentials) Result {
	sess, err := c.Client.ExchangePassword(ctx, creds.Username, creds.Password, "", c.tokenRotated)
	if err == nil {
		c.Log.Info().Msg("authenticated with password (no 2FA)")
		return c.succeed(span, sess)
	}
	if !feed.Requires2FA(err) {
		c.Log.Warn().Err(err).Msg("password exchange failed")
		return c.fail(span, classify(err))
	}
	if creds.OTPCode == "" {
		c.Log.Info().Msg("vendor requires SMS verification code")
		span.SetAttributes(attribute.String("auth.status", StatusRequiresOTP.String()))
		return Result{Status: StatusRequiresOTP}
	}
	return c.otpPath(ctx, span, creds)
}

// otpPath re-attempts the exchange including the one-time code. Every
// failure here is terminal for the attempt: the vendor does not remember
// past OTP challenges, so the caller restarts from the password path.
func (c *Coordinator) otpPath(ctx context.Context, span trace.Span, creds Credentials) Result {
	sess, err := c.Client.ExchangePassword(ctx, creds.Username, creds.Password, creds.OTPCode, c.tokenRotated)
	if err != nil {
		c.Log.Warn().Err(err).Msg("OTP exchange failed")
		if feed.Requires2FA(err) {
			// A 2FA marker after a code was submitted means the code was
			// wrong or expired, never a fresh prompt: re-prompting with the
			// same inputs would loop forever.
			return c.fail(span, fmt.Errorf("%w: %v", ErrOTPInvalid, err))
		}
		return c.fail(span, classify(err))
	}
	c.Log.Info().Msg("authenticated with password and OTP")
	return c.succeed(span, sess)
}

// tokenRotated is handed to every exchange as the vendor's rotation
// callback. It may fire on any goroutine while polling is active.
func (c *Coordinator) tokenRotated(token string) {
	c.Log.Info().Msg("vendor rotated refresh token")
	c.Handle.updateToken(token, c.OnTokenUpdate)
}

func (c *Coordinator) succeed(span trace.Span, sess feed.Session) Result {
	c.Handle.swap(sess, sess.RefreshToken(), c.OnTokenUpdate)
	span.SetAttributes(attribute.String("auth.status", StatusSuccess.String()))
	return Result{Status: StatusSuccess, Session: sess}
}

func (c *Coordinator) fail(span trace.Span, err error) Result {
	span.SetAttributes(attribute.String("auth.status", StatusFailed.String()))
	span.RecordError(err)
	return Result{Status: StatusFailed, Err: err}
}

// isTerminal reports whether an error already is (or wraps) one of the
// classified sentinels, so it is not re-classified.
func isTerminal(err error) bool {
	for _, s := range []error{ErrValidation, ErrCredentialsInvalid, ErrOTPInvalid, ErrNetwork, ErrTimeout, ErrVendor} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// classify maps a raw exchange error onto the sentinel taxonomy. Transport
// conditions are detected structurally (context deadlines, net.Error);
// credential rejections fall back to message heuristics because the vendor
// reports them as free text; everything else is a vendor error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTerminal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "401") || strings.Contains(msg, "denied"):
		return fmt.Errorf("%w: %v", ErrCredentialsInvalid, err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host"):
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", ErrVendor, err)
	}
}
