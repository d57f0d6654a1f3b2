package feed

import (
	"errors"
	"testing"
)

func TestRequires2FA(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"verification marker", errors.New("account requires verification code"), true},
		{"upper-case marker", errors.New("2FA is enabled for this account"), true},
		{"otp marker", errors.New("missing OTP"), true},
		{"plain rejection", errors.New("invalid username or password"), false},
		{"network failure", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Requires2FA(tc.err); got != tc.want {
				t.Fatalf("Requires2FA(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
