package domain

import (
	"testing"
	"time"
)

func TestIdentityPrefersFeedID(t *testing.T) {
	p := Post{ID: "feed-123", Title: "t", Text: "x"}
	if got := p.Identity(); got != "feed-123" {
		t.Fatalf("Identity() = %q, want feed id", got)
	}
}

func TestIdentityFallbackIsDeterministic(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Post{Title: "Suspicious person", Text: "near the park", CreatedAt: ts, Latitude: 37.77, Longitude: -122.42, Address: "Elm St"}
	b := a // same content, separate value
	if a.Identity() != b.Identity() {
		t.Fatalf("identical content produced different identities")
	}
	if a.Identity() == "" {
		t.Fatalf("fallback identity is empty")
	}
}

func TestIdentityFallbackSeparatesFields(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide: fields are NUL-separated.
	ts := time.Time{}
	a := Post{Title: "ab", Text: "c", CreatedAt: ts}
	b := Post{Title: "a", Text: "bc", CreatedAt: ts}
	if a.Identity() == b.Identity() {
		t.Fatalf("field boundary collision in fallback identity")
	}
}

func TestIdentityFallbackChangesWithContent(t *testing.T) {
	a := Post{Title: "one"}
	b := Post{Title: "two"}
	if a.Identity() == b.Identity() {
		t.Fatalf("different content produced the same identity")
	}
}

func TestTermSetEmpty(t *testing.T) {
	if !(TermSet{}).Empty() {
		t.Fatalf("zero TermSet should be empty")
	}
	if (TermSet{Keywords: []string{"theft"}}).Empty() {
		t.Fatalf("TermSet with keywords should not be empty")
	}
	if (TermSet{Emojis: []string{"🚨"}}).Empty() {
		t.Fatalf("TermSet with emojis should not be empty")
	}
}
