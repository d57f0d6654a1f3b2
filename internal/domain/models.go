// Package domain defines the core data types for the neighborhood feed
// monitor: posts as delivered by the vendor feed, the matches derived from
// them, and the configured term set they are evaluated against. These types
// carry no behavior beyond identity derivation and are shared by the
// authentication, matching, and scheduling layers.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Post is a single neighborhood-alert feed entry as returned by the vendor.
//
// Fields:
//   - ID: the feed's own identifier. May be empty; see Identity.
//   - Title / Text: free-form content authored by the poster.
//   - CreatedAt: vendor-reported creation time (may be zero).
//   - Latitude / Longitude / Address: best-effort location metadata.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
}

// Identity returns the deduplication key for the post. When the feed supplied
// an id it is used verbatim. Otherwise a SHA-256 digest over a canonical,
// explicitly ordered tuple of the stable fields is computed so that
// re-fetches of the same unlabeled content hash identically regardless of
// how the vendor happened to serialize it.
//
// The fallback is weaker than a feed-assigned id: any edit to the post's
// content yields a new identity, so an edited repost is treated as new.
func (p Post) Identity() string {
	if p.ID != "" {
		return p.ID
	}
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteByte(0)
	b.WriteString(p.Text)
	b.WriteByte(0)
	b.WriteString(p.CreatedAt.UTC().Format(time.RFC3339Nano))
	b.WriteByte(0)
	b.WriteString(strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	b.WriteByte(0)
	b.WriteString(strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	b.WriteByte(0)
	b.WriteString(p.Address)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Location is the geographic position attached to a match.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Match records a post whose content contained at least one configured term.
// A match is created once per distinct post identity and never mutated
// afterwards; the match log is append-only.
//
// Timestamp is the post's own creation time when the vendor reported one,
// and the detection time otherwise. DetectedAt is always the local time the
// match was produced.
type Match struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Title           string    `json:"title"`
	Text            string    `json:"text"`
	Location        Location  `json:"location"`
	MatchedKeywords []string  `json:"matched_keywords"`
	MatchedEmojis   []string  `json:"matched_emojis"`
	DetectedAt      time.Time `json:"detected_at"`
}

// TermSet is the immutable monitoring vocabulary configured at startup.
// Keywords are expected to be lower-cased already (the config layer owns
// normalization); emojis are literal strings compared case-sensitively.
type TermSet struct {
	Keywords []string `json:"keywords"`
	Emojis   []string `json:"emojis"`
}

// Empty reports whether the term set contains no terms at all.
func (t TermSet) Empty() bool {
	return len(t.Keywords) == 0 && len(t.Emojis) == 0
}
