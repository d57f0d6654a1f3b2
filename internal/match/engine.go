// Package match implements the matching core of the monitor: a pure
// evaluation of feed posts against a fixed term set, a seen-set that makes
// evaluation idempotent per post identity, and an append-only in-memory
// match log with read-side query operations.
//
// The package does no logging of its own; callers decide what to log. All
// operations are safe for concurrent use: the poll loop appends while the
// web layer reads.
package match

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mvardas/go-neighborhood-watch/internal/domain"
)

// Stats summarizes the match log for the query surface: the total number of
// matches plus per-term occurrence counts.
type Stats struct {
	TotalMatches  int            `json:"total_matches"`
	KeywordCounts map[string]int `json:"keyword_counts"`
	EmojiCounts   map[string]int `json:"emoji_counts"`
}

// Engine evaluates posts against a fixed TermSet. The term set is immutable
// for the engine's lifetime; the seen set and match log grow monotonically
// until the process (or the owning scheduler's state) is discarded.
type Engine struct {
	terms domain.TermSet

	mu      sync.RWMutex
	seen    map[string]struct{}
	matches []domain.Match

	// now is a clock seam for tests.
	now func() time.Time
}

// NewEngine builds an Engine for the given term set. Keywords must already
// be lower-cased (the config layer normalizes them); emojis are literal.
func NewEngine(terms domain.TermSet) *Engine {
	return &Engine{
		terms: terms,
		seen:  make(map[string]struct{}),
		now:   time.Now,
	}
}

// Terms returns the configured term set.
func (e *Engine) Terms() domain.TermSet { return e.terms }

// Evaluate scans a batch of posts in input order and returns the matches
// produced by posts not seen before. Re-submitting an identical batch
// yields no further output: every post identity is evaluated exactly once.
func (e *Engine) Evaluate(posts []domain.Post) []domain.Match {
	var out []domain.Match

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range posts {
		id := p.Identity()
		if _, ok := e.seen[id]; ok {
			continue
		}
		e.seen[id] = struct{}{}

		m, ok := e.inspect(id, p)
		if !ok {
			continue
		}
		e.matches = append(e.matches, m)
		out = append(out, m)
	}
	return out
}

// inspect evaluates one unseen post. Caller holds the write lock.
func (e *Engine) inspect(id string, p domain.Post) (domain.Match, bool) {
	// NFC-normalize so that composed and decomposed encodings of the same
	// text (common with emoji sequences pasted from different clients)
	// compare equal.
	haystack := norm.NFC.String(p.Title + " " + p.Text)
	lowered := strings.ToLower(haystack)

	var keywords, emojis []string
	for _, kw := range e.terms.Keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			keywords = append(keywords, kw)
		}
	}
	for _, em := range e.terms.Emojis {
		if em != "" && strings.Contains(haystack, em) {
			emojis = append(emojis, em)
		}
	}
	if len(keywords) == 0 && len(emojis) == 0 {
		return domain.Match{}, false
	}

	detected := e.now()
	ts := p.CreatedAt
	if ts.IsZero() {
		ts = detected
	}
	return domain.Match{
		ID:        id,
		Timestamp: ts,
		Title:     p.Title,
		Text:      p.Text,
		Location: domain.Location{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Address:   p.Address,
		},
		MatchedKeywords: keywords,
		MatchedEmojis:   emojis,
		DetectedAt:      detected,
	}, true
}

// All returns a snapshot of the full match log in encounter order.
func (e *Engine) All() []domain.Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Match, len(e.matches))
	copy(out, e.matches)
	return out
}

// AllPage returns one page of the match log plus the total count. Invalid
// page/pageSize values fall back to sane defaults.
func (e *Engine) AllPage(page, pageSize int) ([]domain.Match, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := len(e.matches)
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.Match{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]domain.Match, end-start)
	copy(out, e.matches[start:end])
	return out, total
}

// FilterByTerm returns every log entry whose matched keywords contain term
// (case-insensitive) or whose matched emojis contain term (exact), in log
// order.
func (e *Engine) FilterByTerm(term string) []domain.Match {
	lowered := strings.ToLower(term)

	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.Match
	for _, m := range e.matches {
		if containsFold(m.MatchedKeywords, lowered) || contains(m.MatchedEmojis, term) {
			out = append(out, m)
		}
	}
	return out
}

// Stats aggregates per-term occurrence counts over the match log.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		TotalMatches:  len(e.matches),
		KeywordCounts: make(map[string]int),
		EmojiCounts:   make(map[string]int),
	}
	for _, m := range e.matches {
		for _, kw := range m.MatchedKeywords {
			s.KeywordCounts[kw]++
		}
		for _, em := range m.MatchedEmojis {
			s.EmojiCounts[em]++
		}
	}
	return s
}

// SeenCount reports how many distinct post identities have been evaluated.
func (e *Engine) SeenCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.seen)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsFold(list []string, lowered string) bool {
	for _, v := range list {
		if strings.ToLower(v) == lowered {
			return true
		}
	}
	return false
}
