package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mvardas/go-neighborhood-watch/internal/domain"
	"github.com/mvardas/go-neighborhood-watch/internal/feed"
	"github.com/mvardas/go-neighborhood-watch/internal/match"
)

// ----- Fakes -----

type fetchResult struct {
	posts []domain.Post
	err   error
}

// scriptedSession returns each scripted result once, then keeps returning
// the final one.
type scriptedSession struct {
	mu     sync.Mutex
	script []fetchResult
	calls  int
}

func (s *scriptedSession) FetchPosts(ctx context.Context) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	r := s.script[i]
	return r.posts, r.err
}

func (s *scriptedSession) RefreshToken() string { return "tok" }

func (s *scriptedSession) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeSource struct {
	mu   sync.Mutex
	sess feed.Session
}

func (f *fakeSource) Current() feed.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSource) swap(s feed.Session) {
	f.mu.Lock()
	f.sess = s
	f.mu.Unlock()
}

type captureSink struct {
	mu      sync.Mutex
	matches []domain.Match
}

func (c *captureSink) sink(m domain.Match) {
	c.mu.Lock()
	c.matches = append(c.matches, m)
	c.mu.Unlock()
}

func (c *captureSink) snapshot() []domain.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Match, len(c.matches))
	copy(out, c.matches)
	return out
}

func testEngine() *match.Engine {
	return match.NewEngine(domain.TermSet{Keywords: []string{"theft"}})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

// ----- Tests -----

func TestSchedulerSurvivesFetchFailures(t *testing.T) {
	sess := &scriptedSession{script: []fetchResult{
		{err: errors.New("boom 1")},
		{err: errors.New("boom 2")},
		{err: errors.New("boom 3")},
		{posts: []domain.Post{{ID: "1", Title: "theft on elm"}}},
		{posts: nil},
	}}
	src := &fakeSource{sess: sess}
	sink := &captureSink{}
	s := NewScheduler(src, testEngine(), sink.sink, 5*time.Millisecond, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, 5*time.Second, func() bool { return len(sink.snapshot()) > 0 })

	got := sink.snapshot()
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("sink received %+v, want exactly the success-cycle match", got)
	}
	if st := s.State(); st == StateStopped {
		t.Fatalf("scheduler stopped after transient failures")
	}
	if sess.callCount() < 4 {
		t.Fatalf("fetch called %d times, want the loop to keep retrying", sess.callCount())
	}
}

func TestSchedulerDegradedModeUntilSessionAppears(t *testing.T) {
	src := &fakeSource{} // no session yet
	sink := &captureSink{}
	s := NewScheduler(src, testEngine(), sink.sink, 5*time.Millisecond, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	// A few idle cycles: no session, no fetches, no matches, no error.
	time.Sleep(30 * time.Millisecond)
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("sink received %d matches before login", got)
	}
	if st := s.State(); st != StateIdle {
		t.Fatalf("State = %v before login, want StateIdle", st)
	}

	// Login completes: the web layer swaps a session in. The loop must
	// activate on its own.
	sess := &scriptedSession{script: []fetchResult{
		{posts: []domain.Post{{ID: "1", Title: "theft"}}},
		{posts: nil},
	}}
	src.swap(sess)

	waitFor(t, 5*time.Second, func() bool { return len(sink.snapshot()) == 1 })
}

func TestSchedulerStopInterruptsSleep(t *testing.T) {
	sess := &scriptedSession{script: []fetchResult{{posts: nil}}}
	src := &fakeSource{sess: sess}
	// One-hour interval: Stop must not wait for the sleep to elapse.
	s := NewScheduler(src, testEngine(), nil, time.Hour, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return sess.callCount() >= 1 })

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the pending sleep")
	}
	if st := s.State(); st != StateStopped {
		t.Fatalf("State = %v after Stop, want StateStopped", st)
	}

	// Idempotent: a second Stop returns immediately.
	s.Stop()
}

func TestSchedulerRestartKeepsEngineState(t *testing.T) {
	eng := testEngine()
	sess := &scriptedSession{script: []fetchResult{
		{posts: []domain.Post{{ID: "1", Title: "theft"}}},
	}}
	src := &fakeSource{sess: sess}
	sink := &captureSink{}
	s := NewScheduler(src, eng, sink.sink, 5*time.Millisecond, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return len(sink.snapshot()) == 1 })
	s.Stop()

	// Restart: the same post keeps coming back from the feed but must stay
	// deduplicated by the engine that survived the stop.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()
	calls := sess.callCount()
	waitFor(t, 5*time.Second, func() bool { return sess.callCount() > calls+2 })
	if got := sink.snapshot(); len(got) != 1 {
		t.Fatalf("sink received %d matches across restart, want 1", len(got))
	}
}

func TestSchedulerStartWhileRunning(t *testing.T) {
	src := &fakeSource{}
	s := NewScheduler(src, testEngine(), nil, 5*time.Millisecond, zerolog.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestSchedulerContextCancelReleasesRunSlot(t *testing.T) {
	src := &fakeSource{}
	s := NewScheduler(src, testEngine(), nil, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	waitFor(t, 5*time.Second, func() bool { return s.State() == StateStopped })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start after context cancel = %v, want nil", err)
	}
	s.Stop()
}
