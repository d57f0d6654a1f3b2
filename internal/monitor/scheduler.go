// Package monitor – Scheduler
//
// This file implements the monitoring scheduler: a single long-lived poll
// loop that fetches posts with whatever session is currently held, hands
// them to the match engine, and pushes new matches to the notification
// sink. Cycles are strictly sequential; transient fetch failures put the
// loop into backoff for one interval and never terminate it. Only an
// explicit Stop (or cancellation of the Start context) ends the loop, and
// doing so interrupts a pending sleep promptly.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mvardas/go-neighborhood-watch/internal/domain"
	"github.com/mvardas/go-neighborhood-watch/internal/feed"
	"github.com/mvardas/go-neighborhood-watch/internal/match"
)

// State is the scheduler's lifecycle position.
type State int

const (
	// StateIdle: running but unauthenticated; cycles are silent no-ops.
	StateIdle State = iota
	// StatePolling: actively fetching and evaluating.
	StatePolling
	// StateBackoff: last fetch failed; sleeping one full interval.
	StateBackoff
	// StateStopped: not running.
	StateStopped
)

// String returns a short lower-case label for logs and metrics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateBackoff:
		return "backoff"
	default:
		return "stopped"
	}
}

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// SessionSource yields the session the next cycle should poll with. It is
// read once per cycle, so a login completing mid-cycle takes effect on the
// following cycle. *auth.SessionHandle satisfies this.
type SessionSource interface {
	Current() feed.Session
}

// Sink receives each new match synchronously, in production order. A slow
// sink stalls polling; the scheduler does not enforce a timeout on it.
type Sink func(domain.Match)

// Scheduler drives the fetch-evaluate-notify loop.
type Scheduler struct {
	source   SessionSource
	engine   *match.Engine
	sink     Sink
	interval time.Duration
	log      zerolog.Logger

	// failEscalate rate-limits the escalated "still failing" error log so
	// an outage doesn't flood error-level output once per interval.
	failEscalate rate.Sometimes

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler builds a stopped scheduler. interval must be >= 1s (the
// config layer validates this); sink may be nil when no live subscriber
// delivery is needed.
func NewScheduler(source SessionSource, engine *match.Engine, sink Sink, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		source:       source,
		engine:       engine,
		sink:         sink,
		interval:     interval,
		log:          log.With().Str("component", "monitor").Logger(),
		failEscalate: rate.Sometimes{First: 1, Interval: 5 * time.Minute},
		state:        StateStopped,
	}
}

// State returns the current lifecycle position.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the configured poll interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Engine exposes the engine backing this scheduler for the query surface.
func (s *Scheduler) Engine() *match.Engine { return s.engine }

// Start launches the poll loop on its own goroutine. Starting may happen
// before any login has succeeded: until a session appears in the source the
// loop runs degraded, performing no fetches. Start after Stop reuses the
// same engine, so previously seen posts stay deduplicated.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return ErrAlreadyRunning
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.setStateLocked(StateIdle)
	s.log.Info().Dur("interval", s.interval).Msg("monitoring started")
	go s.run(ctx, s.stopCh, s.doneCh)
	return nil
}

// Stop halts the loop and waits for the in-flight cycle to finish. It is
// idempotent and interrupts a pending interval sleep promptly. Engine state
// (seen set, match log) is left intact.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	close(stop)
	<-done
	s.log.Info().Msg("monitoring stopped")
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer s.setState(StateStopped)
	// If the Start context is cancelled (rather than Stop being called),
	// release the run slot so a later Start succeeds.
	defer func() {
		s.mu.Lock()
		if s.doneCh == done {
			s.stopCh, s.doneCh = nil, nil
		}
		s.mu.Unlock()
	}()
	for {
		s.cycle(ctx)
		if !s.sleep(ctx, stop) {
			return
		}
	}
}

// cycle performs one fetch-evaluate-notify iteration. Fetch errors are
// recovered here: there is no caller waiting on a background cycle to
// propagate them to.
func (s *Scheduler) cycle(ctx context.Context) {
	sess := s.source.Current()
	if sess == nil {
		// Degraded mode: started before login completed. Stay quiet; the
		// loop activates by itself once a session is swapped in.
		s.setState(StateIdle)
		pollCycles.WithLabelValues("idle").Inc()
		return
	}
	s.setState(StatePolling)

	tr := otel.Tracer("monitor/Scheduler")
	ctx, span := tr.Start(ctx, "cycle")
	defer span.End()

	start := time.Now()
	posts, err := sess.FetchPosts(ctx)
	pollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.setState(StateBackoff)
		pollCycles.WithLabelValues("error").Inc()
		span.RecordError(err)
		s.log.Warn().Err(err).Msg("fetch failed, backing off for one interval")
		s.failEscalate.Do(func() {
			s.log.Error().Err(err).Msg("feed fetches are failing")
		})
		return
	}

	matches := s.engine.Evaluate(posts)
	pollCycles.WithLabelValues("ok").Inc()
	matchesDetected.Add(float64(len(matches)))
	span.SetAttributes(
		attribute.Int("poll.posts", len(posts)),
		attribute.Int("poll.matches", len(matches)),
	)
	if len(matches) > 0 {
		s.log.Info().Int("count", len(matches)).Msg("new matches detected")
	}
	if s.sink != nil {
		for _, m := range matches {
			s.sink(m)
		}
	}
}

// sleep waits one interval, returning false when the loop should exit.
// A pending sleep is cut short by Stop or context cancellation.
func (s *Scheduler) sleep(ctx context.Context, stop <-chan struct{}) bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(st)
}

func (s *Scheduler) setStateLocked(st State) {
	if s.state != st {
		s.log.Debug().Str("from", s.state.String()).Str("to", st.String()).Msg("state change")
	}
	s.state = st
	schedulerState.Set(float64(st))
}
