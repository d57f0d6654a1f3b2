// Package app wires the monitoring core to its supporting infrastructure:
// structured logging, tracing, the durable token store, the authentication
// coordinator, the match engine, the poll scheduler, and the match
// broadcaster. The vendor client is injected by the caller; everything else
// is constructed here from config.
//
// Design goals:
//   - Observability first (OTel tracing; Prometheus collectors register on import)
//   - All dependencies injected; deterministic startup order (storage → auth → scheduler)
//   - Token persistence is owned here, not by the coordinator
package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mvardas/go-neighborhood-watch/internal/auth"
	"github.com/mvardas/go-neighborhood-watch/internal/config"
	"github.com/mvardas/go-neighborhood-watch/internal/domain"
	"github.com/mvardas/go-neighborhood-watch/internal/feed"
	"github.com/mvardas/go-neighborhood-watch/internal/match"
	"github.com/mvardas/go-neighborhood-watch/internal/monitor"
	"github.com/mvardas/go-neighborhood-watch/internal/notify"
	"github.com/mvardas/go-neighborhood-watch/internal/observability"
	"github.com/mvardas/go-neighborhood-watch/internal/store"
	"github.com/mvardas/go-neighborhood-watch/internal/sysutil"
)

// tokenSaveTimeout bounds the DB write in the rotation hook, which runs
// under the session-handle lock.
const tokenSaveTimeout = 5 * time.Second

// App is the assembled application: one coordinator, one engine, one
// scheduler, one broadcaster, sharing a logger and a token database.
type App struct {
	Config      config.Config
	Log         zerolog.Logger
	DB          *gorm.DB
	Coordinator *auth.Coordinator
	Engine      *match.Engine
	Scheduler   *monitor.Scheduler
	Broadcaster *notify.Broadcaster

	otelShutdown func(context.Context) error
}

// New builds the application around an injected vendor client. It opens and
// migrates the token database, installs tracing when enabled, and wires the
// coordinator's rotation hook to durable token persistence.
func New(ctx context.Context, cfg config.Config, client feed.Client, version string) (*App, error) {
	sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, err
	}

	coord := auth.NewCoordinator(client, log)
	coord.OnTokenUpdate = func(token string) {
		ctx, cancel := context.WithTimeout(context.Background(), tokenSaveTimeout)
		defer cancel()
		if err := store.SaveToken(ctx, db, token); err != nil {
			log.Error().Err(err).Msg("persist refresh token")
		}
	}

	engine := match.NewEngine(domain.TermSet{Keywords: cfg.Keywords, Emojis: cfg.Emojis})
	bcast := notify.NewBroadcaster(log)
	sched := monitor.NewScheduler(coord.Handle, engine, bcast.Sink(), cfg.PollInterval, log)

	return &App{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Coordinator:  coord,
		Engine:       engine,
		Scheduler:    sched,
		Broadcaster:  bcast,
		otelShutdown: shutdown,
	}, nil
}

// Authenticate runs one login attempt from configured credentials, seeding
// the refresh token from the durable store when config carries none. When a
// stored token has gone stale and a password is configured, it retries on
// the password path so a revoked token does not strand the account.
//
// otp is the SMS code for a follow-up attempt after StatusRequiresOTP; pass
// "" on the first attempt.
func (a *App) Authenticate(ctx context.Context, otp string) auth.Result {
	creds := auth.Credentials{
		Username:     a.Config.Feed.Username,
		Password:     a.Config.Feed.Password,
		OTPCode:      otp,
		RefreshToken: a.Config.Feed.RefreshToken,
	}

	stored := false
	if creds.RefreshToken == "" {
		tok, err := store.LoadToken(ctx, a.DB)
		if err != nil {
			a.Log.Warn().Err(err).Msg("load persisted refresh token")
		} else if tok != "" {
			creds.RefreshToken = tok
			stored = true
		}
	}

	res := a.Coordinator.Authenticate(ctx, creds)
	if stored && res.Status == auth.StatusFailed && errors.Is(res.Err, auth.ErrCredentialsInvalid) &&
		creds.Username != "" && creds.Password != "" {
		a.Log.Warn().Msg("stored refresh token rejected, retrying with password")
		creds.RefreshToken = ""
		res = a.Coordinator.Authenticate(ctx, creds)
	}
	return res
}

// Start launches the polling scheduler. It is safe to call before
// authentication: the scheduler idles until a session is available.
func (a *App) Start(ctx context.Context) error {
	return a.Scheduler.Start(ctx)
}

// Close stops the scheduler, flushes tracing, and closes the token database.
func (a *App) Close(ctx context.Context) error {
	a.Scheduler.Stop()

	var first error
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			first = err
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
