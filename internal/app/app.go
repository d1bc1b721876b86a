// Package app wires configuration, logging, the persistence backend and the
// tracker into the deadliner command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/temporal"
	"github.com/nhle/deadliner/internal/theme"
	"github.com/nhle/deadliner/internal/tracker"
)

// New builds the command line application.
func New(version string) *cli.App {
	return &cli.App{
		Name:    "deadliner",
		Usage:   "Track assignment deadlines ordered by how soon they are due.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   model.DefaultConfigPath(),
				Usage:   "path to the YAML config file",
			},
			&cli.StringFlag{Name: "backend", Usage: "override the backend (sqlite or firestore)"},
			&cli.StringFlag{Name: "policy", Usage: "override the sync policy (optimistic or authoritative)"},
			&cli.StringFlag{Name: "log-level", Usage: "override the log level"},
		},
		Commands: []*cli.Command{
			listCommand(),
			showCommand(),
			addCommand(),
			editCommand(),
			removeCommand(),
			resolveCommand(),
			watchCommand(),
			loginCommand(),
			logoutCommand(),
		},
	}
}

// env is the per-invocation state shared by commands.
type env struct {
	cfg     *model.AppConfig
	log     zerolog.Logger
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
	loc     *time.Location
	style   temporal.CountdownStyle
	closers []func() error
}

// setup loads configuration, applies flag overrides and configures logging.
func setup(c *cli.Context) (*env, error) {
	cfg, err := model.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("backend"); v != "" {
		cfg.Backend = v
	}
	if v := c.String("policy"); v != "" {
		cfg.Sync.Policy = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &env{cfg: cfg, out: c.App.Writer, errOut: c.App.ErrWriter, now: time.Now}

	logger, closeLog, err := newLogger(cfg.Log, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}
	e.log = logger
	e.closers = append(e.closers, closeLog)

	if cfg.Display.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Display.Timezone)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("invalid display timezone %q: %w", cfg.Display.Timezone, err)
		}
		e.loc = loc
	}

	e.style, err = temporal.ParseCountdownStyle(cfg.Display.Countdown)
	if err != nil {
		e.close()
		return nil, err
	}

	return e, nil
}

// openTracker connects to the configured backend and loads the collection.
// A failed load is an error, so nothing is written over a collection that
// could not be read.
func (e *env) openTracker(ctx context.Context) (*tracker.Tracker, error) {
	tr, err := e.newTracker(ctx)
	if err != nil {
		return nil, err
	}
	if err := tr.Load(ctx).Wait(ctx); err != nil {
		return nil, fmt.Errorf("loading deadlines: %w", err)
	}
	return tr, nil
}

// browseTracker is openTracker for read-only commands. A failed load leaves
// the collection empty and is reported as a warning.
func (e *env) browseTracker(ctx context.Context) (*tracker.Tracker, error) {
	tr, err := e.newTracker(ctx)
	if err != nil {
		return nil, err
	}
	if err := tr.Load(ctx).Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		e.log.Warn().Err(err).Msg("showing an empty collection")
		fmt.Fprintln(e.errOut, theme.ErrorStyle.Render("Could not load deadlines: "+err.Error()))
	}
	return tr, nil
}

func (e *env) newTracker(ctx context.Context) (*tracker.Tracker, error) {
	backend, closeBackend, err := openBackend(ctx, e.cfg, e.log)
	if err != nil {
		return nil, err
	}

	policy, err := tracker.ParseSyncPolicy(e.cfg.EffectivePolicy())
	if err != nil {
		_ = closeBackend()
		return nil, err
	}

	tr := tracker.New(backend,
		tracker.WithPolicy(policy),
		tracker.WithClock(e.now),
		tracker.WithLogger(e.log.With().Str("component", "tracker").Logger()),
	)
	// Closers run in reverse: the tracker drains before the backend closes.
	e.closers = append(e.closers, closeBackend, tr.Close)

	e.log.Debug().
		Str("backend", e.cfg.Backend).
		Str("policy", policy.String()).
		Msg("tracker ready")
	return tr, nil
}

func (e *env) close() {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	if err := errors.Join(errs...); err != nil {
		e.log.Warn().Err(err).Msg("shutdown")
	}
}

// withEnv runs fn with a configured env and releases it afterwards.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(c, e)
	}
}
