// Package world holds the runtime context shared by every step definition in a run.
package world

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/config"
	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/fixtures"
	"github.com/xkilldash9x/klassi-cli/internal/observability"
)

// World is created once per process. Only the browser slot changes between scenarios.
type World struct {
	RunID     string
	StartedAt time.Time
	// Date is the run date in DD-MM-YYYY form.
	Date string

	Logger    *zap.Logger
	Config    *config.Config
	EnvConfig config.EnvConfig
	FS        afero.Fs

	Page   fixtures.Namespace
	Shared fixtures.Namespace

	HTTP       *resty.Client
	Downloader *Downloader
	Tracer     *observability.Tracer

	mu      sync.RWMutex
	browser driver.Handle
}

type options struct {
	fs       afero.Fs
	traceOut io.Writer
	now      func() time.Time
}

// Option customizes New.
type Option func(*options)

// WithFS sets the filesystem fixtures, env config and downloads go through.
func WithFS(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithTraceOutput redirects the trace banner.
func WithTraceOutput(w io.Writer) Option {
	return func(o *options) { o.traceOut = w }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds the World: it loads the environment block and the fixtures and wires the HTTP helpers.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*World, error) {
	o := options{fs: afero.NewOsFs(), traceOut: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	env, err := config.LoadEnvConfig(o.fs, cfg.EnvConfigFile, cfg.Environment)
	if err != nil {
		return nil, err
	}

	page, err := fixtures.Load(o.fs, cfg.Paths.PageObjects)
	if err != nil {
		return nil, fmt.Errorf("failed to load page objects: %w", err)
	}
	shared, err := fixtures.LoadShared(o.fs, cfg.Paths.SharedObjects)
	if err != nil {
		return nil, fmt.Errorf("failed to load shared objects: %w", err)
	}

	client, err := NewHTTPClient(cfg.HTTP, logger)
	if err != nil {
		return nil, err
	}

	now := o.now()
	w := &World{
		RunID:      uuid.NewString(),
		StartedAt:  now,
		Date:       CurrentDate(now),
		Logger:     logger,
		Config:     cfg,
		EnvConfig:  env,
		FS:         o.fs,
		Page:       page,
		Shared:     shared,
		HTTP:       client,
		Downloader: NewDownloader(client, o.fs, cfg.Paths.Downloads),
		Tracer:     observability.NewTracer(o.traceOut),
	}
	logger.Debug("World initialized.",
		zap.String("run_id", w.RunID),
		zap.Strings("page_objects", page.Names()),
		zap.Strings("shared_objects", shared.Names()),
	)
	return w, nil
}

// Browser returns the current scenario's session, or nil between scenarios.
func (w *World) Browser() driver.Handle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.browser
}

// SetBrowser replaces the current session.
func (w *World) SetBrowser(h driver.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.browser = h
}

// Trace prints a highlighted banner to the console.
func (w *World) Trace(args ...any) {
	w.Tracer.Trace(args...)
}

// Pause sleeps on the current session, or plainly when there is none.
func (w *World) Pause(ctx context.Context, d time.Duration) error {
	if b := w.Browser(); b != nil {
		return b.Pause(ctx, d)
	}
	return driver.Sleep(ctx, d)
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying w.
func NewContext(ctx context.Context, w *World) context.Context {
	return context.WithValue(ctx, ctxKey{}, w)
}

// FromContext returns the World carried by ctx, or nil.
func FromContext(ctx context.Context) *World {
	w, _ := ctx.Value(ctxKey{}).(*World)
	return w
}
