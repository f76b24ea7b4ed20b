package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/klassi-cli/internal/config"
	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/notify"
	"github.com/xkilldash9x/klassi-cli/internal/reporting"
	"github.com/xkilldash9x/klassi-cli/internal/results"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

// GenerateFunc renders the HTML report. reporting.Generate is the production value.
type GenerateFunc func(ctx context.Context, opts reporting.Options) error

// RunEnd holds the actions that fire once the whole run, including godog's JSON output, is complete.
type RunEnd struct {
	cfg      *config.Config
	world    *world.World
	store    *results.Store
	sender   notify.Sender
	generate GenerateFunc
	fs       afero.Fs
	logger   *zap.Logger
	now      func() time.Time
}

// RunEndOption customizes RunEnd.
type RunEndOption func(*RunEnd)

// WithSender sets the email transport. Without one the email action is skipped.
func WithSender(s notify.Sender) RunEndOption {
	return func(r *RunEnd) { r.sender = s }
}

// WithGenerator replaces the report generator.
func WithGenerator(g GenerateFunc) RunEndOption {
	return func(r *RunEnd) { r.generate = g }
}

// WithRunEndClock overrides time.Now for the completion timestamp.
func WithRunEndClock(now func() time.Time) RunEndOption {
	return func(r *RunEnd) { r.now = now }
}

// NewRunEnd returns the run-end actions for w.
func NewRunEnd(cfg *config.Config, w *world.World, store *results.Store, logger *zap.Logger, opts ...RunEndOption) *RunEnd {
	r := &RunEnd{
		cfg:      cfg,
		world:    w,
		store:    store,
		generate: reporting.Generate,
		fs:       w.FS,
		logger:   logger.Named("runend"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReportPaths returns where godog's JSON and the HTML report for this run live.
func (r *RunEnd) ReportPaths() (jsonPath, htmlPath string) {
	return reporting.Paths(r.cfg.Paths.Reports, r.cfg.ProjectName, r.cfg.Settings.ReportName, r.world.Date)
}

// ReportsEnabled reports whether a reports directory is configured and present.
func (r *RunEnd) ReportsEnabled() bool {
	if r.cfg.Paths.Reports == "" {
		return false
	}
	ok, err := afero.DirExists(r.fs, r.cfg.Paths.Reports)
	return err == nil && ok
}

// Run fires the email and report actions concurrently and waits for both.
func (r *RunEnd) Run(ctx context.Context) error {
	completed := r.now()
	var g errgroup.Group

	if r.cfg.Run.Email {
		if r.sender == nil {
			r.logger.Warn("Email requested but no mail sender is configured.")
		} else {
			g.Go(func() error {
				if err := driver.Sleep(ctx, r.cfg.Lifecycle.EmailDelay); err != nil {
					return err
				}
				if err := r.sender.Send(ctx, r.summary(completed)); err != nil {
					r.logger.Error("Failed to email the run summary.", zap.Error(err))
					return fmt.Errorf("email: %w", err)
				}
				return nil
			})
		}
	}

	if r.ReportsEnabled() {
		g.Go(func() error {
			if err := driver.Sleep(ctx, r.cfg.Lifecycle.ReportDelay); err != nil {
				return err
			}
			if err := r.report(ctx, completed); err != nil {
				r.logger.Error("Failed to generate the HTML report.", zap.Error(err))
				return fmt.Errorf("report: %w", err)
			}
			return nil
		})
	} else if r.cfg.Paths.Reports != "" {
		r.logger.Info("Reports directory does not exist; skipping the HTML report.", zap.String("dir", r.cfg.Paths.Reports))
	}

	return g.Wait()
}

func (r *RunEnd) metadata(completed time.Time) reporting.Metadata {
	return reporting.NewMetadata(
		r.world.StartedAt,
		completed,
		r.world.EnvConfig.Name(),
		r.cfg.BrowserLabel(),
		r.cfg.Settings.RemoteService.Configured(),
		world.TimestampLayout,
	)
}

func (r *RunEnd) summary(completed time.Time) notify.Summary {
	_, htmlPath := r.ReportPaths()
	s := notify.Summary{
		Title:    reporting.BrandTitle(r.cfg.ProjectName, r.cfg.Settings.ReportName, r.world.Date),
		Date:     r.world.Date,
		Metadata: r.metadata(completed).Entries(),
		Records:  r.store.Records(),
		LogPath:  r.cfg.Logger.LogFile,
	}
	if r.ReportsEnabled() {
		s.ReportPath = htmlPath
	}
	return s
}

func (r *RunEnd) report(ctx context.Context, completed time.Time) error {
	jsonPath, htmlPath := r.ReportPaths()

	n, err := reporting.EmbedAttachments(r.fs, jsonPath, r.store.Records())
	var bad *reporting.BadJSONError
	switch {
	case errors.As(err, &bad):
		r.logger.Warn("Results file is malformed; screenshots were not embedded.", zap.Error(err))
	case err != nil:
		r.logger.Warn("Could not embed screenshots.", zap.Error(err))
	case n > 0:
		r.logger.Debug("Embedded screenshots in the results file.", zap.Int("count", n))
	}

	launch := !r.cfg.Settings.DisableReport
	err = r.generate(ctx, reporting.Options{
		JSONFile:          jsonPath,
		Output:            htmlPath,
		Theme:             r.cfg.Report.Theme,
		LaunchReport:      launch,
		Metadata:          r.metadata(completed),
		BrandTitle:        reporting.BrandTitle(r.cfg.ProjectName, r.cfg.Settings.ReportName, r.world.Date),
		Name:              r.cfg.ProjectName,
		IgnoreBadJSONFile: true,
		FS:                r.fs,
		Logger:            r.logger,
	})
	if err != nil {
		return err
	}
	if launch {
		// Let the browser process start before the CLI exits.
		return driver.Sleep(ctx, r.cfg.Lifecycle.LaunchDelay)
	}
	return nil
}
