// Package suite wires the lifecycle controller, step registry and run-end actions into a godog test suite.
package suite

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/config"
	"github.com/xkilldash9x/klassi-cli/internal/lifecycle"
	"github.com/xkilldash9x/klassi-cli/internal/reporting"
	"github.com/xkilldash9x/klassi-cli/internal/results"
	"github.com/xkilldash9x/klassi-cli/internal/steps"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

// StepRegistrar adds step definitions to a scenario.
type StepRegistrar func(sc *godog.ScenarioContext)

// Suite runs the configured features once.
type Suite struct {
	cfg        *config.Config
	world      *world.World
	store      *results.Store
	controller *lifecycle.Controller
	runEnd     *lifecycle.RunEnd
	logger     *zap.Logger

	registrars []StepRegistrar
	out        io.Writer
	contents   []godog.Feature
}

// Option customizes a Suite.
type Option func(*Suite)

// WithSteps adds project step definitions after the built-in ones.
func WithSteps(r ...StepRegistrar) Option {
	return func(s *Suite) { s.registrars = append(s.registrars, r...) }
}

// WithOutput redirects formatter and summary output. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Suite) { s.out = w }
}

// WithFeatureContents runs in-memory features alongside the configured paths.
func WithFeatureContents(f ...godog.Feature) Option {
	return func(s *Suite) { s.contents = append(s.contents, f...) }
}

// New returns a Suite. Sessions come from acq; every outcome lands in store.
func New(cfg *config.Config, w *world.World, acq lifecycle.Acquirer, store *results.Store, runEnd *lifecycle.RunEnd, logger *zap.Logger, opts ...Option) *Suite {
	s := &Suite{
		cfg:        cfg,
		world:      w,
		store:      store,
		controller: lifecycle.NewController(w, acq, store, cfg.Timeout(), logger),
		runEnd:     runEnd,
		logger:     logger.Named("suite"),
		registrars: []StepRegistrar{steps.Register},
		out:        os.Stdout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Options builds the godog options for this run.
func (s *Suite) Options(ctx context.Context) godog.Options {
	format := s.cfg.Suite.Format
	if format == "" {
		format = "pretty"
	}
	if s.runEnd.ReportsEnabled() {
		jsonPath, _ := s.runEnd.ReportPaths()
		format += ",cucumber:" + jsonPath
	}

	out := s.out
	if !s.cfg.Suite.NoColors {
		out = colors.Colored(out)
	}

	return godog.Options{
		Output:          out,
		Format:          format,
		Paths:           s.cfg.Paths.Features,
		Tags:            s.cfg.Suite.Tags,
		Strict:          s.cfg.Suite.Strict,
		StopOnFailure:   s.cfg.Suite.StopOnFailure,
		NoColors:        s.cfg.Suite.NoColors,
		Randomize:       s.cfg.Suite.Randomize,
		Concurrency:     1,
		DefaultContext:  world.NewContext(ctx, s.world),
		FeatureContents: s.contents,
	}
}

// Run executes the features, then the run-end actions, and prints the summary table.
// It returns godog's exit status; the error reports run-end failures only.
func (s *Suite) Run(ctx context.Context) (int, error) {
	opts := s.Options(ctx)
	s.logger.Info("Starting test run.",
		zap.String("run_id", s.world.RunID),
		zap.String("format", opts.Format),
		zap.Strings("paths", opts.Paths),
	)

	status := godog.TestSuite{
		Name:                 s.cfg.ProjectName,
		TestSuiteInitializer: s.initializeSuite,
		ScenarioInitializer:  s.initializeScenario,
		Options:              &opts,
	}.Run()

	// godog writes its JSON when Run returns, so the report has to wait until now.
	err := s.runEnd.Run(ctx)

	title := reporting.BrandTitle(s.cfg.ProjectName, s.cfg.Settings.ReportName, s.world.Date)
	reporting.WriteSummary(s.out, title, s.store.Records())

	counts := s.store.Counts()
	s.logger.Info("Test run finished.",
		zap.Int("status", status),
		zap.Int("passed", counts[results.StatusPassed]),
		zap.Int("failed", counts[results.StatusFailed]),
	)
	return status, err
}

func (s *Suite) initializeSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		s.world.Trace("Run", s.world.RunID, "on", s.cfg.BrowserLabel(), "against", s.world.EnvConfig.Name())
	})
	ctx.AfterSuite(func() {
		s.logger.Debug("All features executed.", zap.Int("scenarios", len(s.store.Records())))
	})
}

func (s *Suite) initializeScenario(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, gs *godog.Scenario) (context.Context, error) {
		return s.controller.BeforeScenario(ctx, scenarioOf(gs))
	})
	sc.After(func(ctx context.Context, gs *godog.Scenario, err error) (context.Context, error) {
		return ctx, s.controller.AfterScenario(ctx, scenarioOf(gs), StatusOf(err), err)
	})
	for _, r := range s.registrars {
		r(sc)
	}
}

func scenarioOf(gs *godog.Scenario) results.Scenario {
	return results.Scenario{ID: gs.Id, URI: gs.Uri, Name: gs.Name}
}

// StatusOf maps the error godog hands to an After hook onto a scenario status.
func StatusOf(err error) results.Status {
	switch {
	case err == nil:
		return results.StatusPassed
	case errors.Is(err, godog.ErrUndefined):
		return results.StatusUndefined
	case errors.Is(err, godog.ErrPending):
		return results.StatusPending
	case errors.Is(err, godog.ErrSkip):
		return results.StatusSkipped
	default:
		return results.StatusFailed
	}
}
