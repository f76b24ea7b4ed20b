package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/lifecycle"
	"github.com/xkilldash9x/klassi-cli/internal/notify"
	"github.com/xkilldash9x/klassi-cli/internal/observability"
	"github.com/xkilldash9x/klassi-cli/internal/results"
	"github.com/xkilldash9x/klassi-cli/internal/suite"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

// selectorOptions overrides browser factories. Replaced in tests.
var selectorOptions = func() []driver.SelectorOption { return nil }

// runFlagKeys maps run flags onto config keys.
var runFlagKeys = map[string]string{
	"env":            "environment",
	"browser":        "settings.browser_name",
	"remote-service": "settings.remote_service.type",
	"remote-config":  "settings.remote_config",
	"report-name":    "settings.report_name",
	"disable-report": "settings.disable_report",
	"tags":           "suite.tags",
	"headless":       "browser.headless",
	"timeout":        "timeout_ms",
}

// newRunCmd creates the `run` command.
func newRunCmd(v *viper.Viper) *cobra.Command {
	var email bool

	runCmd := &cobra.Command{
		Use:   "run [feature paths...]",
		Short: "Run the feature files and produce the report",
		Long: `Run executes every scenario with a fresh browser session, captures a screenshot
of each failure, then writes the HTML report and optionally emails the summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Paths.Features = args
			}
			cfg.Run.Email = email

			w, err := world.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize the world: %w", err)
			}

			store := results.NewStore()
			var reOpts []lifecycle.RunEndOption
			if cfg.Run.Email {
				mailer, err := notify.NewMailer(cfg.Email, logger)
				if err != nil {
					return fmt.Errorf("email was requested but is not configured: %w", err)
				}
				reOpts = append(reOpts, lifecycle.WithSender(mailer))
			}
			runEnd := lifecycle.NewRunEnd(cfg, w, store, logger, reOpts...)

			sel := driver.NewSelector(cfg, logger, selectorOptions()...)
			if kind, err := sel.Kind(); err != nil {
				// Every scenario will fail to acquire a session; say why once up front.
				logger.Warn("Browser settings are invalid.", zap.Error(err))
			} else {
				logger.Info("Browser selected.", zap.String("kind", kind.String()), zap.String("label", cfg.BrowserLabel()))
			}

			status, runEndErr := suite.New(cfg, w, sel, store, runEnd, logger, suite.WithOutput(cmd.OutOrStdout())).Run(ctx)
			if runEndErr != nil {
				logger.Error("Run-end actions failed.", zap.Error(runEndErr))
			}
			if status != 0 {
				return errors.Join(ErrTestsFailed, runEndErr)
			}
			return runEndErr
		},
	}

	flags := runCmd.Flags()
	flags.String("env", "", "environment block to load from the env config file (dev, uat, test, prod)")
	flags.StringP("browser", "b", "chrome", "browser to run locally (chrome, firefox)")
	flags.String("remote-service", "", "remote browser service (browserstack, cdp)")
	flags.String("remote-config", "", "capability profile requested from the remote service")
	flags.String("report-name", "Automated Report", "report name used in titles and file names")
	flags.Bool("disable-report", false, "write the HTML report without opening it")
	flags.StringP("tags", "t", "", "tag expression selecting scenarios, e.g. \"@smoke && ~@wip\"")
	flags.Bool("headless", true, "run local browsers headless")
	flags.Int("timeout", 0, "per-scenario timeout in milliseconds")
	flags.BoolVar(&email, "email", false, "email the run summary once the run completes")

	for name, key := range runFlagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return runCmd
}
