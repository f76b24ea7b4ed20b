package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/klassi-cli/internal/observability"
	"github.com/xkilldash9x/klassi-cli/internal/reporting"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

// reportFS is the filesystem the report command reads and writes. Replaced in tests.
var reportFS afero.Fs = afero.NewOsFs()

// newReportCmd creates the `report` command, which renders an existing results file again.
func newReportCmd(v *viper.Viper) *cobra.Command {
	var (
		output string
		open   bool
	)

	reportCmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Render the HTML report from a cucumber JSON results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			jsonFile := args[0]
			if output == "" {
				output = strings.TrimSuffix(jsonFile, filepath.Ext(jsonFile)) + ".html"
			}

			info, err := reportFS.Stat(jsonFile)
			if err != nil {
				return fmt.Errorf("failed to read results file: %w", err)
			}
			date := world.CurrentDate(info.ModTime())

			err = reporting.Generate(cmd.Context(), reporting.Options{
				JSONFile:     jsonFile,
				Output:       output,
				Theme:        cfg.Report.Theme,
				LaunchReport: open,
				Metadata: reporting.NewMetadata(
					info.ModTime(), time.Now(), "", cfg.BrowserLabel(),
					cfg.Settings.RemoteService.Configured(), world.TimestampLayout,
				),
				BrandTitle: reporting.BrandTitle(cfg.ProjectName, cfg.Settings.ReportName, date),
				Name:       cfg.ProjectName,
				FS:         reportFS,
				Logger:     observability.GetLogger(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			return nil
		},
	}

	reportCmd.Flags().StringVarP(&output, "output", "o", "", "HTML file to write (default: results file with .html)")
	reportCmd.Flags().BoolVar(&open, "open", false, "open the report in the default browser")
	reportCmd.Flags().String("theme", "bootstrap", "report theme (bootstrap, simple)")
	_ = v.BindPFlag("report.theme", reportCmd.Flags().Lookup("theme"))
	return reportCmd
}
