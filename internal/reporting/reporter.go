// Package reporting turns the cucumber JSON written by godog into the run's HTML report and console summary.
package reporting

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/results"
)

const (
	ThemeBootstrap = "bootstrap"
	ThemeSimple    = "simple"
)

//go:embed templates/report.html.tmpl
var reportTemplate string

// launch opens a rendered report. Replaced in tests.
var launch = browser.OpenFile

// Options configures Generate.
type Options struct {
	// JSONFile is the cucumber JSON written by godog.
	JSONFile string
	// Output is the HTML file to write, or "stdout".
	Output string
	Theme  string
	// LaunchReport opens the report in the default browser once written.
	LaunchReport bool
	Metadata     Metadata
	BrandTitle   string
	Name         string
	// IgnoreBadJSONFile renders an empty report instead of failing on a malformed JSONFile.
	IgnoreBadJSONFile bool

	FS     afero.Fs
	Logger *zap.Logger
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func isStdout(path string) bool { return path == "" || path == "stdout" }

// openOutput creates the report file, or wraps Stdout so Close is a no-op.
func openOutput(fs afero.Fs, path string) (io.WriteCloser, error) {
	if isStdout(path) {
		return nopWriteCloser{os.Stdout}, nil
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

// Generate renders the HTML report for opts.JSONFile.
func Generate(ctx context.Context, opts Options) error {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	theme := opts.Theme
	switch theme {
	case "":
		theme = ThemeBootstrap
	case ThemeBootstrap, ThemeSimple:
	default:
		return fmt.Errorf("unsupported report theme: %s", opts.Theme)
	}

	features, err := ReadFeatures(fs, opts.JSONFile)
	var bad *BadJSONError
	if errors.As(err, &bad) && opts.IgnoreBadJSONFile {
		logger.Warn("Results file is malformed; rendering an empty report.", zap.String("file", opts.JSONFile), zap.Error(err))
		features, err = nil, nil
	}
	if err != nil {
		return err
	}

	tmpl, err := newTemplate()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newView(opts, theme, features)); err != nil {
		return fmt.Errorf("failed to execute HTML template: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := openOutput(fs, opts.Output)
	if err != nil {
		return err
	}
	if _, err := out.Write(buf.Bytes()); err != nil {
		out.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	logger.Info("HTML report written.", zap.String("file", opts.Output), zap.Int("features", len(features)))

	if opts.LaunchReport && !isStdout(opts.Output) {
		// No browser on a CI box is normal.
		if err := launch(opts.Output); err != nil {
			logger.Warn("Could not open the report.", zap.Error(err))
		}
	}
	return nil
}

func newTemplate() (*template.Template, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(ns int64) string {
			d := time.Duration(ns)
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"statusClass": func(s results.Status) string {
			switch s {
			case results.StatusPassed:
				return "success"
			case results.StatusFailed:
				return "danger"
			case results.StatusSkipped:
				return "secondary"
			default:
				return "warning"
			}
		},
		"stepStatus": func(s Step) results.Status { return results.Status(s.Result.Status) },
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return tmpl, nil
}

type stats struct {
	Total, Passed, Failed, Other int
}

func (s *stats) add(status results.Status) {
	s.Total++
	switch status {
	case results.StatusPassed:
		s.Passed++
	case results.StatusFailed:
		s.Failed++
	default:
		s.Other++
	}
}

type stepView struct {
	Step
	Images []template.URL
}

type scenarioView struct {
	Element
	Status   results.Status
	Duration int64
	Steps    []stepView
}

type featureView struct {
	Feature
	Status    results.Status
	Scenarios []scenarioView
}

type view struct {
	Title     string
	Name      string
	Theme     string
	Generated string
	Metadata  []MetaEntry
	Features  []featureView

	FeatureStats  stats
	ScenarioStats stats
	StepStats     stats
}

func newView(opts Options, theme string, features []Feature) view {
	v := view{
		Title:     opts.BrandTitle,
		Name:      opts.Name,
		Theme:     theme,
		Generated: time.Now().Format(time.RFC1123),
		Metadata:  opts.Metadata.Entries(),
	}
	for _, f := range features {
		fv := featureView{Feature: f, Status: results.StatusPassed}
		for _, el := range f.Elements {
			sv := scenarioView{Element: el, Status: el.Status(), Duration: el.Duration()}
			for _, s := range el.Steps {
				stv := stepView{Step: s}
				for _, e := range s.Embeddings {
					// Embeddings are produced by this runner, never by page content.
					stv.Images = append(stv.Images, template.URL("data:"+e.MimeType+";base64,"+e.Data))
				}
				sv.Steps = append(sv.Steps, stv)
				v.StepStats.add(results.Status(s.Result.Status))
			}
			if el.Type != "background" {
				v.ScenarioStats.add(sv.Status)
			}
			if sv.Status == results.StatusFailed {
				fv.Status = results.StatusFailed
			}
			fv.Scenarios = append(fv.Scenarios, sv)
		}
		v.FeatureStats.add(fv.Status)
		v.Features = append(v.Features, fv)
	}
	return v
}
