package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/driver/drivertest"
	"github.com/xkilldash9x/klassi-cli/internal/observability"
)

const configTemplate = `project_name: shop
paths:
  page_objects: %[1]s/page-objects
  shared_objects: []
  reports: %[1]s/reports
  downloads: %[1]s/downloads
settings:
  disable_report: true
suite:
  format: progress
  no_colors: true
lifecycle:
  email_delay: 0s
  report_delay: 0s
  launch_delay: 0s
logger:
  level: error
  log_file: %[1]s/klassi.log
`

const checkoutFeature = `Feature: Checkout
  Scenario: Basket page
    Given I navigate to "https://shop.test/basket"
    Then the page title should contain "basket"
`

const brokenFeature = `Feature: Broken
  Scenario: Wrong title
    Given I navigate to "https://shop.test/"
    Then the page title should be "Nope"
`

// workspace writes a config file and the given features into a temp dir.
func workspace(t *testing.T, features map[string]string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "klassi.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(configTemplate, dir)), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0o755))
	for name, body := range features {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir, cfgPath
}

// useFakeBrowser routes every chrome acquisition to an in-memory session for the duration of t.
func useFakeBrowser(t *testing.T) *drivertest.Factory {
	t.Helper()
	observability.ResetForTest()
	fake := &drivertest.Factory{}
	orig := selectorOptions
	selectorOptions = func() []driver.SelectorOption {
		return []driver.SelectorOption{driver.WithFactory(driver.KindChrome, fake.New)}
	}
	t.Cleanup(func() {
		selectorOptions = orig
		observability.ResetForTest()
	})
	return fake
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "klassi "+Version+"\n", out)
}

func TestRunCmd_Passes(t *testing.T) {
	fake := useFakeBrowser(t)
	dir, cfgPath := workspace(t, map[string]string{"checkout.feature": checkoutFeature})

	out, err := execute(t, "run", "--config", cfgPath, filepath.Join(dir, "checkout.feature"))
	require.NoError(t, err)
	assert.Contains(t, out, "Basket page")

	_, deletes := fake.Totals()
	assert.Equal(t, 1, deletes)

	reports, err := filepath.Glob(filepath.Join(dir, "reports", "*.html"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRunCmd_FailingScenario(t *testing.T) {
	fake := useFakeBrowser(t)
	dir, cfgPath := workspace(t, map[string]string{"broken.feature": brokenFeature})

	_, err := execute(t, "run", "--config", cfgPath, filepath.Join(dir, "broken.feature"))
	assert.ErrorIs(t, err, ErrTestsFailed)

	screenshots, deletes := fake.Totals()
	assert.Equal(t, 1, screenshots)
	assert.Equal(t, 1, deletes)
}

func TestRunCmd_TagsFlag(t *testing.T) {
	fake := useFakeBrowser(t)
	tagged := "Feature: Tagged\n  @wip\n  Scenario: Skipped by tag\n    Given I navigate to \"https://shop.test/\"\n"
	dir, cfgPath := workspace(t, map[string]string{"tagged.feature": tagged})

	_, err := execute(t, "run", "--config", cfgPath, "--tags", "~@wip", filepath.Join(dir, "tagged.feature"))
	require.NoError(t, err)
	assert.Empty(t, fake.Handles())
}

func TestRunCmd_EmailRequiresSettings(t *testing.T) {
	useFakeBrowser(t)
	dir, cfgPath := workspace(t, map[string]string{"checkout.feature": checkoutFeature})

	_, err := execute(t, "run", "--config", cfgPath, "--email", filepath.Join(dir, "checkout.feature"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email was requested")
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	useFakeBrowser(t)
	_, cfgPath := workspace(t, nil)

	_, err := execute(t, "run", "--config", cfgPath, "--env", "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestRunCmd_ReportNameWithComma(t *testing.T) {
	fake := useFakeBrowser(t)
	dir, cfgPath := workspace(t, map[string]string{"checkout.feature": checkoutFeature})

	_, err := execute(t, "run", "--config", cfgPath, "--report-name", "Nightly, full", filepath.Join(dir, "checkout.feature"))
	assert.ErrorContains(t, err, "must not contain a comma")
	assert.Empty(t, fake.Handles())
}

func TestReportCmd(t *testing.T) {
	useFakeBrowser(t)
	_, cfgPath := workspace(t, nil)

	fs := afero.NewMemMapFs()
	orig := reportFS
	reportFS = fs
	t.Cleanup(func() { reportFS = orig })

	results := `[{"uri":"features/login.feature","id":"login","keyword":"Feature","name":"Login","elements":[
	  {"id":"login;ok","keyword":"Scenario","name":"Sign in","type":"scenario","steps":[
	    {"keyword":"Given ","name":"I sign in","result":{"status":"passed","duration":1000000}}]}]}]`
	require.NoError(t, afero.WriteFile(fs, "reports/run.json", []byte(results), 0o644))

	out, err := execute(t, "report", "--config", cfgPath, "--theme", "simple", "reports/run.json")
	require.NoError(t, err)
	assert.Contains(t, out, "reports/run.html")

	html, err := afero.ReadFile(fs, "reports/run.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "Sign in")
}

func TestReportCmd_MissingFile(t *testing.T) {
	useFakeBrowser(t)
	_, cfgPath := workspace(t, nil)

	_, err := execute(t, "report", "--config", cfgPath, "nope.json")
	assert.ErrorContains(t, err, "failed to read results file")
}
