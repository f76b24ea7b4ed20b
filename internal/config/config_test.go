// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "klassi", cfg.ProjectName)
	assert.Equal(t, DefaultTimeoutMs, cfg.TimeoutMs)
	assert.Equal(t, 120*time.Second, cfg.Timeout())
	assert.Equal(t, "chrome", cfg.Settings.BrowserName)
	assert.Equal(t, "Automated Report", cfg.Settings.ReportName)
	assert.Equal(t, []string{"shared-objects"}, cfg.Paths.SharedObjects)
	assert.Equal(t, "reports", cfg.Paths.Reports)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 60*time.Second, cfg.Browser.LaunchTimeout)
	assert.Equal(t, "bootstrap", cfg.Report.Theme)
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.EmailDelay)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.ReportDelay)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Settings.RemoteService.Configured())
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml file overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlCfg := []byte(`
project_name: shop
environment: uat
settings:
  browser_name: firefox
  report_name: Nightly
  remote_service:
    type: browserstack
paths:
  shared_objects: [common, overrides]
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlCfg)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "shop", cfg.ProjectName)
		assert.Equal(t, "uat", cfg.Environment)
		assert.Equal(t, "firefox", cfg.Settings.BrowserName)
		assert.Equal(t, "Nightly", cfg.Settings.ReportName)
		assert.True(t, cfg.Settings.RemoteService.IsBrowserStack())
		assert.Equal(t, []string{"common", "overrides"}, cfg.Paths.SharedObjects)
	})

	t.Run("CUCUMBER_TIMEOUT overrides the default timeout", func(t *testing.T) {
		t.Setenv("CUCUMBER_TIMEOUT", "5000")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Timeout())
	})

	t.Run("secrets are read from the environment", func(t *testing.T) {
		t.Setenv("KLASSI_EMAIL_PASSWORD", "hunter2")
		t.Setenv("BROWSERSTACK_ACCESS_KEY", "bs-key")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", cfg.Email.Password)
		assert.Equal(t, "bs-key", cfg.Settings.RemoteService.AccessKey)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("environment", "staging")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownEnvironment)
	})
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "A valid config should not produce a validation error")

		invalidTimeout := *cfg
		invalidTimeout.TimeoutMs = 0
		err := invalidTimeout.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout_ms must be a positive integer")

		missingProject := *cfg
		missingProject.ProjectName = ""
		assert.Error(t, missingProject.Validate())

		missingReportName := *cfg
		missingReportName.Settings.ReportName = ""
		err = missingReportName.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings.report_name")

		commaReportName := *cfg
		commaReportName.Settings.ReportName = "Nightly, full"
		assert.ErrorContains(t, commaReportName.Validate(), "settings.report_name must not contain a comma")

		commaProject := *cfg
		commaProject.ProjectName = "shop,eu"
		assert.ErrorContains(t, commaProject.Validate(), "project_name must not contain a comma")

		commaReports := *cfg
		commaReports.Paths.Reports = "out/a,b"
		assert.ErrorContains(t, commaReports.Validate(), "paths.reports must not contain a comma")
	})

	t.Run("Remote Service Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		cfg.Settings.RemoteService.Type = "saucelabs"
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownRemoteService)

		cfg.Settings.RemoteService.Type = RemoteCDP
		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint is required")

		cfg.Settings.RemoteService.Endpoint = "ws://grid:9222/devtools/browser/abc"
		assert.NoError(t, cfg.Validate())

		// The config type for BrowserStack is checked by the driver selector, not at load.
		cfg.Settings.RemoteService = RemoteServiceConfig{Type: RemoteBrowserStack}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Email Validation", func(t *testing.T) {
		valid := EmailConfig{Host: "smtp.example.com", From: "qa@example.com", To: []string{"team@example.com"}}
		assert.NoError(t, valid.Validate())

		noHost := valid
		noHost.Host = ""
		assert.Error(t, noHost.Validate())

		noRecipients := valid
		noRecipients.To = nil
		assert.Error(t, noRecipients.Validate())

		badPolicy := valid
		badPolicy.TLSPolicy = "sometimes"
		assert.Error(t, badPolicy.Validate())
	})
}

func TestBrowserLabel(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "chrome", cfg.BrowserLabel())

	cfg.Settings.RemoteConfig = "win10-chrome"
	assert.Equal(t, "win10-chrome", cfg.BrowserLabel())
}
