// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Remote service types understood by the driver selector.
const (
	RemoteBrowserStack = "browserstack"
	RemoteCDP          = "cdp"
)

// DefaultTimeoutMs is the per-scenario timeout used when CUCUMBER_TIMEOUT is unset.
const DefaultTimeoutMs = 120000

var (
	// ErrUnknownEnvironment is returned when the environment selector is not one of dev, uat, test or prod.
	ErrUnknownEnvironment = errors.New("unknown environment")
	// ErrUnknownRemoteService is returned for a remote service type the driver selector cannot serve.
	ErrUnknownRemoteService = errors.New("unknown remote service type")
)

// Config holds the entire runner configuration.
type Config struct {
	ProjectName   string          `mapstructure:"project_name" yaml:"project_name"`
	Environment   string          `mapstructure:"environment" yaml:"environment"`
	EnvConfigFile string          `mapstructure:"env_config_file" yaml:"env_config_file"`
	TimeoutMs     int             `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Settings      SettingsConfig  `mapstructure:"settings" yaml:"settings"`
	Paths         PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Browser       BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Suite         SuiteConfig     `mapstructure:"suite" yaml:"suite"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	Report        ReportConfig    `mapstructure:"report" yaml:"report"`
	Email         EmailConfig     `mapstructure:"email" yaml:"email"`
	Lifecycle     LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Logger        LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	// Run gets its values from CLI flags, not the config file.
	Run RunConfig `mapstructure:"-" yaml:"-"`
}

// SettingsConfig mirrors the per-run settings a project selects: which browser, where, and how the report is named.
type SettingsConfig struct {
	BrowserName   string              `mapstructure:"browser_name" yaml:"browser_name"`
	RemoteService RemoteServiceConfig `mapstructure:"remote_service" yaml:"remote_service"`
	// RemoteConfig is the capability profile requested from a remote grid, e.g. "win10-chrome".
	RemoteConfig  string `mapstructure:"remote_config" yaml:"remote_config"`
	ReportName    string `mapstructure:"report_name" yaml:"report_name"`
	DisableReport bool   `mapstructure:"disable_report" yaml:"disable_report"`
}

// RemoteServiceConfig describes an externally hosted browser provider. An empty Type means none is configured.
type RemoteServiceConfig struct {
	Type            string `mapstructure:"type" yaml:"type"`
	Username        string `mapstructure:"username" yaml:"username"`
	AccessKey       string `mapstructure:"access_key" yaml:"-"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	CapabilitiesDir string `mapstructure:"capabilities_dir" yaml:"capabilities_dir"`
}

// Configured reports whether a remote service was selected.
func (r RemoteServiceConfig) Configured() bool { return r.Type != "" }

// IsBrowserStack reports whether the remote service is the BrowserStack grid.
func (r RemoteServiceConfig) IsBrowserStack() bool { return r.Type == RemoteBrowserStack }

// PathsConfig lists the directories the runner reads from and writes to.
type PathsConfig struct {
	Features      []string `mapstructure:"features" yaml:"features"`
	PageObjects   string   `mapstructure:"page_objects" yaml:"page_objects"`
	SharedObjects []string `mapstructure:"shared_objects" yaml:"shared_objects"`
	Reports       string   `mapstructure:"reports" yaml:"reports"`
	Downloads     string   `mapstructure:"downloads" yaml:"downloads"`
}

// ViewportConfig is the window size applied to local browsers.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the browser instances launched per scenario.
type BrowserConfig struct {
	Headless      bool           `mapstructure:"headless" yaml:"headless"`
	Args          []string       `mapstructure:"args" yaml:"args"`
	Viewport      ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	LaunchTimeout time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// SuiteConfig tunes how godog executes the features.
type SuiteConfig struct {
	Format        string `mapstructure:"format" yaml:"format"`
	Tags          string `mapstructure:"tags" yaml:"tags"`
	Strict        bool   `mapstructure:"strict" yaml:"strict"`
	StopOnFailure bool   `mapstructure:"stop_on_failure" yaml:"stop_on_failure"`
	NoColors      bool   `mapstructure:"no_colors" yaml:"no_colors"`
	Randomize     int64  `mapstructure:"randomize" yaml:"randomize"`
}

// HTTPConfig configures the API client exposed to step definitions.
type HTTPConfig struct {
	BaseURL string            `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// ReportConfig configures the HTML report rendered at run end.
type ReportConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// EmailConfig holds the SMTP settings used to mail the run summary.
type EmailConfig struct {
	Host      string   `mapstructure:"host" yaml:"host"`
	Port      int      `mapstructure:"port" yaml:"port"`
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"-"`
	From      string   `mapstructure:"from" yaml:"from"`
	To        []string `mapstructure:"to" yaml:"to"`
	Subject   string   `mapstructure:"subject" yaml:"subject"`
	TLSPolicy string   `mapstructure:"tls_policy" yaml:"tls_policy"`
	AttachLog bool     `mapstructure:"attach_log" yaml:"attach_log"`
}

// LifecycleConfig holds the fixed pauses taken by the run-end actions.
type LifecycleConfig struct {
	EmailDelay  time.Duration `mapstructure:"email_delay" yaml:"email_delay"`
	ReportDelay time.Duration `mapstructure:"report_delay" yaml:"report_delay"`
	LaunchDelay time.Duration `mapstructure:"launch_delay" yaml:"launch_delay"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// RunConfig holds settings populated from CLI flags for a single run.
type RunConfig struct {
	Email bool
}

// Timeout returns the per-scenario deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BrowserLabel is the browser shown in report metadata: the remote profile when one is set, else the browser name.
func (c *Config) BrowserLabel() string {
	if c.Settings.RemoteConfig != "" {
		return c.Settings.RemoteConfig
	}
	return c.Settings.BrowserName
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_name", "klassi")
	v.SetDefault("environment", "")
	v.SetDefault("env_config_file", "configs/envConfig.json")
	v.SetDefault("timeout_ms", DefaultTimeoutMs)

	// -- Settings --
	v.SetDefault("settings.browser_name", "chrome")
	v.SetDefault("settings.report_name", "Automated Report")
	v.SetDefault("settings.disable_report", false)
	v.SetDefault("settings.remote_service.capabilities_dir", "configs/browserstack")

	// -- Paths --
	v.SetDefault("paths.features", []string{"features"})
	v.SetDefault("paths.page_objects", "page-objects")
	v.SetDefault("paths.shared_objects", []string{"shared-objects"})
	v.SetDefault("paths.reports", "reports")
	v.SetDefault("paths.downloads", "downloads")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 1024)
	v.SetDefault("browser.launch_timeout", "60s")

	// -- Suite --
	v.SetDefault("suite.format", "pretty")
	v.SetDefault("suite.strict", true)

	// -- HTTP --
	v.SetDefault("http.timeout", "30s")

	// -- Report --
	v.SetDefault("report.theme", "bootstrap")

	// -- Email --
	v.SetDefault("email.port", 587)
	v.SetDefault("email.subject", "Automated test run report")
	v.SetDefault("email.tls_policy", "mandatory")
	v.SetDefault("email.attach_log", true)

	// -- Lifecycle --
	v.SetDefault("lifecycle.email_delay", "3s")
	v.SetDefault("lifecycle.report_delay", "2s")
	v.SetDefault("lifecycle.launch_delay", "1s")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "klassi")
	v.SetDefault("logger.log_file", "klassi.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The step timeout keeps the historic variable name.
	_ = v.BindEnv("timeout_ms", "CUCUMBER_TIMEOUT")
	// Secrets come from the environment only.
	_ = v.BindEnv("email.password", "KLASSI_EMAIL_PASSWORD")
	_ = v.BindEnv("settings.remote_service.username", "BROWSERSTACK_USERNAME")
	_ = v.BindEnv("settings.remote_service.access_key", "BROWSERSTACK_ACCESS_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every configured directory.
func (c *Config) expandPaths() error {
	expand := func(p *string) error {
		if *p == "" {
			return nil
		}
		out, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = out
		return nil
	}

	single := []*string{
		&c.EnvConfigFile,
		&c.Paths.PageObjects,
		&c.Paths.Reports,
		&c.Paths.Downloads,
		&c.Settings.RemoteService.CapabilitiesDir,
		&c.Logger.LogFile,
	}
	for _, p := range single {
		if err := expand(p); err != nil {
			return err
		}
	}
	for i := range c.Paths.SharedObjects {
		if err := expand(&c.Paths.SharedObjects[i]); err != nil {
			return err
		}
	}
	for i := range c.Paths.Features {
		if err := expand(&c.Paths.Features[i]); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be a positive integer")
	}
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is a required configuration field")
	}
	if c.Environment != "" {
		if _, err := ParseEnvironment(c.Environment); err != nil {
			return err
		}
	}
	switch c.Settings.RemoteService.Type {
	case "", RemoteBrowserStack:
	case RemoteCDP:
		if c.Settings.RemoteService.Endpoint == "" {
			return fmt.Errorf("settings.remote_service.endpoint is required for the %q remote service", RemoteCDP)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRemoteService, c.Settings.RemoteService.Type)
	}
	if c.Paths.Reports != "" && c.Settings.ReportName == "" {
		return fmt.Errorf("settings.report_name is required when paths.reports is set")
	}
	// These name the results file, which is handed to the formatter list as "cucumber:<path>".
	for key, val := range map[string]string{
		"project_name":         c.ProjectName,
		"settings.report_name": c.Settings.ReportName,
		"paths.reports":        c.Paths.Reports,
	} {
		if strings.Contains(val, ",") {
			return fmt.Errorf("%s must not contain a comma: %q", key, val)
		}
	}
	return nil
}

// Validate checks the email settings. It is only called when the run requests an email.
func (e *EmailConfig) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("email.host is required")
	}
	if e.From == "" {
		return fmt.Errorf("email.from is required")
	}
	if len(e.To) == 0 {
		return fmt.Errorf("email.to must list at least one recipient")
	}
	switch e.TLSPolicy {
	case "", "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("email.tls_policy must be one of mandatory, opportunistic, none")
	}
	return nil
}
