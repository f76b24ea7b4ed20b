// Package driver selects and creates browser sessions for scenarios.
//
// Every session is exposed through Handle regardless of the engine behind it:
// chromedp for local Chrome and raw CDP endpoints, playwright-go for Firefox and
// the BrowserStack grid.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/klassi-cli/internal/config"
)

// Kind is the closed set of driver implementations the selector can produce.
type Kind int

const (
	KindUnknown Kind = iota
	KindChrome
	KindFirefox
	KindBrowserStack
	KindRemoteCDP
)

func (k Kind) String() string {
	switch k {
	case KindChrome:
		return "chrome"
	case KindFirefox:
		return "firefox"
	case KindBrowserStack:
		return "browserstack"
	case KindRemoteCDP:
		return "cdp"
	default:
		return "unknown"
	}
}

// Remote reports whether sessions of this kind run on an external provider.
func (k Kind) Remote() bool {
	return k == KindBrowserStack || k == KindRemoteCDP
}

var (
	// ErrBrowserNameRequired is returned when no remote service is configured and the browser name is empty.
	ErrBrowserNameRequired = errors.New("browser name must be defined")
	// ErrRemoteConfigRequired is returned when a remote grid is selected without a capability profile.
	ErrRemoteConfigRequired = errors.New("remote grid requires a config type")
	// ErrUnsupportedBrowser is returned for a browser name outside the known set.
	ErrUnsupportedBrowser = errors.New("unsupported browser")
	// ErrSessionClosed is returned by operations on a handle after DeleteSession.
	ErrSessionClosed = errors.New("browser session already deleted")
)

// Handle is a live browser session owned by one scenario.
type Handle interface {
	// ID identifies the session in logs.
	ID() string
	Kind() Kind
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// TakeScreenshot returns a PNG of the current page.
	TakeScreenshot(ctx context.Context) ([]byte, error)
	Pause(ctx context.Context, d time.Duration) error
	// DeleteSession ends the session. Calling it again is a no-op.
	DeleteSession(ctx context.Context) error
}

// Options carries everything an adapter needs to start a session.
type Options struct {
	Headless      bool
	Args          []string
	Width         int
	Height        int
	LaunchTimeout time.Duration
	// RemoteConfig is the capability profile for remote grids.
	RemoteConfig string
	Remote       config.RemoteServiceConfig
}

// OptionsFromConfig maps the runner configuration onto adapter options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Headless:      cfg.Browser.Headless,
		Args:          cfg.Browser.Args,
		Width:         cfg.Browser.Viewport.Width,
		Height:        cfg.Browser.Viewport.Height,
		LaunchTimeout: cfg.Browser.LaunchTimeout,
		RemoteConfig:  cfg.Settings.RemoteConfig,
		Remote:        cfg.Settings.RemoteService,
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// timeoutMs converts the remaining time on ctx to the millisecond timeouts playwright expects, capped at fallback.
func timeoutMs(ctx context.Context, fallback time.Duration) float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d || d <= 0 {
			d = remaining
		}
	}
	if d <= 0 {
		// Zero disables playwright's timeout entirely, so never hand it out.
		return 1
	}
	return float64(d.Milliseconds())
}
