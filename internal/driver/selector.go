package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/config"
)

// Factory starts a session of one Kind.
type Factory func(ctx context.Context, opts Options, logger *zap.Logger) (Handle, error)

// Selector turns the configured settings into a fresh Handle per scenario.
type Selector struct {
	settings  config.SettingsConfig
	opts      Options
	logger    *zap.Logger
	factories map[Kind]Factory
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithFactory replaces the adapter used for kind.
func WithFactory(kind Kind, f Factory) SelectorOption {
	return func(s *Selector) { s.factories[kind] = f }
}

// DefaultFactories returns the production adapter for every Kind.
func DefaultFactories() map[Kind]Factory {
	return map[Kind]Factory{
		KindChrome:       NewChrome,
		KindFirefox:      NewFirefox,
		KindBrowserStack: NewBrowserStack,
		KindRemoteCDP:    NewRemoteCDP,
	}
}

// NewSelector creates a Selector for cfg.
func NewSelector(cfg *config.Config, logger *zap.Logger, options ...SelectorOption) *Selector {
	s := &Selector{
		settings:  cfg.Settings,
		opts:      OptionsFromConfig(cfg),
		logger:    logger.Named("driver"),
		factories: DefaultFactories(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Resolve decides which Kind the settings ask for. It never touches the network.
func Resolve(settings config.SettingsConfig) (Kind, error) {
	switch settings.RemoteService.Type {
	case config.RemoteBrowserStack:
		if settings.RemoteConfig == "" {
			return KindUnknown, fmt.Errorf("%w (e.g. win10-chrome)", ErrRemoteConfigRequired)
		}
		return KindBrowserStack, nil
	case config.RemoteCDP:
		if settings.RemoteService.Endpoint == "" {
			return KindUnknown, fmt.Errorf("cdp remote service requires an endpoint")
		}
		return KindRemoteCDP, nil
	case "":
	default:
		return KindUnknown, fmt.Errorf("%w: %q", config.ErrUnknownRemoteService, settings.RemoteService.Type)
	}

	switch settings.BrowserName {
	case "":
		return KindUnknown, ErrBrowserNameRequired
	case "chrome":
		return KindChrome, nil
	case "firefox":
		return KindFirefox, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnsupportedBrowser, settings.BrowserName)
	}
}

// Kind returns the Kind the Selector will produce, or the configuration error that prevents it.
func (s *Selector) Kind() (Kind, error) {
	return Resolve(s.settings)
}

// Acquire validates the settings and starts a new session. Each call yields an independent Handle.
func (s *Selector) Acquire(ctx context.Context) (Handle, error) {
	kind, err := Resolve(s.settings)
	if err != nil {
		return nil, err
	}
	factory, ok := s.factories[kind]
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: no adapter registered for %s", ErrUnsupportedBrowser, kind)
	}

	s.logger.Debug("Starting browser session.", zap.Stringer("kind", kind))
	h, err := factory(ctx, s.opts, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s session: %w", kind, err)
	}
	s.logger.Info("Browser session started.", zap.Stringer("kind", kind), zap.String("session_id", h.ID()))
	return h, nil
}
