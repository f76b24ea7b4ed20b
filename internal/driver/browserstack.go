package driver

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BrowserStackEndpoint is the playwright websocket of the BrowserStack grid.
const BrowserStackEndpoint = "wss://cdp.browserstack.com/playwright"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Capabilities is a BrowserStack capability profile.
type Capabilities map[string]any

// LoadCapabilities reads the profile <dir>/<name>.json.
func LoadCapabilities(fs afero.Fs, dir, name string) (Capabilities, error) {
	path := filepath.Join(dir, name+".json")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities for %q: %w", name, err)
	}
	caps := Capabilities{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities file %s: %w", path, err)
	}
	return caps, nil
}

// WithCredentials returns a copy of c carrying the account credentials.
func (c Capabilities) WithCredentials(username, accessKey string) Capabilities {
	out := make(Capabilities, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	if username != "" {
		out["browserstack.username"] = username
	}
	if accessKey != "" {
		out["browserstack.accessKey"] = accessKey
	}
	return out
}

// ConnectURL encodes the capabilities into the grid's websocket URL.
func (c Capabilities) ConnectURL(endpoint string) (string, error) {
	if endpoint == "" {
		endpoint = BrowserStackEndpoint
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode capabilities: %w", err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid browserstack endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("caps", string(raw))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewBrowserStack opens a session on the BrowserStack grid using the profile named by opts.RemoteConfig.
func NewBrowserStack(ctx context.Context, opts Options, logger *zap.Logger) (Handle, error) {
	return newBrowserStack(ctx, afero.NewOsFs(), opts, logger)
}

func newBrowserStack(ctx context.Context, fs afero.Fs, opts Options, logger *zap.Logger) (Handle, error) {
	if opts.RemoteConfig == "" {
		return nil, ErrRemoteConfigRequired
	}
	caps, err := LoadCapabilities(fs, opts.Remote.CapabilitiesDir, opts.RemoteConfig)
	if err != nil {
		return nil, err
	}
	wsURL, err := caps.WithCredentials(opts.Remote.Username, opts.Remote.AccessKey).ConnectURL(opts.Remote.Endpoint)
	if err != nil {
		return nil, err
	}

	pw, err := startPlaywright(ctx)
	if err != nil {
		return nil, err
	}
	// The grid serves every browser family through the chromium connect endpoint.
	b, err := pw.Chromium.Connect(wsURL, playwright.BrowserTypeConnectOptions{
		Timeout: playwright.Float(timeoutMs(ctx, opts.LaunchTimeout)),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to connect to browserstack: %w", err)
	}
	logger.Info("Connected to BrowserStack.", zap.String("profile", opts.RemoteConfig))
	return newPWSession(pw, b, KindBrowserStack, opts, logger)
}
