package driver

import (
	"context"
	"net/url"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/config"
)

func TestLoadCapabilities(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "configs/browserstack/win10-chrome.json",
		[]byte(`{"os":"Windows","os_version":"10","browser":"chrome","browser_version":"latest"}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "configs/browserstack/broken.json", []byte(`{"os":`), 0o644))

	t.Run("reads the named profile", func(t *testing.T) {
		caps, err := LoadCapabilities(fs, "configs/browserstack", "win10-chrome")
		require.NoError(t, err)
		assert.Equal(t, "Windows", caps["os"])
		assert.Equal(t, "chrome", caps["browser"])
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := LoadCapabilities(fs, "configs/browserstack", "osx-safari")
		assert.ErrorContains(t, err, "osx-safari")
	})

	t.Run("malformed profile", func(t *testing.T) {
		_, err := LoadCapabilities(fs, "configs/browserstack", "broken")
		assert.ErrorContains(t, err, "failed to parse")
	})
}

func TestCapabilities_ConnectURL(t *testing.T) {
	caps := Capabilities{"browser": "chrome"}.WithCredentials("alice", "s3cret")

	raw, err := caps.ConnectURL("")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "cdp.browserstack.com", u.Host)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("caps")), &decoded))
	assert.Equal(t, "chrome", decoded["browser"])
	assert.Equal(t, "alice", decoded["browserstack.username"])
	assert.Equal(t, "s3cret", decoded["browserstack.accessKey"])
}

func TestCapabilities_WithCredentialsCopies(t *testing.T) {
	base := Capabilities{"browser": "firefox"}
	_ = base.WithCredentials("bob", "key")
	_, leaked := base["browserstack.username"]
	assert.False(t, leaked)
}

func TestNewBrowserStack_ValidatesBeforeConnecting(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := newBrowserStack(context.Background(), fs, Options{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrRemoteConfigRequired)

	_, err = newBrowserStack(context.Background(), fs, Options{
		RemoteConfig: "win10-chrome",
		Remote:       config.RemoteServiceConfig{CapabilitiesDir: "configs/browserstack"},
	}, zap.NewNop())
	assert.ErrorContains(t, err, "failed to read capabilities")
}

func TestChromeAllocatorOptions(t *testing.T) {
	plain := chromeAllocatorOptions(Options{Headless: true})
	withArgs := chromeAllocatorOptions(Options{Headless: true, Width: 800, Height: 600, Args: []string{"--lang=en-GB", "--mute-audio"}})
	assert.Len(t, withArgs, len(plain)+3)
}

func TestTimeoutMs(t *testing.T) {
	assert.Equal(t, float64(5000), timeoutMs(context.Background(), 5e9))

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	assert.Equal(t, float64(1), timeoutMs(ctx, 5e9))
}
