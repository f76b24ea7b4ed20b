package world

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/klassi-cli/internal/config"
	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/driver/drivertest"
)

func newTestWorld(t *testing.T, fs afero.Fs, mutate func(*config.Config)) *World {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	fixed := time.Date(2024, time.March, 7, 9, 30, 0, 0, time.UTC)
	w, err := New(cfg, zaptest.NewLogger(t),
		WithFS(fs),
		WithTraceOutput(&bytes.Buffer{}),
		WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)
	return w
}

func TestNew(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "configs/envConfig.json",
		[]byte(`{"test":{"envName":"TEST","baseUrl":"https://test.example.com"},"dev":{"envName":"DEV"}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "page-objects/login.yaml", []byte("url: /login\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "shared-objects/foo.yaml", []byte("foo: bar\n"), 0o644))

	w := newTestWorld(t, fs, func(c *config.Config) { c.Environment = "test" })

	assert.Equal(t, "07-03-2024", w.Date)
	assert.NotEmpty(t, w.RunID)
	assert.Equal(t, "TEST", w.EnvConfig.Name())
	assert.Equal(t, "https://test.example.com", w.EnvConfig.String("baseUrl"))
	assert.Equal(t, "/login", w.Page.String("login.url"))
	assert.Equal(t, "bar", w.Shared.String("foo.foo"))
	assert.NotNil(t, w.HTTP)
	assert.Equal(t, "downloads", w.Downloader.Dir())
	assert.Nil(t, w.Browser())
}

func TestNew_UnknownEnvironmentBlock(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "configs/envConfig.json", []byte(`{"dev":{"envName":"DEV"}}`), 0o644))

	cfg := config.NewDefaultConfig()
	cfg.Environment = "prod"
	_, err := New(cfg, zaptest.NewLogger(t), WithFS(fs))
	assert.Error(t, err)
}

func TestWorld_BrowserSlot(t *testing.T) {
	w := newTestWorld(t, afero.NewMemMapFs(), nil)
	h := drivertest.NewHandle("s1", driver.KindChrome)

	w.SetBrowser(h)
	assert.Same(t, h, w.Browser())
	w.SetBrowser(nil)
	assert.Nil(t, w.Browser())
}

func TestContextRoundTrip(t *testing.T) {
	w := newTestWorld(t, afero.NewMemMapFs(), nil)
	ctx := NewContext(context.Background(), w)
	assert.Same(t, w, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestAssertions(t *testing.T) {
	w := newTestWorld(t, afero.NewMemMapFs(), nil)

	ok := w.Expect()
	ok.Equal(1, 1)
	ok.Contains("klassi", "ass")
	assert.NoError(t, ok.Err())

	bad := w.Assert()
	bad.Equal("Home", "Login")
	bad.True(false, "flag should be set")
	err := bad.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not equal")
	assert.Contains(t, err.Error(), "flag should be set")
}

func TestDateHelpers(t *testing.T) {
	ts := time.Date(2025, time.December, 31, 23, 59, 1, 0, time.UTC)
	assert.Equal(t, "31-12-2025", CurrentDate(ts))
	assert.Equal(t, "31-12-2025 23:59:01", Timestamp(ts))
}

func TestWorld_PauseWithoutBrowser(t *testing.T) {
	w := newTestWorld(t, afero.NewMemMapFs(), nil)
	require.NoError(t, w.Pause(context.Background(), time.Millisecond))
}

func TestHTTPClient_KeepsCookiesAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(rw, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			rw.WriteHeader(http.StatusNoContent)
		case "/me":
			c, err := r.Cookie("session")
			if err != nil || c.Value != "abc" || r.Header.Get("X-Team") != "qa" {
				rw.WriteHeader(http.StatusUnauthorized)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	client, err := NewHTTPClient(config.HTTPConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Team": "qa"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp, err := client.R().Get("/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = client.R().Get("/me")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/report.csv" {
			_, _ = rw.Write([]byte("a,b\n1,2\n"))
			return
		}
		http.NotFound(rw, r)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	client, err := NewHTTPClient(config.HTTPConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	d := NewDownloader(client, fs, "downloads")

	t.Run("names the file after the url", func(t *testing.T) {
		path, err := d.Download(context.Background(), srv.URL+"/files/report.csv", "")
		require.NoError(t, err)
		assert.Equal(t, "downloads/report.csv", path)

		data, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", string(data))
	})

	t.Run("explicit name", func(t *testing.T) {
		path, err := d.Download(context.Background(), srv.URL+"/files/report.csv", "copy.csv")
		require.NoError(t, err)
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("names cannot leave the downloads dir", func(t *testing.T) {
		for _, name := range []string{"../escape.csv", "sub/report.csv", `..\\escape.csv`, ".."} {
			_, err := d.Download(context.Background(), srv.URL+"/files/report.csv", name)
			assert.ErrorContains(t, err, "invalid download file name", name)
		}
		exists, err := afero.Exists(fs, "escape.csv")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("http errors are reported", func(t *testing.T) {
		_, err := d.Download(context.Background(), srv.URL+"/missing.pdf", "")
		assert.ErrorContains(t, err, "404")
	})

	t.Run("no downloads dir", func(t *testing.T) {
		_, err := NewDownloader(client, fs, "").Download(context.Background(), srv.URL, "")
		assert.Error(t, err)
	})
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "a.pdf", fileNameFromURL("https://x.test/docs/a.pdf?v=1"))
	assert.Contains(t, fileNameFromURL("https://x.test/"), "download-")
}
