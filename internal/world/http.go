package world

import (
	"context"
	"fmt"
	"io"
	"net/http/cookiejar"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/klassi-cli/internal/config"
)

// NewHTTPClient builds the API client exposed to step definitions. Cookies persist across requests in a run.
func NewHTTPClient(cfg config.HTTPConfig, logger *zap.Logger) (*resty.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New().
		SetCookieJar(jar).
		SetLogger(logger.Named("http").Sugar()).
		SetHeader("User-Agent", "klassi-cli")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	if len(cfg.Headers) > 0 {
		client.SetHeaders(cfg.Headers)
	}
	return client, nil
}

// Downloader fetches files into the configured downloads directory.
type Downloader struct {
	client *resty.Client
	fs     afero.Fs
	dir    string
}

// NewDownloader returns a Downloader writing under dir.
func NewDownloader(client *resty.Client, fs afero.Fs, dir string) *Downloader {
	return &Downloader{client: client, fs: fs, dir: dir}
}

// Dir is the downloads directory.
func (d *Downloader) Dir() string { return d.dir }

// Download stores the body of rawURL as name in the downloads directory and returns the file path.
// An empty name is taken from the last URL path segment.
func (d *Downloader) Download(ctx context.Context, rawURL, name string) (string, error) {
	if d.dir == "" {
		return "", fmt.Errorf("no downloads directory configured")
	}
	if name == "" {
		name = fileNameFromURL(rawURL)
	} else if err := checkFileName(name); err != nil {
		return "", err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("download of %s failed: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return "", fmt.Errorf("download of %s failed: %s", rawURL, resp.Status())
	}

	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create downloads dir: %w", err)
	}
	target := filepath.Join(d.dir, name)
	f, err := d.fs.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

// checkFileName rejects names that would land outside the downloads directory.
func checkFileName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("invalid download file name %q: must be a plain file name", name)
	}
	return nil
}

func fileNameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" && !strings.Contains(base, "..") {
			return base
		}
	}
	return "download-" + uuid.NewString()
}
