package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const defaultActionTimeout = 30 * time.Second

// pwSession drives one browser through playwright.
type pwSession struct {
	id     string
	kind   Kind
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	closed atomic.Bool
}

// startPlaywright boots the playwright driver process. It blocks, so it is raced against ctx.
func startPlaywright(ctx context.Context) (*playwright.Playwright, error) {
	type result struct {
		pw  *playwright.Playwright
		err error
	}
	started := make(chan result, 1)
	go func() {
		pw, err := playwright.Run(&playwright.RunOptions{Stdout: io.Discard, Stderr: io.Discard})
		started <- result{pw, err}
	}()

	select {
	case r := <-started:
		if r.err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", r.err)
		}
		return r.pw, nil
	case <-ctx.Done():
		// Reap the driver once it does come up.
		go func() {
			if r := <-started; r.pw != nil {
				_ = r.pw.Stop()
			}
		}()
		return nil, ctx.Err()
	}
}

// NewFirefox launches a local Firefox through playwright.
func NewFirefox(ctx context.Context, opts Options, logger *zap.Logger) (Handle, error) {
	pw, err := startPlaywright(ctx)
	if err != nil {
		return nil, err
	}
	b, err := pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
		Timeout:  playwright.Float(timeoutMs(ctx, opts.LaunchTimeout)),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch firefox: %w", err)
	}
	return newPWSession(pw, b, KindFirefox, opts, logger)
}

func newPWSession(pw *playwright.Playwright, b playwright.Browser, kind Kind, opts Options, logger *zap.Logger) (Handle, error) {
	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Width > 0 && opts.Height > 0 {
		contextOpts.Viewport = &playwright.Size{Width: opts.Width, Height: opts.Height}
	}
	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s := &pwSession{
		id:      uuid.NewString(),
		kind:    kind,
		pw:      pw,
		browser: b,
		bctx:    bctx,
		page:    pg,
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	return s, nil
}

func (s *pwSession) ID() string { return s.id }
func (s *pwSession) Kind() Kind { return s.kind }

func (s *pwSession) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return ctx.Err()
}

func (s *pwSession) Navigate(ctx context.Context, url string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(timeoutMs(ctx, defaultActionTimeout)),
	})
	return err
}

func (s *pwSession) Title(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *pwSession) URL(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *pwSession) TakeScreenshot(ctx context.Context) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	buf, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  playwright.Float(timeoutMs(ctx, defaultActionTimeout)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *pwSession) Pause(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

func (s *pwSession) DeleteSession(ctx context.Context) error {
	// Only the first call closes the browser; later calls report nothing.
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var closeErr error
	done := make(chan error, 1)
	go func() {
		// Closing the browser also closes its contexts and pages.
		done <- errors.Join(s.browser.Close(), s.pw.Stop())
	}()
	select {
	case err := <-done:
		if err != nil {
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
	case <-ctx.Done():
		closeErr = ctx.Err()
	}
	s.logger.Debug("Browser session deleted.")
	return closeErr
}
