package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cdpSession drives one browser over the DevTools protocol.
type cdpSession struct {
	id     string
	kind   Kind
	logger *zap.Logger

	// tabCtx is the chromedp context for the session's only tab.
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	closed atomic.Bool
}

// NewChrome launches a local Chrome through chromedp.
func NewChrome(ctx context.Context, opts Options, logger *zap.Logger) (Handle, error) {
	// The browser outlives the hook that started it; DeleteSession ends it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), chromeAllocatorOptions(opts)...)
	return startCDPSession(ctx, allocCtx, cancelAlloc, KindChrome, opts, logger)
}

// NewRemoteCDP attaches to an already running browser exposing a DevTools websocket.
func NewRemoteCDP(ctx context.Context, opts Options, logger *zap.Logger) (Handle, error) {
	if opts.Remote.Endpoint == "" {
		return nil, errors.New("cdp remote service requires an endpoint")
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), opts.Remote.Endpoint)
	return startCDPSession(ctx, allocCtx, cancelAlloc, KindRemoteCDP, opts, logger)
}

func startCDPSession(ctx, allocCtx context.Context, cancelAlloc context.CancelFunc, kind Kind, opts Options, logger *zap.Logger) (Handle, error) {
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	s := &cdpSession{
		id:          uuid.NewString(),
		kind:        kind,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}
	s.logger = logger.With(zap.String("session_id", s.id))

	// The first Run allocates the browser. It must run on tabCtx itself, so the
	// launch deadline is enforced from the outside.
	launched := make(chan error, 1)
	go func() {
		actions := []chromedp.Action{}
		if opts.Width > 0 && opts.Height > 0 && kind == KindRemoteCDP {
			actions = append(actions, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)))
		}
		launched <- chromedp.Run(tabCtx, actions...)
	}()

	launchTimeout := opts.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = time.Minute
	}
	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()

	select {
	case err := <-launched:
		if err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-timer.C:
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser did not start within %s", launchTimeout)
	case <-ctx.Done():
		cancelTab()
		cancelAlloc()
		return nil, ctx.Err()
	}
	return s, nil
}

// chromeAllocatorOptions assembles the launch flags for a local Chrome.
func chromeAllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	all := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	all = append(all,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("disable-extensions", true),
	)
	if opts.Width > 0 && opts.Height > 0 {
		all = append(all, chromedp.WindowSize(opts.Width, opts.Height))
	}

	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			all = append(all, chromedp.Flag(name, parts[1]))
		} else {
			all = append(all, chromedp.Flag(name, true))
		}
	}

	// Containers on linux rarely allow the sandbox.
	if runtime.GOOS == "linux" {
		all = append(all,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return all
}

func (s *cdpSession) ID() string { return s.id }
func (s *cdpSession) Kind() Kind { return s.kind }

// run executes actions on the tab, bounded by ctx as well as the session.
func (s *cdpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *cdpSession) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *cdpSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *cdpSession) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *cdpSession) TakeScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *cdpSession) Pause(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

func (s *cdpSession) DeleteSession(ctx context.Context) error {
	// Only the first call closes the browser; later calls report nothing.
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var closeErr error
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.tabCtx) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
	case <-ctx.Done():
		closeErr = ctx.Err()
	}
	s.cancelTab()
	s.cancelAlloc()
	s.logger.Debug("Browser session deleted.")
	return closeErr
}
