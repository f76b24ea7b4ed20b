// Package drivertest provides an in-memory driver.Handle for tests.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/driver"
)

// PNG is the screenshot every fake returns: the 8 byte PNG signature.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Handle is a fake browser session that records calls.
type Handle struct {
	id   string
	kind driver.Kind

	mu    sync.Mutex
	url   string
	title string

	// ScreenshotErr, when set, is returned from TakeScreenshot.
	ScreenshotErr error
	// DeleteErr, when set, is returned from the first DeleteSession.
	DeleteErr error

	Screenshots atomic.Int32
	Deletes     atomic.Int32
	closed      atomic.Bool
}

// NewHandle returns an open fake session.
func NewHandle(id string, kind driver.Kind) *Handle {
	return &Handle{id: id, kind: kind, url: "about:blank"}
}

func (h *Handle) ID() string        { return h.id }
func (h *Handle) Kind() driver.Kind { return h.kind }

// Closed reports whether DeleteSession has run.
func (h *Handle) Closed() bool { return h.closed.Load() }

func (h *Handle) Navigate(ctx context.Context, url string) error {
	if h.closed.Load() {
		return driver.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.url = url
	h.title = "Page at " + url
	return nil
}

// SetTitle overrides the title reported for the current page.
func (h *Handle) SetTitle(title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.title = title
}

func (h *Handle) Title(ctx context.Context) (string, error) {
	if h.closed.Load() {
		return "", driver.ErrSessionClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title, nil
}

func (h *Handle) URL(ctx context.Context) (string, error) {
	if h.closed.Load() {
		return "", driver.ErrSessionClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url, nil
}

func (h *Handle) TakeScreenshot(ctx context.Context) ([]byte, error) {
	if h.closed.Load() {
		return nil, driver.ErrSessionClosed
	}
	h.Screenshots.Add(1)
	if h.ScreenshotErr != nil {
		return nil, h.ScreenshotErr
	}
	return append([]byte(nil), PNG...), nil
}

func (h *Handle) Pause(ctx context.Context, d time.Duration) error {
	return driver.Sleep(ctx, d)
}

func (h *Handle) DeleteSession(ctx context.Context) error {
	h.Deletes.Add(1)
	if h.closed.Swap(true) {
		return nil
	}
	return h.DeleteErr
}

// Factory hands out fake sessions and remembers every one of them.
type Factory struct {
	// Err, when set, makes every acquisition fail.
	Err error

	mu      sync.Mutex
	handles []*Handle
}

// ErrLaunch is a ready-made acquisition failure.
var ErrLaunch = errors.New("fake browser failed to launch")

// New is a driver.Factory.
func (f *Factory) New(ctx context.Context, opts driver.Options, logger *zap.Logger) (driver.Handle, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := NewHandle(fmt.Sprintf("fake-%d", len(f.handles)+1), driver.KindChrome)
	f.handles = append(f.handles, h)
	return h, nil
}

// Handles returns every session handed out so far.
func (f *Factory) Handles() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Handle(nil), f.handles...)
}

// Totals sums screenshot and teardown calls across all sessions.
func (f *Factory) Totals() (screenshots, deletes int) {
	for _, h := range f.Handles() {
		screenshots += int(h.Screenshots.Load())
		deletes += int(h.Deletes.Load())
	}
	return screenshots, deletes
}
