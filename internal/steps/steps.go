// Package steps holds the generic step definitions every project gets for free.
package steps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

var (
	errNoWorld   = errors.New("no world in step context")
	errNoBrowser = errors.New("no browser session for this scenario")
)

// Register adds the built-in steps to sc.
func Register(sc *godog.ScenarioContext) {
	sc.Step(`^I navigate to "([^"]*)"$`, navigateTo)
	sc.Step(`^I open the "([^"]*)" page$`, openPage)
	sc.Step(`^the page title should be "([^"]*)"$`, titleShouldBe)
	sc.Step(`^the page title should contain "([^"]*)"$`, titleShouldContain)
	sc.Step(`^the url should contain "([^"]*)"$`, urlShouldContain)
	sc.Step(`^I wait (\d+) (?:ms|milliseconds)$`, waitMs)
	sc.Step(`^I download "([^"]*)"(?: as "([^"]*)")?$`, download)
	sc.Step(`^a (GET|HEAD|DELETE) request to "([^"]*)" should return status (\d+)$`, requestStatus)
	sc.Step(`^I print "([^"]*)"$`, printTrace)
}

func current(ctx context.Context) (*world.World, driver.Handle, error) {
	w := world.FromContext(ctx)
	if w == nil {
		return nil, nil, errNoWorld
	}
	b := w.Browser()
	if b == nil {
		return w, nil, errNoBrowser
	}
	return w, b, nil
}

// resolveURL joins relative targets onto the environment's baseUrl.
func resolveURL(w *world.World, target string) string {
	if !strings.HasPrefix(target, "/") {
		return target
	}
	base := w.EnvConfig.String("baseUrl")
	if base == "" {
		base = w.Config.HTTP.BaseURL
	}
	if base == "" {
		return target
	}
	u, err := url.Parse(base)
	if err != nil {
		return target
	}
	ref, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.ResolveReference(ref).String()
}

func navigateTo(ctx context.Context, target string) error {
	w, b, err := current(ctx)
	if err != nil {
		return err
	}
	dest := resolveURL(w, target)
	w.Logger.Debug("Navigating.", zap.String("url", dest))
	return b.Navigate(ctx, dest)
}

func openPage(ctx context.Context, name string) error {
	w := world.FromContext(ctx)
	if w == nil {
		return errNoWorld
	}
	target := w.Page.String(name + ".url")
	if target == "" {
		return fmt.Errorf("page object %q has no url", name)
	}
	return navigateTo(ctx, target)
}

func titleShouldBe(ctx context.Context, want string) error {
	w, b, err := current(ctx)
	if err != nil {
		return err
	}
	got, err := b.Title(ctx)
	if err != nil {
		return err
	}
	expect := w.Expect()
	expect.Equal(want, got, "page title")
	return expect.Err()
}

func titleShouldContain(ctx context.Context, fragment string) error {
	w, b, err := current(ctx)
	if err != nil {
		return err
	}
	got, err := b.Title(ctx)
	if err != nil {
		return err
	}
	expect := w.Expect()
	expect.Contains(got, fragment, "page title")
	return expect.Err()
}

func urlShouldContain(ctx context.Context, fragment string) error {
	w, b, err := current(ctx)
	if err != nil {
		return err
	}
	got, err := b.URL(ctx)
	if err != nil {
		return err
	}
	expect := w.Expect()
	expect.Contains(got, fragment, "page url")
	return expect.Err()
}

func waitMs(ctx context.Context, ms int) error {
	w := world.FromContext(ctx)
	if w == nil {
		return errNoWorld
	}
	return w.Pause(ctx, time.Duration(ms)*time.Millisecond)
}

func download(ctx context.Context, target, name string) error {
	w := world.FromContext(ctx)
	if w == nil {
		return errNoWorld
	}
	path, err := w.Downloader.Download(ctx, resolveURL(w, target), name)
	if err != nil {
		return err
	}
	w.Logger.Info("Downloaded file.", zap.String("path", path))
	return nil
}

func requestStatus(ctx context.Context, method, target, status string) error {
	w := world.FromContext(ctx)
	if w == nil {
		return errNoWorld
	}
	want, err := strconv.Atoi(status)
	if err != nil {
		return err
	}
	resp, err := w.HTTP.R().SetContext(ctx).Execute(method, resolveURL(w, target))
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	expect := w.Expect()
	expect.Equal(want, resp.StatusCode(), "%s %s", method, target)
	return expect.Err()
}

func printTrace(ctx context.Context, msg string) error {
	w := world.FromContext(ctx)
	if w == nil {
		return errNoWorld
	}
	w.Trace(msg)
	return nil
}
