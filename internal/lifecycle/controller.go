// Package lifecycle binds browser sessions to scenarios and runs the run-end actions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/klassi-cli/internal/driver"
	"github.com/xkilldash9x/klassi-cli/internal/results"
	"github.com/xkilldash9x/klassi-cli/internal/world"
)

// State is the per-scenario lifecycle position.
type State int

const (
	StateIdle State = iota
	StateDriverAcquired
	StateResultKnown
	StateDriverReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDriverAcquired:
		return "driver_acquired"
	case StateResultKnown:
		return "result_known"
	case StateDriverReleased:
		return "driver_released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// postScenarioTimeout bounds diagnostics and teardown, which run after the scenario deadline may have passed.
const postScenarioTimeout = 30 * time.Second

// Acquirer produces a browser session. *driver.Selector implements it.
type Acquirer interface {
	Acquire(ctx context.Context) (driver.Handle, error)
}

// Outcome is the finished scenario handed to post-scenario actions.
type Outcome struct {
	Scenario results.Scenario
	Status   results.Status
	Err      error
	Duration time.Duration
}

// PostScenarioAction runs after every scenario that acquired a session, in list order.
type PostScenarioAction struct {
	Name string
	Run  func(ctx context.Context, h driver.Handle, o Outcome) error
}

// CaptureDiagnostics screenshots failed scenarios into store.
func CaptureDiagnostics(store *results.Store) PostScenarioAction {
	return PostScenarioAction{
		Name: "diagnostics",
		Run: func(ctx context.Context, h driver.Handle, o Outcome) error {
			if o.Status != results.StatusFailed {
				return nil
			}
			png, err := h.TakeScreenshot(ctx)
			if err != nil {
				return err
			}
			store.Attach(o.Scenario, results.Attachment{MediaType: results.MediaTypePNG, Data: png})
			return nil
		},
	}
}

// ReleaseDriver deletes the session whatever the outcome.
func ReleaseDriver() PostScenarioAction {
	return PostScenarioAction{
		Name: "teardown",
		Run: func(ctx context.Context, h driver.Handle, _ Outcome) error {
			return h.DeleteSession(ctx)
		},
	}
}

// Controller drives one scenario at a time through the lifecycle.
type Controller struct {
	world    *world.World
	acquirer Acquirer
	store    *results.Store
	actions  []PostScenarioAction
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	handle   driver.Handle
	cancel   context.CancelFunc
	started  time.Time
	scenario results.Scenario
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithPostScenarioActions replaces the default [diagnostics, teardown] list.
func WithPostScenarioActions(actions ...PostScenarioAction) ControllerOption {
	return func(c *Controller) { c.actions = actions }
}

// NewController returns an idle Controller. Each scenario gets timeout as its deadline.
func NewController(w *world.World, acq Acquirer, store *results.Store, timeout time.Duration, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		world:    w,
		acquirer: acq,
		store:    store,
		timeout:  timeout,
		logger:   logger.Named("lifecycle"),
		actions:  []PostScenarioAction{CaptureDiagnostics(store), ReleaseDriver()},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeforeScenario attaches the scenario deadline to ctx and acquires a session into the World.
func (c *Controller) BeforeScenario(ctx context.Context, sc results.Scenario) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ctx, fmt.Errorf("scenario %q started while the previous one is %s", sc.Name, c.state)
	}
	c.scenario = sc
	c.started = time.Now()

	scenarioCtx := ctx
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		scenarioCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	h, err := c.acquirer.Acquire(scenarioCtx)
	if err != nil {
		cancel()
		c.logger.Error("Could not acquire a browser session.", zap.String("scenario", sc.Name), zap.Error(err))
		return ctx, fmt.Errorf("failed to acquire browser for scenario %q: %w", sc.Name, err)
	}

	c.handle = h
	c.cancel = cancel
	c.world.SetBrowser(h)
	c.state = StateDriverAcquired
	c.logger.Debug("Scenario started.", zap.String("scenario", sc.Name), zap.String("session_id", h.ID()))
	return scenarioCtx, nil
}

// AfterScenario records the outcome and runs the post-scenario actions in order.
// Every action runs even when an earlier one fails; their errors are joined.
func (c *Controller) AfterScenario(ctx context.Context, sc results.Scenario, status results.Status, scenarioErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := Outcome{Scenario: sc, Status: status, Err: scenarioErr}
	if !c.started.IsZero() {
		outcome.Duration = time.Since(c.started)
	}
	c.store.Add(sc, status, scenarioErr, outcome.Duration)

	if c.state != StateDriverAcquired {
		// Acquisition failed, so there is nothing to release.
		c.started = time.Time{}
		return nil
	}
	c.state = StateResultKnown

	postCtx, cancelPost := context.WithTimeout(context.WithoutCancel(ctx), postScenarioTimeout)
	defer cancelPost()

	var errs []error
	for _, a := range c.actions {
		if err := a.Run(postCtx, c.handle, outcome); err != nil {
			c.logger.Warn("Post-scenario action failed.", zap.String("action", a.Name), zap.String("scenario", sc.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
		}
	}

	c.world.SetBrowser(nil)
	c.handle = nil
	c.state = StateDriverReleased
	c.cancel()
	c.cancel = nil
	c.started = time.Time{}
	c.state = StateIdle

	c.logger.Debug("Scenario finished.", zap.String("scenario", sc.Name), zap.String("status", string(status)))
	return errors.Join(errs...)
}
