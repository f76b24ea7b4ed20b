package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/assert"
)

// collector satisfies assert.TestingT by remembering failures instead of failing a test.
type collector struct {
	mu   sync.Mutex
	errs []error
}

func (c *collector) Errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

// Assertions is testify's assertion set bound to a collector. Step functions return Err().
type Assertions struct {
	*assert.Assertions
	c *collector
}

func newAssertions() *Assertions {
	c := &collector{}
	return &Assertions{Assertions: assert.New(c), c: c}
}

// Err joins every failed assertion made so far, or returns nil.
func (a *Assertions) Err() error {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	return errors.Join(a.c.errs...)
}

// Expect returns a fresh assertion set.
func (w *World) Expect() *Assertions { return newAssertions() }

// Assert is Expect under its other common name.
func (w *World) Assert() *Assertions { return newAssertions() }
