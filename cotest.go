// Package cotest lets a test drive code under test (CUT) from a linear
// coroutine: launch a call into the CUT, wait for the mock calls it
// issues, reply to each with return values, and finally collect the
// launch's result. Watches steer mock calls toward coroutines; calls
// nobody claims fall through to the embedded testify mock, which keeps its
// usual expectation, matcher and unexpected-call semantics.
//
// The test body itself is the root coroutine:
//
//	cotest.Run(t, func(co *cotest.Coroutine) {
//		turtle := NewMockTurtle(co)
//		painter := NewPainter(turtle)
//		co.WatchCall()
//
//		l := cotest.LaunchVoid(co, func() { painter.DrawDot() })
//		co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()
//		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
//		co.WaitForResult()
//		_ = l
//	})
package cotest

import (
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/msageha/cotest/internal/config"
	"github.com/msageha/cotest/internal/engine"
	"github.com/msageha/cotest/internal/model"
)

// TB is the subset of testing.TB cotest needs. *testing.T satisfies it.
type TB interface {
	Errorf(format string, args ...any)
	Logf(format string, args ...any)
	FailNow()
	Helper()
	Name() string
	Cleanup(func())
}

type settings struct {
	configDir string
	noConfig  bool
	tracePath string
}

// Option adjusts a Context at construction.
type Option func(*settings)

// WithConfigDir looks for .cotest.yaml in dir instead of the working
// directory.
func WithConfigDir(dir string) Option {
	return func(s *settings) { s.configDir = dir }
}

// WithoutConfig skips the .cotest.yaml lookup entirely.
func WithoutConfig() Option {
	return func(s *settings) { s.noConfig = true }
}

// WithTrace enables scheduler tracing to the given JSONL file, overriding
// the configuration file.
func WithTrace(path string) Option {
	return func(s *settings) { s.tracePath = path }
}

// Context owns one test's coroutines, event queue and watch registry. The
// goroutine that calls New becomes the root test coroutine.
type Context struct {
	t    TB
	eng  *engine.Context
	root *Coroutine

	nlaunches int
	ncoros    int
}

// New builds a Context for a classic test function. The caller's
// goroutine is adopted as the root coroutine; Close (also registered via
// t.Cleanup) ends the test and verifies cardinality and host
// expectations.
func New(t TB, opts ...Option) *Context {
	s := settings{configDir: "."}
	for _, o := range opts {
		o(&s)
	}

	cfg := model.DefaultConfig()
	if !s.noConfig {
		loaded, err := config.Load(s.configDir)
		if err != nil {
			t.Logf("cotest: %v; continuing with defaults", err)
		} else {
			cfg = loaded
		}
	}
	if s.tracePath != "" {
		cfg.Trace.Enabled = true
		cfg.Trace.Path = s.tracePath
	}

	ctx := &Context{t: t}
	ctx.eng = engine.NewContext(t, cfg)
	ctx.eng.SetMatcher(matchArgs)
	ctx.root = &Coroutine{co: ctx.eng.Root(), ctx: ctx}
	t.Cleanup(ctx.Close)
	return ctx
}

// Run is the test-with-coroutine form: body runs as the root test
// coroutine and the context is torn down when it returns.
func Run(t TB, body func(co *Coroutine)) {
	ctx := New(t)
	defer ctx.Close()
	body(ctx.Root())
}

// Root returns the root test coroutine.
func (c *Context) Root() *Coroutine {
	return c.root
}

// Close ends the test: drains runnable coroutines, verifies cardinality
// and host-mock expectations, and reaps parked coroutines. Idempotent;
// must be called from the root coroutine's goroutine.
func (c *Context) Close() {
	c.eng.Close()
}

// NewCoroutine creates a coroutine from classic-form test code. The
// currently running coroutine is the creator.
func (c *Context) NewCoroutine(name string, body func(co *Coroutine)) *Coroutine {
	creator := &Coroutine{co: c.eng.Running(), ctx: c}
	return creator.NewCoroutine(name, body)
}

func (c *Context) launchName() string {
	c.nlaunches++
	return fmt.Sprintf("launch-%d", c.nlaunches)
}

func (c *Context) coroName(name string) string {
	if name != "" {
		return name
	}
	c.ncoros++
	return fmt.Sprintf("coroutine-%d", c.ncoros)
}

// matchArgs evaluates watch and wait matchers with the host library's own
// semantics: mock.Anything, mock.AnythingOfType, mock.MatchedBy and plain
// equality all behave exactly as in a testify expectation.
func matchArgs(matchers []any, args []any) bool {
	_, differences := mock.Arguments(matchers).Diff(args)
	return differences == 0
}
