// Package engine is the event-dispatch and coroutine-scheduling core. A
// Context owns the coroutines of one test, the queue of unresolved events,
// the watch registry, and the single scheduling token that guarantees at
// most one coroutine runs at a time.
package engine

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/msageha/cotest/internal/coro"
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// TB is the slice of testing.TB the engine reports through. Tests of the
// engine itself substitute a recorder.
type TB interface {
	Errorf(format string, args ...any)
	Helper()
	Name() string
	Cleanup(func())
}

// MatcherFunc decides whether a watch's argument matchers accept a call's
// captured arguments. The public layer installs the host mock library's
// matcher semantics here; the engine never interprets matchers itself.
type MatcherFunc func(matchers []any, args []any) bool

// Context is the per-test scheduling context.
type Context struct {
	t        TB
	cfg      model.Config
	queue    *events.Queue
	bus      *events.Bus
	trace    *events.TraceWriter
	registry *Registry
	matcher  MatcherFunc

	schedCtx *coro.Context
	root     *Coroutine
	running  *Coroutine

	coros  []*Coroutine
	readyQ []*Coroutine

	failures  []model.Failure
	verifiers []func()

	finishing  bool
	deadlocked bool
	closed     bool
}

// NewContext adopts the calling goroutine as the root test coroutine and
// spawns the scheduler. The caller must end the test with Close.
func NewContext(t TB, cfg model.Config) *Context {
	ctx := &Context{
		t:        t,
		cfg:      cfg,
		queue:    events.NewQueue(),
		bus:      events.NewBus(),
		registry: NewRegistry(),
		matcher:  defaultMatcher,
	}

	if cfg.Trace.Enabled {
		if w, err := events.NewTraceWriter(cfg.Trace.Path, cfg.Trace.MaxSize); err == nil {
			ctx.trace = w
			w.Attach(ctx.bus)
		}
	}

	ctx.schedCtx = coro.Spawn("scheduler", ctx.schedule)

	root := ctx.newCoroutine("test-body", model.RoleTest, nil)
	root.adopted = true
	root.cctx = coro.Adopt(root.name)
	root.state = model.CoroRunning
	ctx.root = root
	ctx.running = root
	return ctx
}

// SetMatcher installs the host matcher semantics.
func (ctx *Context) SetMatcher(fn MatcherFunc) {
	if fn != nil {
		ctx.matcher = fn
	}
}

// AddVerifier registers an end-of-test verification callback (the host
// library's cardinality check for one mock). Verifiers run during Close
// after every coroutine has wound down.
func (ctx *Context) AddVerifier(fn func()) {
	ctx.verifiers = append(ctx.verifiers, fn)
}

// Bus exposes the observer bus so additional subscribers (beyond the trace
// writer) can follow scheduler activity.
func (ctx *Context) Bus() *events.Bus {
	return ctx.bus
}

// Root returns the adopted root test coroutine.
func (ctx *Context) Root() *Coroutine {
	return ctx.root
}

// Running returns the coroutine currently holding the scheduling token.
func (ctx *Context) Running() *Coroutine {
	return ctx.running
}

// Failures returns the failures recorded so far.
func (ctx *Context) Failures() []model.Failure {
	out := make([]model.Failure, len(ctx.failures))
	copy(out, ctx.failures)
	return out
}

// defaultMatcher is used until the public layer installs the host's
// semantics: nil matcher lists accept anything, otherwise plain equality.
func defaultMatcher(matchers []any, args []any) bool {
	if matchers == nil {
		return true
	}
	if len(matchers) != len(args) {
		return false
	}
	for i := range matchers {
		if !equalValues(matchers[i], args[i]) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

// ReportFailure lets the public layer record a failure against a
// coroutine without aborting it.
func (ctx *Context) ReportFailure(co *Coroutine, kind model.FailureKind, format string, args ...any) {
	ctx.failf(co, kind, format, args...)
}

// failf records a failure, reports it to the TB immediately and publishes
// it on the bus. The caller decides whether to abort the coroutine.
func (ctx *Context) failf(co *Coroutine, kind model.FailureKind, format string, args ...any) {
	name := ""
	if co != nil {
		name = co.name
	}
	f := model.Failure{Kind: kind, Coroutine: name, Detail: fmt.Sprintf(format, args...)}
	ctx.failures = append(ctx.failures, f)
	ctx.t.Errorf("cotest: %s", f.String())
	ctx.bus.Publish(events.RecordFailure, name, map[string]any{
		"kind":   string(kind),
		"detail": f.Detail,
	})
}

// formatArgs renders a captured argument tuple for diagnostics.
func (ctx *Context) formatArgs(args []any) string {
	if !ctx.cfg.Report.DumpArgs {
		return fmt.Sprintf("%d args", len(args))
	}
	return spew.Sprintf("%v", args)
}
