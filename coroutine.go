package cotest

import (
	"github.com/msageha/cotest/internal/engine"
	"github.com/msageha/cotest/internal/events"
)

// Coroutine is the handle user code holds on one test coroutine. Every
// blocking operation must be invoked by the coroutine it belongs to while
// that coroutine is running.
type Coroutine struct {
	co  *engine.Coroutine
	ctx *Context
}

// Name returns the coroutine's display name.
func (co *Coroutine) Name() string {
	if co == nil || co.co == nil {
		return ""
	}
	return co.co.Name()
}

// NewCoroutine creates a named test coroutine and immediately runs it
// until it first blocks or exits, so watches it declares on construction
// are live before the creator's next statement. An empty name is
// auto-generated.
func (co *Coroutine) NewCoroutine(name string, body func(co *Coroutine)) *Coroutine {
	ctx := co.ctx
	eco := ctx.eng.NewCoroutine(co.co, ctx.coroName(name), func(e *engine.Coroutine) {
		body(&Coroutine{co: e, ctx: ctx})
	})
	if eco == nil {
		return nil
	}
	return &Coroutine{co: eco, ctx: ctx}
}

// WatchCall registers a watch owned by this coroutine. With no Spec the
// watch sees every mock call; otherwise the Spec's object, method and
// argument matchers form the exterior filter.
func (co *Coroutine) WatchCall(spec ...*Spec) *Watch {
	s := oneSpec(spec)
	w := co.ctx.eng.WatchCall(co.co, s.recv, s.method, s.matchers)
	watch := &Watch{w: w}
	if s.with != nil {
		watch.With(s.with)
	}
	return watch
}

// WaitForCall blocks until a mock call passing the Spec (the interior
// filter) is offered to this coroutine and accepts it. Offered calls that
// fail the filter are dropped back into dispatch for lower-priority
// handlers. Returns the null handle if the test is winding down.
func (co *Coroutine) WaitForCall(spec ...*Spec) CallHandle {
	s := oneSpec(spec)
	m := co.ctx.eng.WaitForCall(co.co, s.toEngine(), nil)
	return CallHandle{m: m, co: co}
}

// WaitForCallFrom is WaitForCall constrained to calls issued by the given
// launch session.
func (co *Coroutine) WaitForCallFrom(from Session, spec ...*Spec) CallHandle {
	s := oneSpec(spec)
	m := co.ctx.eng.WaitForCall(co.co, s.toEngine(), sessionOf(from))
	return CallHandle{m: m, co: co}
}

// WaitForResult blocks until any launch owned by this coroutine completes
// and collects it. Completions of other coroutines' launches are never
// observable here.
func (co *Coroutine) WaitForResult() ResultHandle {
	l := co.ctx.eng.WaitForResult(co.co, nil)
	return ResultHandle{l: l, co: co}
}

// WaitForResultFrom collects the specific launch session, which must be
// owned by this coroutine.
func (co *Coroutine) WaitForResultFrom(from Session) ResultHandle {
	l := co.ctx.eng.WaitForResult(co.co, sessionOf(from))
	return ResultHandle{l: l, co: co}
}

// NextEvent is the server-style primitive: it returns the next event of
// any kind offered to this coroutine. A mock call returned here is
// undisposed; Accept, Drop or Return it before the next blocking
// operation.
func (co *Coroutine) NextEvent() EventHandle {
	ev := co.ctx.eng.NextEvent(co.co, "", nil, "any event")
	return EventHandle{e: ev, co: co}
}

// Satisfy marks this coroutine satisfied ahead of its exit, so the test
// does not fail if it is still waiting when the test ends.
func (co *Coroutine) Satisfy() {
	co.ctx.eng.Satisfy(co.co)
}

// Retire withdraws this coroutine from dispatch: its watches stop
// matching and later calls can never oversaturate it.
func (co *Coroutine) Retire() {
	co.ctx.eng.Retire(co.co)
}

// Exit terminates the coroutine early, as opposed to returning from its
// body. Not available on the root coroutine.
func (co *Coroutine) Exit() {
	co.ctx.eng.Exit(co.co)
}

// Watch is a registered watch; With narrows it with a predicate over the
// captured arguments.
type Watch struct {
	w *engine.Watch
}

func (w *Watch) With(pred func(args Args) bool) *Watch {
	if w == nil || w.w == nil || pred == nil {
		return w
	}
	w.w.With(func(args []any) bool { return pred(Args(args)) })
	return w
}

// Launch evaluates fn, a single call into the CUT, in a fresh launch
// coroutine, runs it until it first blocks or completes, and returns a
// typed handle on the session. The session's result must be collected
// with a WaitForResult before the test ends.
func Launch[R any](co *Coroutine, fn func() R) LaunchHandle[R] {
	if co == nil || co.co == nil {
		return LaunchHandle[R]{}
	}
	l := co.ctx.eng.Launch(co.co, co.ctx.launchName(), func() []any {
		return []any{fn()}
	})
	return LaunchHandle[R]{l: l, co: co}
}

// LaunchVoid is Launch for CUT calls with no result.
func LaunchVoid(co *Coroutine, fn func()) LaunchHandle[Void] {
	if co == nil || co.co == nil {
		return LaunchHandle[Void]{}
	}
	l := co.ctx.eng.Launch(co.co, co.ctx.launchName(), func() []any {
		fn()
		return nil
	})
	return LaunchHandle[Void]{l: l, co: co}
}

// eventKindResult reports whether ev carries a launch completion.
func eventKindResult(ev *events.Event) bool {
	return ev != nil && ev.Kind == events.KindLaunchDone
}
