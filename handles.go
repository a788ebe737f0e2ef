package cotest

import (
	"github.com/msageha/cotest/internal/engine"
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// Handles are small copyable values. A null handle reports Ok() == false,
// every checker method on it returns another null handle, and every
// action on it is a no-op, so a chain of checks behaves as a logical AND
// without branching.

// Void is the result type of LaunchVoid sessions.
type Void struct{}

// Session identifies a launch session: any LaunchHandle (and LaunchRef)
// implements it.
type Session interface {
	Ok() bool
	sessionRef() *engine.Launch
}

func sessionOf(s Session) *engine.Launch {
	if s == nil {
		return nil
	}
	return s.sessionRef()
}

// LaunchRef is an untyped reference to a launch session.
type LaunchRef struct {
	l *engine.Launch
}

func (r LaunchRef) Ok() bool { return r.l != nil }

func (r LaunchRef) sessionRef() *engine.Launch { return r.l }

// LaunchHandle is the typed handle on a launch session with result type R.
type LaunchHandle[R any] struct {
	l  *engine.Launch
	co *Coroutine
}

func (l LaunchHandle[R]) Ok() bool { return l.l != nil }

func (l LaunchHandle[R]) sessionRef() *engine.Launch { return l.l }

// Ref erases the result type.
func (l LaunchHandle[R]) Ref() LaunchRef { return LaunchRef{l: l.l} }

// Result extracts the typed result of this session from a collected
// ResultHandle. The handle must refer to the same session. On a null
// handle the zero value is returned; on a foreign handle the zero value is
// returned and the mismatch is reported.
func (l LaunchHandle[R]) Result(r ResultHandle) R {
	var zero R
	if l.l == nil || r.l == nil {
		return zero
	}
	if r.l != l.l {
		l.co.ctx.eng.ReportFailure(l.co.co, model.FailureBadHandle,
			"Result called with a handle for launch %s, not %s", r.l.Name(), l.l.Name())
		return zero
	}
	rets := l.l.Rets()
	if len(rets) == 0 {
		return zero
	}
	v, ok := rets[0].(R)
	if !ok {
		l.co.ctx.eng.ReportFailure(l.co.co, model.FailureBadHandle,
			"launch %s produced %T, not the declared result type", l.l.Name(), rets[0])
		return zero
	}
	return v
}

// ResultHandle is a collected (or observed) completion record of some
// launch session.
type ResultHandle struct {
	l  *engine.Launch
	co *Coroutine
}

func (r ResultHandle) Ok() bool { return r.l != nil }

// From narrows the handle: null unless the completion belongs to the
// given session.
func (r ResultHandle) From(s Session) ResultHandle {
	if r.l == nil || sessionOf(s) != r.l {
		return ResultHandle{}
	}
	return r
}

// CallHandle refers to one mock call held by a coroutine.
type CallHandle struct {
	m  *engine.MockCall
	co *Coroutine
}

func (c CallHandle) Ok() bool { return c.m != nil }

// IsCall checks the call against a Spec, returning the handle itself on a
// match and the null handle otherwise.
func (c CallHandle) IsCall(spec ...*Spec) CallHandle {
	if c.m == nil {
		return CallHandle{}
	}
	s := oneSpec(spec)
	if !s.toEngine().Matches(c.co.ctx.eng, c.m) {
		return CallHandle{}
	}
	return c
}

// With narrows the handle with a predicate over the captured arguments.
func (c CallHandle) With(pred func(args Args) bool) CallHandle {
	if c.m == nil || pred == nil {
		return c
	}
	if !pred(Args(c.m.Args())) {
		return CallHandle{}
	}
	return c
}

// From is null unless the call was issued by the given launch session.
func (c CallHandle) From(s Session) CallHandle {
	if c.m == nil || c.m.Issuer() != sessionOf(s) {
		return CallHandle{}
	}
	return c
}

// Arg returns captured argument i untyped; nil when out of range or on a
// null handle.
func (c CallHandle) Arg(i int) any {
	if c.m == nil {
		return nil
	}
	return c.m.Arg(i)
}

// Method returns the called method's name.
func (c CallHandle) Method() string {
	if c.m == nil {
		return ""
	}
	return c.m.Method()
}

// Accept consumes the call without returning it yet.
func (c CallHandle) Accept() {
	if c.m == nil {
		return
	}
	c.co.ctx.eng.Accept(c.co.co, c.m)
}

// Drop rejects the call back into dispatch, strictly below the watch that
// offered it.
func (c CallHandle) Drop() {
	if c.m == nil {
		return
	}
	c.co.ctx.eng.Drop(c.co.co, c.m)
}

// Return fills the call's return slot, checked against the mocked
// method's signature, and unblocks the CUT. Returning a held call
// implies accepting it.
func (c CallHandle) Return(vals ...any) {
	if c.m == nil {
		return
	}
	c.co.ctx.eng.Return(c.co.co, c.m, vals)
}

// GetArg extracts captured argument i with its static type. A type
// mismatch is reported and yields the zero value.
func GetArg[T any](c CallHandle, i int) T {
	var zero T
	if c.m == nil {
		return zero
	}
	v := c.m.Arg(i)
	if v == nil {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		c.co.ctx.eng.ReportFailure(c.co.co, model.FailureBadHandle,
			"argument %d of %s is %T, not the requested type", i, c.m.Method(), v)
		return zero
	}
	return typed
}

// EventHandle is the undiscriminated handle NextEvent returns: a mock
// call or a launch completion.
type EventHandle struct {
	e  *events.Event
	co *Coroutine
}

func (e EventHandle) Ok() bool { return e.e != nil }

// IsCall checks whether the event is a mock call matching the optional
// Spec, projecting it into a CallHandle; null otherwise.
func (e EventHandle) IsCall(spec ...*Spec) CallHandle {
	if e.e == nil || e.e.Kind != events.KindMockCall {
		return CallHandle{}
	}
	c := CallHandle{m: e.e.Payload.(*engine.MockCall), co: e.co}
	return c.IsCall(spec...)
}

// IsResult projects a launch-completion event into a ResultHandle; null
// when the event is not a completion.
func (e EventHandle) IsResult() ResultHandle {
	if !eventKindResult(e.e) {
		return ResultHandle{}
	}
	return ResultHandle{l: e.e.Payload.(*engine.Launch), co: e.co}
}

// Accept consumes the event. Accepting a completion collects its launch.
func (e EventHandle) Accept() {
	if e.e == nil {
		return
	}
	e.co.ctx.eng.AcceptEvent(e.co.co, e.e)
}

// Drop rejects the event: a mock call re-enters dispatch below the watch
// that offered it, a completion goes back on the queue uncollected.
func (e EventHandle) Drop() {
	if e.e == nil {
		return
	}
	e.co.ctx.eng.DropEvent(e.co.co, e.e)
}

// Return returns a mock-call event to the CUT; a no-op with a report on
// completions.
func (e EventHandle) Return(vals ...any) {
	if e.e == nil {
		return
	}
	if e.e.Kind != events.KindMockCall {
		e.co.ctx.eng.ReportFailure(e.co.co, model.FailureBadHandle,
			"Return on a launch-completion event")
		return
	}
	e.co.ctx.eng.Return(e.co.co, e.e.Payload.(*engine.MockCall), vals)
}
