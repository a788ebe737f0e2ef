package engine

import (
	"fmt"
	"strings"

	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// NextEvent is the primitive every wait is built on. It removes and
// returns the first queued event offered to co that matches kind (empty
// for any) and pred (nil for any), blocking until one arrives. A mock
// call returned here is undisposed: co must Accept, Drop or Return it
// before its next blocking operation. Returns nil when the coroutine was
// aborted and must wind down.
func (ctx *Context) NextEvent(co *Coroutine, kind events.Kind, pred func(*events.Event) bool, desc string) *events.Event {
	ctx.checkRunning(co, "NextEvent")
	if co.checkServerRule("call NextEvent") {
		return nil
	}
	for {
		if co.aborted {
			return nil
		}
		ev := ctx.queue.Take(func(e *events.Event) bool {
			if e.Target != co.id {
				return false
			}
			if kind != "" && e.Kind != kind {
				return false
			}
			return pred == nil || pred(e)
		})
		if ev != nil {
			if ev.Kind == events.KindMockCall {
				call := ev.Payload.(*MockCall)
				call.holder = co
				co.undisposed = call
			}
			return ev
		}
		if !co.block(desc) {
			return nil
		}
	}
}

// DropEvent disposes an event taken with NextEvent without consuming it.
// A mock call re-enters dispatch below the watch that offered it; a
// launch completion goes back on the queue for a later collection (its
// homing never changes, so only the owner will see it again).
func (ctx *Context) DropEvent(co *Coroutine, ev *events.Event) {
	ctx.checkRunning(co, "DropEvent")
	if ev == nil {
		ctx.failf(co, model.FailureBadHandle, "Drop through a null event handle")
		co.abort("drop on null handle")
		return
	}
	switch ev.Kind {
	case events.KindMockCall:
		ctx.Drop(co, ev.Payload.(*MockCall))
	case events.KindLaunchDone:
		l := ev.Payload.(*Launch)
		ctx.queue.Offer(events.KindLaunchDone, l.owner.id, l)
	}
}

// AcceptEvent consumes an event taken with NextEvent. Accepting a launch
// completion collects it.
func (ctx *Context) AcceptEvent(co *Coroutine, ev *events.Event) {
	ctx.checkRunning(co, "AcceptEvent")
	if ev == nil {
		ctx.failf(co, model.FailureBadHandle, "Accept through a null event handle")
		co.abort("accept on null handle")
		return
	}
	switch ev.Kind {
	case events.KindMockCall:
		ctx.Accept(co, ev.Payload.(*MockCall))
	case events.KindLaunchDone:
		ctx.collectLaunch(co, ev.Payload.(*Launch))
	}
}

// CallSpec is the interior filter of a WaitForCall: the same matcher
// language as a watch, applied to calls the coroutine already sees.
type CallSpec struct {
	Recv     any
	Method   string
	Matchers []any
	With     func(args []any) bool
}

// Matches applies the spec to a call using the installed matcher
// semantics.
func (spec CallSpec) Matches(ctx *Context, call *MockCall) bool {
	if spec.Recv != nil && spec.Recv != call.recv {
		return false
	}
	if spec.Method != "" && spec.Method != call.method {
		return false
	}
	if spec.Matchers != nil && !ctx.matcher(spec.Matchers, call.args) {
		return false
	}
	if spec.With != nil && !spec.With(call.args) {
		return false
	}
	return true
}

func (spec CallSpec) describe(from *Launch) string {
	var b strings.Builder
	b.WriteString("mock call")
	if spec.Method != "" {
		fmt.Fprintf(&b, " to %s", spec.Method)
	}
	if spec.Matchers != nil {
		fmt.Fprintf(&b, " (%d matchers)", len(spec.Matchers))
	}
	if from != nil {
		fmt.Fprintf(&b, " from launch %s", from.name)
	}
	return b.String()
}

// WaitForCall loops NextEvent until a call passing the interior filter
// (and, when from is non-nil, issued by that launch) arrives, accepting
// it. Calls failing the filter are dropped back into dispatch. Returns
// nil on abort.
func (ctx *Context) WaitForCall(co *Coroutine, spec CallSpec, from *Launch) *MockCall {
	desc := spec.describe(from)
	for {
		ev := ctx.NextEvent(co, events.KindMockCall, nil, desc)
		if ev == nil {
			return nil
		}
		call := ev.Payload.(*MockCall)
		if (from == nil || call.issuer == from) && spec.Matches(ctx, call) {
			ctx.Accept(co, call)
			return call
		}
		ctx.Drop(co, call)
	}
}

// WaitForResult collects a launch completion. With from nil it collects
// the first completion of any launch co owns; otherwise it waits for that
// specific session. Completions of other coroutines' launches are never
// observable here, and passing a foreign session is a programming error.
func (ctx *Context) WaitForResult(co *Coroutine, from *Launch) *Launch {
	ctx.checkRunning(co, "WaitForResult")
	if co.aborted {
		return nil
	}
	if from != nil && from.owner != co {
		ctx.failf(co, model.FailureForeignCollect,
			"WaitForResult for launch %s owned by coroutine %q", from.name, from.owner.name)
		co.abort("foreign collection")
		return nil
	}

	desc := "any launch result"
	if from != nil {
		desc = "result of launch " + from.name
	}
	ev := ctx.NextEvent(co, events.KindLaunchDone, func(e *events.Event) bool {
		return from == nil || e.Payload.(*Launch) == from
	}, desc)
	if ev == nil {
		return nil
	}
	l := ev.Payload.(*Launch)
	ctx.collectLaunch(co, l)
	return l
}
