package engine

import (
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// IssueCall is the mock stub's entry point: the CUT, running in a launch
// coroutine, issued a mock call. The call is routed through the watch
// registry; the launch coroutine blocks until some coroutine returns the
// call or it falls through to the host mock library. host is true in the
// fall-through case, where the caller must run the host's own expectation
// chain on this goroutine. A call issued outside any launch session is the
// host's business entirely.
func (ctx *Context) IssueCall(recv any, method string, sig Signature, args []any) (rets []any, host bool) {
	co := ctx.running
	if co == nil || co.role != model.RoleLaunch {
		return nil, true
	}

	call := &MockCall{
		id:         model.MustGenerateID(model.IDTypeCall),
		seq:        ctx.queue.NextSeq(),
		recv:       recv,
		method:     method,
		sig:        sig,
		args:       args,
		status:     model.CallPending,
		issuer:     co.launch,
		walkCursor: walkTop,
	}
	ctx.bus.Publish(events.RecordCall, co.name, map[string]any{
		"call":   call.id,
		"method": method,
		"args":   ctx.formatArgs(args),
	})

	ctx.advanceDispatch(call)

	for call.status != model.CallReturned && call.status != model.CallHostBound {
		if !co.block("return of call " + call.describe()) {
			panic(abortPanic{reason: "launch coroutine torn down mid-call"})
		}
	}

	if call.status == model.CallHostBound {
		return nil, true
	}
	return call.rets, false
}

// advanceDispatch walks the registry from just below the call's cursor:
// offer the call to the first eligible watch's owner, or mark it
// host-bound when the watches are exhausted. Called on issue and again on
// every drop.
func (ctx *Context) advanceDispatch(call *MockCall) {
	for _, w := range ctx.registry.walkBelow(call.walkCursor) {
		if w.owner.retired {
			continue
		}
		if !ctx.watchMatches(w, call) {
			continue
		}
		if w.owner.state == model.CoroExited {
			// Saturated but not retired: seeing another matching call is
			// an oversaturation failure, reported once per coroutine.
			if !w.owner.oversatReported {
				w.owner.oversatReported = true
				ctx.failf(w.owner, model.FailureOversaturated,
					"call %s matched a watch of a coroutine that already exited", call.describe())
			}
			continue
		}

		call.walkCursor = w.prio
		call.offeredTo = w.owner
		call.status = model.CallOffered
		ctx.queue.Offer(events.KindMockCall, w.owner.id, call)
		ctx.bus.Publish(events.RecordOffer, w.owner.name, map[string]any{
			"call":  call.id,
			"watch": w.id,
		})
		ctx.ready(w.owner, true)
		return
	}

	call.offeredTo = nil
	call.status = model.CallHostBound
	ctx.bus.Publish(events.RecordHost, call.issuer.co.name, map[string]any{"call": call.id})
	ctx.ready(call.issuer.co, true)
}

// watchMatches applies the exterior filter: object, method, argument
// matchers and With predicate, plus the rule that a watch never matches a
// call issued before the watch existed.
func (ctx *Context) watchMatches(w *Watch, call *MockCall) bool {
	if w.seq > call.seq {
		return false
	}
	if w.recv != nil && w.recv != call.recv {
		return false
	}
	if w.method != "" && w.method != call.method {
		return false
	}
	if w.matchers != nil && !ctx.matcher(w.matchers, call.args) {
		return false
	}
	if w.with != nil && !w.with(call.args) {
		return false
	}
	return true
}

// Accept consumes the held call: dispatch for it ends and the call stays
// with co until returned.
func (ctx *Context) Accept(co *Coroutine, call *MockCall) {
	ctx.checkRunning(co, "Accept")
	if call == nil || call.holder != co || call.status != model.CallOffered {
		ctx.failf(co, model.FailureBadHandle, "Accept on a call this coroutine does not hold")
		co.abort("accept without holding")
		return
	}
	if co.undisposed == call {
		co.undisposed = nil
	}
	call.status = model.CallAccepted
	ctx.bus.Publish(events.RecordAccept, co.name, map[string]any{"call": call.id})
}

// Drop rejects the held call and re-enters dispatch strictly below the
// watch that offered it.
func (ctx *Context) Drop(co *Coroutine, call *MockCall) {
	ctx.checkRunning(co, "Drop")
	if call == nil || call.holder != co || call.status != model.CallOffered {
		ctx.failf(co, model.FailureBadHandle, "Drop on a call this coroutine does not hold")
		co.abort("drop without holding")
		return
	}
	if co.undisposed == call {
		co.undisposed = nil
	}
	call.holder = nil
	call.offeredTo = nil
	call.status = model.CallPending
	ctx.bus.Publish(events.RecordDrop, co.name, map[string]any{"call": call.id})
	ctx.advanceDispatch(call)
}

// Return fills the call's return slot and unblocks the issuing launch
// coroutine. Returning a held call implies accepting it.
func (ctx *Context) Return(co *Coroutine, call *MockCall, vals []any) {
	ctx.checkRunning(co, "Return")
	if call == nil {
		ctx.failf(co, model.FailureBadHandle, "Return through a null call handle")
		co.abort("return on null handle")
		return
	}
	if co.undisposed != nil && co.undisposed != call {
		co.checkServerRule("Return a different call")
		return
	}

	switch call.status {
	case model.CallOffered:
		if call.holder != co {
			ctx.failf(co, model.FailureBadHandle, "Return on a call this coroutine does not hold")
			co.abort("return without holding")
			return
		}
		ctx.Accept(co, call)
	case model.CallAccepted:
		// returned later, possibly long after acceptance
	default:
		ctx.failf(co, model.FailureBadHandle,
			"Return on call %s in state %s", call.describe(), call.status)
		co.abort("return on disposed call")
		return
	}

	if err := call.sig.CheckReturns(vals); err != nil {
		ctx.failf(co, model.FailureTypedReturn, "%v", err)
		co.abort("typed return mismatch")
		return
	}

	call.rets = vals
	call.status = model.CallReturned
	ctx.bus.Publish(events.RecordReturn, co.name, map[string]any{
		"call": call.id,
		"rets": ctx.formatArgs(vals),
	})
	ctx.ready(call.issuer.co, false)
}
