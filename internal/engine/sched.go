package engine

import (
	"fmt"
	"strings"

	"github.com/msageha/cotest/internal/coro"
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// schedule is the scheduler context's body. It holds the token only while
// every coroutine is parked, picks the next runnable coroutine, and hands
// the token over. When nothing is runnable it either finishes the test
// (after Close) or declares a deadlock.
func (ctx *Context) schedule(self *coro.Context, first coro.Wake) {
	for {
		co := ctx.popReady()
		if co != nil {
			co.state = model.CoroRunning
			ctx.running = co
			ctx.bus.Publish(events.RecordSwitch, co.name, nil)
			self.Resume(co.cctx)
			continue
		}

		if ctx.finishing {
			ctx.finish(self)
			return
		}

		if ctx.anyBlocked() {
			ctx.reportDeadlock()
			continue
		}

		panic("cotest: scheduler idle with no runnable or blocked coroutine")
	}
}

func (ctx *Context) popReady() *Coroutine {
	if len(ctx.readyQ) == 0 {
		return nil
	}
	co := ctx.readyQ[0]
	ctx.readyQ = ctx.readyQ[1:]
	return co
}

func (ctx *Context) anyBlocked() bool {
	for _, co := range ctx.coros {
		if co.state == model.CoroBlocked {
			return true
		}
	}
	return false
}

// reportDeadlock records the stuck state with every waiting predicate,
// then wakes the blocked test coroutines in aborted mode so their bodies
// wind down with null handles. Launch coroutines stay parked until the
// final teardown kill.
func (ctx *Context) reportDeadlock() {
	if !ctx.deadlocked {
		ctx.deadlocked = true
		var waits []string
		blocked := 0
		for _, co := range ctx.coros {
			if co.state != model.CoroBlocked {
				continue
			}
			blocked++
			waits = append(waits, fmt.Sprintf("%s: %s", co.name, co.waitDesc))
		}
		if ctx.cfg.Report.VerboseDeadlock {
			ctx.failf(nil, model.FailureDeadlock,
				"no runnable coroutine; waiting: %s", strings.Join(waits, "; "))
		} else {
			ctx.failf(nil, model.FailureDeadlock,
				"no runnable coroutine; %d coroutines waiting", blocked)
		}
	}

	for _, co := range ctx.coros {
		if co.state == model.CoroBlocked && co.role == model.RoleTest {
			co.aborted = true
			ctx.ready(co, false)
		}
	}
}

// finish runs once the root coroutine has exited and every runnable
// coroutine has drained: verify cardinality, tear down whatever is still
// parked, run the host verifiers and hand the token back to Close.
func (ctx *Context) finish(self *coro.Context) {
	for _, co := range ctx.coros {
		if co.role == model.RoleTest && co.state != model.CoroExited && !co.satisfied {
			ctx.failf(co, model.FailureUnsatisfied,
				"coroutine still waiting at end of test: %s", co.waitDesc)
		}
	}

	// Release parked goroutines. A killed coroutine unwinds, exits and
	// hands the token straight back; one that never ran is reaped by the
	// substrate without running its body.
	for _, co := range ctx.coros {
		if co.state == model.CoroBlocked || co.state == model.CoroReady {
			self.ResumeKill(co.cctx)
		}
	}

	for _, verify := range ctx.verifiers {
		verify()
	}
	ctx.bus.Publish(events.RecordVerify, "", map[string]any{
		"failures": len(ctx.failures),
	})
	if ctx.trace != nil {
		_ = ctx.trace.Close()
	}

	self.Handoff(ctx.root.cctx)
}

// Close ends the test: the root coroutine exits, remaining runnable
// coroutines drain, cardinality and host expectations are verified, and
// parked coroutines are torn down. Must be called from the root.
func (ctx *Context) Close() {
	if ctx.closed {
		return
	}
	ctx.checkRunning(ctx.root, "Close")
	ctx.closed = true

	ctx.exitCoroutine(ctx.root)
	ctx.finishing = true
	ctx.root.cctx.Resume(ctx.schedCtx)
}
