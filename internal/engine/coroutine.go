package engine

import (
	"fmt"

	"github.com/msageha/cotest/internal/coro"
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// sentinels thrown through a coroutine body to unwind it. Both are caught
// by the coroutine runner; the adopted root is never unwound with them
// (see abort and Exit).
type abortPanic struct{ reason string }
type exitPanic struct{}

// Coroutine is the engine's record of one execution context plus its
// scheduling state, cardinality flags and owned resources.
type Coroutine struct {
	id   string
	name string
	role model.CoroRole

	ctx  *Context
	cctx *coro.Context

	state   model.CoroState
	adopted bool
	aborted bool
	killed  bool

	// cardinality flags
	satisfied bool
	retired   bool

	// waitDesc describes the pending wait predicate while Blocked; it is
	// what a deadlock report prints.
	waitDesc string

	// undisposed is the mock call returned by the last NextEvent and not
	// yet accepted, dropped or returned.
	undisposed *MockCall

	// launch is set on launch coroutines: the session this context runs.
	launch *Launch

	// launches are the sessions this (test) coroutine created.
	launches []*Launch

	// settleWaiter is the coroutine blocked until this one first blocks or
	// exits (its creator, during Launch / coroutine creation).
	settleWaiter *Coroutine

	oversatReported bool
	panicked        any
}

func (co *Coroutine) ID() string { return co.id }

func (co *Coroutine) Name() string { return co.name }

func (co *Coroutine) Role() model.CoroRole { return co.role }

func (co *Coroutine) State() model.CoroState { return co.state }

func (co *Coroutine) Satisfied() bool { return co.satisfied }

func (co *Coroutine) Retired() bool { return co.retired }

func (co *Coroutine) Context() *Context { return co.ctx }

func (ctx *Context) newCoroutine(name string, role model.CoroRole, launch *Launch) *Coroutine {
	co := &Coroutine{
		id:     model.MustGenerateID(model.IDTypeCoroutine),
		name:   name,
		role:   role,
		ctx:    ctx,
		state:  model.CoroReady,
		launch: launch,
	}
	ctx.coros = append(ctx.coros, co)
	return co
}

// NewCoroutine creates a named test coroutine and runs it until it first
// blocks or exits, so watches it declares are live before the creator's
// next statement. The creator must be the running coroutine.
func (ctx *Context) NewCoroutine(creator *Coroutine, name string, body func(*Coroutine)) *Coroutine {
	ctx.checkRunning(creator, "NewCoroutine")
	if creator.aborted {
		return nil
	}
	if creator.checkServerRule("create a coroutine") {
		return nil
	}

	co := ctx.newCoroutine(name, model.RoleTest, nil)
	co.cctx = coro.Spawn(name, func(self *coro.Context, first coro.Wake) {
		ctx.runBody(co, func() { body(co) })
	})
	ctx.bus.Publish(events.RecordSwitch, co.name, map[string]any{"created": true})
	ctx.settle(creator, co)
	return co
}

// runBody executes a coroutine body on its own goroutine, translating the
// unwind sentinels and stray panics, and always hands the token back to
// the scheduler when the body is done.
func (ctx *Context) runBody(co *Coroutine, body func()) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case exitPanic, abortPanic:
				// deliberate unwind
			default:
				co.panicked = r
				ctx.failf(co, model.FailureBadHandle, "coroutine body panicked: %v", r)
			}
		}
		ctx.exitCoroutine(co)
		co.cctx.Handoff(ctx.schedCtx)
	}()
	body()
}

// exitCoroutine performs the Running -> Exited transition bookkeeping:
// cardinality flags, uncollected-launch checks and settle notification.
// Watches owned by co stay in the registry; dispatch treats them as
// oversaturation tripwires until the coroutine retires.
func (ctx *Context) exitCoroutine(co *Coroutine) {
	co.state = model.CoroExited
	co.satisfied = true
	co.waitDesc = ""
	ctx.running = nil

	if !co.killed {
		for _, l := range co.launches {
			if l.status != model.LaunchCollected && !l.flagged {
				l.flagged = true
				ctx.failf(co, model.FailureUncollected,
					"launch %s (%s) was never collected with a WaitForResult", l.id, l.name)
			}
		}
	}

	ctx.bus.Publish(events.RecordExit, co.name, map[string]any{"killed": co.killed})
	ctx.notifySettled(co)
}

// block parks the running coroutine with the given wait description until
// the scheduler wakes it again. It reports false when the coroutine was
// aborted or killed and must wind down instead of retrying its wait.
func (co *Coroutine) block(desc string) bool {
	ctx := co.ctx
	if co.aborted {
		return false
	}
	co.state = model.CoroBlocked
	co.waitDesc = desc
	ctx.running = nil
	ctx.notifySettled(co)

	wake := co.cctx.Resume(ctx.schedCtx)

	co.state = model.CoroRunning
	co.waitDesc = ""
	ctx.running = co
	if wake.Kill {
		co.killed = true
		co.aborted = true
	}
	return !co.aborted
}

// ready moves a blocked (or freshly created) coroutine onto the run queue.
// With hint set the coroutine goes to the front: dispatch offers and
// settle hand-offs resume their target before anything else runs.
func (ctx *Context) ready(co *Coroutine, hint bool) {
	switch co.state {
	case model.CoroExited, model.CoroRunning:
		return
	case model.CoroReady:
		if !hint {
			return
		}
		for i, r := range ctx.readyQ {
			if r == co {
				ctx.readyQ = append(ctx.readyQ[:i], ctx.readyQ[i+1:]...)
				break
			}
		}
	default:
		co.state = model.CoroReady
	}
	if hint {
		ctx.readyQ = append([]*Coroutine{co}, ctx.readyQ...)
	} else {
		ctx.readyQ = append(ctx.readyQ, co)
	}
}

// settle blocks creator until spawned first blocks or exits. This is the
// initial-activity rule: a freshly created coroutine (or launch) runs
// immediately, and its creator resumes once it has gone quiet.
func (ctx *Context) settle(creator, spawned *Coroutine) {
	spawned.settleWaiter = creator
	ctx.ready(spawned, true)
	creator.block(fmt.Sprintf("waiting for %s to block or exit", spawned.name))
}

// notifySettled releases the settle waiter, if any, of a coroutine that
// just blocked or exited.
func (ctx *Context) notifySettled(co *Coroutine) {
	if w := co.settleWaiter; w != nil {
		co.settleWaiter = nil
		ctx.ready(w, true)
	}
}

// checkRunning guards API entry points that only the running coroutine may
// invoke.
func (ctx *Context) checkRunning(co *Coroutine, op string) {
	if ctx.running != co {
		panic(fmt.Sprintf("cotest: %s invoked from coroutine %q while %q holds the token",
			op, co.name, ctx.runningName()))
	}
}

func (ctx *Context) runningName() string {
	if ctx.running == nil {
		return "<scheduler>"
	}
	return ctx.running.name
}

// checkServerRule reports (and aborts on) a server-style rule violation:
// while a mock call is held undisposed the holder may not launch, wait, or
// return another call. Returns true when the caller must bail out.
func (co *Coroutine) checkServerRule(op string) bool {
	if co.undisposed == nil {
		return false
	}
	co.ctx.failf(co, model.FailureServerRule,
		"cannot %s while call %s.%s is held undisposed; Accept, Drop or Return it first",
		op, co.undisposed.RecvName(), co.undisposed.Method())
	co.abort("server rule violation")
	return true
}

// abort unwinds the coroutine after a programming error. Spawned
// coroutines unwind with a sentinel panic caught by their runner; the
// adopted root cannot be unwound that way, so it is switched into aborted
// mode where every subsequent wait returns a null handle.
func (co *Coroutine) abort(reason string) {
	co.aborted = true
	if !co.adopted {
		panic(abortPanic{reason: reason})
	}
}

// Satisfy marks the coroutine satisfied ahead of its exit.
func (ctx *Context) Satisfy(co *Coroutine) {
	ctx.checkRunning(co, "Satisfy")
	co.satisfied = true
	ctx.bus.Publish(events.RecordSatisfy, co.name, nil)
}

// Retire removes the coroutine from dispatch eligibility: its watches stop
// matching and no oversaturation can be raised against it.
func (ctx *Context) Retire(co *Coroutine) {
	ctx.checkRunning(co, "Retire")
	co.retired = true
	ctx.bus.Publish(events.RecordRetire, co.name, nil)
}

// Exit terminates the coroutine early, as opposed to a native return from
// its body. Valid on spawned coroutines only; the adopted root exits by
// returning from the test.
func (ctx *Context) Exit(co *Coroutine) {
	ctx.checkRunning(co, "Exit")
	if co.adopted {
		panic("cotest: Exit is not available on the root test coroutine")
	}
	panic(exitPanic{})
}
