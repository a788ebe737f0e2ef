package engine

import (
	"fmt"

	"github.com/msageha/cotest/internal/coro"
	"github.com/msageha/cotest/internal/events"
	"github.com/msageha/cotest/internal/model"
)

// Launch is one launch session: a single invocation of the code under test
// running in its own coroutine. Its result is collected exactly once by
// the coroutine that created it.
type Launch struct {
	id    string
	name  string
	owner *Coroutine
	co    *Coroutine

	status   model.LaunchStatus
	rets     []any
	panicVal any
	panicked bool

	// flagged dedupes the uncollected-launch failure.
	flagged bool
}

func (l *Launch) ID() string { return l.id }

func (l *Launch) Name() string { return l.name }

func (l *Launch) Owner() *Coroutine { return l.owner }

func (l *Launch) Status() model.LaunchStatus { return l.status }

// Rets returns the captured result values of a completed launch.
func (l *Launch) Rets() []any { return l.rets }

// Panicked reports whether the CUT panicked, and with what.
func (l *Launch) Panicked() (any, bool) { return l.panicVal, l.panicked }

// Launch evaluates fn, a single call into the CUT, in a fresh launch
// coroutine. It resumes that coroutine until it first blocks (typically on
// its first mock call) or exits, then returns the session to the creator.
// fn returns the call's results; a void call returns nil.
func (ctx *Context) Launch(creator *Coroutine, name string, fn func() []any) *Launch {
	ctx.checkRunning(creator, "Launch")
	if creator.aborted {
		return nil
	}
	if creator.checkServerRule("Launch") {
		return nil
	}

	l := &Launch{
		id:     model.MustGenerateID(model.IDTypeLaunch),
		name:   name,
		owner:  creator,
		status: model.LaunchRunning,
	}
	creator.launches = append(creator.launches, l)

	lc := ctx.newCoroutine(fmt.Sprintf("launch:%s", name), model.RoleLaunch, l)
	l.co = lc
	lc.cctx = coro.Spawn(lc.name, func(self *coro.Context, first coro.Wake) {
		ctx.runBody(lc, func() {
			ctx.runLaunch(l, fn)
		})
	})

	ctx.bus.Publish(events.RecordLaunch, creator.name, map[string]any{
		"launch": l.id,
		"name":   l.name,
	})
	ctx.settle(creator, lc)
	return l
}

// runLaunch evaluates the CUT, captures its result or panic, and posts the
// completion event home to the owning coroutine.
func (ctx *Context) runLaunch(l *Launch, fn func() []any) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(abortPanic); ok {
					panic(r)
				}
				l.panicVal = r
				l.panicked = true
			}
		}()
		l.rets = fn()
	}()

	l.status = model.LaunchCompleted
	ctx.bus.Publish(events.RecordComplete, l.co.name, map[string]any{
		"launch":   l.id,
		"panicked": l.panicked,
	})
	ctx.queue.Offer(events.KindLaunchDone, l.owner.id, l)
	ctx.ready(l.owner, true)
}

// collectLaunch marks l collected and re-raises a captured CUT panic
// inside the collecting coroutine.
func (ctx *Context) collectLaunch(co *Coroutine, l *Launch) {
	l.status = model.LaunchCollected
	ctx.bus.Publish(events.RecordCollect, co.name, map[string]any{"launch": l.id})
	if l.panicked {
		panic(l.panicVal)
	}
}
