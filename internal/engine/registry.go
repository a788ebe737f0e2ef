package engine

import (
	"fmt"

	"github.com/msageha/cotest/internal/model"
)

// Watch is one user-declared handler entry. Matching calls are steered
// toward the owning coroutine; the match-spec is the exterior filter.
type Watch struct {
	id    string
	owner *Coroutine
	prio  int
	// seq is the event sequence current at creation. A watch never matches
	// a call issued before it existed.
	seq uint64

	recv     any
	method   string
	matchers []any
	with     func(args []any) bool
}

func (w *Watch) ID() string { return w.id }

func (w *Watch) Owner() *Coroutine { return w.owner }

// With attaches a predicate over the captured argument tuple, narrowing
// the watch beyond its argument matchers.
func (w *Watch) With(pred func(args []any) bool) *Watch {
	w.with = pred
	return w
}

// describe renders the match-spec for diagnostics.
func (w *Watch) describe() string {
	switch {
	case w.recv == nil && w.method == "":
		return "any call"
	case w.method == "":
		return "any call on watched object"
	case w.matchers == nil:
		return fmt.Sprintf("call to %s", w.method)
	default:
		return fmt.Sprintf("call to %s with %d matchers", w.method, len(w.matchers))
	}
}

// Registry is the ordered list of watches. Priority is last-declared-
// first-served: dispatch walks from the highest (newest) priority down,
// and the host mock library's own expectation chain sits below the oldest
// watch.
type Registry struct {
	watches  []*Watch
	nextPrio int
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a watch at the next (highest) priority.
func (r *Registry) Add(w *Watch) {
	r.nextPrio++
	w.prio = r.nextPrio
	r.watches = append(r.watches, w)
}

// walkBelow returns the watches with priority strictly below cursor, in
// dispatch order (highest first). A cursor of walkTop starts a fresh walk.
func (r *Registry) walkBelow(cursor int) []*Watch {
	out := make([]*Watch, 0, len(r.watches))
	for i := len(r.watches) - 1; i >= 0; i-- {
		if r.watches[i].prio < cursor {
			out = append(out, r.watches[i])
		}
	}
	return out
}

// walkTop is the cursor value that admits every watch.
const walkTop = int(^uint(0) >> 1)

// WatchCall registers a watch owned by co. A nil recv watches every
// object; an empty method watches every method; nil matchers accept any
// arguments.
func (ctx *Context) WatchCall(co *Coroutine, recv any, method string, matchers []any) *Watch {
	ctx.checkRunning(co, "WatchCall")
	w := &Watch{
		id:       model.MustGenerateID(model.IDTypeWatch),
		owner:    co,
		seq:      ctx.queue.NextSeq(),
		recv:     recv,
		method:   method,
		matchers: matchers,
	}
	ctx.registry.Add(w)
	return w
}
