// Package coro is the coroutine substrate: goroutine-backed execution
// contexts with pass-the-baton transfer. Exactly one context runs at a time
// per baton; a context hands control to a specifically named peer and parks
// until somebody hands control back. Channel communication across the
// hand-off provides the acquire/release memory ordering the layers above
// rely on.
package coro

// signal is the baton. Exactly one signal is in flight per cooperating set
// of contexts; whichever context last received it is the running one.
type signal struct {
	from *Context
	kill bool
}

// Wake describes how a parked context was woken.
type Wake struct {
	// From is the context that handed control over.
	From *Context
	// Kill is set when the resumer wants this context to unwind instead of
	// continuing its body.
	Kill bool
}

// Context is one cooperatively scheduled execution context.
type Context struct {
	name  string
	baton chan signal
}

func (c *Context) Name() string { return c.name }

// Adopt wraps the calling goroutine in a Context. The caller is considered
// running and must eventually hand the baton to a spawned peer.
func Adopt(name string) *Context {
	return &Context{name: name, baton: make(chan signal)}
}

// Spawn creates a parked context whose goroutine runs fn once it is first
// resumed. fn is entered holding the baton and must release it before
// returning, either with a final Handoff or by parking forever; a bare
// return strands the baton and freezes every peer.
//
// If the context is killed before it ever ran, fn is not invoked and the
// baton goes straight back to the killer.
func Spawn(name string, fn func(self *Context, first Wake)) *Context {
	c := &Context{name: name, baton: make(chan signal)}
	go func() {
		s := <-c.baton
		if s.kill {
			c.Handoff(s.from)
			return
		}
		fn(c, Wake{From: s.from, Kill: false})
	}()
	return c
}

// Resume hands the baton to next and parks the caller. It returns when some
// peer hands the baton back.
func (c *Context) Resume(next *Context) Wake {
	next.baton <- signal{from: c}
	s := <-c.baton
	return Wake{From: s.from, Kill: s.kill}
}

// ResumeKill hands the baton to next with the kill flag set and parks. The
// killed context is expected to unwind and hand the baton back, so the
// caller still gets a Wake.
func (c *Context) ResumeKill(next *Context) Wake {
	next.baton <- signal{from: c, kill: true}
	s := <-c.baton
	return Wake{From: s.from, Kill: s.kill}
}

// Handoff hands the baton to next without parking. It is the terminal
// transfer of a context that is about to return from its body.
func (c *Context) Handoff(next *Context) {
	next.baton <- signal{from: c}
}
