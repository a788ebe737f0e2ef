package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryWalkOrder(t *testing.T) {
	r := NewRegistry()

	a := &Watch{id: "a"}
	b := &Watch{id: "b"}
	c := &Watch{id: "c"}
	r.Add(a)
	r.Add(b)
	r.Add(c)

	// Last declared, first served.
	walk := r.walkBelow(walkTop)
	require.Len(t, walk, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{walk[0].id, walk[1].id, walk[2].id})
}

func TestRegistryWalkBelowCursor(t *testing.T) {
	r := NewRegistry()

	a := &Watch{id: "a"}
	b := &Watch{id: "b"}
	c := &Watch{id: "c"}
	r.Add(a)
	r.Add(b)
	r.Add(c)

	// Resuming below b admits only entries that rank under it.
	walk := r.walkBelow(b.prio)
	require.Len(t, walk, 1)
	assert.Equal(t, "a", walk[0].id)

	assert.Empty(t, r.walkBelow(a.prio))
}

func TestWatchMatchesSpec(t *testing.T) {
	ctx, _ := newTestContext()
	depA := &struct{ n int }{1}
	depB := &struct{ n int }{2}

	call := &MockCall{recv: depA, method: "Forward", args: []any{5}, seq: 100}

	anyWatch := &Watch{seq: 1}
	assert.True(t, ctx.watchMatches(anyWatch, call))

	objWatch := &Watch{seq: 1, recv: depA}
	assert.True(t, ctx.watchMatches(objWatch, call))

	wrongObj := &Watch{seq: 1, recv: depB}
	assert.False(t, ctx.watchMatches(wrongObj, call))

	methodWatch := &Watch{seq: 1, recv: depA, method: "Forward"}
	assert.True(t, ctx.watchMatches(methodWatch, call))

	wrongMethod := &Watch{seq: 1, recv: depA, method: "Turn"}
	assert.False(t, ctx.watchMatches(wrongMethod, call))

	argWatch := &Watch{seq: 1, recv: depA, method: "Forward", matchers: []any{5}}
	assert.True(t, ctx.watchMatches(argWatch, call))

	wrongArgs := &Watch{seq: 1, recv: depA, method: "Forward", matchers: []any{9}}
	assert.False(t, ctx.watchMatches(wrongArgs, call))

	withWatch := &Watch{seq: 1, with: func(args []any) bool { return args[0] == 5 }}
	assert.True(t, ctx.watchMatches(withWatch, call))

	withReject := &Watch{seq: 1, with: func(args []any) bool { return false }}
	assert.False(t, ctx.watchMatches(withReject, call))

	ctx.Close()
}

func TestWatchNeverMatchesEarlierCall(t *testing.T) {
	ctx, _ := newTestContext()

	call := &MockCall{method: "Forward", seq: 10}
	lateWatch := &Watch{seq: 20}

	assert.False(t, ctx.watchMatches(lateWatch, call),
		"a watch created after a call was issued must not see it")

	ctx.Close()
}
