package cotest_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/msageha/cotest"
)

func TestLaunchPlainResult(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		var c calc

		l := cotest.Launch(co, func() int { return c.Triple(24) })
		r := co.WaitForResult()
		require.True(t, r.Ok())
		require.Equal(t, 72, l.Result(r))
	})
}

func TestLaunchPointerArgument(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		var c calc
		i := 24

		cotest.LaunchVoid(co, func() { c.TripleInPlace(&i) })
		co.WaitForResult()
		require.Equal(t, 72, i)
	})
}

func TestLaunchSecondResult(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		var c calc

		l := cotest.Launch(co, func() int { return c.AddBase(9) })
		require.Equal(t, 109, l.Result(co.WaitForResult()))
	})
}

func TestGoToPointTopLeft(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.GoToPointTopLeft() })

		c := co.WaitForCall()
		require.True(t, c.IsCall(cotest.On(turtle).Method("GoTo", mock.Anything, 1)).Ok())
		require.True(t, c.With(func(args cotest.Args) bool {
			return args.Get(0).(int) < args.Get(1).(int)
		}).Ok())
		c.Return()
		co.WaitForResult()
	})
}

func TestGoToPointTopLeftWithNarrowWatch(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall(cotest.On(turtle).Method("GoTo")).With(func(args cotest.Args) bool {
			return args.Get(0).(int) < args.Get(1).(int)
		})

		cotest.LaunchVoid(co, func() { painter.GoToPointTopLeft() })

		co.WaitForCall().Return()
		co.WaitForResult()
	})
}

func TestDrawDot(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.DrawDot() })

		c := co.WaitForCall(cotest.On(turtle).Method("PenDown"))
		require.True(t, c.Ok())
		c.Return()
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		co.WaitForResult()
	})
}

func TestDrawSquareFullFraming(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.DrawSquare(5) })

		co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()
		for i := 0; i < 4; i++ {
			co.WaitForCall(cotest.On(turtle).Method("Forward", 5)).Return()
			co.WaitForCall(cotest.On(turtle).Method("Turn", 90)).Return()
		}
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		co.WaitForResult()
	})
}

func TestDrawSquareFlexible(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.DrawSquare(5) })
		co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()

		var c cotest.CallHandle
		for {
			c = co.WaitForCall(cotest.On(turtle))
			if !c.IsCall(cotest.On(turtle).Method("Forward")).Ok() {
				break
			}
			require.True(t, c.IsCall(cotest.On(turtle).Method("Forward", 5)).Ok())
			c.Return()
			co.WaitForCall(cotest.On(turtle).Method("Turn", 90)).Return()
		}

		require.True(t, c.IsCall(cotest.On(turtle).Method("PenUp")).Ok())
		c.Return()
		co.WaitForResult()
	})
}

func TestTypedReturnDrivesBehavior(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.CheckPosition() })
		co.WaitForCall(cotest.On(turtle).Method("GetX")).Return(-200)
		co.WaitForCall(cotest.On(turtle).Method("GoTo", 0, 0)).Return()
		co.WaitForResult()
	})
}

func TestCheckPositionInsideBounds(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.CheckPosition() })
		co.WaitForCall(cotest.On(turtle).Method("GetX")).Return(20)
		co.WaitForCall(cotest.On(turtle).Method("GetX")).Return(20)
		co.WaitForCall(cotest.On(turtle).Method("GetY")).Return(10)
		co.WaitForCall(cotest.On(turtle).Method("GetY")).Return(10)
		co.WaitForResult()
	})
}

func TestRandomPointOnCircle(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.GoToRandomPointOnCircle(1000) })

		c := co.WaitForCall(cotest.On(turtle).Method("GoTo"))
		x := cotest.GetArg[int](c, 0)
		y := cotest.GetArg[int](c, 1)
		require.InDelta(t, 1000*1000, x*x+y*y, 2000)
		c.Return()
		co.WaitForResult()
	})
}

func TestMultiLaunchHoming(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		l1 := cotest.LaunchVoid(co, func() { painter.DrawDot() })
		c1 := co.WaitForCallFrom(l1, cotest.On(turtle).Method("PenDown"))
		require.True(t, c1.Ok())
		require.True(t, c1.From(l1).Ok())

		// A second session completes and is collected while l1's PenDown
		// is still held un-returned.
		l2 := cotest.LaunchVoid(co, func() { painter.EmptyMethod() })
		r2 := co.WaitForResultFrom(l2)
		require.True(t, r2.Ok())
		require.True(t, r2.From(l2).Ok())
		require.False(t, r2.From(l1).Ok())

		c1.Return()
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		r1 := co.WaitForResultFrom(l1)
		require.True(t, r1.Ok())
	})
}

func TestServerStyleWithHostExpectation(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)

		// Host-library expectation underneath the coroutines: every
		// InkCheck the loop drops lands here.
		turtle.On("InkCheck").Return()

		co.WatchCall()
		cotest.LaunchVoid(co, func() { painter.DrawSquareInkChecks(5) })

		forwards, turns := 0, 0
		for {
			e := co.NextEvent()
			require.True(t, e.Ok())
			if c := e.IsCall(cotest.On(turtle).Method("PenUp")); c.Ok() {
				c.Return()
				break
			}
			if c := e.IsCall(cotest.On(turtle).Method("PenDown")); c.Ok() {
				c.Return()
				continue
			}
			if c := e.IsCall(cotest.On(turtle).Method("Forward")); c.Ok() {
				forwards++
				c.Return()
				continue
			}
			if c := e.IsCall(cotest.On(turtle).Method("Turn")); c.Ok() {
				turns++
				c.Return()
				continue
			}
			e.Drop()
		}
		co.WaitForResult()

		require.Equal(t, 4, forwards)
		require.Equal(t, 4, turns)
		turtle.AssertNumberOfCalls(t, "InkCheck", 2)
	})
}

func TestRetireHandsOverToLowerPriority(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)

		var lowSaw string
		co.NewCoroutine("low", func(lo *cotest.Coroutine) {
			lo.WatchCall()
			c := lo.WaitForCall()
			lowSaw = c.Method()
			c.Return()
		})

		co.NewCoroutine("high", func(hi *cotest.Coroutine) {
			hi.WatchCall()
			hi.WaitForCall().Return()
			hi.Retire()
		})

		cotest.LaunchVoid(co, func() { painter.DrawDot() })
		co.WaitForResult()

		// high (declared later, higher priority) consumed PenDown and
		// retired; PenUp reached low with no oversaturation.
		require.Equal(t, "PenUp", lowSaw)
	})
}

func TestWatchPerMethod(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)

		turtle.On("InkCheck").Return()
		co.WatchCall(cotest.On(turtle).Method("PenDown"))
		co.WatchCall(cotest.On(turtle).Method("PenUp"))
		co.WatchCall(cotest.On(turtle).Method("Forward"))
		co.WatchCall(cotest.On(turtle).Method("Turn"))

		cotest.LaunchVoid(co, func() { painter.DrawSquareInkChecks(5) })
		co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()
		for i := 0; i < 4; i++ {
			co.WaitForCall(cotest.On(turtle).Method("Forward", 5)).Return()
			co.WaitForCall(cotest.On(turtle).Method("Turn", 90)).Return()
		}
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		co.WaitForResult()
	})
}

func TestNamedCoroutineHandlesCalls(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)

		var order []string
		co.NewCoroutine("pen-watcher", func(w *cotest.Coroutine) {
			w.WatchCall(cotest.On(turtle).Method("PenDown"))
			order = append(order, "watcher-armed")
			w.WaitForCall().Return()
			order = append(order, "watcher-handled")
		})
		order = append(order, "test-resumed")

		co.WatchCall()
		cotest.LaunchVoid(co, func() { painter.DrawDot() })
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		co.WaitForResult()

		require.Equal(t,
			[]string{"watcher-armed", "test-resumed", "watcher-handled"},
			order)
	})
}

func TestClassicFormWithContext(t *testing.T) {
	ctx := cotest.New(t, cotest.WithoutConfig())
	defer ctx.Close()
	co := ctx.Root()

	turtle := NewMockTurtle(co)
	painter := NewPainter(turtle)
	co.WatchCall()

	cotest.LaunchVoid(co, func() { painter.DrawDot() })
	co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()
	co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
	co.WaitForResult()
}

func TestServerStyleResultEvent(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		var c calc

		l := cotest.Launch(co, func() int { return c.Triple(3) })

		e := co.NextEvent()
		require.True(t, e.Ok())
		require.False(t, e.IsCall().Ok())

		r := e.IsResult()
		require.True(t, r.Ok())
		require.True(t, r.From(l).Ok())
		e.Accept()

		require.Equal(t, 9, l.Result(r))
	})
}

func TestExitCoroutineEarly(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		reached := false
		co.NewCoroutine("early-exit", func(w *cotest.Coroutine) {
			w.Exit()
			reached = true
		})
		require.False(t, reached, "Exit must unwind the body immediately")
	})
}

func TestNullHandleChainsAreNoOps(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.GoToPointTopLeft() })

		c := co.WaitForCall()
		// A failed check yields a null handle; further checks stay null
		// and actions on it do nothing.
		miss := c.IsCall(cotest.On(turtle).Method("PenDown"))
		require.False(t, miss.Ok())
		require.False(t, miss.With(func(cotest.Args) bool { return true }).Ok())
		require.Nil(t, miss.Arg(0))
		miss.Return() // no-op

		c.Return()
		co.WaitForResult()
	})
}

func TestGetArgTyped(t *testing.T) {
	cotest.Run(t, func(co *cotest.Coroutine) {
		turtle := NewMockTurtle(co)
		painter := NewPainter(turtle)
		co.WatchCall()

		cotest.LaunchVoid(co, func() { painter.DrawSquare(7) })
		co.WaitForCall(cotest.On(turtle).Method("PenDown")).Return()

		c := co.WaitForCall(cotest.On(turtle).Method("Forward"))
		require.Equal(t, 7, cotest.GetArg[int](c, 0))
		c.Return()

		for i := 0; i < 4; i++ {
			co.WaitForCall(cotest.On(turtle).Method("Turn", 90)).Return()
			if i < 3 {
				co.WaitForCall(cotest.On(turtle).Method("Forward", 7)).Return()
			}
		}
		co.WaitForCall(cotest.On(turtle).Method("PenUp")).Return()
		co.WaitForResult()
	})
}
