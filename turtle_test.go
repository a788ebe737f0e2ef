package cotest_test

import (
	"math"
	"math/rand"

	"github.com/msageha/cotest"
)

// Test fixtures: a turtle-graphics dependency, its cotest mock, and a
// painter driving it, the code under test in most scenarios below.

type Turtle interface {
	PenUp()
	PenDown()
	Forward(distance int)
	Turn(degrees int)
	GoTo(x, y int)
	GetX() int
	GetY() int
	InkCheck()
}

type MockTurtle struct {
	cotest.Mock
}

func NewMockTurtle(co *cotest.Coroutine) *MockTurtle {
	m := &MockTurtle{}
	m.Bind(co, m)
	return m
}

func (m *MockTurtle) PenUp() { m.Called() }

func (m *MockTurtle) PenDown() { m.Called() }

func (m *MockTurtle) Forward(distance int) { m.Called(distance) }

func (m *MockTurtle) Turn(degrees int) { m.Called(degrees) }

func (m *MockTurtle) GoTo(x, y int) { m.Called(x, y) }

func (m *MockTurtle) GetX() int { return m.Called().Int(0) }

func (m *MockTurtle) GetY() int { return m.Called().Int(0) }

func (m *MockTurtle) InkCheck() { m.Called() }

type Painter struct {
	turtle Turtle
}

func NewPainter(turtle Turtle) *Painter {
	return &Painter{turtle: turtle}
}

func (p *Painter) EmptyMethod() {}

func (p *Painter) DrawDot() {
	p.turtle.PenDown()
	p.turtle.PenUp()
}

func (p *Painter) DrawSquare(size int) {
	p.turtle.PenDown()
	for i := 0; i < 4; i++ {
		p.turtle.Forward(size)
		p.turtle.Turn(90)
	}
	p.turtle.PenUp()
}

func (p *Painter) DrawSquareInkChecks(size int) {
	p.turtle.PenDown()
	for i := 0; i < 4; i++ {
		p.turtle.Forward(size)
		p.turtle.Turn(90)
		if i%2 == 0 {
			p.turtle.InkCheck()
		}
	}
	p.turtle.PenUp()
}

func (p *Painter) CheckPosition() {
	if p.turtle.GetX() < -100 || p.turtle.GetX() > 100 ||
		p.turtle.GetY() < -100 || p.turtle.GetY() > 100 {
		p.turtle.GoTo(0, 0)
	}
}

func (p *Painter) GoToPointTopLeft() {
	p.turtle.GoTo(-1, 1)
}

func (p *Painter) GoToRandomPointOnCircle(radius int) {
	a := 2 * math.Pi * rand.Float64()
	p.turtle.GoTo(
		int(math.Round(float64(radius)*math.Sin(a))),
		int(math.Round(float64(radius)*math.Cos(a))))
}

// calc is the plain, mock-free CUT of the launch/result scenarios.
type calc struct{}

func (calc) Triple(a int) int { return a * 3 }

func (calc) TripleInPlace(a *int) { *a *= 3 }

func (calc) AddBase(a int) int { return a + 100 }
