package cotest

import "github.com/msageha/cotest/internal/engine"

// Args is the captured argument tuple of a mock call.
type Args []any

// Get returns argument i, or nil when out of range.
func (a Args) Get(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Spec selects mock calls: an object, optionally a method, optionally
// argument matchers in the host library's matcher language. It serves
// both as the exterior filter of a watch and the interior filter of a
// wait.
type Spec struct {
	recv     any
	method   string
	matchers []any
	with     func(args Args) bool
}

// On starts a Spec for calls on the given mock object.
func On(obj any) *Spec {
	return &Spec{recv: obj}
}

// Method narrows the Spec to one method. With no matchers any arguments
// are selected; otherwise each matcher is applied positionally with
// testify semantics (values, mock.Anything, mock.MatchedBy, ...).
func (s *Spec) Method(name string, matchers ...any) *Spec {
	s.method = name
	s.matchers = matchers
	return s
}

// With adds a predicate over the captured argument tuple.
func (s *Spec) With(pred func(args Args) bool) *Spec {
	s.with = pred
	return s
}

// oneSpec normalizes an optional Spec argument.
func oneSpec(specs []*Spec) *Spec {
	switch len(specs) {
	case 0:
		return &Spec{}
	case 1:
		if specs[0] == nil {
			return &Spec{}
		}
		return specs[0]
	default:
		panic("cotest: at most one Spec may be supplied")
	}
}

func (s *Spec) toEngine() engine.CallSpec {
	cs := engine.CallSpec{
		Recv:     s.recv,
		Method:   s.method,
		Matchers: s.matchers,
	}
	if s.with != nil {
		pred := s.with
		cs.With = func(args []any) bool { return pred(Args(args)) }
	}
	return cs
}
