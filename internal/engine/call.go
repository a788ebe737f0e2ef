package engine

import (
	"fmt"
	"reflect"

	"github.com/msageha/cotest/internal/model"
)

// Signature describes one mocked method at runtime: the reflected func
// type (receiver excluded) that typed argument extraction and typed
// returns are checked against.
type Signature struct {
	Method string
	Type   reflect.Type
}

// Valid reports whether the signature carries type information.
func (s Signature) Valid() bool {
	return s.Type != nil && s.Type.Kind() == reflect.Func
}

// CheckReturns verifies vals against the signature's results. A void
// method accepts only an empty vals.
func (s Signature) CheckReturns(vals []any) error {
	if !s.Valid() {
		return nil
	}
	if len(vals) != s.Type.NumOut() {
		return fmt.Errorf("%s returns %d values, got %d", s.Method, s.Type.NumOut(), len(vals))
	}
	for i, v := range vals {
		out := s.Type.Out(i)
		if v == nil {
			switch out.Kind() {
			case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
				reflect.Pointer, reflect.Slice:
				continue
			}
			return fmt.Errorf("%s result %d: nil is not assignable to %s", s.Method, i, out)
		}
		if !reflect.TypeOf(v).AssignableTo(out) {
			return fmt.Errorf("%s result %d: %T is not assignable to %s", s.Method, i, reflect.TypeOf(v), out)
		}
	}
	return nil
}

// ArgType returns the type of argument i, or nil when unknown.
func (s Signature) ArgType(i int) reflect.Type {
	if !s.Valid() || i < 0 || i >= s.Type.NumIn() {
		return nil
	}
	return s.Type.In(i)
}

// SignaturesOf reflects the method set of a concrete mock, skipping the
// names for which skip returns true (the embedded host mock's own
// methods). This is the runtime realization of compile-time signature
// capture: watches and waits that name an object and method recover full
// type information from here.
func SignaturesOf(self any, skip func(name string) bool) map[string]Signature {
	sigs := make(map[string]Signature)
	t := reflect.TypeOf(self)
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if skip != nil && skip(m.Name) {
			continue
		}
		// strip the receiver
		in := make([]reflect.Type, 0, m.Type.NumIn()-1)
		for j := 1; j < m.Type.NumIn(); j++ {
			in = append(in, m.Type.In(j))
		}
		out := make([]reflect.Type, 0, m.Type.NumOut())
		for j := 0; j < m.Type.NumOut(); j++ {
			out = append(out, m.Type.Out(j))
		}
		sigs[m.Name] = Signature{
			Method: m.Name,
			Type:   reflect.FuncOf(in, out, m.Type.IsVariadic()),
		}
	}
	return sigs
}

// MockCall is one mock call owned by the scheduler from the moment the CUT
// issues it until it is returned or falls through to the host library.
type MockCall struct {
	id     string
	seq    uint64
	recv   any
	method string
	sig    Signature
	args   []any
	rets   []any

	status model.CallStatus
	issuer *Launch

	// offeredTo is the coroutine currently offered the call; holder is the
	// coroutine that took it out of the queue and has not yet disposed it.
	offeredTo *Coroutine
	holder    *Coroutine

	// walkCursor is the registry priority below which dispatch resumes
	// after a drop.
	walkCursor int
}

func (m *MockCall) ID() string { return m.id }

func (m *MockCall) Method() string { return m.method }

func (m *MockCall) Recv() any { return m.recv }

func (m *MockCall) Args() []any { return m.args }

func (m *MockCall) Arg(i int) any {
	if i < 0 || i >= len(m.args) {
		return nil
	}
	return m.args[i]
}

func (m *MockCall) Sig() Signature { return m.sig }

func (m *MockCall) Status() model.CallStatus { return m.status }

// Issuer returns the launch session the call originated from.
func (m *MockCall) Issuer() *Launch { return m.issuer }

// RecvName names the receiver for diagnostics.
func (m *MockCall) RecvName() string {
	if m.recv == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", m.recv)
}

func (m *MockCall) describe() string {
	return fmt.Sprintf("%s.%s/%d", m.RecvName(), m.method, len(m.args))
}
