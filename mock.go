package cotest

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/msageha/cotest/internal/engine"
)

// Mock is embedded in user mock types in place of testify's mock.Mock.
// Calls from the CUT are first offered to the watch registry; whatever no
// coroutine claims falls through to the embedded testify mock, so
// ordinary m.On(...) expectations keep working underneath the coroutines
// and testify's unexpected-call policy applies when nothing matches at
// all.
//
//	type MockTurtle struct {
//		cotest.Mock
//	}
//
//	func (m *MockTurtle) Forward(distance int) {
//		m.Called(distance)
//	}
//
//	func (m *MockTurtle) GetX() int {
//		return m.Called().Int(0)
//	}
//
//	func NewMockTurtle(co *cotest.Coroutine) *MockTurtle {
//		m := &MockTurtle{}
//		m.Bind(co, m)
//		return m
//	}
type Mock struct {
	mock.Mock

	ct   *Context
	self any
	sigs map[string]engine.Signature
}

// Bind attaches the mock to a test context and reflects the concrete
// type's method set into signature descriptors, which type-check Return
// values at runtime (GetArg checks the captured value's own dynamic type
// instead). self must be the outermost
// mock value, the one the CUT and the Specs refer to. The mock's
// end-of-test expectation check is registered with the context.
func (m *Mock) Bind(co *Coroutine, self any) {
	ctx := co.ctx
	m.ct = ctx
	m.self = self
	m.sigs = engine.SignaturesOf(self, isFrameworkMethod)
	m.Mock.Test(ctx.t)
	ctx.eng.AddVerifier(func() {
		m.Mock.AssertExpectations(ctx.t)
	})
}

// Call routes one mock call by explicit method name. Calls issued inside
// a launch coroutine enter dispatch; anything else goes straight to the
// embedded testify mock.
func (m *Mock) Call(method string, args ...any) mock.Arguments {
	if m.ct == nil {
		return m.Mock.MethodCalled(method, args...)
	}
	sig := m.sigs[method]
	rets, host := m.ct.eng.IssueCall(m.self, method, sig, args)
	if host {
		return m.Mock.MethodCalled(method, args...)
	}
	return mock.Arguments(rets)
}

// Called is the testify-style entry point: the method name is recovered
// from the caller, so mock method bodies read exactly like testify's.
func (m *Mock) Called(args ...any) mock.Arguments {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		panic("cotest: could not identify the calling method")
	}
	name := runtime.FuncForPC(pc).Name()
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return m.Call(name, args...)
}

// frameworkMethods is the promoted method set of Mock itself; these never
// become mock signatures.
var frameworkMethods = func() map[string]bool {
	skip := make(map[string]bool)
	t := reflect.TypeOf(&Mock{})
	for i := 0; i < t.NumMethod(); i++ {
		skip[t.Method(i).Name] = true
	}
	return skip
}()

func isFrameworkMethod(name string) bool {
	return frameworkMethods[name]
}
