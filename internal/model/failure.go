package model

// FailureKind classifies the failures the engine can report.
type FailureKind string

const (
	// FailureOversaturated: a mock call matched a watch whose owner already
	// exited without retiring.
	FailureOversaturated FailureKind = "oversaturated_coroutine"
	// FailureUnsatisfied: a coroutine was still waiting (and never marked
	// satisfied) when the test ended.
	FailureUnsatisfied FailureKind = "unsatisfied_coroutine"
	// FailureUncollected: a launch session's result was never collected by
	// its owning coroutine.
	FailureUncollected FailureKind = "uncollected_launch"
	// FailureDeadlock: no coroutine was runnable while at least one was
	// still blocked.
	FailureDeadlock FailureKind = "deadlock"
	// FailureServerRule: a coroutine holding an undisposed mock call issued
	// another blocking operation.
	FailureServerRule FailureKind = "server_rule_violation"
	// FailureForeignCollect: a coroutine tried to collect a launch it does
	// not own.
	FailureForeignCollect FailureKind = "foreign_collection"
	// FailureTypedReturn: Return was called with values that do not fit the
	// mocked method's signature.
	FailureTypedReturn FailureKind = "typed_return_mismatch"
	// FailureBadHandle: an operation was attempted through a null or
	// already-disposed handle.
	FailureBadHandle FailureKind = "bad_handle"
)

// programmingFailures lists the kinds that are mis-uses of the API; every
// other kind is an expectation failure. Whether a failure aborts the
// offending coroutine is decided where it is reported.
var programmingFailures = map[FailureKind]bool{
	FailureServerRule:     true,
	FailureForeignCollect: true,
	FailureTypedReturn:    true,
	FailureBadHandle:      true,
}

// IsProgrammingFailure reports whether k is a mis-use of the API rather
// than an expectation failure.
func IsProgrammingFailure(k FailureKind) bool {
	return programmingFailures[k]
}

// Failure is one recorded test failure.
type Failure struct {
	Kind      FailureKind
	Coroutine string
	Detail    string
}

func (f Failure) String() string {
	if f.Coroutine == "" {
		return string(f.Kind) + ": " + f.Detail
	}
	return string(f.Kind) + " [" + f.Coroutine + "]: " + f.Detail
}
