package jobmon

import "reflect"

// panicMessage is the fixed diagnostic reported when a work function panics
// instead of returning.
const panicMessage = "The job panicked"

// ReturnStatus is the classified outcome of a work function: whether the
// job succeeded and an optional final status message. An empty Message
// means no final message is published.
//
// Work functions normally return plain Go values and let Classify map them.
// Returning a ReturnStatus directly gives full control over both fields.
type ReturnStatus struct {
	Success bool
	Message string
}

// Outcomer lets arbitrary types define their own classification. Classify
// consults it before any built-in rule, so custom result types can plug in
// without touching the table below.
type Outcomer interface {
	JobOutcome() ReturnStatus
}

// exitStatus matches process-exit-status-like values such as
// *os.ProcessState: a success predicate plus a textual representation.
type exitStatus interface {
	Success() bool
	String() string
}

// Classify converts a work function's return value into a ReturnStatus.
//
// The mapping, applied structurally:
//
//	nil                    success, no message
//	ReturnStatus           itself
//	Outcomer               whatever JobOutcome returns
//	bool                   the boolean, no message
//	string                 success, the text as final message
//	error                  failure, err.Error() as final message
//	exit-status-like       Success(); String() as message on failure only
//	non-nil pointer        classifies as its pointee
//	nil pointer            failure, no message
//	anything else          success, no message
//
// Failure values only contribute a textual representation; they are never
// classified further. Callers report job results through this mapping, so
// the rows above are a compatibility contract: new source types may be
// added (via Outcomer) but existing mappings do not change.
func Classify(v any) ReturnStatus {
	switch x := v.(type) {
	case nil:
		return ReturnStatus{Success: true}
	case ReturnStatus:
		return x
	case Outcomer:
		return x.JobOutcome()
	case bool:
		return ReturnStatus{Success: x}
	case string:
		return ReturnStatus{Success: true, Message: x}
	case error:
		return ReturnStatus{Success: false, Message: x.Error()}
	case exitStatus:
		if x.Success() {
			return ReturnStatus{Success: true}
		}
		return ReturnStatus{Success: false, Message: x.String()}
	}

	// Optional-like values: a nil pointer is an absent result, a non-nil
	// pointer classifies as whatever it points at.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ReturnStatus{Success: false}
		}
		return Classify(rv.Elem().Interface())
	}

	return ReturnStatus{Success: true}
}

// Result carries the value-or-error pair of a fallible computation so the
// success arm can be classified recursively: a Result[string] publishes its
// value as the final status message, a Result[bool] maps to its boolean,
// and so on.
type Result[T any] struct {
	Value T
	Err   error
}

// JobOutcome implements Outcomer.
func (r Result[T]) JobOutcome() ReturnStatus {
	if r.Err != nil {
		return ReturnStatus{Success: false, Message: r.Err.Error()}
	}
	return Classify(r.Value)
}

// Try wraps a (value, error) pair for returning straight out of a work
// function:
//
//	return jobmon.Try(buildReport(ctx))
func Try[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Err: err}
}
