// Package errors defines the tagged error kinds of spec §7. Each kind
// carries enough context for the orchestrator to decide whether a failure
// is fatal to a single Task/record or must propagate to the HTTP caller,
// without callers needing to inspect error strings.
//
// Adapted from the teacher's pkg/errors as a Kind/Component/Operation/Cause
// shape with eight kinds. KindControlPlane is defined but not raised: the
// control plane answers its failures with a plain HTTP 500.
package errors

import "fmt"

// Kind tags which stage of the pipeline produced an error.
type Kind string

const (
	KindParserInit      Kind = "ParserInitError"
	KindParserRun        Kind = "ParserRunError"
	KindTypeInference    Kind = "TypeInferenceError"
	KindTypeCast         Kind = "TypeCastError"
	KindSinkTransient    Kind = "SinkError(transient)"
	KindSinkPermanent    Kind = "SinkError(permanent)"
	KindStats            Kind = "StatsError"
	KindControlPlane     Kind = "ControlPlaneError"
)

// Error is a tagged, wrapped error carrying the component and operation
// that raised it, per spec §7's taxonomy.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s.%s]: %v", e.Kind, e.Component, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s[%s.%s]", e.Kind, e.Component, e.Operation)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a tagged Error.
func New(kind Kind, component, operation string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Cause: cause}
}

// IsRetryable reports whether the pipeline should retry the operation that
// produced err rather than drop it, per spec §7's propagation policy.
func IsRetryable(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Kind == KindSinkTransient
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target, a local stand-in for errors.As so callers of this
// package do not also need to import the standard library errors package
// just to unwrap a Kind.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
