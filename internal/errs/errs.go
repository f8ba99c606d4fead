// Package errs defines Sail's error taxonomy: a small set of typed error
// kinds that carry a human message, an optional remediation hint, and a
// structured context payload, so callers at the CLI boundary can choose an
// exit code without string-matching error text.
package errs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	// KindConfig covers bad configuration: duplicate keys, missing
	// required fields, unparseable build config.
	KindConfig Kind = "ConfigError"
	// KindDependency covers cyclic task graphs and references to missing
	// packages or tasks.
	KindDependency Kind = "DependencyError"
	// KindExecution covers a non-zero exit from a spawned command.
	KindExecution Kind = "ExecutionError"
	// KindCache covers a corrupt cache entry or an on-disk version mismatch.
	KindCache Kind = "CacheError"
	// KindIO covers filesystem failures unrelated to cache content.
	KindIO Kind = "IOError"
	// KindPolicy covers content that violates a registered policy.
	KindPolicy Kind = "PolicyFailure"
)

// exitCodes maps each Kind to the CLI's exit code, per the external
// interface contract: 0 success, 1 reported failures (execution/policy),
// 2 configuration/dependency problems, 3 internal/cache faults.
var exitCodes = map[Kind]int{
	KindConfig:     2,
	KindDependency: 2,
	KindExecution:  1,
	KindPolicy:     1,
	KindCache:      3,
	KindIO:         3,
}

// Error is the concrete error type for every taxonomy member.
type Error struct {
	Kind Kind
	// Message is the human-readable description of what went wrong.
	Message string
	// Remediation is an optional one-line suggestion for how to fix it.
	Remediation string
	// Context carries structured fields (paths, task names, package
	// names) for machine consumption - log fields, not string formatting.
	Context map[string]interface{}
	// Cause is the underlying error, if any, preserved for %w unwrapping.
	Cause error
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Remediation)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// ExitCode returns the process exit code this error should produce.
func (e *Error) ExitCode() int {
	if code, ok := exitCodes[e.Kind]; ok {
		return code
	}
	return 1
}

// New constructs a taxonomy error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a taxonomy error that wraps an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRemediation attaches a remediation hint and returns the receiver for
// chaining at the construction site.
func (e *Error) WithRemediation(hint string) *Error {
	e.Remediation = hint
	return e
}

// WithContext merges structured fields into the error's context payload.
func (e *Error) WithContext(fields map[string]interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		e.Context[k] = v
	}
	return e
}

// Config is a convenience constructor for a KindConfig error.
func Config(format string, args ...interface{}) *Error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

// Dependency is a convenience constructor for a KindDependency error.
func Dependency(format string, args ...interface{}) *Error {
	return New(KindDependency, fmt.Sprintf(format, args...))
}

// Execution is a convenience constructor for a KindExecution error.
func Execution(format string, args ...interface{}) *Error {
	return New(KindExecution, fmt.Sprintf(format, args...))
}

// Cache is a convenience constructor for a KindCache error.
func Cache(format string, args ...interface{}) *Error {
	return New(KindCache, fmt.Sprintf(format, args...))
}

// IO is a convenience constructor for a KindIO error.
func IO(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindIO, cause, fmt.Sprintf(format, args...))
}

// Append accumulates err into an aggregate, returning a *multierror.Error
// whose Error() joins every member on its own line. A nil err is a no-op,
// matching multierror.Append's own contract.
func Append(agg *multierror.Error, err error) *multierror.Error {
	return multierror.Append(agg, err)
}

// WorstExitCode walks a multierror's members and returns the highest
// (most severe) ExitCode among any *Error members, defaulting to 1 when
// the aggregate holds only untyped errors.
func WorstExitCode(agg *multierror.Error) int {
	if agg == nil || len(agg.Errors) == 0 {
		return 0
	}
	worst := 0
	for _, err := range agg.Errors {
		code := 1
		var taxErr *Error
		if ok := asError(err, &taxErr); ok {
			code = taxErr.ExitCode()
		}
		if code > worst {
			worst = code
		}
	}
	return worst
}

func asError(err error, target **Error) bool {
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
