package datasource

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a datasource resolution failure.
type ErrorKind string

const (
	// ErrorKindNotFound indicates the resolved name has no matching
	// configuration in the store.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindMalformedPlugin indicates the loaded module does not expose
	// the instantiation capability.
	ErrorKindMalformedPlugin ErrorKind = "malformed_plugin"

	// ErrorKindLoaderFailure indicates the plugin loader itself failed, or
	// the plugin's constructor returned an error.
	ErrorKindLoaderFailure ErrorKind = "loader_failure"
)

// Error is a classified datasource resolution error. No Error is fatal to
// the process and none is cached: every failure is local to a single Get and
// the next call for the same name retries.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Name is the resolved datasource name the failure relates to.
	Name string

	// Module is the plugin module reference, when the failure happened at or
	// after the load step.
	Module string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := ""
	switch e.Kind {
	case ErrorKindNotFound:
		msg = fmt.Sprintf("datasource %q not found", e.Name)
	case ErrorKindMalformedPlugin:
		msg = fmt.Sprintf("plugin module %q for datasource %q does not implement the client factory", e.Module, e.Name)
	case ErrorKindLoaderFailure:
		msg = fmt.Sprintf("failed to load datasource %q from module %q", e.Name, e.Module)
	default:
		msg = fmt.Sprintf("datasource %q: %s", e.Name, e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewNotFoundError reports a name with no matching configuration.
func NewNotFoundError(name string) *Error {
	return &Error{Kind: ErrorKindNotFound, Name: name}
}

// NewMalformedPluginError reports a loaded module that lacks the client
// factory capability.
func NewMalformedPluginError(name, module string) *Error {
	return &Error{Kind: ErrorKindMalformedPlugin, Name: name, Module: module}
}

// NewLoaderFailureError reports a loader or constructor failure.
func NewLoaderFailureError(name, module string, err error) *Error {
	return &Error{Kind: ErrorKindLoaderFailure, Name: name, Module: module, Err: err}
}

// IsNotFound reports whether err is a not-found resolution error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrorKindNotFound
	}
	return false
}

// IsMalformedPlugin reports whether err is a malformed-plugin error.
func IsMalformedPlugin(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrorKindMalformedPlugin
	}
	return false
}

// IsLoaderFailure reports whether err is a loader failure.
func IsLoaderFailure(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrorKindLoaderFailure
	}
	return false
}
