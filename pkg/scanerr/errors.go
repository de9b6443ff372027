// Package scanerr defines the error taxonomy used across scanforge, adapted
// from the teacher's pkg/scanexec/errors.go coded-error pattern but remapped
// onto spec.md §7: SpecError, ResolveError, PrivilegeError, ResourceError,
// ProbeError, CancelledError.
package scanerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy's fatal/non-fatal categories.
var (
	// ErrNoTargets indicates target expansion produced zero addresses.
	ErrNoTargets = errors.New("no scan targets specified")

	// ErrPrivilegeRequired indicates a raw-socket scan kind was requested
	// without the privilege to open raw sockets.
	ErrPrivilegeRequired = errors.New("raw-socket scan requires elevated privilege")

	// ErrResourceBudget indicates parallel_hosts * per_host_parallelism
	// would exceed the process's file-descriptor budget.
	ErrResourceBudget = errors.New("requested concurrency exceeds file descriptor budget")

	// ErrCancelled indicates the scan operation was cancelled before
	// completion; any partial result must be discarded per spec.md §4.3.
	ErrCancelled = errors.New("scan cancelled")
)

// Code identifies which branch of the spec.md §7 taxonomy an error belongs
// to, for CLI exit-code mapping and renderer diagnostics.
type Code string

const (
	CodeSpec         Code = "SPEC_ERROR"
	CodeResolve      Code = "RESOLVE_ERROR"
	CodePrivilege    Code = "PRIVILEGE_ERROR"
	CodeResource     Code = "RESOURCE_ERROR"
	CodeProbe        Code = "PROBE_ERROR"
	CodeCancelled    Code = "CANCELLED_ERROR"
	CodeUnclassified Code = ""
)

// codedError wraps an error with an explicit taxonomy code, the same shape
// as the teacher's codedError in pkg/scanexec/errors.go.
type codedError struct {
	error
	code Code
}

func (e *codedError) Unwrap() error { return e.error }

func (e *codedError) ErrCode() Code { return e.code }

// WithCode wraps err with an explicit taxonomy code. A nil err returns nil.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// SpecError wraps a malformed target/port specification error (fatal,
// surfaced to the invoker).
func SpecError(format string, args ...interface{}) error {
	return WithCode(fmt.Errorf(format, args...), CodeSpec)
}

// ResolveError wraps a hostname-resolution failure for one target token.
// Non-fatal: target expansion skips that token and continues.
func ResolveError(host string, cause error) error {
	return WithCode(fmt.Errorf("resolve %q: %w", host, cause), CodeResolve)
}

// PrivilegeError wraps ErrPrivilegeRequired with scan-kind context.
func PrivilegeError(scanKind string) error {
	return WithCode(fmt.Errorf("%s scan: %w", scanKind, ErrPrivilegeRequired), CodePrivilege)
}

// ResourceError wraps ErrResourceBudget with the offending concurrency product.
func ResourceError(parallelHosts, perHostParallelism, fdLimit int) error {
	return WithCode(fmt.Errorf("parallel_hosts(%d) * parallelism(%d) = %d exceeds fd limit %d: %w",
		parallelHosts, perHostParallelism, parallelHosts*perHostParallelism, fdLimit, ErrResourceBudget), CodeResource)
}

// ProbeError wraps a transient single-probe failure (no route, unreachable
// at the socket layer). Confined to that probe's PortResult; never
// propagated out of the scan call, and elided from adaptive telemetry.
func ProbeError(cause error) error {
	return WithCode(cause, CodeProbe)
}

// CancelledError wraps ErrCancelled, signalling the multi-host result must
// be discarded in full.
func CancelledError() error {
	return WithCode(ErrCancelled, CodeCancelled)
}

// GetCode resolves err into its taxonomy Code, walking wrapped errors and
// falling back to matching against the package sentinels.
func GetCode(err error) Code {
	if err == nil {
		return CodeUnclassified
	}

	var coded interface{ ErrCode() Code }
	if errors.As(err, &coded) {
		return coded.ErrCode()
	}

	switch {
	case errors.Is(err, ErrNoTargets):
		return CodeSpec
	case errors.Is(err, ErrPrivilegeRequired):
		return CodePrivilege
	case errors.Is(err, ErrResourceBudget):
		return CodeResource
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	}
	return CodeUnclassified
}

// ExitCode maps a taxonomy Code to the process exit codes spec.md §6 defines:
// 0 completed, 1 invalid input, 2 privilege denied.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case CodeSpec:
		return 1
	case CodePrivilege:
		return 2
	default:
		return 1
	}
}

// Fatal reports whether err's category ends the scan call without a result:
// SpecError, PrivilegeError and ResourceError abort it before any probe is
// launched, and CancelledError discards the whole result; as opposed to being
// confined to a single probe result (ProbeError) or a single target token
// (ResolveError).
func Fatal(err error) bool {
	switch GetCode(err) {
	case CodeSpec, CodePrivilege, CodeResource, CodeCancelled:
		return true
	default:
		return false
	}
}
