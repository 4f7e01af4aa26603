// Package errkind classifies core errors into the taxonomy described by the
// project data engine's error handling design: callers that need to branch
// on failure category (a route layer mapping to HTTP status codes, a CLI
// choosing an exit code) switch on Kind instead of string-matching messages.
package errkind

import (
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// Kind is one of the ungrouped error categories from the error handling
// design: InvalidInput, NotFound, Conflict, Policy, Schema, Engine, IO,
// Concurrency, SchemaVersion.
type Kind string

const (
	InvalidInput  Kind = "InvalidInput"
	NotFound      Kind = "NotFound"
	Conflict      Kind = "Conflict"
	Policy        Kind = "Policy"
	Schema        Kind = "Schema"
	Engine        Kind = "Engine"
	IO            Kind = "IO"
	Concurrency   Kind = "Concurrency"
	SchemaVersion Kind = "SchemaVersion"
)

// CoreError is the single error type every component in the engine
// produces. It carries a Kind for programmatic dispatch plus the wrapped
// cause chain built with crossplane-runtime/pkg/errors, so errors.Cause and
// errors.Is keep working across package boundaries.
type CoreError struct {
	kind Kind
	code string
	err  error
}

// New builds a CoreError with a specific code (e.g. "CardNotFound",
// "IllegalTransition") and a single-line human message.
func New(kind Kind, code, message string) *CoreError {
	return &CoreError{kind: kind, code: code, err: errors.New(message)}
}

// Wrap attaches a Kind and code to an existing error, preserving its cause
// chain the way crossplane-runtime/pkg/errors.Wrap does.
func Wrap(kind Kind, code string, err error, message string) *CoreError {
	if err == nil {
		return nil
	}
	return &CoreError{kind: kind, code: code, err: errors.Wrap(err, message)}
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.err.Error())
}

// Unwrap exposes the wrapped cause chain to errors.Is/errors.As.
func (e *CoreError) Unwrap() error { return e.err }

// Kind reports the error's taxonomy bucket.
func (e *CoreError) Kind() Kind { return e.kind }

// Code reports the specific named error (CardNotFound, ItemAlreadyExists...).
func (e *CoreError) Code() string { return e.code }

// Message returns the single-line human message without the code prefix.
func (e *CoreError) Message() string { return e.err.Error() }

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError,
// returning ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.kind, true
	}
	return "", false
}

// CodeOf extracts the specific error code from err, if any.
func CodeOf(err error) (string, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.code, true
	}
	return "", false
}

// Named error codes used across the engine (§7).
const (
	CodeCardNotFound          = "CardNotFound"
	CodeResourceNotFound      = "ResourceNotFound"
	CodeAttachmentNotFound    = "AttachmentNotFound"
	CodeModuleNotImported     = "ModuleNotImported"
	CodeTemplateNotFound      = "TemplateNotFound"
	CodeCardExists            = "CardExists"
	CodeResourceExists        = "ResourceExists"
	CodeAttachmentExists      = "AttachmentExists"
	CodeModuleAlreadyImported = "ModuleAlreadyImported"
	CodePrefixCollision       = "PrefixCollision"
	CodeItemAlreadyExists     = "ItemAlreadyExists"
	CodeItemNotFound          = "ItemNotFound"
	CodeInvalidTargetIndex    = "InvalidTargetIndex"
	CodeReadOnlyModule        = "ReadOnlyModule"
	CodeIllegalTransition     = "IllegalTransition"
	CodeCycleForbidden        = "CycleForbidden"
	CodeOperationDenied       = "OperationDenied"
	CodeSchemaViolation       = "SchemaViolation"
	CodeInvalidParameterSchema = "InvalidParameterSchema"
	CodeSolverFailure         = "SolverFailure"
	CodeNoAnswer              = "NoAnswer"
	CodeFileNotReadable       = "FileNotReadable"
	CodeFileNotWritable       = "FileNotWritable"
	CodeWatcherFailed         = "WatcherFailed"
	CodeCancelled             = "Cancelled"
	CodeTimeout               = "Timeout"
	CodeIncompatibleVersion   = "IncompatibleVersion"
	CodeMigrationFailed       = "MigrationFailed"
	CodeDowngradeRefused      = "DowngradeRefused"
	CodeVersionSkipped        = "VersionSkipped"
	CodeInvalidResourceName   = "InvalidResourceName"
	CodeResourceInUse         = "ResourceInUse"
	CodeInvalidInput          = "InvalidInput"
)
