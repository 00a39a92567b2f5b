// Package errors implements the error taxonomy the pipeline uses to recover
// locally from every failure class: each kind carries enough context to be
// logged (kind, affected path, short explanation) without a stack trace at
// default verbosity, and only RewriteUnsafe and Cancelled ever affect the
// embedding command's exit status.
package errors

import (
	"fmt"
	"time"
)

// ErrorType tags which of the taxonomy's kinds an error belongs to.
type ErrorType string

const (
	ErrorTypeSourceIO         ErrorType = "source_io"
	ErrorTypeParseHard        ErrorType = "parse_hard"
	ErrorTypeParseSoft        ErrorType = "parse_soft"
	ErrorTypeBackendFailure   ErrorType = "backend_failure"
	ErrorTypeAnalysisTimeout  ErrorType = "analysis_timeout"
	ErrorTypeRewriteUnsafe    ErrorType = "rewrite_unsafe"
	ErrorTypeCacheCorrupt     ErrorType = "cache_corrupt"
	ErrorTypeCancelled        ErrorType = "cancelled"
)

// SourceIOError reports that a file could not be read or written. The caller
// skips the affected file and continues.
type SourceIOError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewSourceIOError(op, path string, err error) *SourceIOError {
	return &SourceIOError{Operation: op, Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *SourceIOError) Error() string {
	return fmt.Sprintf("%s: %s failed for %s: %v", ErrorTypeSourceIO, e.Operation, e.Path, e.Underlying)
}

func (e *SourceIOError) Unwrap() error { return e.Underlying }

// ParseHardError reports that a file could not be parsed enough to emit even
// a Module construct. The file contributes no constructs and is never
// rewritten.
type ParseHardError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

func NewParseHardError(path string, err error) *ParseHardError {
	return &ParseHardError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *ParseHardError) Error() string {
	return fmt.Sprintf("%s: cannot parse %s: %v", ErrorTypeParseHard, e.Path, e.Underlying)
}

func (e *ParseHardError) Unwrap() error { return e.Underlying }

// ParseSoftWarning reports a recoverable syntax error; partial constructs are
// still used.
type ParseSoftWarning struct {
	Path      string
	Line      int
	Column    int
	Detail    string
	Timestamp time.Time
}

func NewParseSoftWarning(path string, line, column int, detail string) *ParseSoftWarning {
	return &ParseSoftWarning{Path: path, Line: line, Column: column, Detail: detail, Timestamp: time.Now()}
}

func (e *ParseSoftWarning) Error() string {
	return fmt.Sprintf("%s: recoverable syntax error at %s:%d:%d: %s", ErrorTypeParseSoft, e.Path, e.Line, e.Column, e.Detail)
}

// BackendFailureWarning reports that one backend errored or timed out; it is
// treated as an empty result from that backend only.
type BackendFailureWarning struct {
	Backend    string
	Underlying error
	Timestamp  time.Time
}

func NewBackendFailureWarning(backend string, err error) *BackendFailureWarning {
	return &BackendFailureWarning{Backend: backend, Underlying: err, Timestamp: time.Now()}
}

func (e *BackendFailureWarning) Error() string {
	return fmt.Sprintf("%s: backend %s failed: %v", ErrorTypeBackendFailure, e.Backend, e.Underlying)
}

func (e *BackendFailureWarning) Unwrap() error { return e.Underlying }

// AnalysisTimeoutWarning reports that a single construct's analysis exceeded
// its per-task timeout; the construct receives an empty ReferenceSet.
type AnalysisTimeoutWarning struct {
	ConstructFQN string
	Timeout      time.Duration
	Timestamp    time.Time
}

func NewAnalysisTimeoutWarning(fqn string, timeout time.Duration) *AnalysisTimeoutWarning {
	return &AnalysisTimeoutWarning{ConstructFQN: fqn, Timeout: timeout, Timestamp: time.Now()}
}

func (e *AnalysisTimeoutWarning) Error() string {
	return fmt.Sprintf("%s: analysis of %s exceeded %s", ErrorTypeAnalysisTimeout, e.ConstructFQN, e.Timeout)
}

// RewriteUnsafeError reports that an edited file failed the safety gate: the
// rewrite was discarded and the original bytes were kept. This is one of the
// two kinds that flips the pipeline's exit status.
type RewriteUnsafeError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

func NewRewriteUnsafeError(path string, err error) *RewriteUnsafeError {
	return &RewriteUnsafeError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *RewriteUnsafeError) Error() string {
	return fmt.Sprintf("%s: rewrite of %s rolled back: %v", ErrorTypeRewriteUnsafe, e.Path, e.Underlying)
}

func (e *RewriteUnsafeError) Unwrap() error { return e.Underlying }

// CacheCorruptWarning reports a cache entry that failed to deserialize; it is
// treated as a miss and the bad entry is replaced on write.
type CacheCorruptWarning struct {
	Key        string
	Underlying error
	Timestamp  time.Time
}

func NewCacheCorruptWarning(key string, err error) *CacheCorruptWarning {
	return &CacheCorruptWarning{Key: key, Underlying: err, Timestamp: time.Now()}
}

func (e *CacheCorruptWarning) Error() string {
	return fmt.Sprintf("%s: cache entry %s failed to deserialize: %v", ErrorTypeCacheCorrupt, e.Key, e.Underlying)
}

func (e *CacheCorruptWarning) Unwrap() error { return e.Underlying }

// CancelledError reports pipeline-level cancellation: no writes were emitted
// and a partial summary was returned. This is the other kind that flips the
// pipeline's exit status.
type CancelledError struct {
	Reason    string
	Timestamp time.Time
}

func NewCancelledError(reason string) *CancelledError {
	return &CancelledError{Reason: reason, Timestamp: time.Now()}
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: %s", ErrorTypeCancelled, e.Reason)
}

// MultiError aggregates independent, already-recovered errors encountered
// across a batch (e.g. per-file rollbacks collected by the pipeline).
type MultiError struct {
	Errors []error
}

// NewMultiError filters out nil errors and returns the aggregate, or nil if
// nothing remains.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error { return e.Errors }
