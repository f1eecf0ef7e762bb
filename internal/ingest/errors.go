package ingest

import (
	"context"
	"errors"
)

// Kind classifies ingestion failures so callers can choose a policy.
type Kind string

const (
	// KindInput is an unusable upload; retrying cannot help.
	KindInput Kind = "input"
	// KindDependency is a blob store or database failure.
	KindDependency Kind = "dependency"
	// KindInternal is a bug or invariant violation.
	KindInternal Kind = "internal"
	// KindTimeout is a task that exceeded its deadline.
	KindTimeout Kind = "timeout"
)

// Error is an ingestion failure tagged with its Kind. Error() is the wrapped
// error's message unchanged, so it can be recorded verbatim on the job.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error in " + e.Op
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same task could succeed on a later attempt.
func (e *Error) Retryable() bool {
	return e.Kind == KindDependency || e.Kind == KindTimeout
}

// Wrap tags err with kind unless it already carries one. Deadline errors are
// always tagged KindTimeout.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, KindInternal for untagged errors and ""
// for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Retryable reports whether err is worth retrying.
func Retryable(err error) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
