// Package queueerr defines the error kinds the core distinguishes (§7),
// as sentinel values usable with errors.Is/errors.As.
package queueerr

import "errors"

var (
	// StoreBusy is returned when a write-exclusive transaction could not be
	// acquired within the busy timeout.
	StoreBusy = errors.New("store busy")

	// StoreFatal indicates corruption or an I/O failure in the store.
	StoreFatal = errors.New("store fatal error")

	// InvalidTransition is returned when an operation is attempted from a
	// state that does not admit it (e.g. dlq_retry on a non-dead job).
	InvalidTransition = errors.New("invalid state transition")

	// ExecutorTimeout indicates the executed command exceeded its run_timeout.
	ExecutorTimeout = errors.New("executor timeout")

	// ExecutorError indicates any other failure while invoking the command.
	ExecutorError = errors.New("executor error")

	// BadInput indicates malformed caller input (JSON, flags, filters).
	BadInput = errors.New("bad input")

	// NotFound indicates the referenced job does not exist.
	NotFound = errors.New("job not found")
)
