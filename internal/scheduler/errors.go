package scheduler

import "errors"

var (
	// ErrInProgress signals that a request was accepted and will complete later.
	// It is passed to Request.Progress and is never a final status.
	ErrInProgress = errors.New("operation in progress")
	// ErrIO is the final status of requests whose buffers or jobs failed.
	ErrIO = errors.New("i/o error")
	// ErrInvalidArgument is the final status of malformed or misrouted requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClosed is returned once the engine is shutting down.
	ErrClosed = errors.New("engine closed")
)
