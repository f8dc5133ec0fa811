package cbcmb

import "errors"

var (
	// ErrInvalidKeyLength is returned when a key is not 16, 24 or 32 bytes long.
	ErrInvalidKeyLength = errors.New("invalid AES key length")
	// ErrKeySizeMismatch is returned when a job is submitted to a manager of another key size.
	ErrKeySizeMismatch = errors.New("key size does not match manager")
	// ErrInvalidLength is returned when a job length is zero or not a multiple of the block size.
	ErrInvalidLength = errors.New("job length is not a positive multiple of the block size")
	// ErrPoolExhausted is returned when every slot of the job pool is in flight.
	ErrPoolExhausted = errors.New("job pool exhausted")
	// ErrBackend is reported for jobs the backend finished with an error.
	ErrBackend = errors.New("backend error")
	// ErrBackendInternal is reported for jobs the backend lost or could not account for.
	ErrBackendInternal = errors.New("backend internal error")
)
