package encryption

import "errors"

var (
	// ErrInvalidPadding is returned when PKCS#7 padding is malformed.
	ErrInvalidPadding = errors.New("invalid padding")
	// ErrInvalidBlockSize is returned when encrypted data length is not aligned with the AES block size.
	ErrInvalidBlockSize = errors.New("ciphertext is not a multiple of block size")
	// ErrKeyMismatch is returned when a file was encrypted with a different key size.
	ErrKeyMismatch = errors.New("key size does not match envelope")
	// ErrAuthentication is returned when the envelope tag does not verify.
	ErrAuthentication = errors.New("authentication failed")
)
