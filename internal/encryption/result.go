package encryption

import "github.com/idelchi/mbcbc/pkg/cbcmb"

// Result represents the outcome of processing a single file.
type Result struct {
	// Input file path
	Input string

	// Output file path
	Output string

	// Input and output file sizes in bytes
	InputSize  int64
	OutputSize int64

	// KeySize is the AES key size the file was processed with
	KeySize cbcmb.KeySize

	// Requests counts the cipher requests the file's data was split into
	Requests int

	// Any error that occurred during processing
	Error error
}
