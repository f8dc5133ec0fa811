package encryption

import (
	"sync"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// defaultBufferSize is the size of one engine request. It is a whole number of blocks.
const defaultBufferSize = 32 * 1024

// bufferPool provides reusable request buffers. A buffer holds a full chunk plus
// one block of padding.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, defaultBufferSize+cbcmb.BlockSize)

		return &buf
	},
}
