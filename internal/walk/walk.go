// Package walk steps through the source and destination buffers of a cipher
// request, one contiguous chunk at a time.
package walk

import (
	"errors"
	"fmt"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

var (
	// ErrInvalidLength is returned when a request is not a whole number of blocks,
	// or its source and destination differ in length.
	ErrInvalidLength = errors.New("walk: invalid request length")
	// ErrInvalidIV is returned when the IV buffer is not one block long.
	ErrInvalidIV = errors.New("walk: IV must be one block")
	// ErrUnaligned is returned when a segment boundary splits a block.
	ErrUnaligned = errors.New("walk: segment boundary splits a block")
	// ErrOverrun is returned when Done reports more unprocessed bytes than were presented.
	ErrOverrun = errors.New("walk: unprocessed count exceeds chunk")
)

// Walk is the buffer cursor a request is processed through.
type Walk interface {
	// Start validates the request and positions the walk on the first chunk.
	Start() error
	// Len returns the length of the current chunk, 0 once everything is walked.
	Len() int
	// Src returns the current source chunk.
	Src() []byte
	// Dst returns the current destination chunk.
	Dst() []byte
	// IV returns the request's initial IV.
	IV() [cbcmb.BlockSize]byte
	// Done advances past the current chunk, keeping the trailing unprocessed
	// bytes for the next one.
	Done(unprocessed int) error
	// Complete ends the walk. On success iv, the chaining value after the last
	// block, is written back to the caller's IV buffer.
	Complete(iv [cbcmb.BlockSize]byte, err error)
}

// SG walks scatter-gather lists of source and destination segments.
type SG struct {
	src, dst [][]byte
	iv       []byte
	maxChunk int

	srcPos, dstPos cursor
	cur            int
	total          int
	walked         int

	completed bool
	err       error
}

type cursor struct {
	seg, off int
}

// Option configures an SG walk.
type Option func(*SG)

// WithMaxChunk caps every chunk at n bytes (rounded down to whole blocks),
// splitting the request into several parts.
func WithMaxChunk(n int) Option {
	return func(w *SG) {
		w.maxChunk = n - n%cbcmb.BlockSize
	}
}

// New returns a walk over a single contiguous source and destination.
func New(dst, src, iv []byte, opts ...Option) *SG {
	return NewSG([][]byte{dst}, [][]byte{src}, iv, opts...)
}

// NewSG returns a walk over the given segment lists. dst may alias src.
func NewSG(dst, src [][]byte, iv []byte, opts ...Option) *SG {
	w := &SG{src: src, dst: dst, iv: iv}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start implements Walk.
func (w *SG) Start() error {
	if len(w.iv) != cbcmb.BlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(w.iv))
	}

	srcLen, dstLen := size(w.src), size(w.dst)
	if srcLen != dstLen {
		return fmt.Errorf("%w: source %d, destination %d", ErrInvalidLength, srcLen, dstLen)
	}

	if srcLen%cbcmb.BlockSize != 0 {
		return fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidLength, srcLen, cbcmb.BlockSize)
	}

	w.total = srcLen
	w.srcPos = advance(w.src, cursor{}, 0)
	w.dstPos = advance(w.dst, cursor{}, 0)

	return w.step()
}

// Len implements Walk.
func (w *SG) Len() int {
	return w.cur
}

// Src implements Walk.
func (w *SG) Src() []byte {
	return w.chunk(w.src, w.srcPos)
}

// Dst implements Walk.
func (w *SG) Dst() []byte {
	return w.chunk(w.dst, w.dstPos)
}

// IV implements Walk.
func (w *SG) IV() [cbcmb.BlockSize]byte {
	var iv [cbcmb.BlockSize]byte

	copy(iv[:], w.iv)

	return iv
}

// Done implements Walk.
func (w *SG) Done(unprocessed int) error {
	if unprocessed < 0 || unprocessed > w.cur {
		return fmt.Errorf("%w: %d of %d", ErrOverrun, unprocessed, w.cur)
	}

	n := w.cur - unprocessed

	w.srcPos = advance(w.src, w.srcPos, n)
	w.dstPos = advance(w.dst, w.dstPos, n)
	w.walked += n

	return w.step()
}

// Complete implements Walk.
func (w *SG) Complete(iv [cbcmb.BlockSize]byte, err error) {
	w.completed = true
	w.err = err

	if err == nil {
		copy(w.iv, iv[:])
	}
}

// Walked returns the number of bytes processed so far.
func (w *SG) Walked() int {
	return w.walked
}

// Completed reports whether Complete was called, and with which error.
func (w *SG) Completed() (bool, error) {
	return w.completed, w.err
}

// step sizes the next chunk: the largest run contiguous in both source and
// destination, capped by maxChunk.
func (w *SG) step() error {
	w.cur = 0

	left := w.total - w.walked
	if left == 0 {
		return nil
	}

	n := min(left, remaining(w.src, w.srcPos), remaining(w.dst, w.dstPos))
	if w.maxChunk > 0 {
		n = min(n, w.maxChunk)
	}

	if n < cbcmb.BlockSize {
		return fmt.Errorf("%w: %d bytes at offset %d", ErrUnaligned, n, w.walked)
	}

	w.cur = n

	return nil
}

func (w *SG) chunk(segs [][]byte, pos cursor) []byte {
	if w.cur == 0 {
		return nil
	}

	return segs[pos.seg][pos.off : pos.off+w.cur]
}

func size(segs [][]byte) int {
	var n int

	for _, s := range segs {
		n += len(s)
	}

	return n
}

// remaining returns the bytes left in the segment at pos, skipping empty segments.
func remaining(segs [][]byte, pos cursor) int {
	if pos.seg >= len(segs) {
		return 0
	}

	return len(segs[pos.seg]) - pos.off
}

func advance(segs [][]byte, pos cursor, n int) cursor {
	pos.off += n

	for pos.seg < len(segs) && pos.off >= len(segs[pos.seg]) {
		pos.off -= len(segs[pos.seg])
		pos.seg++
	}

	return pos
}
