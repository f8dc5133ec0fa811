package scheduler

import (
	"container/list"
	"time"

	"github.com/idelchi/mbcbc/internal/walk"
	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

type flag uint8

const (
	flagEncrypt flag = 1 << iota
	flagStart
	flagDone
)

// tag records when a request arrived on its shard and when it must be flushed.
type tag struct {
	arrival time.Time
	expire  time.Time
	seq     uint64
}

// Request is one asynchronous encryption request.
type Request struct {
	// Key is the expanded key; its size selects the manager.
	Key *cbcmb.Key

	// Walk yields the request's buffers part by part.
	Walk walk.Walk

	// CPU is the shard the request belongs to. Engine.Submit assigns one
	// round-robin when it is negative.
	CPU int

	// Complete receives the final status exactly once: nil, or an error
	// matching ErrIO or ErrInvalidArgument. It runs on the shard goroutine and
	// must not block.
	Complete func(err error)

	// Progress, if set, receives ErrInProgress when the request is parked
	// waiting for a later completion. It runs on the shard goroutine.
	Progress func(err error)

	flags    flag
	err      error
	seqIV    [cbcmb.BlockSize]byte
	tag      tag
	elem     *list.Element
	finished bool
}

// NewRequest returns a request for key over w, completed through complete.
func NewRequest(key *cbcmb.Key, w walk.Walk, complete func(error)) *Request {
	return &Request{Key: key, Walk: w, CPU: -1, Complete: complete}
}

// Seq returns the per-shard arrival sequence number.
func (r *Request) Seq() uint64 {
	return r.tag.seq
}

func (r *Request) done() bool {
	return r.flags&flagDone != 0
}

func (r *Request) fail(err error) *Request {
	r.flags = flagDone
	r.err = err

	return r
}
