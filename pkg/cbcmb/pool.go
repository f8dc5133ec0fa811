package cbcmb

import "fmt"

// DefaultMaxJobs is the default job pool capacity.
const DefaultMaxJobs = 128

// Pool is a fixed-capacity circular array of job slots, claimed and released
// in FIFO order. The window [head, head+len) holds the jobs in flight.
type Pool struct {
	slots []Job
	head  int
	len   int
}

// NewPool allocates a pool of capacity slots. It panics if capacity < Lanes.
func NewPool(capacity int) *Pool {
	if capacity < Lanes {
		panic(fmt.Sprintf("cbcmb: pool capacity %d below lane count %d", capacity, Lanes))
	}

	return &Pool{slots: make([]Job, capacity)}
}

// Len returns the number of jobs in flight.
func (p *Pool) Len() int {
	return p.len
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return len(p.slots)
}

// Full reports whether every slot is in flight.
func (p *Pool) Full() bool {
	return p.len == len(p.slots)
}

// NextSlot returns the slot that the next Push claims, without claiming it.
// The result is nil when the pool is full.
func (p *Pool) NextSlot() *Job {
	if p.Full() {
		return nil
	}

	return &p.slots[p.index(p.len)]
}

// Push claims the slot returned by NextSlot.
func (p *Pool) Push() (*Job, error) {
	if p.Full() {
		return nil, ErrPoolExhausted
	}

	job := &p.slots[p.index(p.len)]
	p.len++

	return job, nil
}

// Oldest returns the earliest job in flight.
func (p *Pool) Oldest() (*Job, bool) {
	if p.len == 0 {
		return nil, false
	}

	return &p.slots[p.head], true
}

// AdvanceOldest releases the earliest job. It is a no-op on an empty pool.
func (p *Pool) AdvanceOldest() {
	if p.len == 0 {
		return
	}

	p.slots[p.head] = Job{}
	p.head = p.index(1)
	p.len--
}

// Each calls fn for every job in flight, oldest first.
func (p *Pool) Each(fn func(*Job)) {
	for i := range p.len {
		fn(&p.slots[p.index(i)])
	}
}

func (p *Pool) index(offset int) int {
	return (p.head + offset) % len(p.slots)
}
