package cbcmb

import (
	"crypto/subtle"
)

// Backend is the 8-way cipher capability a Manager drives. Implementations own
// lane allocation and report progress by setting Job.Status (and Job.IV on
// completion). A Backend may finish lanes in any order.
type Backend interface {
	// Submit places j in a free lane. When that fills the last free lane the
	// backend runs until at least one lane finishes and returns its job.
	// Jobs rejected outright are returned immediately with StatusError.
	Submit(j *Job) *Job

	// Flush runs the occupied lanes until at least one finishes and returns its
	// job, or returns nil when no lane is occupied. A returned job no longer
	// holds a lane.
	Flush() *Job

	// InUse returns the number of occupied lanes.
	InUse() int
}

// BackendFactory builds the backend for one key size.
type BackendFactory func(KeySize) Backend

// SoftBackend is a portable Backend that advances all occupied lanes in
// lock-step, block by block, using the AES block cipher of each job's key.
type SoftBackend struct {
	size  KeySize
	lanes *LaneStack
	jobs  [Lanes]*Job
	lens  [Lanes]int // remaining bytes per lane
	runs  int
}

// NewSoftBackend returns a SoftBackend for size. It satisfies BackendFactory.
func NewSoftBackend(size KeySize) Backend {
	return &SoftBackend{size: size, lanes: NewLaneStack()}
}

// Submit implements Backend.
func (b *SoftBackend) Submit(j *Job) *Job {
	if !b.accepts(j) {
		j.Status = StatusError

		return j
	}

	lane, ok := b.lanes.Alloc()
	if !ok {
		j.Status = StatusInternalError

		return j
	}

	b.jobs[lane] = j
	b.lens[lane] = j.Len - j.processed

	if b.lanes.Available() > 0 {
		return nil
	}

	return b.run()
}

// Flush implements Backend.
func (b *SoftBackend) Flush() *Job {
	if b.lanes.InUse() == 0 {
		return nil
	}

	return b.run()
}

// InUse implements Backend.
func (b *SoftBackend) InUse() int {
	return b.lanes.InUse()
}

// Runs returns how many lock-step passes the backend has executed.
func (b *SoftBackend) Runs() int {
	return b.runs
}

func (b *SoftBackend) accepts(j *Job) bool {
	switch {
	case j.Key == nil || j.Key.Size() != b.size:
		return false
	case j.Len <= 0 || j.Len%BlockSize != 0:
		return false
	case len(j.Plaintext) < j.Len || len(j.Ciphertext) < j.Len:
		return false
	default:
		return true
	}
}

// run processes the shortest remaining length on every occupied lane, then
// retires the lanes that reached zero. The lowest finished lane is returned.
func (b *SoftBackend) run() *Job {
	shortest := 0

	for lane, job := range b.jobs {
		if job != nil && (shortest == 0 || b.lens[lane] < shortest) {
			shortest = b.lens[lane]
		}
	}

	encryptLanes(&b.jobs, shortest)

	b.runs++

	var done *Job

	for lane, job := range b.jobs {
		if job == nil {
			continue
		}

		b.lens[lane] -= shortest
		if b.lens[lane] > 0 {
			continue
		}

		job.Status = StatusCompleted
		b.jobs[lane] = nil
		b.lanes.Free(lane)

		if done == nil {
			done = job
		}
	}

	return done
}

// encryptLanes CBC-encrypts n bytes on every occupied lane, one block of each
// lane per step. Each job's IV is kept as the running chaining value.
func encryptLanes(jobs *[Lanes]*Job, n int) {
	var buf [BlockSize]byte

	for off := 0; off < n; off += BlockSize {
		for _, job := range jobs {
			if job == nil {
				continue
			}

			pos := job.processed
			src := job.Plaintext[pos : pos+BlockSize]
			dst := job.Ciphertext[pos : pos+BlockSize]

			subtle.XORBytes(buf[:], src, job.IV[:])
			job.Key.Block().Encrypt(dst, buf[:])
			copy(job.IV[:], dst)

			job.Advance(BlockSize)
		}
	}
}
