package cbcmb_test

import (
	"crypto/cipher"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// tickBackend finishes the job in lane i after delay(i) ticks, encrypting it
// in one go with the standard library CBC mode.
type tickBackend struct {
	lanes *cbcmb.LaneStack
	jobs  [cbcmb.Lanes]*cbcmb.Job
	left  [cbcmb.Lanes]int
	delay func(lane int) int
	ticks int
}

func newTickBackend(delay func(lane int) int) *tickBackend {
	return &tickBackend{lanes: cbcmb.NewLaneStack(), delay: delay}
}

// reverseDelay finishes higher lanes first.
func reverseDelay(lane int) int {
	return cbcmb.Lanes - lane
}

func (b *tickBackend) Submit(j *cbcmb.Job) *cbcmb.Job {
	lane, ok := b.lanes.Alloc()
	if !ok {
		j.Status = cbcmb.StatusInternalError

		return j
	}

	b.jobs[lane] = j
	b.left[lane] = b.delay(lane)

	if b.lanes.Available() > 0 {
		return nil
	}

	return b.tick()
}

func (b *tickBackend) Flush() *cbcmb.Job {
	if b.lanes.InUse() == 0 {
		return nil
	}

	return b.tick()
}

func (b *tickBackend) InUse() int {
	return b.lanes.InUse()
}

func (b *tickBackend) tick() *cbcmb.Job {
	for {
		b.ticks++

		var done *cbcmb.Job

		for lane, job := range b.jobs {
			if job == nil {
				continue
			}

			b.left[lane]--
			if b.left[lane] > 0 {
				continue
			}

			cipher.NewCBCEncrypter(job.Key.Block(), job.IV[:]).
				CryptBlocks(job.Ciphertext[:job.Len], job.Plaintext[:job.Len])
			copy(job.IV[:], job.Ciphertext[job.Len-cbcmb.BlockSize:job.Len])
			job.Advance(job.Len)
			job.Status = cbcmb.StatusCompleted

			b.jobs[lane] = nil
			b.lanes.Free(lane)

			if done == nil {
				done = job
			}
		}

		if done != nil {
			return done
		}
	}
}

// failingBackend rejects every job.
type failingBackend struct {
	status cbcmb.Status
}

func (b failingBackend) Submit(j *cbcmb.Job) *cbcmb.Job {
	j.Status = b.status

	return j
}

func (failingBackend) Flush() *cbcmb.Job { return nil }

func (failingBackend) InUse() int { return 0 }

// lostBackend accepts jobs and never finishes them.
type lostBackend struct{}

func (lostBackend) Submit(*cbcmb.Job) *cbcmb.Job { return nil }

func (lostBackend) Flush() *cbcmb.Job { return nil }

func (lostBackend) InUse() int { return 0 }

// stuckBackend keeps the jobs it is given in their lanes and answers every
// flush with an unrelated finished job.
type stuckBackend struct {
	held []*cbcmb.Job
}

func (b *stuckBackend) Submit(j *cbcmb.Job) *cbcmb.Job {
	b.held = append(b.held, j)

	return nil
}

func (b *stuckBackend) Flush() *cbcmb.Job {
	return &cbcmb.Job{Status: cbcmb.StatusCompleted}
}

func (b *stuckBackend) InUse() int { return len(b.held) }
