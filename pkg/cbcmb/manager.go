package cbcmb

import (
	"fmt"
)

// Manager schedules the jobs of one key size onto a Backend and returns them
// in submission order, whatever order the backend finishes them in.
type Manager struct {
	size    KeySize
	pool    *Pool
	backend Backend
	seq     uint64
}

// NewManager returns a Manager for size backed by backend, with a job pool of
// maxJobs slots (DefaultMaxJobs if maxJobs is 0).
func NewManager(size KeySize, backend Backend, maxJobs int) *Manager {
	if !size.Valid() {
		panic(fmt.Sprintf("cbcmb: invalid key size %d", int(size)))
	}

	if backend == nil {
		panic("cbcmb: nil backend")
	}

	if maxJobs == 0 {
		maxJobs = DefaultMaxJobs
	}

	return &Manager{size: size, pool: NewPool(maxJobs), backend: backend}
}

// KeySize returns the key size served by m.
func (m *Manager) KeySize() KeySize {
	return m.size
}

// InFlight returns the number of jobs submitted but not yet returned.
func (m *Manager) InFlight() int {
	return m.pool.Len()
}

// LanesInUse returns the number of backend lanes currently occupied.
func (m *Manager) LanesInUse() int {
	return m.backend.InUse()
}

// Capacity returns the job pool capacity.
func (m *Manager) Capacity() int {
	return m.pool.Cap()
}

// Submit claims the next pool slot for spec and hands it to the backend.
// It returns the oldest job if that job has finished as a result, or nil if
// nothing is ready yet. A nil result is not an error: the job stays in flight
// until a later Submit, Flush or NextCompleted returns it.
func (m *Manager) Submit(spec JobSpec) (*CompletedJob, error) {
	if spec.Key == nil || spec.Key.Size() != m.size {
		return nil, fmt.Errorf("%w: want %s", ErrKeySizeMismatch, m.size)
	}

	if spec.Len <= 0 || spec.Len%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, spec.Len)
	}

	job, err := m.pool.Push()
	if err != nil {
		return nil, fmt.Errorf("submitting job: %w", err)
	}

	job.reset(spec, m.seq)
	m.seq++

	m.backend.Submit(job)

	if done := m.NextCompleted(); done != nil {
		return done, nil
	}

	if m.pool.Full() {
		// The window cannot grow: make room by finishing the oldest job.
		return m.Flush(), nil
	}

	return nil, nil //nolint:nilnil
}

// Flush forces the backend to work until the oldest job in flight has
// finished, and returns it. If the backend goes idle first the oldest job is
// returned with StatusInternalError. If the backend stops finishing jobs while
// still holding lanes, the oldest job stays in flight and Flush returns nil,
// so its slot is never reused under a lane. Otherwise nil means nothing is in
// flight.
func (m *Manager) Flush() *CompletedJob {
	oldest, ok := m.pool.Oldest()
	if !ok {
		return nil
	}

	// Every job in flight either holds a lane or is already terminal, so the
	// oldest one finishes within one backend run per occupied lane.
	for range Lanes + 1 {
		if oldest.Status.Terminal() {
			break
		}

		if m.backend.Flush() == nil {
			break
		}
	}

	if !oldest.Status.Terminal() {
		if m.backend.InUse() > 0 {
			return nil
		}

		oldest.Status = StatusInternalError
	}

	return m.NextCompleted()
}

// NextCompleted returns the oldest job in flight if it has finished, without
// running the backend. It returns nil when the oldest job is still being
// processed or nothing is in flight.
func (m *Manager) NextCompleted() *CompletedJob {
	oldest, ok := m.pool.Oldest()
	if !ok || !oldest.Status.Terminal() {
		return nil
	}

	done := complete(oldest)
	m.pool.AdvanceOldest()

	return done
}

// ManagerSet holds one Manager per key size.
type ManagerSet struct {
	managers [len(KeySizes)]*Manager
}

// NewManagerSet builds a Manager for every key size, with backends from factory
// (NewSoftBackend if nil).
func NewManagerSet(factory BackendFactory, maxJobs int) *ManagerSet {
	if factory == nil {
		factory = NewSoftBackend
	}

	var set ManagerSet

	for i, size := range KeySizes {
		set.managers[i] = NewManager(size, factory(size), maxJobs)
	}

	return &set
}

// For returns the Manager for size, or nil if size is not supported.
func (s *ManagerSet) For(size KeySize) *Manager {
	i := size.Index()
	if i < 0 {
		return nil
	}

	return s.managers[i]
}

// InFlight returns the number of jobs in flight across all key sizes.
func (s *ManagerSet) InFlight() int {
	var n int

	for _, m := range s.managers {
		n += m.InFlight()
	}

	return n
}

// All returns the managers in key size order.
func (s *ManagerSet) All() []*Manager {
	return s.managers[:]
}
