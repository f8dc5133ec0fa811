package scheduler

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// shard is the per-CPU scheduler state. Everything except the work list is
// owned by the shard goroutine.
type shard struct {
	id       int
	managers *cbcmb.ManagerSet
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
	metrics  *metrics

	// work list of requests held by this shard, oldest first
	workMu  sync.Mutex
	work    *list.List
	nextSeq uint64

	timer   *time.Timer
	engaged bool

	reqCh   chan *Request
	flushCh chan struct{}
	// closed by the engine on shutdown
	stopped chan struct{}
}

func newShard(id int, cfg *options, m *metrics, stopped chan struct{}) *shard {
	s := &shard{
		id:       id,
		managers: cbcmb.NewManagerSet(cfg.backend, cfg.maxJobs),
		interval: cfg.flushInterval,
		now:      cfg.now,
		log:      cfg.logger.With().Int("cpu", id).Logger(),
		metrics:  m,
		work:     list.New(),
		reqCh:    make(chan *Request),
		flushCh:  make(chan struct{}, 1),
		stopped:  stopped,
	}

	s.timer = time.AfterFunc(time.Hour, s.fire)
	s.timer.Stop()

	return s
}

// run is the shard goroutine. On stop it flushes everything still in flight.
func (s *shard) run() {
	defer s.timer.Stop()

	for {
		select {
		case req := <-s.reqCh:
			s.encrypt(req)

		case <-s.flushCh:
			s.engaged = false
			s.flusher(s.now(), false)

		case <-s.stopped:
			s.drain()

			return
		}
	}
}

// fire runs on the timer goroutine and hands the flush to the shard goroutine.
func (s *shard) fire() {
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

func (s *shard) armFlusher(delay time.Duration) {
	if s.engaged {
		return
	}

	s.engaged = true
	s.timer.Reset(delay)
}

// encrypt accepts a new request: it is put on the work list, its first part is
// submitted and any completions that result are carried through.
func (s *shard) encrypt(req *Request) {
	if req.CPU != s.id {
		// Not on the work list yet: report and drop.
		s.log.Error().Int("tag_cpu", req.CPU).Msg("cpu clash")

		err := fmt.Errorf("%w: request for cpu %d ran on cpu %d", ErrInvalidArgument, req.CPU, s.id)

		req.finished = true
		req.Walk.Complete(req.Walk.IV(), err)
		req.Complete(err)

		return
	}

	req.flags = flagEncrypt | flagStart
	req.err = nil

	s.addList(req)

	if err := req.Walk.Start(); err != nil {
		s.complete(req, fmt.Errorf("%w: %w", ErrIO, err))

		return
	}

	if req.Walk.Len() == 0 {
		s.complete(req, fmt.Errorf("%w: empty request", ErrInvalidArgument))

		return
	}

	ret := s.submit(s.managers.For(req.Key.Size()), req)
	if ret != nil {
		err := ret.err
		if err == nil {
			ret, err = s.finish(ret, false)
		}

		if ret != nil {
			s.completeJob(ret, err)
		}
	}

	if !req.finished {
		s.notify(req, ErrInProgress)
	}
}

// submit hands the current part of req to mgr. It returns the request whose
// job finished as a result, or nil.
func (s *shard) submit(mgr *cbcmb.Manager, req *Request) *Request {
	var iv [cbcmb.BlockSize]byte

	if req.flags&flagStart != 0 {
		iv = req.Walk.IV()
		req.flags &^= flagStart
	} else {
		iv = req.seqIV
	}

	req.err = nil

	done, err := mgr.Submit(cbcmb.JobSpec{
		Plaintext:  req.Walk.Src(),
		Ciphertext: req.Walk.Dst(),
		IV:         iv,
		Key:        req.Key,
		Len:        req.Walk.Len() &^ (cbcmb.BlockSize - 1),
		UserData:   req,
	})
	if err != nil {
		return req.fail(fmt.Errorf("%w: %w", ErrIO, err))
	}

	s.metrics.jobSubmitted(mgr.KeySize())

	return s.processStatus(mgr, done)
}

// flush forces mgr to finish its oldest job and returns that job's request.
func (s *shard) flush(mgr *cbcmb.Manager, trigger string) *Request {
	done := mgr.Flush()
	if done == nil {
		return nil
	}

	s.metrics.flushed(trigger)

	return s.processStatus(mgr, done)
}

// processStatus records the outcome of a returned job on its request and
// returns the request if there is anything to carry on with.
func (s *shard) processStatus(mgr *cbcmb.Manager, done *cbcmb.CompletedJob) *Request {
	if done == nil {
		return nil
	}

	req, _ := done.UserData.(*Request)

	if done.Status == cbcmb.StatusBeingProcessed {
		// No data yet: the request waits for a later completion.
		req.err = ErrInProgress

		return nil
	}

	s.metrics.jobCompleted(mgr.KeySize(), done.Status)

	switch done.Status {
	case cbcmb.StatusCompleted:
		req.err = nil
		req.seqIV = done.IV
	default:
		req.fail(fmt.Errorf("%w: %w", ErrIO, done.Err()))
	}

	return req
}

// finish carries a request whose part just completed on to its next part,
// until it is done or its resubmission yields no completion. Completions of
// other requests reported on the way are carried through in the same loop.
// It returns the request that ended the loop, or nil if nothing is done yet.
func (s *shard) finish(req *Request, flush bool) (*Request, error) {
	mgr := s.managers.For(req.Key.Size())

	for !req.done() {
		if err := req.Walk.Done(req.Walk.Len() % cbcmb.BlockSize); err != nil {
			req.fail(fmt.Errorf("%w: %w", ErrIO, err))

			return req, req.err
		}

		if req.Walk.Len() == 0 {
			req.flags = flagDone

			return req, nil
		}

		next := s.submit(mgr, req)
		if next == nil && flush {
			next = s.flush(mgr, triggerChain)
		}

		if next == nil {
			return nil, nil
		}

		req = next

		if req.err != nil {
			return req, req.err
		}
	}

	return req, req.err
}

// completeJob completes req, then drains every job its manager has finished
// in order, completing each request that reaches its end.
func (s *shard) completeJob(req *Request, err error) {
	s.complete(req, err)

	mgr := s.managers.For(req.Key.Size())

	for {
		next := s.processStatus(mgr, mgr.NextCompleted())
		if next == nil {
			return
		}

		ret := next.err
		if ret == nil {
			next, ret = s.finish(next, false)
		}

		if next != nil {
			s.complete(next, ret)
		}
	}
}

// complete ends the walk, takes req off the work list and reports its status.
func (s *shard) complete(req *Request, err error) {
	if req.finished {
		s.log.Warn().Uint64("seq", req.tag.seq).Msg("request completed twice")

		return
	}

	req.finished = true
	req.flags = flagDone

	req.Walk.Complete(req.seqIV, err)
	s.removeList(req)

	elapsed := s.now().Sub(req.tag.arrival)
	s.metrics.requestFinished(err, elapsed)

	s.log.Debug().
		Uint64("seq", req.tag.seq).
		Stringer("key_size", req.Key.Size()).
		Dur("elapsed", elapsed).
		Err(err).
		Msg("request complete")

	req.Complete(err)
}

func (s *shard) notify(req *Request, err error) {
	if req.Progress != nil {
		req.Progress(err)
	}
}

// addList tags req and appends it to the work list, arming the flusher.
func (s *shard) addList(req *Request) {
	now := s.now()

	req.tag = tag{arrival: now, expire: now.Add(s.interval), seq: s.nextSeq}
	s.nextSeq++

	s.workMu.Lock()
	req.elem = s.work.PushBack(req)
	s.workMu.Unlock()

	s.armFlusher(s.interval)
}

func (s *shard) removeList(req *Request) {
	s.workMu.Lock()
	defer s.workMu.Unlock()

	if req.elem != nil {
		s.work.Remove(req.elem)
		req.elem = nil
	}
}

func (s *shard) front() *Request {
	s.workMu.Lock()
	defer s.workMu.Unlock()

	if e := s.work.Front(); e != nil {
		return e.Value.(*Request) //nolint:forcetypeassert
	}

	return nil
}

func (s *shard) pending() int {
	s.workMu.Lock()
	defer s.workMu.Unlock()

	return s.work.Len()
}

// flusher flushes on behalf of every request whose deadline has passed (all of
// them if all is set), then re-arms for the oldest remaining deadline. It
// returns that deadline, or the zero time when the work list is empty.
func (s *shard) flusher(now time.Time, all bool) time.Time {
	trigger := triggerTimer
	if all {
		trigger = triggerShutdown
	}

	for {
		req := s.front()
		if req == nil || (!all && now.Before(req.tag.expire)) {
			break
		}

		ret := s.flush(s.managers.For(req.Key.Size()), trigger)
		if ret == nil {
			s.log.Error().Uint64("seq", req.tag.seq).Msg("flusher: nothing got flushed")

			break
		}

		ret, _ = s.finish(ret, true)
		if ret != nil {
			s.completeJob(ret, ret.err)
		}
	}

	req := s.front()
	if req == nil {
		return time.Time{}
	}

	if !all {
		s.armFlusher(max(0, req.tag.expire.Sub(now)))
	}

	return req.tag.expire
}

// drain pushes every request still held through the backend. Requests that
// cannot make progress are completed with ErrClosed.
func (s *shard) drain() {
	s.flusher(s.now(), true)

	for req := s.front(); req != nil; req = s.front() {
		s.complete(req, fmt.Errorf("%w: request abandoned on shutdown", ErrClosed))
	}
}
