package scheduler

import (
	"context"
	"crypto/cipher"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/idelchi/mbcbc/internal/walk"
	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

// Engine owns one shard per configured CPU and routes requests to them.
type Engine struct {
	shards []*shard
	opts   options
	next   atomic.Uint64

	group    errgroup.Group
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// New starts an engine with a running goroutine per shard.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultOptions()

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		opts:    cfg,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	m := newMetrics(cfg.meter)

	for id := range cfg.cpus {
		s := newShard(id, &cfg, m, e.stopped)
		e.shards = append(e.shards, s)

		e.group.Go(func() error {
			s.run()

			return nil
		})
	}

	go func() {
		_ = e.group.Wait()
		close(e.done)
	}()

	cfg.logger.Info().
		Int("cpus", cfg.cpus).
		Dur("flush_interval", cfg.flushInterval).
		Int("max_jobs", cfg.maxJobs).
		Bool("hardware_aes", cbcmb.HardwareAES()).
		Bool("hardware_wide", cbcmb.HardwareWide()).
		Msg("engine started")

	return e, nil
}

// CPUs returns the number of shards.
func (e *Engine) CPUs() int {
	return len(e.shards)
}

// Submit routes req to the shard named by req.CPU, assigning one round-robin
// when it is negative. The result is delivered through req.Complete.
func (e *Engine) Submit(req *Request) error {
	if err := check(req); err != nil {
		return err
	}

	if req.CPU < 0 {
		req.CPU = int((e.next.Add(1) - 1) % uint64(len(e.shards)))
	}

	return e.SubmitOn(req.CPU, req)
}

// SubmitOn hands req to the given shard, whatever req.CPU says. A shard that
// receives a request tagged for another CPU completes it with ErrInvalidArgument.
func (e *Engine) SubmitOn(cpu int, req *Request) error {
	if err := check(req); err != nil {
		return err
	}

	if cpu < 0 || cpu >= len(e.shards) {
		return fmt.Errorf("%w: no cpu %d", ErrInvalidArgument, cpu)
	}

	select {
	case <-e.stopped:
		return ErrClosed
	default:
	}

	select {
	case e.shards[cpu].reqCh <- req:
		return nil
	case <-e.stopped:
		return ErrClosed
	}
}

func check(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", ErrInvalidArgument)
	case req.Key == nil:
		return fmt.Errorf("%w: request without key", ErrInvalidArgument)
	case !req.Key.Valid():
		return fmt.Errorf("%w: key is not an expanded AES key", ErrInvalidArgument)
	case req.Walk == nil:
		return fmt.Errorf("%w: request without walk", ErrInvalidArgument)
	case req.Complete == nil:
		return fmt.Errorf("%w: request without completion", ErrInvalidArgument)
	}

	return nil
}

// Encrypt encrypts src into dst in CBC mode and waits for the result. On
// success iv holds the last ciphertext block.
func (e *Engine) Encrypt(ctx context.Context, key *cbcmb.Key, dst, src, iv []byte) error {
	return e.encrypt(ctx, key, walk.New(dst, src, iv))
}

// EncryptChunked is Encrypt with the request split into parts of at most chunk
// bytes, each chained to the previous one through its IV.
func (e *Engine) EncryptChunked(ctx context.Context, key *cbcmb.Key, dst, src, iv []byte, chunk int) error {
	return e.encrypt(ctx, key, walk.New(dst, src, iv, walk.WithMaxChunk(chunk)))
}

func (e *Engine) encrypt(ctx context.Context, key *cbcmb.Key, w walk.Walk) error {
	result := make(chan error, 1)

	req := NewRequest(key, w, func(err error) { result <- err })
	if err := e.Submit(req); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for request: %w", ctx.Err())
	}
}

// Decrypt decrypts src into dst in CBC mode on the calling goroutine.
func (e *Engine) Decrypt(key *cbcmb.Key, dst, src, iv []byte) error {
	return Decrypt(key, walk.New(dst, src, iv))
}

// Decrypt runs a CBC decryption over w synchronously. Decryption does not
// go through the multi-buffer managers.
func Decrypt(key *cbcmb.Key, w walk.Walk) error {
	if !key.Valid() {
		return fmt.Errorf("%w: key is not an expanded AES key", ErrInvalidArgument)
	}

	iv, err := decrypt(key, w)
	w.Complete(iv, err)

	return err
}

func decrypt(key *cbcmb.Key, w walk.Walk) (iv [cbcmb.BlockSize]byte, err error) {
	if err := w.Start(); err != nil {
		return iv, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if w.Len() == 0 {
		return iv, fmt.Errorf("%w: empty request", ErrInvalidArgument)
	}

	iv = w.IV()

	for w.Len() > 0 {
		// A chunk ending inside a block leaves the tail for the walk to
		// report as unaligned.
		n := w.Len() &^ (cbcmb.BlockSize - 1)
		src, dst := w.Src()[:n], w.Dst()[:n]

		// src may be overwritten in place: keep the chaining block first.
		var last [cbcmb.BlockSize]byte

		copy(last[:], src[n-cbcmb.BlockSize:])

		cipher.NewCBCDecrypter(key.Block(), iv[:]).CryptBlocks(dst, src)
		iv = last

		if err := w.Done(w.Len() - n); err != nil {
			return iv, fmt.Errorf("%w: %w", ErrIO, err)
		}
	}

	return iv, nil
}

// Pending returns the number of requests the shards are holding.
func (e *Engine) Pending() int {
	var n int

	for _, s := range e.shards {
		n += s.pending()
	}

	return n
}

// Shutdown stops accepting requests, flushes everything the shards hold and
// waits for the shard goroutines to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stopped)
	})

	select {
	case <-e.done:
		e.opts.logger.Info().Msg("engine stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutting down engine: %w", ctx.Err())
	}
}

// Close shuts the engine down without a deadline.
func (e *Engine) Close() error {
	return e.Shutdown(context.Background())
}
