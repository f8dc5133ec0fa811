package scheduler

import (
	"bytes"
	"context"
	"crypto/cipher"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/idelchi/mbcbc/internal/walk"
	"github.com/idelchi/mbcbc/pkg/cbcmb"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestShard returns a shard driven directly from the test goroutine. Its
// interval is long enough that the real timer never fires during a test.
func newTestShard(t *testing.T, meter *sdkmetric.MeterProvider) (*shard, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	cfg := defaultOptions()
	cfg.flushInterval = time.Hour
	cfg.now = clock.Now

	if meter != nil {
		cfg.meter = meter.Meter("test")
	}

	s := newShard(0, &cfg, newMetrics(cfg.meter), make(chan struct{}))
	t.Cleanup(func() { s.timer.Stop() })

	return s, clock
}

func testKey(t *testing.T) *cbcmb.Key {
	t.Helper()

	key, err := cbcmb.NewKey(bytes.Repeat([]byte{0x2b}, 16))
	require.NoError(t, err)

	return key
}

type result struct {
	calls int
	err   error
}

func (r *result) complete(err error) {
	r.calls++
	r.err = err
}

func TestShard_FlusherHonoursDeadline(t *testing.T) {
	s, clock := newTestShard(t, nil)
	key := testKey(t)

	var res result

	src := bytes.Repeat([]byte{1}, cbcmb.BlockSize)
	dst := make([]byte, len(src))

	req := NewRequest(key, walk.New(dst, src, make([]byte, cbcmb.BlockSize)), res.complete)
	req.CPU = 0

	s.encrypt(req)
	require.Equal(t, 1, s.pending())
	require.True(t, s.engaged)
	assert.Equal(t, uint64(0), req.Seq())

	clock.Advance(time.Minute)

	next := s.flusher(clock.Now(), false)
	assert.Equal(t, req.tag.expire, next, "nothing is due yet")
	assert.Equal(t, 0, res.calls)

	clock.Advance(time.Hour)

	next = s.flusher(clock.Now(), false)
	assert.True(t, next.IsZero())
	assert.Equal(t, 1, res.calls)
	require.NoError(t, res.err)
	assert.Equal(t, 0, s.pending())

	want := make([]byte, len(src))
	cipher.NewCBCEncrypter(key.Block(), make([]byte, cbcmb.BlockSize)).CryptBlocks(want, src)
	assert.Equal(t, want, dst)
}

func TestShard_FlusherChainsParts(t *testing.T) {
	s, clock := newTestShard(t, nil)
	key := testKey(t)

	var res result

	src := make([]byte, 3*cbcmb.BlockSize)
	for i := range src {
		src[i] = byte(i)
	}

	dst := make([]byte, len(src))
	iv := make([]byte, cbcmb.BlockSize)

	req := NewRequest(key, walk.New(dst, src, iv, walk.WithMaxChunk(cbcmb.BlockSize)), res.complete)
	req.CPU = 0

	s.encrypt(req)
	require.Equal(t, 0, res.calls)

	clock.Advance(2 * time.Hour)
	s.flusher(clock.Now(), false)

	require.Equal(t, 1, res.calls)
	require.NoError(t, res.err)

	want := make([]byte, len(src))
	cipher.NewCBCEncrypter(key.Block(), make([]byte, cbcmb.BlockSize)).CryptBlocks(want, src)
	assert.Equal(t, want, dst)
	assert.Equal(t, want[2*cbcmb.BlockSize:], iv)
}

func TestShard_FlusherWalksOldestFirst(t *testing.T) {
	s, clock := newTestShard(t, nil)

	var order []int

	for i, size := range []int{32, 16, 24} {
		key, err := cbcmb.NewKey(bytes.Repeat([]byte{byte(i)}, size))
		require.NoError(t, err)

		req := NewRequest(key, walk.New(make([]byte, 32), make([]byte, 32), make([]byte, cbcmb.BlockSize)),
			func(err error) {
				assert.NoError(t, err)
				order = append(order, i)
			})
		req.CPU = 0

		s.encrypt(req)
		clock.Advance(time.Millisecond)
	}

	require.Equal(t, 3, s.pending())

	s.flusher(clock.Now().Add(2*time.Hour), false)

	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, s.pending())
}

func TestShard_FullBatchCompletesWithoutTimer(t *testing.T) {
	s, _ := newTestShard(t, nil)
	key := testKey(t)

	var results [cbcmb.Lanes]result

	for i := range cbcmb.Lanes {
		req := NewRequest(key, walk.New(make([]byte, 16), make([]byte, 16), make([]byte, cbcmb.BlockSize)),
			results[i].complete)
		req.CPU = 0

		s.encrypt(req)
	}

	for i := range results {
		assert.Equal(t, 1, results[i].calls, "request %d", i)
		assert.NoError(t, results[i].err)
	}

	assert.Equal(t, 0, s.pending())
}

func TestShard_DrainAbandonsLostRequests(t *testing.T) {
	s, _ := newTestShard(t, nil)
	key := testKey(t)

	var res result

	req := NewRequest(key, walk.New(make([]byte, 16), make([]byte, 16), make([]byte, cbcmb.BlockSize)), res.complete)
	req.CPU = 0

	// On the work list but never handed to a manager.
	s.addList(req)
	s.drain()

	require.Equal(t, 1, res.calls)
	assert.ErrorIs(t, res.err, ErrClosed)
	assert.Equal(t, 0, s.pending())
}

func TestShard_CompleteIsExactlyOnce(t *testing.T) {
	s, _ := newTestShard(t, nil)

	var res result

	req := NewRequest(testKey(t), walk.New(nil, nil, make([]byte, cbcmb.BlockSize)), res.complete)
	req.CPU = 0

	s.encrypt(req)
	s.complete(req, nil)

	assert.Equal(t, 1, res.calls)
	assert.ErrorIs(t, res.err, ErrInvalidArgument)
}

func TestShard_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	s, clock := newTestShard(t, provider)
	key := testKey(t)

	for range 2 {
		req := NewRequest(key, walk.New(make([]byte, 32), make([]byte, 32), make([]byte, cbcmb.BlockSize),
			walk.WithMaxChunk(cbcmb.BlockSize)), func(error) {})
		req.CPU = 0

		s.encrypt(req)
	}

	clock.Advance(2 * time.Hour)
	s.flusher(clock.Now(), false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	histograms := map[string]uint64{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histograms[m.Name] += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(4), sums["mbcbc.jobs.submitted"])
	assert.Equal(t, int64(4), sums["mbcbc.jobs.completed"])
	assert.Equal(t, int64(2), sums["mbcbc.requests"])
	assert.Positive(t, sums["mbcbc.flushes"])
	assert.Equal(t, uint64(2), histograms["mbcbc.request.duration"])
}
