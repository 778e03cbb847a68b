package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/juris/ai"
	"github.com/poiesic/juris/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type step struct {
	vec []float32
	err error
}

// scripted returns an embedder that replays steps in order.
func scripted(steps ...step) *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	i := 0
	m.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		s := steps[i]
		i++
		return s.vec, s.err
	}
	return m
}

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func embErr(kind ai.ErrorKind) error {
	return &ai.EmbeddingError{Kind: kind, Provider: "mock", Err: errors.New(kind.String())}
}

func newController(t *testing.T, e ai.Embedder, opts ...Option) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c, err := New(e, append([]Option{WithSleeper(rec.sleep)}, opts...)...)
	require.NoError(t, err)
	return c, rec
}

func vec() []float32 { return mock.Vector("x", 768) }

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = New(mock.NewMockEmbedder(), WithMaxRetries(0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	c, err := New(mock.NewMockEmbedder())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, c.MaxRetries())
}

func TestGetEmbedding_FirstAttempt(t *testing.T) {
	m := scripted(step{vec: vec()})
	c, rec := newController(t, m)

	got, err := c.GetEmbedding(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, got, 768)
	assert.Equal(t, 1, m.CallCount())
	assert.Empty(t, rec.delays)
}

func TestGetEmbedding_RateLimitBackoff(t *testing.T) {
	m := scripted(
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
		step{vec: vec()},
	)
	c, rec := newController(t, m)

	got, err := c.GetEmbedding(context.Background(), "texto")
	require.NoError(t, err)
	assert.Len(t, got, 768)
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestGetEmbedding_RateLimitOnFinalAttempt(t *testing.T) {
	m := scripted(
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
	)
	c, rec := newController(t, m)

	_, err := c.GetEmbedding(context.Background(), "texto")
	require.Error(t, err)
	assert.Equal(t, ai.KindRateLimited, ai.KindOf(err))
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestGetEmbedding_TransientDelay(t *testing.T) {
	m := scripted(
		step{err: embErr(ai.KindTransient)},
		step{err: errors.New("connection reset")},
		step{err: embErr(ai.KindTransient)},
	)
	c, rec := newController(t, m)

	_, err := c.GetEmbedding(context.Background(), "texto")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrEmbeddingService)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.delays)
}

func TestGetEmbedding_FatalStopsAtOnce(t *testing.T) {
	m := scripted(step{err: embErr(ai.KindFatal)}, step{vec: vec()})
	c, rec := newController(t, m)

	_, err := c.GetEmbedding(context.Background(), "texto")
	require.Error(t, err)
	assert.Equal(t, ai.KindFatal, ai.KindOf(err))
	assert.Equal(t, 1, m.CallCount())
	assert.Empty(t, rec.delays)
}

func TestGetEmbedding_EmptyResults(t *testing.T) {
	m := scripted(step{}, step{vec: []float32{}}, step{})
	c, rec := newController(t, m)

	_, err := c.GetEmbedding(context.Background(), "texto")
	assert.ErrorIs(t, err, ErrNoEmbedding)
	assert.Equal(t, 3, m.CallCount())
	assert.Empty(t, rec.delays, "empty results retry without waiting")
}

func TestGetEmbedding_EmptyThenSuccess(t *testing.T) {
	m := scripted(step{}, step{vec: vec()})
	c, _ := newController(t, m)

	got, err := c.GetEmbedding(context.Background(), "texto")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestGetEmbedding_MaxRetries(t *testing.T) {
	m := scripted(
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
		step{err: embErr(ai.KindRateLimited)},
		step{vec: vec()},
	)
	c, rec := newController(t, m, WithMaxRetries(5), WithRateLimitStep(time.Millisecond))

	_, err := c.GetEmbedding(context.Background(), "texto")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 4 * time.Millisecond,
	}, rec.delays)
}

func TestGetEmbedding_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := scripted(step{err: embErr(ai.KindTransient)}, step{vec: vec()})
	c, err := New(m, WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	_, err = c.GetEmbedding(ctx, "texto")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.CallCount())
}

func TestGetEmbedding_RealSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	m := scripted(step{err: embErr(ai.KindRateLimited)}, step{vec: vec()})
	c, err := New(m, WithRateLimitStep(time.Hour))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.GetEmbedding(ctx, "texto")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetEmbedding_Limiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	m := mock.NewMockEmbedder()
	c, _ := newController(t, m, WithLimiter(limiter))

	_, err := c.GetEmbedding(context.Background(), "uno")
	require.NoError(t, err)

	// The burst is spent; the next call cannot get a token before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.GetEmbedding(ctx, "dos")
	require.Error(t, err)
	assert.Equal(t, 1, m.CallCount())
}
