package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return New("test", maxFailures, resetTimeout, logger)
}

var errUpstream = errors.New("upstream down")

func failing(ctx context.Context) error { return errUpstream }
func succeeding(ctx context.Context) error { return nil }

func TestExecute_PassesThroughWhileClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())

	err := cb.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_OpensAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, IsOpenError(err))
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	assert.Error(t, cb.Execute(context.Background(), failing))
	assert.Error(t, cb.Execute(context.Background(), failing))
	require.NoError(t, cb.Execute(context.Background(), succeeding))

	// The counter restarted, so two more failures stay below the threshold.
	assert.Error(t, cb.Execute(context.Background(), failing))
	assert.Error(t, cb.Execute(context.Background(), failing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_ProbeAfterResetTimeout(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)

	assert.Error(t, cb.Execute(context.Background(), failing))
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, IsOpenError(cb.Execute(context.Background(), failing)))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A successful probe closes the breaker.
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_FailedProbeReopens(t *testing.T) {
	cb := newTestBreaker(1, 20*time.Millisecond)

	assert.Error(t, cb.Execute(context.Background(), failing))
	time.Sleep(30 * time.Millisecond)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, IsOpenError(cb.Execute(context.Background(), failing)))
}

func TestExecute_ConcurrentCalls(t *testing.T) {
	cb := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(context.Background(), succeeding)
			_ = cb.Execute(context.Background(), failing)
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestIsOpenError(t *testing.T) {
	assert.True(t, IsOpenError(&OpenError{Name: "x"}))
	assert.False(t, IsOpenError(errUpstream))
	assert.False(t, IsOpenError(nil))
	assert.Contains(t, (&OpenError{Name: "chat-poll"}).Error(), "chat-poll")
}
