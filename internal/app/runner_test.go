package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binaryOptionsBot/internal/events"
)

// queueingLoop feeds one signal into the engine and waits for cancellation.
type queueingLoop struct {
	engine *Engine
}

func (l *queueingLoop) Run(ctx context.Context) error {
	l.engine.QueueSignal(sig("loop"))
	<-ctx.Done()
	return nil
}

func TestNewRunner_MissingDependencies(t *testing.T) {
	_, err := NewRunner(nil, nil, nil, nil, 0)
	assert.Error(t, err)
}

func TestRunner_RunUntilCancelled(t *testing.T) {
	h := newEngineHarness(t, testEngineConfig())
	h.engine.now = time.Now

	r, err := NewRunner(h.engine, &queueingLoop{engine: h.engine}, h.stream, h.logger, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return r.EventCounts()[events.KindTradeExecuted] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.False(t, h.engine.Stats().Running)
}

func TestRunner_HaltedEngineFailsToStart(t *testing.T) {
	h := newEngineHarness(t, testEngineConfig())
	h.engine.EmergencyStop(context.Background(), "test")

	r, err := NewRunner(h.engine, &queueingLoop{engine: h.engine}, h.stream, h.logger, 0)
	require.NoError(t, err)
	assert.Error(t, r.Run(context.Background()))
}
