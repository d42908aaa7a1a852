package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRunExecutesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "@every 1h", zap.NewNop(), func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunBadSpec(t *testing.T) {
	err := Run(context.Background(), "not a spec", zap.NewNop(), func(context.Context) error { return nil })
	assert.Error(t, err)
}
