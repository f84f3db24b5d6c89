package engine_test

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/macrokey/engine"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := engine.NewQueue("test", slog.Default())
	defer q.Close()

	var got []int
	for i := range 100 {
		q.Post(func() { got = append(got, i) })
	}
	q.Flush()
	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	q := engine.NewQueue("test", slog.Default())
	defer q.Close()

	ran := false
	q.Post(func() { panic("boom") })
	q.Post(func() { ran = true })
	q.Flush()
	assert.True(t, ran)
}

func TestQueueSchedule(t *testing.T) {
	q := engine.NewQueue("test", slog.Default())
	defer q.Close()

	var fired atomic.Int32
	q.Schedule(5*time.Millisecond, func() { fired.Add(1) })
	cancelled := q.Schedule(5*time.Millisecond, func() { fired.Add(10) })
	cancelled.Cancel()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, cancelled.Cancelled())

	var nilTimer *engine.Timer
	nilTimer.Cancel()
}

func TestQueueClose(t *testing.T) {
	q := engine.NewQueue("test", slog.Default())
	q.Close()
	assert.False(t, q.Post(func() {}))
	assert.False(t, q.Call(func() {}))
	q.Close()
}
