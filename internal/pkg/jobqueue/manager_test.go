package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestManager_RunsTasksOnTheirTicker(t *testing.T) {
	var runs atomic.Int32
	m := NewManager(nil, Task{
		Name:     "outbox",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("logged, not fatal")
		},
	}, Task{Name: "disabled", Interval: 0, Run: func(ctx context.Context) error {
		t.Error("disabled task must not run")
		return nil
	}})

	m.Start()
	assert.True(t, m.IsRunning())
	assert.True(t, waitFor(func() bool { return runs.Load() >= 2 }, 2*time.Second))

	m.Stop()
	assert.False(t, m.IsRunning())
	after := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")

	// Restart works.
	m.Start()
	assert.True(t, waitFor(func() bool { return runs.Load() > after }, 2*time.Second))
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	assert.False(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_RunTask(t *testing.T) {
	called := false
	m := NewManager(nil, Task{Name: "sweep", Interval: time.Hour, Run: func(ctx context.Context) error {
		called = true
		return nil
	}})

	require.NoError(t, m.RunTask(context.Background(), "sweep"))
	assert.True(t, called)
	assert.Error(t, m.RunTask(context.Background(), "nope"))
}

func TestInitManager_Singleton(t *testing.T) {
	first := InitManager(nil)
	second := InitManager(nil, Task{Name: "ignored"})
	assert.Same(t, first, second)
	assert.Same(t, first, GetManager())
}
