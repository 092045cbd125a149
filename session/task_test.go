package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTask_FiresAfterDelay(t *testing.T) {
	var fired atomic.Int32
	task := NewTask(10*time.Millisecond, func() { fired.Add(1) })

	task.Start()
	assert.True(t, task.Running())

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, task.Running())
}

func TestTask_StopBeforeFire(t *testing.T) {
	var fired atomic.Int32
	task := NewTask(50*time.Millisecond, func() { fired.Add(1) })

	task.Start()
	task.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, task.Running())
}

func TestTask_RestartReplacesTimer(t *testing.T) {
	var fired atomic.Int32
	task := NewTask(40*time.Millisecond, func() { fired.Add(1) })

	task.Start()
	time.Sleep(25 * time.Millisecond)
	task.Start()
	time.Sleep(25 * time.Millisecond)

	// The first arm would have fired by now; the re-arm pushed it out.
	assert.Equal(t, int32(0), fired.Load())

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTask_StopWithoutStart(t *testing.T) {
	task := NewTask(time.Millisecond, func() {})

	task.Stop()
	assert.False(t, task.Running())
}
