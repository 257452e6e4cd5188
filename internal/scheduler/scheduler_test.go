package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleActionRunsAfterDelay(t *testing.T) {
	s := NewTimerScheduler()
	var fired int32
	s.ScheduleAction(func() { atomic.StoreInt32(&fired, 1) }, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)
}

func TestCancelActionPreventsLaterFire(t *testing.T) {
	s := NewTimerScheduler()
	var fired int32
	id := s.ScheduleAction(func() { atomic.StoreInt32(&fired, 1) }, 20*time.Millisecond)
	s.CancelAction(id)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestCancelActionIsANoopForAlreadyFiredID(t *testing.T) {
	s := NewTimerScheduler()
	var fired int32
	id := s.ScheduleAction(func() { atomic.StoreInt32(&fired, 1) }, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, time.Millisecond)

	// Canceling after the action already ran must not panic.
	s.CancelAction(id)
}

func TestCancelActionIsANoopForUnknownID(t *testing.T) {
	s := NewTimerScheduler()
	s.CancelAction(ActionID(9999))
}
