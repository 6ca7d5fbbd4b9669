package strand

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostFIFOOrdering(t *testing.T) {
	s := New()
	defer s.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		s.Post(func() {
			order = append(order, i)
			if i == 9 {
				close(done)
			}
		})
	}
	<-done

	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPostAndWaitBlocksUntilRun(t *testing.T) {
	s := New()
	defer s.Close()

	var ran int32
	s.PostAndWait(func() { atomic.StoreInt32(&ran, 1) })
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestTimerFiresCallbackOnStrand(t *testing.T) {
	s := New()
	defer s.Close()

	timer := NewTimer(s)
	fired := make(chan struct{})
	timer.Arm(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerCancelBeforeFireIsANoop(t *testing.T) {
	s := New()
	defer s.Close()

	timer := NewTimer(s)
	var fired int32
	timer.Arm(50*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	timer.Cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestTimerRearmCancelsPrevious(t *testing.T) {
	s := New()
	defer s.Close()

	timer := NewTimer(s)
	var firstFired, secondFired int32
	timer.Arm(10*time.Millisecond, func() { atomic.StoreInt32(&firstFired, 1) })
	timer.Arm(20*time.Millisecond, func() { atomic.StoreInt32(&secondFired, 1) })

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&firstFired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondFired))
}
