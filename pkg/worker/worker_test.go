package worker

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakotreo/nsfminer/pkg/client"
)

func newTestWorker() *SimpleWorker {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewSimpleWorker(log.WithField("test", "worker"), 2)
}

func TestSimpleWorkerStartStopLifecycle(t *testing.T) {
	w := newTestWorker()
	assert.False(t, w.IsMining())

	w.Start()
	assert.True(t, w.IsMining())

	w.Pause()
	assert.True(t, w.Paused())

	w.Resume()
	assert.True(t, w.IsMining())

	w.Stop()
	assert.False(t, w.IsMining())
}

func TestSimpleWorkerFindsSolutions(t *testing.T) {
	w := newTestWorker()
	found := make(chan client.Solution, 1)
	w.OnSolutionFound(func(sol client.Solution) bool {
		select {
		case found <- sol:
		default:
		}
		return false
	})

	w.SetWork(client.WorkPackage{Header: "job-1"})
	w.Start()
	defer w.Stop()

	select {
	case sol := <-found:
		assert.Equal(t, "job-1", sol.WorkHash)
	case <-time.After(time.Second):
		t.Fatal("worker never found a solution")
	}
}

func TestSimpleWorkerRestartCallback(t *testing.T) {
	w := newTestWorker()
	restarted := make(chan struct{}, 1)
	w.OnMinerRestart(func() {
		w.Stop()
		w.Start()
		close(restarted)
	})

	w.Start()
	w.Restart()

	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("restart callback never fired")
	}
	require.True(t, w.IsMining())
}
