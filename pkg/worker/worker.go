// Package worker defines the contract the pool manager consumes from the
// mining worker ("the Farm" in spec §1/§6) and provides a SimpleWorker
// implementation for tests and simulate-mode running, since the real
// hash-computation/GPU worker is out of scope (spec §1).
package worker

import (
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
)

// Stats mirrors the subset of worker statistics the manager's
// introspection surface needs (spec §6 HashRate()); a real worker
// implementation will track much more than this.
type Stats struct {
	Hashrate float64
	Accepted uint64
	Rejected uint64
}

// RestartCallback is invoked when the worker should be restarted (spec
// §4.3 on-miner-restart).
type RestartCallback func()

// SolutionCallback is invoked when the worker finds a candidate solution.
// The return value tells the worker whether to retain the solution (true)
// or discard it (false); the pool manager always returns false, whether or
// not it submitted the solution.
type SolutionCallback func(client.Solution) bool

// Worker is the contract the manager drives the mining worker through
// (spec §6).
type Worker interface {
	IsMining() bool
	Paused() bool
	Start()
	Stop()
	Pause()
	Resume()
	SetWork(wp client.WorkPackage)
	HashRate() float64

	OnMinerRestart(cb RestartCallback)
	OnSolutionFound(cb SolutionCallback)
}

type workerState int

const (
	stateIdle workerState = iota
	stateMining
	statePaused
)

// SimpleWorker is a minimal Worker implementation: it "mines" by spinning
// a bounded pool of goroutines that periodically declare a solution found,
// exactly enough behavior to drive the manager's on-solution-found path
// and to exercise HashRate()/IsMining()/Paused() under test.
type SimpleWorker struct {
	log     *logrus.Entry
	threads int

	mu        sync.Mutex
	state     workerState
	work      client.WorkPackage
	hashrate  float64
	restartCb RestartCallback
	solutionCb SolutionCallback

	swg    sizedwaitgroup.SizedWaitGroup
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSimpleWorker constructs a SimpleWorker bounded to threads concurrent
// hashing goroutines (at least 1).
func NewSimpleWorker(log *logrus.Entry, threads int) *SimpleWorker {
	if threads < 1 {
		threads = 1
	}
	return &SimpleWorker{
		log:     log,
		threads: threads,
		swg:     sizedwaitgroup.New(threads),
	}
}

func (w *SimpleWorker) IsMining() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateMining
}

func (w *SimpleWorker) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == statePaused
}

func (w *SimpleWorker) Start() {
	w.mu.Lock()
	if w.state == stateMining {
		w.mu.Unlock()
		return
	}
	w.state = stateMining
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	for i := 0; i < w.threads; i++ {
		w.wg.Add(1)
		go w.hashLoop(stopCh)
	}
	w.log.Info("worker started")
}

func (w *SimpleWorker) hashLoop(stopCh chan struct{}) {
	defer w.wg.Done()
	w.swg.Add()
	defer w.swg.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.state != stateMining || w.work.Empty() {
				w.mu.Unlock()
				continue
			}
			w.hashrate++
			work := w.work
			cb := w.solutionCb
			w.mu.Unlock()

			if cb != nil {
				cb(client.Solution{WorkHash: work.Header, Submitted: time.Now()})
			}
		}
	}
}

func (w *SimpleWorker) Stop() {
	w.mu.Lock()
	if w.state == stateIdle {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	w.state = stateIdle
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *SimpleWorker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateMining {
		w.state = statePaused
	}
}

func (w *SimpleWorker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == statePaused {
		w.state = stateMining
	}
}

func (w *SimpleWorker) SetWork(wp client.WorkPackage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.work = wp
}

func (w *SimpleWorker) HashRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hashrate
}

func (w *SimpleWorker) OnMinerRestart(cb RestartCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restartCb = cb
}

func (w *SimpleWorker) OnSolutionFound(cb SolutionCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.solutionCb = cb
}

// Restart invokes the registered restart callback, if any, in the manner
// the manager's own on-miner-restart handler does (stop then start).
func (w *SimpleWorker) Restart() {
	w.mu.Lock()
	cb := w.restartCb
	w.mu.Unlock()
	if cb != nil {
		cb()
	}
}
