// Package pool implements the manager state machine of spec §4.4: the
// component that owns the endpoint registry, the timer set, and the
// client adapter, and drives the worker's lifecycle in lock-step with the
// active pool session. This is the ~65%-of-budget core the rest of the
// module exists to support.
package pool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/config"
	"github.com/cakotreo/nsfminer/pkg/endpoint"
	"github.com/cakotreo/nsfminer/pkg/strand"
	"github.com/cakotreo/nsfminer/pkg/worker"
)

// State names the manager's coarse lifecycle position (spec §4.4).
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Manager mediates between a Worker and the pool endpoints in registry,
// exactly one client.Client at a time (spec §5 "Shared resources").
//
// Every field below the strand line is manager state in the spec §5 sense
// and must only be touched from code running on strand; the three flags
// and two counters are atomics because they are observed across callback
// boundaries (spec §3 "Manager flags"/"Counters").
type Manager struct {
	log      *logrus.Entry
	settings config.Settings
	registry *endpoint.Registry
	worker   worker.Worker
	terminator func()

	strand *strand.Strand
	factory func(client.Family) client.Client

	failoverTimer  *strand.Timer
	hashrateTimer  *strand.Timer
	reconnectTimer *strand.Timer
	reconnectPace  *reconnectPacer
	hashPace       *hashratePacer

	state        State
	currentClient client.Client
	currentWork  client.WorkPackage
	selectedHost string

	running            int32
	stopping           int32
	asyncPending       int32
	connectionSwitches uint64
	epochChanges       uint64
}

// NewManager constructs a Manager over registry, driving w, logging
// through log. terminator is called when rotateConnect exhausts every
// endpoint (spec §4.4 step 6); pass nil to use the default SIGTERM
// terminator (SPEC_FULL §12 item 5).
func NewManager(log *logrus.Entry, settings config.Settings, registry *endpoint.Registry, w worker.Worker, terminator func()) *Manager {
	if terminator == nil {
		terminator = defaultTerminator
	}
	s := strand.New()
	m := &Manager{
		log:            log,
		settings:       settings,
		registry:       registry,
		worker:         w,
		terminator:     terminator,
		strand:         s,
		failoverTimer:  strand.NewTimer(s),
		hashrateTimer:  strand.NewTimer(s),
		reconnectTimer: strand.NewTimer(s),
		reconnectPace:  newReconnectPacer(time.Duration(settings.DelayBeforeRetrySeconds) * time.Second),
		hashPace:       newHashratePacer(time.Duration(settings.HashrateIntervalSeconds) * time.Second),
		currentWork:    client.WorkPackage{Epoch: -1, Block: -1},
	}
	m.factory = m.newClient
	w.OnMinerRestart(m.onMinerRestart)
	w.OnSolutionFound(m.onSolutionFound)
	return m
}

// SetClientFactory overrides the default protocol-family-to-client
// construction, letting tests force every endpoint onto a single
// simulate.Client regardless of its configured Family.
func (m *Manager) SetClientFactory(f func(client.Family) client.Client) {
	m.strand.PostAndWait(func() { m.factory = f })
}

// Start transitions Idle -> Connecting (spec §4.4 start()).
func (m *Manager) Start() {
	atomic.StoreInt32(&m.running, 1)
	atomic.StoreInt32(&m.asyncPending, 1)
	m.strand.Post(func() {
		m.bumpConnectionSwitches()
		m.state = StateConnecting
		m.rotateConnect()
	})
}

// Stop implements spec §4.4 stop(): from Connected it disconnects the
// active client and blocks (bounded by settings.StopWaitTimeoutSeconds)
// until on-disconnected clears running; from Connecting/Idle it is a
// synchronous no-op beyond cancelling timers and stopping the worker.
func (m *Manager) Stop() {
	var disconnect client.Client

	m.strand.PostAndWait(func() {
		switch m.state {
		case StateConnected:
			atomic.StoreInt32(&m.asyncPending, 1)
			atomic.StoreInt32(&m.stopping, 1)
			m.state = StateStopping
			disconnect = m.currentClient
		case StateConnecting, StateIdle:
			m.failoverTimer.Cancel()
			m.hashrateTimer.Cancel()
			m.reconnectTimer.Cancel()
			if m.worker.IsMining() {
				m.worker.Stop()
			}
		}
	})

	if disconnect == nil {
		return
	}
	disconnect.Disconnect()

	timeout := time.Duration(m.settings.StopWaitTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt32(&m.running) == 1 {
		if time.Now().After(deadline) {
			m.log.Error("stop: client did not disconnect in time")
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Close releases the manager's strand goroutine. Call after Stop.
func (m *Manager) Close() {
	m.strand.Close()
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	var s State
	m.strand.PostAndWait(func() { s = m.state })
	return s
}

// IsRunning reports whether the manager has been started and has not yet
// terminated.
func (m *Manager) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *Manager) bumpConnectionSwitches() {
	atomic.AddUint64(&m.connectionSwitches, 1)
}

func (m *Manager) resetCurrentWork() {
	m.currentWork = client.WorkPackage{Epoch: -1, Block: -1}
}

func (m *Manager) markSelectedHost(ep *endpoint.Descriptor) {
	m.selectedHost = fmt.Sprintf("%s:%d", ep.Host(), ep.Port())
}
