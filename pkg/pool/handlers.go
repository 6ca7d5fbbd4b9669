package pool

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/epoch"
	"github.com/cakotreo/nsfminer/pkg/utils"
)

// installHandlers binds the five client callbacks of spec §4.3 onto a
// freshly constructed client. Every callback body is posted onto the
// strand (or posted-and-waited, where the caller needs a synchronous
// answer) so it never races a concurrent manager state mutation,
// regardless of which goroutine the client fires it from. The worker's
// own two callbacks are registered once, in NewManager, since unlike the
// client they are not reconstructed on every rotateConnect.
func (m *Manager) installHandlers(cl client.Client) {
	cl.OnConnected(m.onConnected)
	cl.OnDisconnected(m.onDisconnected)
	cl.OnWorkReceived(m.onWorkReceived)
	cl.OnSolutionAccepted(m.onSolutionAccepted)
	cl.OnSolutionRejected(m.onSolutionRejected)
}

func (m *Manager) onConnected() {
	m.strand.Post(func() {
		m.log.WithField("endpoint", m.selectedHost).Info("connected")
		m.registry.SetAttempts(0)
		m.resetCurrentWork()

		cursor, _ := m.registry.Cursor()
		if cursor != 0 && m.settings.FailoverTimeoutMinutes > 0 {
			m.armFailoverTimer()
		}
		if m.worker.Paused() {
			m.worker.Resume()
		} else if !m.worker.IsMining() {
			m.worker.Start()
		}
		if m.settings.ReportHashrate {
			m.armHashrateTimer()
		}

		atomic.StoreInt32(&m.asyncPending, 0)
		m.state = StateConnected
	})
}

func (m *Manager) onDisconnected() {
	m.strand.Post(func() {
		if m.currentClient != nil {
			m.currentClient.UnsetConnection()
		}
		m.resetCurrentWork()
		m.cancelFailoverTimer()
		m.cancelHashrateTimer()

		if atomic.LoadInt32(&m.stopping) == 1 {
			m.log.Info("disconnected while stopping, terminating")
			if m.worker.IsMining() {
				m.worker.Stop()
			}
			atomic.StoreInt32(&m.running, 0)
			m.state = StateTerminated
			return
		}

		m.log.Warn("disconnected, rotating")
		atomic.StoreInt32(&m.asyncPending, 1)
		m.worker.Pause()
		m.state = StateConnecting
		m.strand.Post(m.rotateConnect)
	})
}

func (m *Manager) onWorkReceived(wp client.WorkPackage) {
	m.strand.Post(func() {
		if wp.Empty() {
			return
		}

		var epochChanged bool
		switch {
		case m.currentWork.Epoch == -1:
			epochChanged = true
		case m.currentClient != nil && m.currentClient.StratumMode() == client.StratumModeV2:
			epochChanged = wp.Epoch != m.currentWork.Epoch
		default:
			epochChanged = wp.Seed != m.currentWork.Seed
		}
		diffChanged := wp.Boundary != m.currentWork.Boundary

		if wp.Epoch == -1 {
			// Only derive a fresh epoch when the epoch actually changed
			// (PoolManager.cpp's derivation lives inside its "if
			// (newEpoch)" branch); otherwise hold the prior epoch so
			// inconsistent seed/block input can't move it on its own.
			if epochChanged {
				if wp.Block >= 0 {
					wp.Epoch = epoch.FromBlock(wp.Block)
				} else {
					wp.Epoch = epoch.FromSeed([]byte(wp.Seed))
				}
			} else {
				wp.Epoch = m.currentWork.Epoch
			}
		}

		m.currentWork = wp
		if epochChanged {
			atomic.AddUint64(&m.epochChanges, 1)
		}
		if epochChanged || diffChanged {
			m.logMiningAt(wp)
		}
		m.log.WithField("header", utils.TruncateString(wp.Header, 16)).Debug("work received")
		m.worker.SetWork(wp)
	})
}

func (m *Manager) onSolutionAccepted(delay time.Duration, minerIndex int, asStale bool) {
	m.strand.Post(func() {
		m.log.WithFields(logrus.Fields{
			"delay": utils.FormatDuration(delay),
			"miner": minerIndex,
			"stale": asStale,
		}).Info("solution accepted")
	})
}

func (m *Manager) onSolutionRejected(delay time.Duration, minerIndex int) {
	m.strand.Post(func() {
		m.log.WithFields(logrus.Fields{
			"delay": utils.FormatDuration(delay),
			"miner": minerIndex,
		}).Warn("solution rejected")
	})
}

// onMinerRestart implements the worker's on-miner-restart callback (spec
// §4.3): stop then start.
func (m *Manager) onMinerRestart() {
	m.worker.Stop()
	m.worker.Start()
}

// onSolutionFound implements the worker's on-solution-found callback
// (spec §4.3): forward to the active client if connected, otherwise log
// and drop. Per spec §4.3's literal wording the returned bool is always
// false — the manager is done with its copy of the solution either way,
// whether or not the submission itself succeeded.
func (m *Manager) onSolutionFound(sol client.Solution) bool {
	m.strand.PostAndWait(func() {
		if m.currentClient == nil || !m.currentClient.IsConnected() {
			m.log.Warn("solution found while disconnected, dropping")
			return
		}
		if err := m.currentClient.SubmitSolution(sol); err != nil {
			m.log.WithError(err).Error("submit solution failed")
		}
	})
	return false
}

// logMiningAt reproduces the original's showMiningAt diagnostic (SPEC_FULL
// §12 item 2): logged whenever epoch or difficulty changes.
func (m *Manager) logMiningAt(wp client.WorkPackage) {
	diff, err := client.DifficultyFromBoundary(wp.Boundary)
	if err != nil {
		m.log.WithField("boundary", wp.Boundary).Debug("could not derive difficulty for diagnostic")
		return
	}
	m.log.WithFields(logrus.Fields{
		"epoch":      wp.Epoch,
		"difficulty": diff,
	}).Info("mining at")
}
