package pool

import (
	"sync/atomic"

	"github.com/cakotreo/nsfminer/pkg/endpoint"
)

// rotateConnect runs on the strand and implements spec §4.4's eight-step
// algorithm verbatim, including the pathological single-endpoint-plus-
// unrecoverable ordering called out in SPEC_FULL §12 item 1: step 3 runs
// before step 4 so an unrecoverable endpoint is discarded without being
// counted against max-retries, and step 5 runs after both removals so it
// sees the possibly-shrunken registry.
func (m *Manager) rotateConnect() {
	// Step 1: idempotent if already connected.
	if m.currentClient != nil && m.currentClient.IsConnected() {
		return
	}
	m.state = StateConnecting

	// Step 2: clamp cursor into range.
	m.registry.Clamp()

	// Step 3 / 4: unrecoverable removal takes precedence over single-
	// endpoint retry exhaustion.
	active := m.registry.Active()
	switch {
	case active != nil && active.Unrecoverable():
		m.log.WithField("uri", active.URI()).Warn("removing unrecoverable endpoint")
		m.registry.RemoveActive()
		m.registry.SetAttempts(0)
		m.registry.Clamp()
		m.bumpConnectionSwitches()
	case m.registry.Len() == 1 && m.settings.MaxRetriesPerEndpoint > 0 && m.registry.Attempts() >= m.settings.MaxRetriesPerEndpoint:
		m.registry.RemoveActive()
	}

	// Step 5: rotate past a retry-exhausted endpoint, operating on the
	// registry as left by steps 3/4.
	if m.registry.Len() > 0 && m.settings.MaxRetriesPerEndpoint > 0 && m.registry.Attempts() >= m.settings.MaxRetriesPerEndpoint {
		m.registry.SetAttempts(0)
		cursor, length := m.registry.Cursor()
		m.registry.SetCursor((cursor + 1) % length)
		m.bumpConnectionSwitches()
	}

	// Step 6: exhaustion is terminal.
	active = m.registry.Active()
	if m.registry.Len() == 0 || (active != nil && active.Host() == endpoint.ExitHost) {
		m.log.Warn("no viable endpoint remains, terminating")
		if m.worker.IsMining() {
			m.worker.Stop()
		}
		m.failoverTimer.Cancel()
		m.hashrateTimer.Cancel()
		m.reconnectTimer.Cancel()
		atomic.StoreInt32(&m.running, 0)
		m.state = StateTerminated
		m.terminator()
		return
	}

	// Step 7: construct a fresh client for the active endpoint's family.
	if m.currentClient != nil {
		m.currentClient.UnsetConnection()
		m.currentClient = nil
	}
	cl := m.factory(active.Family())
	m.installHandlers(cl)
	cl.SetConnection(active)
	m.currentClient = cl
	m.markSelectedHost(active)
	attempts := m.registry.IncrementAttempts()

	// Step 8: delay or connect immediately.
	if attempts > 1 && m.settings.DelayBeforeRetrySeconds > 0 {
		m.armReconnectTimer()
	} else {
		cl.Connect()
	}
}
