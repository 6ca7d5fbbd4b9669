package pool

import (
	"sync/atomic"
	"time"

	"github.com/cakotreo/nsfminer/pkg/utils"
)

// armFailoverTimer schedules failback to the preferred endpoint (spec
// §4.2 failover timer). Callers must hold the strand.
func (m *Manager) armFailoverTimer() {
	m.failoverTimer.Arm(time.Duration(m.settings.FailoverTimeoutMinutes)*time.Minute, m.failoverExpired)
}

func (m *Manager) cancelFailoverTimer() { m.failoverTimer.Cancel() }

// failoverExpired is the failover timer's body, split out from
// armFailoverTimer so tests can invoke it directly on the strand instead
// of waiting out a real failover-timeout-minutes deadline.
func (m *Manager) failoverExpired() {
	cursor, _ := m.registry.Cursor()
	if atomic.LoadInt32(&m.running) == 0 || cursor == 0 {
		return
	}
	m.registry.SetCursor(0)
	m.registry.SetAttempts(0)
	m.bumpConnectionSwitches()
	m.log.Info("failover timer expired, failing back to preferred endpoint")
	if m.currentClient != nil {
		m.currentClient.Disconnect()
	}
}

// armHashrateTimer schedules the next hashrate report (spec §4.2
// hashrate-report timer), re-arming itself on every expiry. hashPace
// enforces "no more than once per interval" even if a caller forces an
// extra report through some other path later.
func (m *Manager) armHashrateTimer() {
	m.hashrateTimer.Arm(time.Duration(m.settings.HashrateIntervalSeconds)*time.Second, m.hashrateExpired)
}

func (m *Manager) cancelHashrateTimer() { m.hashrateTimer.Cancel() }

func (m *Manager) hashrateExpired() {
	if atomic.LoadInt32(&m.running) == 1 && m.currentClient != nil && m.currentClient.IsConnected() && m.hashPace.allow() {
		hr := m.worker.HashRate()
		m.log.WithField("hashrate", utils.FormatHashrate(hr)).Debug("reporting hashrate")
		m.currentClient.SubmitHashrate(hr, m.settings.HashrateID)
	}
	m.armHashrateTimer()
}

// armReconnectTimer schedules the delayed reconnect attempt (spec §4.2
// reconnect-delay timer), paced through reconnectPace rather than a bare
// sleep (SPEC_FULL §11).
func (m *Manager) armReconnectTimer() {
	d := m.reconnectPace.wait()
	if d <= 0 {
		d = time.Duration(m.settings.DelayBeforeRetrySeconds) * time.Second
	}
	m.reconnectTimer.Arm(d, m.reconnectExpired)
}

func (m *Manager) cancelReconnectTimer() { m.reconnectTimer.Cancel() }

func (m *Manager) reconnectExpired() {
	if m.currentClient != nil && !m.currentClient.IsConnected() {
		m.currentClient.Connect()
	}
}
