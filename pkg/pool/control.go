package pool

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/endpoint"
)

// AddConnection appends a pre-parsed endpoint descriptor (spec §4.1 add;
// URI parsing is an excluded external collaborator, so callers construct
// the Descriptor via pkg/endpoint.New before calling this).
func (m *Manager) AddConnection(d *endpoint.Descriptor) {
	m.registry.Add(d)
}

// RemoveConnection deletes the endpoint at idx (spec §4.1 remove). It
// fails if idx is out of range, equals the active cursor, or an async
// operation is already in flight.
func (m *Manager) RemoveConnection(idx int) error {
	if atomic.LoadInt32(&m.asyncPending) == 1 {
		return errors.New("async operation pending")
	}
	return m.registry.Remove(idx)
}

// SetActiveConnectionIndex selects idx as the active endpoint (spec §4.1
// select(index)). async-pending is claimed via compare-and-set for the
// duration of the switch and released by on-connected; the bound check
// below is best-effort against a concurrently running rotateConnect, in
// keeping with spec §5's "best-effort interlock" characterization of
// async-pending.
func (m *Manager) SetActiveConnectionIndex(idx int) error {
	if !atomic.CompareAndSwapInt32(&m.asyncPending, 0, 1) {
		return errors.New("async operation pending")
	}

	cursor, length := m.registry.Cursor()
	if idx < 0 || idx >= length {
		atomic.StoreInt32(&m.asyncPending, 0)
		return errors.New("index out-of-bounds")
	}
	if idx == cursor {
		atomic.StoreInt32(&m.asyncPending, 0)
		return nil
	}

	m.strand.PostAndWait(func() {
		m.registry.SetCursor(idx)
		m.registry.SetAttempts(0)
		m.bumpConnectionSwitches()
		if m.currentClient != nil {
			m.currentClient.Disconnect()
		}
	})
	return nil
}

// SetActiveConnectionURI selects the endpoint whose canonical URI matches
// uri case-insensitively (spec §4.1 select(uri)).
func (m *Manager) SetActiveConnectionURI(uri string) error {
	idx := m.registry.IndexOf(uri)
	if idx < 0 {
		return errors.Errorf("unknown endpoint uri %q", uri)
	}
	return m.SetActiveConnectionIndex(idx)
}

// GetActiveConnection returns the descriptor at the cursor and whether one
// exists (SPEC_FULL §12 item 3: nil/false rather than an error).
func (m *Manager) GetActiveConnection() (*endpoint.Descriptor, bool) {
	d := m.registry.Active()
	return d, d != nil
}

// GetConnectionsJSON returns introspection rows (spec §6
// getConnectionsJson()).
func (m *Manager) GetConnectionsJSON() []endpoint.Snapshot {
	return m.registry.Snapshot()
}

// GetConnectionSwitches returns the monotonic connection-switch counter.
func (m *Manager) GetConnectionSwitches() uint64 {
	return atomic.LoadUint64(&m.connectionSwitches)
}

// GetEpochChanges returns the monotonic epoch-change counter.
func (m *Manager) GetEpochChanges() uint64 {
	return atomic.LoadUint64(&m.epochChanges)
}

// GetCurrentEpoch returns the epoch of the last-observed work package.
func (m *Manager) GetCurrentEpoch() int64 {
	var e int64
	m.strand.PostAndWait(func() { e = m.currentWork.Epoch })
	return e
}

// GetPoolDifficulty derives a display difficulty from the last-observed
// work package's boundary (SPEC_FULL §12 item 2).
func (m *Manager) GetPoolDifficulty() (float64, error) {
	var boundary string
	m.strand.PostAndWait(func() { boundary = m.currentWork.Boundary })
	if boundary == "" {
		return 0, errors.New("no work received yet")
	}
	return client.DifficultyFromBoundary(boundary)
}

// SelectedHost returns "host:port" of the endpoint currently selected, for
// display purposes (spec §4.4 step 7 "set selected-host").
func (m *Manager) SelectedHost() string {
	var host string
	m.strand.PostAndWait(func() { host = m.selectedHost })
	return host
}
