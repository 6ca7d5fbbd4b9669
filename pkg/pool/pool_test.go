package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/client/simulate"
	"github.com/cakotreo/nsfminer/pkg/config"
	"github.com/cakotreo/nsfminer/pkg/endpoint"
	"github.com/cakotreo/nsfminer/pkg/worker"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l.WithField("test", "pool")
}

// clientHolder lets a test observe the *simulate.Client most recently
// constructed by rotateConnect without racing the strand goroutine that
// constructs it.
type clientHolder struct {
	mu sync.Mutex
	c  *simulate.Client
}

func (h *clientHolder) set(c *simulate.Client) {
	h.mu.Lock()
	h.c = c
	h.mu.Unlock()
}

func (h *clientHolder) get() *simulate.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.c
}

// newFailingSimulateFactory returns a client factory where the first n
// constructed clients are armed to fail their next Connect(), and every
// client built along the way is recorded in holder — this is what lets
// scenario tests reproduce "the pool fails to connect N times" without
// racing the manager's own strand.
func newFailingSimulateFactory(t *testing.T, settings config.Settings, holder *clientHolder, failures int32) func(client.Family) client.Client {
	remaining := failures
	return func(client.Family) client.Client {
		c := simulate.New(testLog(), settings)
		if atomic.AddInt32(&remaining, -1) >= 0 {
			c.FailNextConnect()
		}
		holder.set(c)
		return c
	}
}

func eventually(t *testing.T, cond func() bool) {
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestHappyFailback(t *testing.T) {
	registry := endpoint.NewRegistry()
	registry.Add(endpoint.New("P", "p.example", 1, client.FamilySimulation))
	registry.Add(endpoint.New("F", "f.example", 2, client.FamilySimulation))

	settings := config.Default()
	settings.MaxRetriesPerEndpoint = 3
	settings.DelayBeforeRetrySeconds = 0
	settings.FailoverTimeoutMinutes = 1

	var holder clientHolder
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() {})
	m.SetClientFactory(newFailingSimulateFactory(t, settings, &holder, 3))

	m.Start()

	eventually(t, func() bool {
		d, ok := m.GetActiveConnection()
		return ok && d.URI() == "F" && m.State() == StateConnected
	})
	assert.GreaterOrEqual(t, m.GetConnectionSwitches(), uint64(2))

	m.strand.PostAndWait(m.failoverExpired)

	eventually(t, func() bool {
		d, ok := m.GetActiveConnection()
		return ok && d.URI() == "P" && m.State() == StateConnected
	})
}

func TestUnrecoverableRemoval(t *testing.T) {
	registry := endpoint.NewRegistry()
	a := endpoint.New("A", "a.example", 1, client.FamilySimulation)
	a.MarkUnrecoverable()
	registry.Add(a)
	registry.Add(endpoint.New("B", "b.example", 2, client.FamilySimulation))

	settings := config.Default()
	var holder clientHolder
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() {})
	m.SetClientFactory(newFailingSimulateFactory(t, settings, &holder, 0))

	m.Start()

	eventually(t, func() bool {
		d, ok := m.GetActiveConnection()
		return ok && d.URI() == "B" && m.State() == StateConnected
	})
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, uint64(2), m.GetConnectionSwitches())
}

func TestExitSentinelTerminates(t *testing.T) {
	registry := endpoint.NewRegistry()
	registry.Add(endpoint.New("A", "a.example", 1, client.FamilySimulation))
	registry.Add(endpoint.New(endpoint.ExitHost, endpoint.ExitHost, 0, client.FamilySimulation))

	settings := config.Default()
	settings.MaxRetriesPerEndpoint = 1
	settings.DelayBeforeRetrySeconds = 0

	var holder clientHolder
	var terminated int32
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() { atomic.StoreInt32(&terminated, 1) })
	m.SetClientFactory(newFailingSimulateFactory(t, settings, &holder, 1))

	m.Start()

	eventually(t, func() bool { return m.State() == StateTerminated })
	assert.False(t, m.IsRunning())
	assert.Equal(t, int32(1), atomic.LoadInt32(&terminated))
}

func TestRemoveActiveRejected(t *testing.T) {
	registry := endpoint.NewRegistry()
	registry.Add(endpoint.New("A", "a.example", 1, client.FamilySimulation))
	registry.Add(endpoint.New("B", "b.example", 2, client.FamilySimulation))

	settings := config.Default()
	var holder clientHolder
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() {})
	m.SetClientFactory(newFailingSimulateFactory(t, settings, &holder, 0))

	m.Start()
	eventually(t, func() bool { return m.State() == StateConnected })

	err := m.RemoveConnection(0)
	assert.ErrorContains(t, err, "can't remove active")
	assert.Equal(t, 2, registry.Len())
}

func TestEpochDerivation(t *testing.T) {
	registry := endpoint.NewRegistry()
	registry.Add(endpoint.New("A", "a.example", 1, client.FamilySimulation))

	settings := config.Default()
	settings.BenchmarkBlock = -1
	var holder clientHolder
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() {})
	m.SetClientFactory(newFailingSimulateFactory(t, settings, &holder, 0))

	m.Start()
	eventually(t, func() bool { return m.State() == StateConnected })

	c := holder.get()
	require.NotNil(t, c)

	c.TriggerWork(client.WorkPackage{Header: "h1", Epoch: -1, Block: 60000, Seed: "s1", Boundary: "0xff"})
	eventually(t, func() bool { return m.GetCurrentEpoch() == 2 })
	assert.Equal(t, uint64(1), m.GetEpochChanges())

	c.TriggerWork(client.WorkPackage{Header: "h2", Epoch: -1, Block: 60000, Seed: "s1", Boundary: "0xff"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), m.GetEpochChanges())

	c.TriggerWork(client.WorkPackage{Header: "h3", Epoch: -1, Block: -1, Seed: "s2", Boundary: "0xff"})
	eventually(t, func() bool { return m.GetEpochChanges() == 2 })
}

func TestSolutionWhileDisconnected(t *testing.T) {
	registry := endpoint.NewRegistry()
	registry.Add(endpoint.New("A", "a.example", 1, client.FamilySimulation))

	settings := config.Default()
	w := worker.NewSimpleWorker(testLog(), 1)
	m := NewManager(testLog(), settings, registry, w, func() {})

	retained := m.onSolutionFound(client.Solution{Nonce: 1, WorkHash: "h1"})
	assert.False(t, retained)
}
