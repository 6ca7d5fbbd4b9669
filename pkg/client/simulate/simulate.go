// Package simulate implements an in-process client.Client that fires its
// callbacks on command instead of talking to a real pool, standing in for
// the excluded "in-process simulator" collaborator (spec §1/§6) and giving
// the manager's tests a client that behaves exactly as a scenario dictates
// (spec §8: "the mock client fires callbacks on command").
package simulate

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/config"
)

// Client is a command-driven client.Client.
type Client struct {
	log      *logrus.Entry
	settings config.Settings

	mu              sync.Mutex
	ep              client.Endpoint
	connected       bool
	stratumMode     int
	failNextConnect bool
	solutions       []client.Solution

	onConnected    client.ConnectedCallback
	onDisconnected client.DisconnectedCallback
	onWork         client.WorkReceivedCallback
	onAccepted     client.SolutionAcceptedCallback
	onRejected     client.SolutionRejectedCallback
}

// New constructs a simulated client bound to no endpoint yet.
func New(log *logrus.Entry, settings config.Settings) *Client {
	return &Client{log: log, settings: settings}
}

func (c *Client) SetConnection(ep client.Endpoint) {
	c.mu.Lock()
	c.ep = ep
	c.mu.Unlock()
}

func (c *Client) UnsetConnection() {
	c.mu.Lock()
	c.ep = nil
	c.connected = false
	c.mu.Unlock()
}

// Connect fires on-connected unless FailNextConnect was armed, in which
// case it fires on-disconnected instead — simulating a pool that refuses
// the session. When settings.BenchmarkBlock >= 0, a synthetic work package
// follows immediately, so a manager wired to a simulate client can drive a
// full mining loop without any other collaborator.
func (c *Client) Connect() {
	c.mu.Lock()
	fail := c.failNextConnect
	c.failNextConnect = false
	connectedCb := c.onConnected
	disconnectedCb := c.onDisconnected
	benchmarkBlock := c.settings.BenchmarkBlock
	c.mu.Unlock()

	if fail {
		if disconnectedCb != nil {
			disconnectedCb()
		}
		return
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	if connectedCb != nil {
		connectedCb()
	}
	if benchmarkBlock >= 0 {
		c.TriggerWork(client.WorkPackage{
			Header:   "benchmark-" + string(rune('0'+benchmarkBlock%10)),
			Job:      "benchmark",
			Epoch:    -1,
			Block:    benchmarkBlock,
			Boundary: "0x" + strings.Repeat("f", 8),
		})
	}
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) GetConnection() client.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ep
}

func (c *Client) StratumMode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stratumMode
}

// SetStratumMode lets a test pin the negotiated dialect, exercising the
// client.StratumModeV2 epoch-comparison branch in pkg/pool.
func (c *Client) SetStratumMode(mode int) {
	c.mu.Lock()
	c.stratumMode = mode
	c.mu.Unlock()
}

func (c *Client) SubmitSolution(sol client.Solution) error {
	c.mu.Lock()
	c.solutions = append(c.solutions, sol)
	cb := c.onAccepted
	c.mu.Unlock()
	if cb != nil {
		cb(0, 0, false)
	}
	return nil
}

// Solutions returns every solution submitted so far, for test assertions.
func (c *Client) Solutions() []client.Solution {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]client.Solution, len(c.solutions))
	copy(out, c.solutions)
	return out
}

func (c *Client) SubmitHashrate(hashrateHs float64, id string) {
	c.log.WithFields(logrus.Fields{"hashrate": hashrateHs, "id": id}).Debug("simulated hashrate submit")
}

func (c *Client) OnConnected(cb client.ConnectedCallback) {
	c.mu.Lock()
	c.onConnected = cb
	c.mu.Unlock()
}

func (c *Client) OnDisconnected(cb client.DisconnectedCallback) {
	c.mu.Lock()
	c.onDisconnected = cb
	c.mu.Unlock()
}

func (c *Client) OnWorkReceived(cb client.WorkReceivedCallback) {
	c.mu.Lock()
	c.onWork = cb
	c.mu.Unlock()
}

func (c *Client) OnSolutionAccepted(cb client.SolutionAcceptedCallback) {
	c.mu.Lock()
	c.onAccepted = cb
	c.mu.Unlock()
}

func (c *Client) OnSolutionRejected(cb client.SolutionRejectedCallback) {
	c.mu.Lock()
	c.onRejected = cb
	c.mu.Unlock()
}

// FailNextConnect arms the next Connect() call to raise on-disconnected
// instead of on-connected.
func (c *Client) FailNextConnect() {
	c.mu.Lock()
	c.failNextConnect = true
	c.mu.Unlock()
}

// TriggerWork delivers wp as if the pool had just sent it.
func (c *Client) TriggerWork(wp client.WorkPackage) {
	c.mu.Lock()
	cb := c.onWork
	c.mu.Unlock()
	if cb != nil {
		cb(wp)
	}
}

// TriggerDisconnected simulates the session dropping.
func (c *Client) TriggerDisconnected() {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// TriggerSolutionRejected simulates the pool rejecting the last submission.
func (c *Client) TriggerSolutionRejected(delay time.Duration, minerIndex int) {
	c.mu.Lock()
	cb := c.onRejected
	c.mu.Unlock()
	if cb != nil {
		cb(delay, minerIndex)
	}
}

var _ client.Client = (*Client)(nil)
