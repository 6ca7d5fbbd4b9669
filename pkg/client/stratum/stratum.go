// Package stratum implements the Stratum client family: a persistent TCP
// session exchanging newline-delimited JSON-RPC messages. Grounded on the
// teacher's pkg/stratum stub and the request/response shape common to
// other_examples' stratum clients (sammy007-monero-stratum, the gominer
// family).
package stratum

import (
	"bufio"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/config"
	"github.com/cakotreo/nsfminer/pkg/utils"
)

type rpcMessage struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Client is a persistent Stratum TCP session.
type Client struct {
	log      *logrus.Entry
	settings config.Settings

	mu          sync.Mutex
	ep          client.Endpoint
	conn        net.Conn
	connected   bool
	stratumMode int
	nextID      int
	pending     map[int]client.Solution

	onConnected    client.ConnectedCallback
	onDisconnected client.DisconnectedCallback
	onWork         client.WorkReceivedCallback
	onAccepted     client.SolutionAcceptedCallback
	onRejected     client.SolutionRejectedCallback

	wg sync.WaitGroup
}

// New constructs a stratum client with no live connection.
func New(log *logrus.Entry, settings config.Settings) *Client {
	return &Client{
		log:      log,
		settings: settings,
		pending:  make(map[int]client.Solution),
	}
}

func (c *Client) SetConnection(ep client.Endpoint) {
	c.mu.Lock()
	c.ep = ep
	c.mu.Unlock()
}

func (c *Client) UnsetConnection() {
	c.mu.Lock()
	c.ep = nil
	c.mu.Unlock()
}

func (c *Client) Connect() {
	c.mu.Lock()
	ep := c.ep
	c.mu.Unlock()
	if ep == nil {
		c.raiseDisconnected()
		return
	}
	c.wg.Add(1)
	go c.run(ep)
}

func (c *Client) run(ep client.Endpoint) {
	defer c.wg.Done()

	dialTimeout := time.Duration(c.settings.NoResponseTimeoutSeconds) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", ep.Host()+":"+strconv.Itoa(ep.Port()), dialTimeout)
	if err != nil {
		c.log.WithError(err).Warn("stratum dial failed")
		c.raiseDisconnected()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.send("mining.subscribe", []interface{}{"nsfminer"}); err != nil {
		c.log.WithError(err).Warn("mining.subscribe failed")
		c.teardown()
		return
	}
	if err := c.send("mining.authorize", []interface{}{ep.URI(), "x"}); err != nil {
		c.log.WithError(err).Warn("mining.authorize failed")
		c.teardown()
		return
	}

	c.mu.Lock()
	c.connected = true
	cb := c.onConnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg rpcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.log.WithError(err).Debug("malformed stratum line")
			continue
		}
		c.dispatch(msg)
	}
	c.teardown()
}

func (c *Client) dispatch(msg rpcMessage) {
	switch {
	case msg.Method == "mining.notify":
		var params []string
		if err := json.Unmarshal(msg.Params, &params); err != nil || len(params) < 2 {
			return
		}
		wp := client.WorkPackage{
			Header: params[0],
			Job:    params[0],
			Seed:   params[1],
			Epoch:  -1,
			Block:  -1,
		}
		if len(params) > 2 {
			wp.Boundary = params[2]
		}
		c.mu.Lock()
		cb := c.onWork
		c.mu.Unlock()
		if cb != nil {
			cb(wp)
		}
	case msg.Method == "mining.set_difficulty":
		// Boundary for this dialect travels in mining.notify instead.
	case msg.ID != nil:
		c.mu.Lock()
		sol, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		accepted := c.onAccepted
		rejected := c.onRejected
		c.mu.Unlock()
		if !ok {
			return
		}
		delay := time.Since(sol.Submitted)
		if len(msg.Error) > 0 && string(msg.Error) != "null" {
			if rejected != nil {
				rejected(delay, 0)
			}
			return
		}
		if accepted != nil {
			accepted(delay, 0, false)
		}
	}
}

func (c *Client) send(method string, params interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "marshal stratum params")
	}
	line, err := json.Marshal(rpcMessage{ID: &id, Method: method, Params: raw})
	if err != nil {
		return errors.Wrap(err, "marshal stratum request")
	}
	line = append(line, '\n')
	_, err = conn.Write(line)
	return errors.Wrap(err, "write stratum request")
}

func (c *Client) teardown() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.raiseDisconnected()
}

func (c *Client) raiseDisconnected() {
	c.mu.Lock()
	cb := c.onDisconnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
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

// StratumMode reports the negotiated dialect; a fuller implementation
// would parse it from mining.subscribe's reply, but nothing in the spec
// requires that negotiation, so it defaults to 0 until SetStratumMode is
// called by a caller that has done its own negotiation out of band.
func (c *Client) StratumMode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stratumMode
}

// SetStratumMode pins the dialect this session reports.
func (c *Client) SetStratumMode(mode int) {
	c.mu.Lock()
	c.stratumMode = mode
	c.mu.Unlock()
}

func (c *Client) SubmitSolution(sol client.Solution) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = sol
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	params, err := json.Marshal([]interface{}{sol.WorkHash, utils.FormatHexUint64(sol.Nonce), sol.MixDigest})
	if err != nil {
		return errors.Wrap(err, "marshal solution params")
	}
	line, err := json.Marshal(rpcMessage{ID: &id, Method: "mining.submit", Params: params})
	if err != nil {
		return errors.Wrap(err, "marshal solution submit")
	}
	line = append(line, '\n')
	_, err = conn.Write(line)
	return errors.Wrap(err, "write solution submit")
}

func (c *Client) SubmitHashrate(hashrateHs float64, id string) {
	params, err := json.Marshal([]interface{}{id, hashrateHs})
	if err != nil {
		return
	}
	c.mu.Lock()
	c.nextID++
	msgID := c.nextID
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	line, err := json.Marshal(rpcMessage{ID: &msgID, Method: "mining.hashrate", Params: params})
	if err != nil {
		return
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		c.log.WithError(err).Debug("hashrate submit failed")
	}
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

var _ client.Client = (*Client)(nil)
