// Package httppoll implements the HTTP-poll client family: a getwork-style
// JSON-RPC endpoint polled on an interval instead of held open as a
// session. Grounded on the teacher's pkg/solo/solo.go poll loop,
// generalized off its quantum-specific proof fields onto client.WorkPackage.
package httppoll

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cakotreo/nsfminer/pkg/client"
	"github.com/cakotreo/nsfminer/pkg/config"
	"github.com/cakotreo/nsfminer/pkg/utils"
)

// getworkResponse follows the eth_getWork convention widely used by
// getwork-style HTTP-poll pools.
type getworkResponse struct {
	Result []string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client polls an HTTP endpoint for work instead of holding a persistent
// session.
type Client struct {
	log      *logrus.Entry
	settings config.Settings
	http     *http.Client

	mu         sync.Mutex
	ep         client.Endpoint
	connected  bool
	stopCh     chan struct{}
	lastWorkAt time.Time
	wg         sync.WaitGroup

	onConnected    client.ConnectedCallback
	onDisconnected client.DisconnectedCallback
	onWork         client.WorkReceivedCallback
	onAccepted     client.SolutionAcceptedCallback
	onRejected     client.SolutionRejectedCallback
}

// New constructs an httppoll client with a request timeout derived from
// settings.NoResponseTimeoutSeconds.
func New(log *logrus.Entry, settings config.Settings) *Client {
	timeout := time.Duration(settings.NoResponseTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		log:      log,
		settings: settings,
		http:     &http.Client{Timeout: timeout},
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
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop(stopCh)
}

func (c *Client) pollLoop(stopCh chan struct{}) {
	defer c.wg.Done()

	wp, err := c.fetchWork()
	if err != nil {
		c.log.WithError(err).Warn("getwork poll failed on initial fetch")
		c.raiseDisconnected()
		return
	}

	c.mu.Lock()
	c.connected = true
	c.lastWorkAt = time.Now()
	cb := c.onConnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
	c.deliverWork(wp)

	interval := time.Duration(c.settings.GetworkPollIntervalSeconds) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			wp, err := c.fetchWork()
			if err != nil {
				c.log.WithError(err).Warn("getwork poll failed")
				if c.workIsStale() {
					c.raiseDisconnected()
					return
				}
				continue
			}
			c.mu.Lock()
			c.lastWorkAt = time.Now()
			c.mu.Unlock()
			c.deliverWork(wp)
		}
	}
}

func (c *Client) workIsStale() bool {
	noWorkTimeout := time.Duration(c.settings.NoWorkTimeoutSeconds) * time.Second
	if noWorkTimeout <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastWorkAt) > noWorkTimeout
}

func (c *Client) deliverWork(wp client.WorkPackage) {
	c.mu.Lock()
	cb := c.onWork
	c.mu.Unlock()
	if cb != nil {
		cb(wp)
	}
}

func (c *Client) fetchWork() (client.WorkPackage, error) {
	c.mu.Lock()
	ep := c.ep
	c.mu.Unlock()
	if ep == nil {
		return client.WorkPackage{}, errors.New("no endpoint bound")
	}

	req, err := http.NewRequest(http.MethodPost, ep.URI(), strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"eth_getWork","params":[]}`))
	if err != nil {
		return client.WorkPackage{}, errors.Wrap(err, "build getwork request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return client.WorkPackage{}, errors.Wrap(err, "getwork request")
	}
	defer resp.Body.Close()

	var body getworkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return client.WorkPackage{}, errors.Wrap(err, "decode getwork response")
	}
	if body.Error != nil {
		return client.WorkPackage{}, errors.Errorf("pool error: %s", body.Error.Message)
	}
	if len(body.Result) < 3 {
		return client.WorkPackage{}, errors.New("getwork response missing fields")
	}

	return client.WorkPackage{
		Header:   body.Result[0],
		Job:      body.Result[0],
		Epoch:    -1,
		Seed:     body.Result[1],
		Boundary: body.Result[2],
		Block:    -1,
	}, nil
}

func (c *Client) raiseDisconnected() {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnected
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	stopCh := c.stopCh
	c.stopCh = nil
	already := !c.connected
	c.connected = false
	c.mu.Unlock()
	if stopCh != nil {
		close(stopCh)
	}
	c.wg.Wait()
	if already {
		return
	}

	c.mu.Lock()
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

// StratumMode is always 0: HTTP-poll has no stratum dialect.
func (c *Client) StratumMode() int { return 0 }

func (c *Client) SubmitSolution(sol client.Solution) error {
	c.mu.Lock()
	ep := c.ep
	c.mu.Unlock()
	if ep == nil {
		return errors.New("no endpoint bound")
	}

	req, err := http.NewRequest(http.MethodPost, ep.URI(), strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"eth_submitWork","params":["`+utils.FormatHexUint64(sol.Nonce)+`","`+sol.WorkHash+`","`+sol.MixDigest+`"]}`))
	if err != nil {
		return errors.Wrap(err, "build submitWork request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.raiseRejected(sol)
		return errors.Wrap(err, "submitWork request")
	}
	defer resp.Body.Close()

	c.mu.Lock()
	cb := c.onAccepted
	c.mu.Unlock()
	if cb != nil {
		cb(0, 0, false)
	}
	return nil
}

func (c *Client) raiseRejected(sol client.Solution) {
	c.mu.Lock()
	cb := c.onRejected
	c.mu.Unlock()
	if cb != nil {
		cb(time.Since(sol.Submitted), 0)
	}
}

// SubmitHashrate posts eth_submitHashrate and ignores the response body: a
// failed hashrate report is not itself a connection failure.
func (c *Client) SubmitHashrate(hashrateHs float64, id string) {
	c.mu.Lock()
	ep := c.ep
	c.mu.Unlock()
	if ep == nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, ep.URI(), strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"eth_submitHashrate","params":["`+utils.FormatHexUint64(uint64(hashrateHs))+`","`+id+`"]}`))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Debug("hashrate submit failed")
		return
	}
	resp.Body.Close()
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
