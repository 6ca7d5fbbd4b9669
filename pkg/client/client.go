// Package client defines the contract the pool manager consumes from a
// concrete pool-protocol implementation (HTTP-poll, Stratum, Simulation),
// and the wire-independent types (WorkPackage, Solution) shared between a
// client and the manager.
package client

import "time"

// StratumModeV2 is the self-reported StratumMode() value meaning
// "EthereumStratum/2.0.0", the dialect that carries an explicit epoch
// number in the session rather than deriving it from the seed. Any other
// StratumMode() value is treated as a legacy dialect where epoch must be
// derived from the work package's seed.
const StratumModeV2 = 3

// Family identifies the wire protocol a pool endpoint speaks.
type Family int

const (
	// FamilyHTTPPoll polls a JSON-RPC endpoint for work on an interval.
	FamilyHTTPPoll Family = iota
	// FamilyStratum maintains a persistent TCP session.
	FamilyStratum
	// FamilySimulation drives events in-process, for tests and benchmarking.
	FamilySimulation
)

func (f Family) String() string {
	switch f {
	case FamilyHTTPPoll:
		return "http-poll"
	case FamilyStratum:
		return "stratum"
	case FamilySimulation:
		return "simulation"
	default:
		return "unknown"
	}
}

// WorkPackage is the last work descriptor observed from the active client.
// Header is reset to empty on disconnect (manager invariant, spec §3).
type WorkPackage struct {
	Header     string // opaque identity; empty means "no work"
	Job        string
	Epoch      int64 // -1 = unknown
	Seed       string
	Boundary   string // target threshold, as a hex-encoded big-endian value
	Block      int64  // height, -1 = unknown
	Difficulty float64
}

// Empty reports whether the package carries no work.
func (wp WorkPackage) Empty() bool {
	return wp.Header == ""
}

// Solution is a candidate answer produced by the worker for the current
// work package.
type Solution struct {
	Nonce     uint64
	MixDigest string
	WorkHash  string // Header of the WorkPackage this solution answers
	Submitted time.Time
}

// Endpoint is the minimal view of a pool endpoint a client needs in order
// to connect: the full descriptor lives in pkg/endpoint, but client must
// not import endpoint (endpoint already imports client for Family, so that
// would be an import cycle) so it depends on this narrow interface instead.
type Endpoint interface {
	URI() string
	Host() string
	Port() int
	Family() Family
}

// ConnectedCallback fires once a session with the pool is live.
type ConnectedCallback func()

// DisconnectedCallback fires once the session with the pool ends, whether
// cleanly or not.
type DisconnectedCallback func()

// WorkReceivedCallback fires whenever the pool delivers a new work package.
type WorkReceivedCallback func(WorkPackage)

// SolutionAcceptedCallback fires when a previously submitted solution is
// accepted. asStale reports whether the pool accepted it only as a stale
// share (counted, but for a job it had already abandoned).
type SolutionAcceptedCallback func(delay time.Duration, minerIndex int, asStale bool)

// SolutionRejectedCallback fires when a previously submitted solution is
// rejected outright.
type SolutionRejectedCallback func(delay time.Duration, minerIndex int)

// Client is the contract every concrete pool-protocol implementation
// fulfills. The manager owns exactly one Client instance at a time (spec
// §5 "Shared resources").
type Client interface {
	// SetConnection binds the client to an endpoint ahead of Connect.
	SetConnection(ep Endpoint)
	// UnsetConnection releases the client's endpoint binding.
	UnsetConnection()

	Connect()
	Disconnect()
	IsConnected() bool
	// GetConnection returns the bound endpoint, or nil if unset.
	GetConnection() Endpoint

	// StratumMode reports the negotiated stratum dialect. The HTTP-poll
	// client always returns 0; the stratum and simulation clients return 0
	// unless SetStratumMode has pinned another value.
	StratumMode() int

	SubmitSolution(sol Solution) error
	SubmitHashrate(hashrateHs float64, id string)

	OnConnected(cb ConnectedCallback)
	OnDisconnected(cb DisconnectedCallback)
	OnWorkReceived(cb WorkReceivedCallback)
	OnSolutionAccepted(cb SolutionAcceptedCallback)
	OnSolutionRejected(cb SolutionRejectedCallback)
}
