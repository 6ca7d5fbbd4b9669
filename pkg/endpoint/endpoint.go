// Package endpoint implements the ordered registry of configured pool
// endpoints and the active-selection cursor described in spec §3/§4.1.
package endpoint

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cakotreo/nsfminer/pkg/client"
)

// ExitHost is the sentinel host value meaning "when reached, terminate
// the process" (spec §3).
const ExitHost = "exit"

// Descriptor identifies one remote pool provider. Immutable once
// constructed except for Unrecoverable, which is flipped by an external
// caller once an endpoint has failed in a way that makes retry pointless.
type Descriptor struct {
	id         string
	uri        string
	host       string
	port       int
	family     client.Family
	mu         sync.RWMutex
	unrecoverable bool
}

// New constructs a Descriptor. Validation of uri beyond basic parseability
// is the caller's responsibility (spec §4.1: "no validation beyond
// parseability, performed by the external URI parser").
func New(uri, host string, port int, family client.Family) *Descriptor {
	return &Descriptor{
		id:     uuid.NewString(),
		uri:    uri,
		host:   host,
		port:   port,
		family: family,
	}
}

func (d *Descriptor) ID() string          { return d.id }
func (d *Descriptor) URI() string         { return d.uri }
func (d *Descriptor) Host() string        { return d.host }
func (d *Descriptor) Port() int           { return d.port }
func (d *Descriptor) Family() client.Family { return d.family }

// Unrecoverable reports whether this endpoint has been flagged as not
// worth retrying.
func (d *Descriptor) Unrecoverable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.unrecoverable
}

// MarkUnrecoverable flags the endpoint so the next rotation discards it.
func (d *Descriptor) MarkUnrecoverable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unrecoverable = true
}

// IsExit reports whether this descriptor's host is the "exit" sentinel.
func (d *Descriptor) IsExit() bool {
	return d.host == ExitHost
}

// Snapshot is one row of introspection output (spec §4.1 snapshot(),
// §6 getConnectionsJson()).
type Snapshot struct {
	Index  int    `json:"index"`
	Active bool   `json:"active"`
	URI    string `json:"uri"`
}

// Registry is the ordered, mutable list of endpoint descriptors plus the
// active-index cursor and per-endpoint connection-attempt counter (spec
// §3 "Active selection"). The zero value is an empty registry, as is the
// one NewRegistry returns.
//
// Every method takes the registry's own mutex, so each call is atomic on
// its own. The §5 async-pending interlock is not kept here: pkg/pool owns
// it, and calls the registry both from its strand and from control-surface
// methods running on the caller's goroutine.
type Registry struct {
	mu        sync.Mutex
	endpoints []*Descriptor
	cursor    int
	attempts  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a descriptor. Index 0 is the preferred endpoint; any other
// index is a fallback.
func (r *Registry) Add(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints, d)
}

// Len returns the number of configured endpoints.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}

// Remove deletes the descriptor at idx. It fails if idx is out of range or
// equals the active cursor (spec §4.1). Callers are expected to have
// already checked the async-pending interlock.
func (r *Registry) Remove(idx int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.endpoints) {
		return errors.New("index out-of-bounds")
	}
	if idx == r.cursor {
		return errors.New("can't remove active connection")
	}
	r.endpoints = append(r.endpoints[:idx], r.endpoints[idx+1:]...)
	if r.cursor > idx {
		r.cursor--
	}
	return nil
}

// Cursor returns the current active index and the registry length.
func (r *Registry) Cursor() (idx, length int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor, len(r.endpoints)
}

// Attempts returns the connection-attempt counter for the current
// endpoint.
func (r *Registry) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// SetAttempts overwrites the connection-attempt counter.
func (r *Registry) SetAttempts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = n
}

// IncrementAttempts bumps the connection-attempt counter and returns the
// new value.
func (r *Registry) IncrementAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	return r.attempts
}

// SetCursor forcibly relocates the cursor, clamping it into [0, len) (or
// leaving it at 0 when the registry is empty). It does not reset attempts
// or bump counters; callers that need those side effects (select,
// failover, rotation) do so explicitly.
func (r *Registry) SetCursor(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCursorLocked(idx)
}

func (r *Registry) setCursorLocked(idx int) {
	if len(r.endpoints) == 0 {
		r.cursor = 0
		return
	}
	if idx < 0 || idx >= len(r.endpoints) {
		idx = 0
	}
	r.cursor = idx
}

// Clamp brings the cursor back into range after a removal shrinks the
// registry (spec §4.4 step 2/3).
func (r *Registry) Clamp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCursorLocked(r.cursor)
}

// Active returns the descriptor at the cursor, or nil if the registry is
// empty.
func (r *Registry) Active() *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return nil
	}
	return r.endpoints[r.cursor]
}

// At returns the descriptor at idx, or nil if out of range.
func (r *Registry) At(idx int) *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.endpoints) {
		return nil
	}
	return r.endpoints[idx]
}

// IndexOf returns the index of the descriptor whose URI matches uri
// case-insensitively, or -1 if not found.
func (r *Registry) IndexOf(uri string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.endpoints {
		if strings.EqualFold(d.uri, uri) {
			return i
		}
	}
	return -1
}

// RemoveActive deletes the endpoint currently at the cursor; used by
// rotateConnect when that endpoint is unrecoverable or retry-exhausted.
// Unlike Remove, this is always legal regardless of cursor position
// because the caller (rotateConnect, running on the manager's strand) is
// precisely the one place allowed to discard the active endpoint.
func (r *Registry) RemoveActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return
	}
	idx := r.cursor
	r.endpoints = append(r.endpoints[:idx], r.endpoints[idx+1:]...)
	r.setCursorLocked(r.cursor)
}

// Snapshot returns (index, active?, uri) triples for introspection (spec
// §4.1, §6 getConnectionsJson()).
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.endpoints))
	for i, d := range r.endpoints {
		out[i] = Snapshot{Index: i, Active: i == r.cursor, URI: d.uri}
	}
	return out
}
