// Package directory implements the in-memory online-user index of
// spec.md §4.D, generalizing the teacher's Hub.topics sync.Map plus
// per-session Session.subs bookkeeping (hub.go, session.go) into the three
// required maps plus the endpoint-hint table, guarded by a single RWMutex
// per Design Notes §9 ("single struct owning all maps... shard... if
// contention profiles demand").
package directory

import (
	"errors"
	"sync"
	"time"
)

// Conn is the minimal shape the directory needs from a live connection: an
// id and an outbound channel handle. It intentionally does not hold a
// back-pointer to the full Session object (Design Notes §9, "Directory
// holds weak references... not back-pointers").
type Conn struct {
	ConnID   string
	UserID   int64
	Username string
	RemoteIP string
}

// Policy bundles the configurable connection limits of spec.md §4.D.
type Policy struct {
	MaxConnections int
	MaxPerIP       int
	MaxPerUser     int
}

// Errors returned by RegisterConnection / AuthenticateConnection, mapped
// 1:1 to spec.md §4.D's named rejection reasons.
var (
	ErrServerBusy      = errors.New("server_busy")
	ErrIPLimit         = errors.New("ip_limit")
	ErrUserSessionLimit = errors.New("user_session_limit")
)

// Directory is the process-wide online index.
type Directory struct {
	mu sync.RWMutex

	connByID       map[string]*Conn
	connsByUserID  map[int64]map[string]bool
	connsByUsername map[string]map[string]bool
	connsByIP      map[string]map[string]bool
	endpoints      map[int64]endpointHint

	policy Policy
}

type endpointHint struct {
	ip            string
	port          int
	lastHeartbeat time.Time
}

// New constructs an empty Directory under the given policy.
func New(policy Policy) *Directory {
	return &Directory{
		connByID:        make(map[string]*Conn),
		connsByUserID:   make(map[int64]map[string]bool),
		connsByUsername: make(map[string]map[string]bool),
		connsByIP:       make(map[string]map[string]bool),
		endpoints:       make(map[int64]endpointHint),
		policy:          policy,
	}
}

// RegisterConnection admits a new, not-yet-authenticated connection,
// enforcing the process-wide and per-IP caps.
func (d *Directory) RegisterConnection(c *Conn) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.policy.MaxConnections > 0 && len(d.connByID) >= d.policy.MaxConnections {
		return ErrServerBusy
	}
	if d.policy.MaxPerIP > 0 && len(d.connsByIP[c.RemoteIP]) >= d.policy.MaxPerIP {
		return ErrIPLimit
	}

	d.connByID[c.ConnID] = c
	if d.connsByIP[c.RemoteIP] == nil {
		d.connsByIP[c.RemoteIP] = make(map[string]bool)
	}
	d.connsByIP[c.RemoteIP][c.ConnID] = true
	return nil
}

// AuthenticateConnection binds a previously anonymous connection to a user
// identity, enforcing the per-user concurrency cap.
func (d *Directory) AuthenticateConnection(connID string, userID int64, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.connByID[connID]
	if !ok {
		return errors.New("directory: unknown connection")
	}
	if d.policy.MaxPerUser > 0 && len(d.connsByUserID[userID]) >= d.policy.MaxPerUser {
		return ErrUserSessionLimit
	}

	c.UserID = userID
	c.Username = username

	if d.connsByUserID[userID] == nil {
		d.connsByUserID[userID] = make(map[string]bool)
	}
	d.connsByUserID[userID][connID] = true

	if d.connsByUsername[username] == nil {
		d.connsByUsername[username] = make(map[string]bool)
	}
	d.connsByUsername[username][connID] = true

	return nil
}

// DropConnection removes connID from every index.
func (d *Directory) DropConnection(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked(connID)
}

func (d *Directory) dropLocked(connID string) {
	c, ok := d.connByID[connID]
	if !ok {
		return
	}
	delete(d.connByID, connID)
	if set, ok := d.connsByIP[c.RemoteIP]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(d.connsByIP, c.RemoteIP)
		}
	}
	if c.UserID != 0 {
		if set, ok := d.connsByUserID[c.UserID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(d.connsByUserID, c.UserID)
			}
		}
	}
	if c.Username != "" {
		if set, ok := d.connsByUsername[c.Username]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(d.connsByUsername, c.Username)
			}
		}
	}
}

// SessionsForUser returns the live connection ids of every session the
// given username currently has open. The returned slice is a snapshot.
func (d *Directory) SessionsForUser(username string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := d.connsByUsername[username]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// IsOnline reports whether username has at least one live connection.
func (d *Directory) IsOnline(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.connsByUsername[username]) > 0
}

// UpdateEndpoint records a client-reported (ip, port) hint, refreshed on
// every heartbeat/alive frame (spec.md §4.D).
func (d *Directory) UpdateEndpoint(userID int64, ip string, port int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoints[userID] = endpointHint{ip: ip, port: port, lastHeartbeat: time.Now()}
}

// Endpoint returns the last known endpoint hint for a user, if any.
func (d *Directory) Endpoint(userID int64) (ip string, port int, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.endpoints[userID]
	if !ok {
		return "", 0, false
	}
	return h.ip, h.port, true
}

// Prune evicts every connection whose owning username has not sent a
// heartbeat within timeout and returns the dropped connection ids, so the
// caller (the session router) can close their sockets. Connections that
// never authenticated are not touched here — see spec.md §4.F state
// machine for the accepted-but-unauthenticated idle path.
func (d *Directory) Prune(timeout time.Duration) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	var dropped []string
	for uid, hint := range d.endpoints {
		if hint.lastHeartbeat.After(cutoff) {
			continue
		}
		for connID, c := range d.connByID {
			if c.UserID == uid {
				dropped = append(dropped, connID)
				d.dropLocked(connID)
			}
		}
		delete(d.endpoints, uid)
	}
	return dropped
}

// Count returns the current number of live connections.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.connByID)
}
