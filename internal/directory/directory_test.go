package directory

import (
	"testing"
	"time"
)

func TestRegisterAndAuthenticateConnection(t *testing.T) {
	d := New(Policy{})

	conn := &Conn{ConnID: "c1", RemoteIP: "10.0.0.1"}
	if err := d.RegisterConnection(conn); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}
	if d.IsOnline("alice") {
		t.Fatal("alice should not be online before authenticating")
	}

	if err := d.AuthenticateConnection("c1", 1, "alice"); err != nil {
		t.Fatalf("AuthenticateConnection: %v", err)
	}
	if !d.IsOnline("alice") {
		t.Fatal("alice should be online after authenticating")
	}
	sessions := d.SessionsForUser("alice")
	if len(sessions) != 1 || sessions[0] != "c1" {
		t.Fatalf("unexpected sessions for alice: %v", sessions)
	}
}

func TestAuthenticateConnectionRejectsUnknownConnID(t *testing.T) {
	d := New(Policy{})
	if err := d.AuthenticateConnection("does-not-exist", 1, "alice"); err == nil {
		t.Fatal("expected an error for an unregistered connection id")
	}
}

func TestRegisterConnectionEnforcesServerWideCap(t *testing.T) {
	d := New(Policy{MaxConnections: 1})
	if err := d.RegisterConnection(&Conn{ConnID: "c1", RemoteIP: "10.0.0.1"}); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}
	if err := d.RegisterConnection(&Conn{ConnID: "c2", RemoteIP: "10.0.0.2"}); err != ErrServerBusy {
		t.Fatalf("expected ErrServerBusy, got %v", err)
	}
}

func TestRegisterConnectionEnforcesPerIPCap(t *testing.T) {
	d := New(Policy{MaxPerIP: 1})
	if err := d.RegisterConnection(&Conn{ConnID: "c1", RemoteIP: "10.0.0.1"}); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}
	if err := d.RegisterConnection(&Conn{ConnID: "c2", RemoteIP: "10.0.0.1"}); err != ErrIPLimit {
		t.Fatalf("expected ErrIPLimit, got %v", err)
	}
	// A different IP is unaffected by the first IP's cap.
	if err := d.RegisterConnection(&Conn{ConnID: "c3", RemoteIP: "10.0.0.2"}); err != nil {
		t.Fatalf("RegisterConnection on a different IP should succeed, got %v", err)
	}
}

func TestAuthenticateConnectionEnforcesPerUserCap(t *testing.T) {
	d := New(Policy{MaxPerUser: 1})
	for _, id := range []string{"c1", "c2"} {
		if err := d.RegisterConnection(&Conn{ConnID: id, RemoteIP: "10.0.0.1"}); err != nil {
			t.Fatalf("RegisterConnection(%s): %v", id, err)
		}
	}
	if err := d.AuthenticateConnection("c1", 1, "alice"); err != nil {
		t.Fatalf("AuthenticateConnection(c1): %v", err)
	}
	if err := d.AuthenticateConnection("c2", 1, "alice"); err != ErrUserSessionLimit {
		t.Fatalf("expected ErrUserSessionLimit, got %v", err)
	}
}

func TestDropConnectionRemovesFromEveryIndex(t *testing.T) {
	d := New(Policy{})
	_ = d.RegisterConnection(&Conn{ConnID: "c1", RemoteIP: "10.0.0.1"})
	_ = d.AuthenticateConnection("c1", 1, "alice")

	d.DropConnection("c1")

	if d.IsOnline("alice") {
		t.Fatal("alice should no longer be online after DropConnection")
	}
	if d.Count() != 0 {
		t.Fatalf("expected 0 live connections, got %d", d.Count())
	}
}

func TestUpdateAndReadEndpoint(t *testing.T) {
	d := New(Policy{})
	if _, _, ok := d.Endpoint(1); ok {
		t.Fatal("expected no endpoint hint before UpdateEndpoint")
	}
	d.UpdateEndpoint(1, "203.0.113.5", 4000)
	ip, port, ok := d.Endpoint(1)
	if !ok || ip != "203.0.113.5" || port != 4000 {
		t.Fatalf("unexpected endpoint: ip=%s port=%d ok=%v", ip, port, ok)
	}
}

func TestPruneDropsStaleConnections(t *testing.T) {
	d := New(Policy{})
	_ = d.RegisterConnection(&Conn{ConnID: "c1", RemoteIP: "10.0.0.1"})
	_ = d.AuthenticateConnection("c1", 1, "alice")
	d.UpdateEndpoint(1, "203.0.113.5", 4000)

	// Backdate the heartbeat so it falls outside a 0-duration timeout.
	d.mu.Lock()
	h := d.endpoints[1]
	h.lastHeartbeat = time.Now().Add(-time.Hour)
	d.endpoints[1] = h
	d.mu.Unlock()

	dropped := d.Prune(time.Minute)
	if len(dropped) != 1 || dropped[0] != "c1" {
		t.Fatalf("expected c1 to be pruned, got %v", dropped)
	}
	if d.IsOnline("alice") {
		t.Fatal("alice should be dropped after Prune")
	}
}

func TestPruneLeavesFreshConnections(t *testing.T) {
	d := New(Policy{})
	_ = d.RegisterConnection(&Conn{ConnID: "c1", RemoteIP: "10.0.0.1"})
	_ = d.AuthenticateConnection("c1", 1, "alice")
	d.UpdateEndpoint(1, "203.0.113.5", 4000)

	dropped := d.Prune(time.Hour)
	if len(dropped) != 0 {
		t.Fatalf("expected no connections pruned, got %v", dropped)
	}
	if !d.IsOnline("alice") {
		t.Fatal("alice should still be online")
	}
}
