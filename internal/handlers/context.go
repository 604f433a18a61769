// Package handlers implements the one-handler-per-tag message handlers of
// spec.md §4.E. Each handler receives a (decoded envelope, connection
// context) and returns a response envelope plus a fan-out plan, mirroring
// the teacher's per-message Session methods (session.go: subscribe, leave,
// publish, login, acc...) generalized from topic-subscription semantics to
// this spec's flat username/group routing model.
package handlers

import (
	"time"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/auth"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

// ConnInfo is the minimal view of a live connection a handler needs. The
// session router's Session type implements this; handlers never depend on
// the router package directly (Design Notes §9: no cyclic references).
type ConnInfo interface {
	ConnID() string
	UserID() int64
	Username() string
	IsAuthenticated() bool
	RemoteAddr() string
}

// Binder lets a handler (login/register) bind a connection to a user
// identity, or clear it (logout), without depending on the router package.
type Binder interface {
	Bind(userID int64, username string) error
	Unbind()
}

// Context bundles everything a handler may consult: the originating
// connection, the shared directory, and the auth primitives.
type Context struct {
	Conn    ConnInfo
	Binder  Binder
	Dir     *directory.Directory
	Tokens  *auth.TokenIssuer
	Policy  auth.RegisterPolicy
	Login   *auth.FailedLoginTracker
	PBKDF2Iterations int
	Now     time.Time
}

// FanOutTarget names one recipient of a forwarded envelope.
type FanOutTarget struct {
	Username string
	Envelope *proto.Envelope
}

// Result is what every handler returns: its direct response plus whatever
// fan-out the effect requires (spec.md §4.E, Glossary "Fan-out plan").
type Result struct {
	Response *proto.Envelope
	FanOut   []FanOutTarget
}

// HandlerFunc is the shape every per-tag handler implements.
type HandlerFunc func(ctx *Context, env *proto.Envelope) (*Result, error)

// simpleResult is a convenience constructor for handlers with no fan-out.
func simpleResult(resp *proto.Envelope) (*Result, error) {
	return &Result{Response: resp}, nil
}
