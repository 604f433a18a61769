// Package router implements the session state machine and work-queue
// dispatch of spec.md §4.F, generalizing the teacher's server/session.go
// Session type (queueOut, cleanUp, the send/stop channel pair) away from
// per-topic subscriptions toward this spec's flat username routing model.
package router

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/handlers"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

// State is a connection's position in the spec.md §4.F state machine.
type State int

// Recognized connection states.
const (
	StateAccepted State = iota
	StateAuthenticated
	StateClosing
	StateClosed
)

// sendWatermark is the per-connection outbound queue depth beyond which new
// submissions are dropped with a slow_consumer counter, rather than blocking
// the worker that is trying to deliver them (spec.md §4.F Writer).
const sendWatermark = 256

// sendQueueCap is the channel capacity backing the per-connection writer.
const sendQueueCap = sendWatermark * 2

// closeLingerTimeout bounds how long the writer keeps draining after a
// session transitions to Closing before it is forced to Closed.
const closeLingerTimeout = 5 * time.Second

// rawWriter is the minimal transport-write surface a Session needs. body is
// always tag4∥JSON-body (proto.EncodeBody's output, with no length
// prefix); a length-prefixed transport (raw TCP) is responsible for adding
// its own framing on top, a message-framed one (WebSocket) writes body as
// a single message.
type rawWriter interface {
	WriteFrame(body []byte) error
	Close() error
}

// Session is a single live connection. One goroutine reads frames from the
// transport (the reader), one drains outbound frames to it (the writer);
// neither touches the other's end of the socket (Design Notes §9: "no task
// both reads and writes the same connection").
type Session struct {
	id   string
	conn rawWriter

	remoteAddr string

	mu    sync.RWMutex
	state State

	userID   int64
	username string

	send chan []byte
	stop chan struct{}

	slowConsumerDrops atomic.Int64

	dir    *directory.Directory
	router *Router
}

// ConnID implements handlers.ConnInfo.
func (s *Session) ConnID() string { return s.id }

// UserID implements handlers.ConnInfo.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Username implements handlers.ConnInfo.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// IsAuthenticated implements handlers.ConnInfo.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated
}

// RemoteAddr implements handlers.ConnInfo.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Bind implements handlers.Binder: called by the login/register handlers to
// promote a connection from Accepted to Authenticated.
func (s *Session) Bind(userID int64, username string) error {
	if err := s.dir.AuthenticateConnection(s.id, userID, username); err != nil {
		return err
	}
	s.mu.Lock()
	s.userID = userID
	s.username = username
	s.state = StateAuthenticated
	s.mu.Unlock()
	return nil
}

// Unbind implements handlers.Binder: called by logout. The connection stays
// open but reverts to requiring re-authentication for restricted tags.
func (s *Session) Unbind() {
	s.mu.Lock()
	s.state = StateAccepted
	s.mu.Unlock()
}

func (s *Session) currentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// queueOut attempts to enqueue env for delivery on this session's writer. It
// never blocks the caller: a full queue increments the slow_consumer
// counter and drops the frame (spec.md §4.F Writer).
func (s *Session) queueOut(env *proto.Envelope) {
	body, err := proto.EncodeBody(env)
	if err != nil {
		log.Error().Str("session", s.id).Err(err).Msg("router: envelope encode failed")
		return
	}
	select {
	case s.send <- body:
	default:
		total := s.slowConsumerDrops.Add(1)
		log.Warn().Str("session", s.id).Int64("total_dropped", total).Msg("router: slow_consumer, dropped frame")
	}
}

// writerLoop drains s.send strictly FIFO, writing each frame to the
// transport (spec.md §4.F Writer: "writes are strictly FIFO for frames
// submitted to the same connection").
func (s *Session) writerLoop() {
	for {
		select {
		case body, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteFrame(body); err != nil {
				s.router.closeSession(s, "write_error")
				return
			}
		case <-s.stop:
			s.drainAndClose()
			return
		}
	}
}

func (s *Session) drainAndClose() {
	deadline := time.After(closeLingerTimeout)
	for {
		select {
		case body, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.WriteFrame(body)
		case <-deadline:
			return
		}
	}
}

// readerLoop reads frames from the transport, decodes them, and pushes
// valid envelopes to the router's global work queue (spec.md §4.F Reader).
func (s *Session) readerLoop(read func() ([]byte, error)) {
	consecutiveErrors := 0
	const maxConsecutiveErrors = 8

	for {
		if s.currentState() >= StateClosing {
			return
		}
		raw, err := read()
		if err != nil {
			if err != io.EOF {
				log.Error().Str("session", s.id).Err(err).Msg("router: read error")
			}
			s.router.closeSession(s, "transport_closed")
			return
		}

		env, err := proto.DecodeFrame(raw, proto.DefaultMaxFrameSize)
		if err != nil {
			consecutiveErrors++
			s.queueOut(proto.NewError(err.Error()))
			if consecutiveErrors >= maxConsecutiveErrors {
				s.router.closeSession(s, "policy_violation")
				return
			}
			continue
		}
		consecutiveErrors = 0

		if err := proto.Validate(env); err != nil {
			s.queueOut(proto.NewError(err.Error()))
			continue
		}

		if s.currentState() == StateAccepted && !handlers.AllowedBeforeAuth(env.Type) {
			s.queueOut(proto.NewError("unauthorized"))
			continue
		}

		s.router.enqueueWork(workItem{session: s, env: env})
	}
}
