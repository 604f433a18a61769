package router

import (
	"expvar"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/auth"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/handlers"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

// workQueueCap is the global work queue's buffer, generalizing the
// teacher's Hub.route channel (hub.go: "buffered at 4096").
const workQueueCap = 4096

// workItem carries one decoded envelope from a reader goroutine to a
// worker (spec.md §4.F: "(connection_id, envelope)").
type workItem struct {
	session *Session
	env     *proto.Envelope
}

// Config bundles the router's tunables, set once at construction.
type Config struct {
	WorkerCount int
	Policy      directory.Policy
	Tokens      *auth.TokenIssuer
	RegPolicy   auth.RegisterPolicy
	Login       *auth.FailedLoginTracker
	PBKDF2Iter  int
	PruneEvery  time.Duration
	IdleTimeout time.Duration
}

// Router is the process-wide dispatcher: the global work queue plus the
// worker pool that drains it, generalizing the teacher's Hub (hub.go) away
// from per-topic routing toward this spec's flat handler-table dispatch
// (Design Notes §9: "the router is the only long-lived root").
type Router struct {
	cfg   Config
	dir   *directory.Directory
	table handlers.Table

	work chan workItem

	mu       sync.Mutex
	sessions map[string]*Session

	nextID uint64

	shutdown chan struct{}
	wg       sync.WaitGroup

	workersLive  *expvar.Int
	sessionsLive *expvar.Int
	droppedTotal *expvar.Int
}

// New constructs a Router and starts its worker pool and periodic cleanup
// goroutine. Call Shutdown to stop it.
func New(cfg Config) *Router {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 8
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}

	r := &Router{
		cfg:          cfg,
		dir:          directory.New(cfg.Policy),
		table:        handlers.NewTable(),
		work:         make(chan workItem, workQueueCap),
		sessions:     make(map[string]*Session),
		shutdown:     make(chan struct{}),
		workersLive:  new(expvar.Int),
		sessionsLive: new(expvar.Int),
		droppedTotal: new(expvar.Int),
	}
	expvar.Publish("RouterWorkersLive", r.workersLive)
	expvar.Publish("RouterSessionsLive", r.sessionsLive)
	expvar.Publish("RouterFramesDropped", r.droppedTotal)

	for i := 0; i < cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Directory exposes the router's online-connection index, e.g. for an
// admin/metrics endpoint.
func (r *Router) Directory() *directory.Directory { return r.dir }

// Accept registers a new, not-yet-authenticated connection and returns its
// Session, or an error if the directory's capacity policy rejects it
// (spec.md §4.D: server_busy / ip_limit).
func (r *Router) Accept(conn rawWriter, remoteAddr string) (*Session, error) {
	r.mu.Lock()
	r.nextID++
	id := connIDFromCounter(r.nextID)
	r.mu.Unlock()

	if err := r.dir.RegisterConnection(&directory.Conn{ConnID: id, RemoteIP: remoteAddr}); err != nil {
		return nil, err
	}

	s := &Session{
		id:         id,
		conn:       conn,
		remoteAddr: remoteAddr,
		state:      StateAccepted,
		send:       make(chan []byte, sendQueueCap),
		stop:       make(chan struct{}),
		dir:        r.dir,
		router:     r,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.sessionsLive.Add(1)

	go s.writerLoop()
	s.queueOut(proto.NewSystemNotification("welcome"))

	return s, nil
}

// enqueueWork pushes a decoded envelope onto the global queue. If the queue
// is saturated the oldest-style backpressure is simply "reader blocks",
// which is acceptable here since readers are per-connection and a single
// slow reader does not affect other connections' workers.
func (r *Router) enqueueWork(item workItem) {
	select {
	case r.work <- item:
	case <-r.shutdown:
	}
}

// worker pops items from the global queue, executes the matching handler,
// and enqueues the response plus any fan-out on the relevant writers
// (spec.md §4.F Workers: "never perform blocking I/O on the wire directly").
func (r *Router) worker() {
	defer r.wg.Done()
	r.workersLive.Add(1)
	defer r.workersLive.Add(-1)

	for {
		select {
		case item, ok := <-r.work:
			if !ok {
				return
			}
			r.handle(item)
		case <-r.shutdown:
			return
		}
	}
}

func (r *Router) handle(item workItem) {
	fn, ok := r.table[item.env.Type]
	if !ok {
		item.session.queueOut(proto.NewError("unknown_tag"))
		return
	}

	ctx := &handlers.Context{
		Conn:             item.session,
		Binder:           item.session,
		Dir:              r.dir,
		Tokens:           r.cfg.Tokens,
		Policy:           r.cfg.RegPolicy,
		Login:            r.cfg.Login,
		PBKDF2Iterations: r.cfg.PBKDF2Iter,
		Now:              time.Now().UTC().Round(time.Millisecond),
	}

	result, err := fn(ctx, item.env)
	if err != nil {
		log.Error().Str("tag", string(item.env.Type)).Err(err).Msg("router: handler failed")
		item.session.queueOut(proto.NewError("server_error"))
		return
	}
	if result == nil {
		return
	}

	if result.Response != nil {
		item.session.queueOut(result.Response)
	}

	for _, target := range result.FanOut {
		r.deliverToUser(target.Username, target.Envelope)
	}
}

// deliverToUser enqueues env on every live connection of username, if any.
func (r *Router) deliverToUser(username string, env *proto.Envelope) {
	for _, connID := range r.dir.SessionsForUser(username) {
		r.mu.Lock()
		sess := r.sessions[connID]
		r.mu.Unlock()
		if sess != nil {
			sess.queueOut(env)
		}
	}
}

// closeSession transitions a session to Closing then Closed, dropping it
// from the directory and the router's session map.
func (r *Router) closeSession(s *Session, reason string) {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.mu.Unlock()

	close(s.stop)
	_ = s.conn.Close()
	r.dir.DropConnection(s.id)

	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
	r.sessionsLive.Add(-1)

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	log.Info().Str("session", s.id).Str("reason", reason).Msg("router: session closed")
}

// cleanupLoop periodically prunes idle connections (spec.md §4.D / §7:
// periodic cleanup job).
func (r *Router) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			dropped := r.dir.Prune(r.cfg.IdleTimeout)
			for _, connID := range dropped {
				r.mu.Lock()
				sess := r.sessions[connID]
				r.mu.Unlock()
				if sess != nil {
					r.closeSession(sess, "idle_timeout")
				}
			}
		case <-r.shutdown:
			return
		}
	}
}

// Shutdown stops the worker pool and cleanup loop and closes every live
// session, waiting up to the writer linger timeout for outbound queues to
// drain (spec.md §4.F: "supervisor shutdown transitions to Closing").
func (r *Router) Shutdown() {
	close(r.shutdown)

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.queueOut(proto.NewSystemNotification("server shutting down"))
		r.closeSession(s, "supervisor_shutdown")
	}

	r.wg.Wait()
}

func connIDFromCounter(n uint64) string {
	return strconv.FormatUint(n, 36)
}
