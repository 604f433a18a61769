// Package supervisor owns process lifecycle: configuration, storage and
// router startup, and graceful shutdown, generalizing the teacher's
// server/shutdown.go signal handling and listener teardown (hub.shutdown,
// globals.sessionStore.Shutdown, graceful listener close) into a single
// Supervisor type per spec.md §4.G.
package supervisor

import (
	"context"
	"encoding/hex"
	"errors"
	"expvar"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/auth"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/config"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/handlers"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/idgen"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/router"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/sqlite"
)

// Supervisor owns the router, the storage adapter, and the process's two
// listeners (WebSocket over HTTP, and an optional raw TCP listener).
type Supervisor struct {
	cfg    *config.Config
	r      *router.Router
	httpSrv *http.Server
	tcpLn  net.Listener
}

// New wires every component per the config: opens storage, constructs auth
// primitives, and starts the router's worker pool, but does not yet accept
// connections (see Run).
func New(cfg *config.Config) (*Supervisor, error) {
	configureLogging(cfg.Log.Level)

	if cfg.Store.Driver != "sqlite" {
		return nil, errors.New("supervisor: unsupported store driver " + cfg.Store.Driver)
	}
	store.SetAdapter(&sqlite.Adapter{})
	if err := store.Open(cfg.Store.DSN); err != nil {
		return nil, err
	}

	secret, err := tokenSecret(cfg.Auth.TokenSecretHex)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenIssuer(secret)

	gen, err := idgen.New(cfg.IDGen.WorkerID)
	if err != nil {
		return nil, err
	}
	handlers.SetIDGenerator(gen)

	login := auth.NewFailedLoginTracker(cfg.Auth.LoginMaxTries, cfg.LoginLockout())

	r := router.New(router.Config{
		WorkerCount: cfg.Router.WorkerCount,
		Policy: directory.Policy{
			MaxConnections: cfg.Directory.MaxConnections,
			MaxPerIP:       cfg.Directory.MaxPerIP,
			MaxPerUser:     cfg.Directory.MaxPerUser,
		},
		Tokens: tokens,
		RegPolicy: auth.RegisterPolicy{
			MaxUsernameLen: cfg.Auth.MaxUsernameLen,
			MinPasswordLen: cfg.Auth.MinPasswordLen,
		},
		Login:       login,
		PBKDF2Iter:  cfg.Auth.PBKDF2Iterations,
		PruneEvery:  cfg.PruneInterval(),
		IdleTimeout: cfg.IdleTimeout(),
	})

	return &Supervisor{cfg: cfg, r: r}, nil
}

// Run starts accepting connections and blocks until a termination signal
// arrives (SIGINT, SIGTERM, SIGHUP, matching the teacher's signalHandler),
// then shuts down gracefully.
func (s *Supervisor) Run() error {
	stop := signalHandler()

	errc := make(chan error, 2)

	if s.cfg.Listen.WebSocket != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.r.ServeWebSocket)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/vars", expvar.Handler())
		s.httpSrv = &http.Server{
			Addr:    s.cfg.Listen.WebSocket,
			Handler: gorillahandlers.CombinedLoggingHandler(os.Stdout, mux),
		}
		go func() {
			log.Info().Str("addr", s.cfg.Listen.WebSocket).Msg("websocket listener starting")
			if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- err
			}
		}()
	}

	if s.cfg.Listen.TCP != "" {
		ln, err := net.Listen("tcp", s.cfg.Listen.TCP)
		if err != nil {
			return err
		}
		s.tcpLn = ln
		go func() {
			log.Info().Str("addr", s.cfg.Listen.TCP).Msg("tcp listener starting")
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				go s.r.ServeTCP(conn)
			}
		}()
	}

	select {
	case <-stop:
		log.Info().Msg("shutdown signal received")
	case err := <-errc:
		log.Error().Err(err).Msg("listener failed")
	}

	return s.Shutdown()
}

// Shutdown stops accepting new connections, drains the router, and closes
// storage (spec.md §4.G: "stop accepting; broadcast shutdown; close
// writers with a deadline; close the listener last").
func (s *Supervisor) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
	if s.tcpLn != nil {
		_ = s.tcpLn.Close()
	}

	s.r.Shutdown()

	if err := store.Close(); err != nil {
		return err
	}
	log.Info().Msg("supervisor stopped")
	return nil
}

func signalHandler() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	return c
}

func tokenSecret(hexSecret string) ([]byte, error) {
	if hexSecret == "" {
		return nil, errors.New("supervisor: auth.token_secret_hex must be configured")
	}
	return hex.DecodeString(hexSecret)
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}
