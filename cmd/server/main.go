// Command server runs the secure instant-messaging session router
// described in spec.md: it loads configuration, opens storage, and serves
// WebSocket and/or raw TCP client connections until a termination signal
// arrives.
package main

import (
	"flag"
	"log"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/config"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "./sims.conf", "path to the JSON-with-comments config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	sup, err := supervisor.New(cfg)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	if err := sup.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
