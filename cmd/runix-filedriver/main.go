package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/protocol"
)

// defaultIdleTimeout is how long the driver tolerates silence from the runner
// before terminating itself.
const defaultIdleTimeout = 2 * time.Minute

func main() {
	log, err := logger.New(logger.Options{Level: "info", HumanReadable: true, Writer: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	host, port, err := protocol.AddrFromEnv()
	if err != nil {
		log.Error(err, "no listen address")
		os.Exit(1)
	}

	idle := defaultIdleTimeout
	if raw := os.Getenv("RUNIX_DRIVER_IDLE_TIMEOUT"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			log.Warn("ignoring invalid RUNIX_DRIVER_IDLE_TIMEOUT")
		} else {
			idle = time.Duration(seconds) * time.Second
		}
	}

	server := protocol.NewServer(newFileDriver(), protocol.ServerOptions{
		Host:        host,
		Port:        port,
		IdleTimeout: idle,
		Logger:      log,
	})

	log.WithFields(map[string]any{"host": host, "port": port}).Info("file driver listening")
	if err := server.ListenAndServe(context.Background()); err != nil {
		log.Error(err, "serve failed")
		os.Exit(1)
	}
}
