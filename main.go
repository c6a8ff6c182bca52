package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelgrab/reelgrab/internal"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program: load the user configuration,
// construct the server and run it until interrupted.
func main() {
	configPath := flag.String("config", "./reelgrab.toml", "path to the TOML configuration file")
	flag.Parse()

	config := internal.ReelGrabConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "ReelGrab stopped with error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "ReelGrab shut down\n")
}
