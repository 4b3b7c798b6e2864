package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipforge/clipforge/internal"
	"github.com/clipforge/clipforge/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program. Any file paths provided as
// positional arguments are ingested once and the process exits;
// otherwise the server watches the configured drop folder until
// interrupted.
func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (environment variables are used when omitted)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.DEBUG.Level())
	}

	config := internal.ClipForgeConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "%s\n", err.Error())
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		log.Emit(logger.FATAL, "Configuration invalid: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx, flag.Args()); err != nil {
		log.Emit(logger.FATAL, "ClipForge has encountered an unrecoverable error: %s\n", err.Error())
		os.Exit(1)
	}

	log.Emit(logger.STOP, "ClipForge has shutdown\n")
}
