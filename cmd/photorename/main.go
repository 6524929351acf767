package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"photorename/internal/cli"
	"photorename/internal/config"
	"photorename/internal/logging"
	"photorename/internal/metadata"
	"photorename/internal/metadata/magick"
	"photorename/internal/pipeline"
)

func openReader(name string, log *slog.Logger) (metadata.Reader, error) {
	if name == metadata.BackendMagick {
		return magick.New(log), nil
	}
	return metadata.Open(name, log)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := cli.DefaultEnv(pipeline.Deps{OpenReader: openReader})
	if err := cli.Execute(ctx, cfg, log, factory, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
