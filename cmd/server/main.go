package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/linechat/internal/config"
	"github.com/Tyrowin/linechat/internal/logging"
	"github.com/Tyrowin/linechat/internal/server"
)

const version = "0.3.0"

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	data, err := config.LoadYAML(config.ConfigPath(os.Args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cmd := &cli.Command{
		Name:    "linechat",
		Usage:   "a line-oriented multi-user chat server",
		Version: version,
		Flags:   config.Flags(data),
		Action:  run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	opts := config.LoggingOptions(cmd)
	fmt.Print(banner(version, opts.NoColor))

	log, err := logging.Setup(opts)
	if err != nil {
		return err
	}

	srv, err := server.New(config.ServerConfig(cmd), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting linechat", "version", version)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("linechat stopped")
	return nil
}
