package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/nickyhof/MiniDB"
	"github.com/nickyhof/MiniDB/internal/config"
	"github.com/nickyhof/MiniDB/internal/logging"
)

// Version is set at build time via -ldflags
var Version = "dev"

// shutdownTimeout bounds how long in-flight requests may run after a signal.
const shutdownTimeout = 10 * time.Second

// Flags are the command-line options of the server.
type Flags struct {
	config.Config `embed:""`
	Server        config.Server `embed:""`

	Version kong.VersionFlag `help:"Show version and exit"`
}

// Validate checks the storage, logging and server settings.
func (f *Flags) Validate() error {
	if err := f.Config.Validate(); err != nil {
		return err
	}
	return f.Server.Validate()
}

func main() {
	var flags Flags
	ctx := kong.Parse(&flags,
		kong.Name("minidb-server"),
		kong.Description("MiniDB HTTP SQL server"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)
	if err := flags.Validate(); err != nil {
		ctx.Fatalf("%v", err)
	}
	if err := flags.SetupLogging(os.Stderr); err != nil {
		ctx.Fatalf("%v", err)
	}

	if err := serve(&flags); err != nil {
		logging.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// serve runs the server until SIGINT or SIGTERM.
func serve(flags *Flags) error {
	storage, err := flags.OpenStorage(context.Background())
	if err != nil {
		return err
	}
	instance, err := MiniDB.Open(storage)
	if err != nil {
		storage.Close()
		return err
	}
	defer func() {
		if err := instance.Close(); err != nil {
			logging.Error("failed to close database", "error", err)
		}
	}()

	server := NewServer(instance, flags.Server)
	if err := server.Start(flags.Server.Listen); err != nil {
		return err
	}
	logging.Info("MiniDB server started", "version", Version, "backend", flags.Storage.Backend, "addr", server.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("shutting down", "signal", sig.String())
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		return err
	}
	logging.Info("server stopped")
	return nil
}
