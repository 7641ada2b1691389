package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breakyard/shiftledger/internal/archive"
	"github.com/breakyard/shiftledger/internal/broadcast"
	"github.com/breakyard/shiftledger/internal/config"
	"github.com/breakyard/shiftledger/internal/persist"
	"github.com/breakyard/shiftledger/internal/registry"
)

const archiveFileName = "shifts.db"

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger daemon",
		Long: `Run the ledger daemon: open the shift archive, expose the live
websocket feed, and launch the relay if configured. The process runs until
SIGINT or SIGTERM; an active shift is aborted and persisted on the way down.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create data dir", err)
	}

	store, err := archive.Open(filepath.Join(cfg.DataDir, archiveFileName))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open shift archive", err)
	}
	defer store.Close()

	hub := broadcast.NewHub()
	var relay *broadcast.Relay
	if cfg.Broadcast.Enabled {
		if err := hub.Start(fmt.Sprintf(":%d", cfg.Broadcast.ListenPort)); err != nil {
			return WrapExitError(ExitCommandError, "failed to start broadcast", err)
		}
		if cfg.Broadcast.RelayPort > 0 {
			relay = broadcast.StartRelay(
				cfg.Broadcast.ListenPort, cfg.Broadcast.RelayPort,
				cfg.Broadcast.RelayAllInterfaces)
		}
	}

	reg := registry.New(hub, persist.NewWriter(cfg.DataDir),
		registry.WithArchiver(store))
	Host(reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	// A shift still open at shutdown is ended and flushed so nothing
	// recorded is lost.
	if err := reg.EndShift("abort"); err != nil && !errors.Is(err, registry.ErrNoShift) {
		fmt.Fprintf(cmd.ErrOrStderr(), "final shift flush failed: %v\n", err)
	}

	relay.Stop()
	shutdownCtx, cancel := shutdownContext()
	defer cancel()
	return hub.Shutdown(shutdownCtx)
}

// shutdownContext bounds how long we wait for subscriber close handshakes.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// hostHook receives the wired registry when serve starts. The embedding
// host (the game-side adapter) replaces this to attach its capture calls.
var hostHook = func(*registry.Registry) {}

// Host hands the running registry to the embedding host adapter.
func Host(r *registry.Registry) { hostHook(r) }

// SetHostHook installs the host adapter callback. Must be called before
// serve runs.
func SetHostHook(fn func(*registry.Registry)) {
	if fn != nil {
		hostHook = fn
	}
}
