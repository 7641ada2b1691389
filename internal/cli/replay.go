package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/breakyard/shiftledger/internal/broadcast"
	"github.com/breakyard/shiftledger/internal/ledger"
	"github.com/breakyard/shiftledger/internal/persist"
	"github.com/breakyard/shiftledger/internal/registry"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Port   int
	Speed  float64
	Linger time.Duration
}

// discardFlusher drops flushed views; replay must never overwrite the
// recorded files it is reading from.
type discardFlusher struct{}

func (discardFlusher) Flush(ledger.View) error { return nil }

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <ledger.csv>",
		Short: "Re-drive a recorded ledger through the live feed",
		Long: `Replay a persisted ledger CSV as a live broadcast: a fresh shift is
started, every recorded salvage entry is re-published in order, and the
shift is ended. Useful for exercising viewers and the relay without the
game running. Nothing is written to disk.

Examples:
  shiftledger replay data/20210501T120000_ledger.csv
  shiftledger replay data/20210501T120000_ledger.csv --speed 10
  shiftledger replay data/20210501T120000_ledger.csv --linger 1m`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 32325, "websocket listen port")
	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "time scale for recorded gaps (0 = as fast as possible)")
	cmd.Flags().DurationVar(&opts.Linger, "linger", 5*time.Second, "how long to wait for subscribers before starting")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, path string) error {
	entries, err := persist.ReadLedger(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitFailure, "ledger has no entries to replay")
	}

	hub := broadcast.NewHub()
	if err := hub.Start(fmt.Sprintf(":%d", opts.Port)); err != nil {
		return WrapExitError(ExitCommandError, "failed to start broadcast", err)
	}
	defer func() {
		ctx, cancel := shutdownContext()
		defer cancel()
		_ = hub.Shutdown(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "replaying %d entries on port %d, waiting %s for subscribers\n",
		len(entries), opts.Port, opts.Linger)
	time.Sleep(opts.Linger)

	reg := registry.New(hub, discardFlusher{})
	if err := reg.StartShift(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay shift", err)
	}

	prev := entries[0].SystemTime
	for _, e := range entries {
		if opts.Speed > 0 {
			if gap := e.SystemTime.Sub(prev); gap > 0 {
				time.Sleep(time.Duration(float64(gap) / opts.Speed))
			}
			prev = e.SystemTime
		}
		if err := reg.AddSalvage(e.ObjectName, e.Mass, e.Categories, e.SalvagedBy,
			e.Value, e.MassBasedValue, e.Destroyed, e.GameTime); err != nil {
			return WrapExitError(ExitFailure, "replay publish failed", err)
		}
	}

	if err := reg.EndShift("replay"); err != nil {
		return WrapExitError(ExitFailure, "failed to end replay shift", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d entries\n", len(entries))
	return nil
}
