package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/breakyard/shiftledger/internal/archive"
	"github.com/breakyard/shiftledger/internal/config"
)

// ShiftsOptions holds flags for the shifts command.
type ShiftsOptions struct {
	*RootOptions
	ShiftID string
}

// NewShiftsCommand creates the shifts command.
func NewShiftsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShiftsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "List archived shifts",
		Long: `List shifts from the archive database, most recent first. With --id,
print that shift's salvage entries instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShifts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ShiftID, "id", "", "show entries for one shift")

	return cmd
}

func runShifts(opts *ShiftsOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	store, err := archive.Open(filepath.Join(cfg.DataDir, archiveFileName))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open shift archive", err)
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	if opts.ShiftID != "" {
		entries, err := store.Entries(ctx, opts.ShiftID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read entries", err)
		}
		if len(entries) == 0 {
			fmt.Fprintf(w, "no entries for shift %s\n", opts.ShiftID)
			return nil
		}
		for _, e := range entries {
			verb := "salvaged"
			if e.Destroyed {
				verb = "destroyed"
			}
			fmt.Fprintf(w, "%s  %-9s %-30s $%.2f via %s\n",
				e.SystemTime.Format(time.RFC3339), verb, e.ObjectName, e.Value, e.SalvagedBy)
		}
		return nil
	}

	shifts, err := store.ListShifts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list shifts", err)
	}
	if len(shifts) == 0 {
		fmt.Fprintln(w, "no archived shifts")
		return nil
	}
	for _, s := range shifts {
		race := ""
		if s.Race {
			race = "  [race]"
		}
		fmt.Fprintf(w, "%s  %s  %-9s salvaged $%.2f  destroyed $%.2f%s\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.ExitCause,
			s.ValueSalvaged, s.ValueDestroyed, race)
	}
	return nil
}
