package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breakyard/shiftledger/internal/ledger"
	"github.com/breakyard/shiftledger/internal/persist"
)

// NewSummarizeCommand creates the summarize command.
func NewSummarizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <ledger.csv>",
		Short: "Re-render a shift summary from a persisted ledger",
		Long: `Rebuild a shift from a persisted ledger CSV and print its summary.
The CSV does not carry the shift boundaries, so the first and last entry
timestamps stand in for the start and end.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd, args[0])
		},
	}
}

func runSummarize(cmd *cobra.Command, path string) error {
	entries, err := persist.ReadLedger(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitFailure, "ledger has no entries to summarize")
	}

	id := strings.TrimSuffix(filepath.Base(path), "_ledger.csv")
	s := ledger.NewShift(id, entries[0].SystemTime)
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			return WrapExitError(ExitFailure, "failed to rebuild shift", err)
		}
	}
	s.End("recorded", entries[len(entries)-1].SystemTime)

	_, err = cmd.OutOrStdout().Write(persist.RenderSummary(s.Snapshot()))
	return err
}
