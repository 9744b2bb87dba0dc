package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BusBom/rpi-server/qa/scenarios"
)

var quietReplay bool

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>...",
	Short: "Replay scripted sensor readings through the control loop",
	Args:  cobra.MinimumNArgs(1),
	RunE:  replay,
}

func init() {
	replayCmd.Flags().BoolVarP(&quietReplay, "quiet", "q", false, "do not print emitted displays")
	rootCmd.AddCommand(replayCmd)
}

func replay(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		sc, err := scenarios.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		fmt.Fprintf(out, "== %s\n", sc.Name)
		display := out
		if quietReplay {
			display = nil
		}
		report, err := scenarios.Run(cmd.Context(), sc, display)
		if err != nil {
			return fmt.Errorf("run %s: %w", path, err)
		}
		report.Summary(out)
		for _, f := range report.Failures() {
			fmt.Fprintln(cmd.ErrOrStderr(), f)
		}
		if report.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
	}
	return nil
}

