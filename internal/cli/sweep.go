package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Drop turns older than the retention period",
		Long: "Run the retention sweep on the subject's memory and save the result. With --interval " +
			"the sweep repeats until interrupted.",
		Run: runSweep,
	}

	cmd.Flags().Duration("interval", 0, "Repeat the sweep on this interval")

	RootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	interval, _ := cmd.Flags().GetDuration("interval")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := openMemory(ctx, s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}

	if interval <= 0 {
		res := m.Sweep(time.Now())
		if err := s.SaveSnapshot(ctx, m.Snapshot()); err != nil {
			exitErr("save snapshot", err)
		}
		printJSON(cmd, res)
		return
	}

	logger.Info("sweeping", "subject", subjectFlag, "interval", interval)
	err = m.RunSweeper(ctx, interval)
	if serr := s.SaveSnapshot(context.WithoutCancel(ctx), m.Snapshot()); serr != nil {
		exitErr("save snapshot", serr)
	}
	if err != nil && ctx.Err() == nil {
		exitErr("sweep", err)
	}
}
