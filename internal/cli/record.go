package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record [json]",
		Short: "Record a turn",
		Long: "Record one structured turn (JSON argument or stdin): append it to the subject's history, " +
			"insert it into the short-horizon buffer, promote on overflow, sweep, and save the snapshot.",
		Args: cobra.MaximumNArgs(1),
		Run:  runRecord,
	}

	RootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	r, err := readRecord(cmd, args)
	if err != nil {
		exitErr("record", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if _, err := s.AppendRecord(ctx, store.AppendParams{Subject: subjectFlag, Record: r}); err != nil {
		exitErr("append record", err)
	}

	m, err := openMemory(ctx, s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}
	entry := m.RecordTurn(r)
	if err := s.SaveSnapshot(ctx, m.Snapshot()); err != nil {
		exitErr("save snapshot", err)
	}

	printJSON(cmd, entry)
}
