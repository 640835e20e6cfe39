package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the subject's stored turns, oldest first",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 0, "Only the most recent N turns (0 for all)")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.History(cmd.Context(), store.HistoryParams{Subject: subjectFlag, Limit: limit})
	if err != nil {
		exitErr("history", err)
	}
	if records == nil {
		records = []model.StoredRecord{}
	}
	printJSON(cmd, records)
}
