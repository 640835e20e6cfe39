package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/memory"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database and memory statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Store  *store.Stats  `json:"store"`
	Memory *memory.Stats `json:"memory"`
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}
	m, err := openMemory(cmd.Context(), s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}
	ms := m.Stats()

	printJSON(cmd, statsOutput{Store: st, Memory: &ms})
}
