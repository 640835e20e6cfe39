package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest buffered turns",
		Run:   runRecent,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max entries (default from config)")

	RootCmd.AddCommand(cmd)
}

func runRecent(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := openMemory(cmd.Context(), s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}
	printJSON(cmd, m.RecentContext(limit))
}
