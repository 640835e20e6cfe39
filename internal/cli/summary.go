package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the subject's memory",
		Long:  "Show the buffer size, the newest turns and the top items of each long-term category.",
		Run:   runSummary,
	}

	RootCmd.AddCommand(cmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := openMemory(cmd.Context(), s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}
	printJSON(cmd, m.Summary())
}
