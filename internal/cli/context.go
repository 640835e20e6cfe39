package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [json]",
		Short: "Find the buffered turn most related to a query turn",
		Long: "Scan the subject's short-horizon buffer, newest first, for the entry with the best " +
			"keyword overlap and topic match. Prints null when nothing clears the threshold.",
		Args: cobra.MaximumNArgs(1),
		Run:  runContext,
	}

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	query, err := readRecord(cmd, args)
	if err != nil {
		exitErr("context", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := openMemory(cmd.Context(), s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}

	entry, ok := m.RelevantContext(query)
	if !ok {
		printJSON(cmd, nil)
		return
	}
	printJSON(cmd, entry)
}
