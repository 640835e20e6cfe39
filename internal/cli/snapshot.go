package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the subject's full memory",
		Run:   runSnapshot,
	}

	RootCmd.AddCommand(cmd)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := openMemory(cmd.Context(), s, subjectFlag)
	if err != nil {
		exitErr("load memory", err)
	}
	printJSON(cmd, m.Snapshot())
}
