package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List all subjects with stored history or a snapshot",
		Run:   runSubjects,
	}

	RootCmd.AddCommand(cmd)
}

func runSubjects(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	subjects, err := s.Subjects(cmd.Context())
	if err != nil {
		exitErr("list subjects", err)
	}
	if subjects == nil {
		subjects = []string{}
	}
	printJSON(cmd, subjects)
}
