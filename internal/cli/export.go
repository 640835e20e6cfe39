package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export history and snapshots as JSON",
		Long:  "Export stored turns and memory snapshots. Limit to the current subject with --only.",
		Run:   runExport,
	}

	cmd.Flags().Bool("only", false, "Export only the --subject subject")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	only, _ := cmd.Flags().GetBool("only")
	subject := ""
	if only {
		subject = subjectFlag
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ex, err := s.ExportAll(cmd.Context(), subject)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd, ex)
}
