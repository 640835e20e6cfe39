package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a subject's history and memory",
		Run:   runRm,
	}

	cmd.Flags().Bool("hard", false, "Permanent delete (irreversible)")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.DeleteSubject(cmd.Context(), store.RmParams{
		Subject: subjectFlag,
		Hard:    hard,
	})
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"subject":%q,"records":%d}`+"\n", subjectFlag, n)
}
