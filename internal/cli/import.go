package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import history and snapshots from JSON",
		Long:  "Import from stdin. Expects the format produced by export; known turn ids are skipped.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		exitErr("read stdin", err)
	}

	var ex model.Export
	if err := json.Unmarshal(data, &ex); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.Import(cmd.Context(), &ex)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(cmd, map[string]any{"ok": true, "imported": res})
}
