package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/unit"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the unit-record JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(unit.Schema)

			path := filepath.Join(cfg.Root, "eval-schema.json")
			if err := os.WriteFile(path, []byte(unit.Schema), 0o644); err != nil {
				return miqerr.Wrap(miqerr.Permanent, err, "writing eval-schema.json")
			}
			return nil
		},
	}
}
