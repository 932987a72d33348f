package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <backup-id>",
		Short: "Verify a backup's integrity",
		Long: `Recompute a backup archive's content hash and compare it against the
manifest. A successful check marks the backup as restore-tested.`,
		Example: `  profilevault verify 2f1c9a60-...`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := globalEngine.Verify(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Backup %s verified: %s\n", m.ID, m.IntegrityHash)
			return nil
		},
	}
}
