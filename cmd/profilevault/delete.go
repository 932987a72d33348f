package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup and its archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := globalEngine.DeleteBackup(args[0]); err != nil {
				return err
			}
			fmt.Printf("Backup %s deleted\n", args[0])
			return nil
		},
	}
}
