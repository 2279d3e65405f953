package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-favorites",
		Short: "Mark every user's .archive folder as favorite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.RepairFavorites(cmd.Context())
			if err != nil {
				return fmt.Errorf("repair favorites: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
}
