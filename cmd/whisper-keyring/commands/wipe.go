package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func wipeCmd() *cobra.Command {
	var purgeKey bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the local identity and every stored secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Identity.Logout(purgeKey); err != nil {
				return err
			}
			fmt.Println("Local identity wiped.")
			if purgeKey {
				fmt.Println("Protection key destroyed; old snapshots are unreadable.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purgeKey, "purge-key", false, "also destroy the protection key")
	return cmd
}
