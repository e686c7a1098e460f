package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the cached session token",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set TOKEN",
			Short: "Store a session token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := appCtx.Identity.SetSessionToken(args[0]); err != nil {
					return err
				}
				fmt.Println("Session token stored.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored session token",
			RunE: func(cmd *cobra.Command, args []string) error {
				token, ok, err := appCtx.Identity.SessionToken()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("No session token stored.")
					return nil
				}
				fmt.Println(token)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the stored session token",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := appCtx.Identity.ClearSession(); err != nil {
					return err
				}
				fmt.Println("Session token cleared.")
				return nil
			},
		},
	)
	return cmd
}
