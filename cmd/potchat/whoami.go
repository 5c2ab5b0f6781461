package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/potchat/internal/app"
)

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the identity behind the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.NewClient(c.cfg, c.logger)
			if err != nil {
				return err
			}
			me, err := client.API.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if me.Email != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", me.Nickname, me.Email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), me.Nickname)
			}
			return nil
		},
	}
}
