package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/potchat/internal/app"
	"github.com/vovakirdan/potchat/internal/render"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the chat history of a pot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.NewClient(c.cfg, c.logger)
			if err != nil {
				return err
			}
			loc, err := c.cfg.Location()
			if err != nil {
				return err
			}

			msgs, err := client.API.LoadHistory(cmd.Context(), room)
			if err != nil {
				return err
			}
			r := render.New("", loc)
			for _, m := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), r.Message(m))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "pot id")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}
