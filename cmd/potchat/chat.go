package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/potchat/internal/app"
	"github.com/vovakirdan/potchat/internal/chat"
	"github.com/vovakirdan/potchat/internal/render"
)

func newChatCmd(c *cli) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a pot chat room; lines read from stdin are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runChat(ctx, room, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "pot id")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func (c *cli) runChat(ctx context.Context, room string, in io.Reader, out io.Writer) error {
	client, err := app.NewClient(c.cfg, c.logger)
	if err != nil {
		return err
	}
	loc, err := c.cfg.Location()
	if err != nil {
		return err
	}

	s, err := client.OpenSession(ctx, room)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(out, "Joined pot %s as %s. Type messages and press Enter to send. Ctrl+C to exit.\n", s.RoomID(), s.LocalUser())

	r := render.New(s.LocalUser(), loc)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range s.Updates() {
			for _, line := range r.Update(u) {
				fmt.Fprintln(out, line)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			<-printed
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = s.Close()
				<-printed
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := s.Send(line); err != nil {
				switch {
				case errors.Is(err, chat.ErrNotLive):
					fmt.Fprintln(out, "not connected yet, message not sent")
				case errors.Is(err, chat.ErrSessionClosed):
					return nil
				default:
					c.logger.Warn().Err(err).Msg("send failed")
				}
			}
		}
	}
}
