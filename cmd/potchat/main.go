package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/log"
)

// cli holds what every subcommand needs after flags and config are resolved.
type cli struct {
	configPath string
	overrides  config.Config

	cfg    config.Config
	logger *zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "potchat",
		Short:        "Chat client for pot group-buy rooms",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&c.overrides.APIURL, "api-url", "", "pot service base URL")
	flags.StringVar(&c.overrides.GatewayURL, "gateway-url", "", "STOMP WebSocket endpoint")
	flags.StringVar(&c.overrides.Token, "token", "", "bearer token")
	flags.StringVar(&c.overrides.TokenFile, "token-file", "", "file holding the bearer token")
	flags.DurationVar(&c.overrides.ReconnectDelay, "reconnect-delay", 0, "delay between reconnect attempts")
	flags.StringVar(&c.overrides.LogLevel, "log-level", "", "debug, info, warn, error or off")
	flags.StringVar(&c.overrides.Timezone, "timezone", "", "zone for timestamps without an offset, e.g. Asia/Seoul")

	root.AddCommand(newWhoamiCmd(c), newHistoryCmd(c), newChatCmd(c))
	return root
}

func (c *cli) load() error {
	bootstrap := log.New("warn", nil)
	cfg, _, err := config.Load(bootstrap, c.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(c.overrides)

	c.cfg = cfg
	c.logger = log.New(cfg.LogLevel, nil)
	return nil
}
