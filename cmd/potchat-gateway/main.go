package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/potchat/internal/app"
	"github.com/vovakirdan/potchat/internal/auth"
	"github.com/vovakirdan/potchat/internal/config"
	"github.com/vovakirdan/potchat/internal/log"
)

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
		Use:          "potchat-gateway",
		Short:        "Local stand-in for the pot service chat backend",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&c.overrides.LogLevel, "log-level", "", "debug, info, warn, error or off")
	flags.StringVar(&c.overrides.Gateway.JWTSecret, "jwt-secret", "", "HMAC secret for tokens")

	root.AddCommand(newServeCmd(c), newTokenCmd(c))
	return root
}

func (c *cli) load() error {
	bootstrap := log.New("warn", nil)
	cfg, path, err := config.Load(bootstrap, c.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(c.overrides)

	c.cfg = cfg
	c.logger = log.New(cfg.LogLevel, nil)
	c.logger.Debug().Str("config", path).Msg("configuration loaded")
	return nil
}

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr      string
		dbPath    string
		anonymous bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.Gateway
			cfg.UpdateFrom(config.GatewayConfig{Addr: addr, DatabasePath: dbPath})
			if anonymous {
				cfg.JWTRequired = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gw, err := app.NewGateway(cfg, c.logger)
			if err != nil {
				return err
			}
			c.logger.Info().Str("addr", cfg.Addr).Bool("jwt_required", cfg.JWTRequired).Msg("starting potchat gateway")
			if err := gw.Run(ctx); err != nil {
				c.logger.Error().Err(err).Msg("gateway exited with error")
				return err
			}
			c.logger.Info().Msg("gateway stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().BoolVar(&anonymous, "allow-anonymous", false, "accept STOMP connections without a token")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var nickname, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken(app.JWTConfig(c.cfg.Gateway), nickname, email)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "nickname carried by the token")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	_ = cmd.MarkFlagRequired("nickname")
	return cmd
}

