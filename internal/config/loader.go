package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "POTCHAT"
	envConfigDefaultPath = "POTCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested ones (POTCHAT_GATEWAY_ADDR).
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("gateway_url", cfg.GatewayURL)
	v.SetDefault("token", cfg.Token)
	v.SetDefault("token_file", cfg.TokenFile)
	v.SetDefault("reconnect_delay", cfg.ReconnectDelay)
	v.SetDefault("heartbeat", cfg.Heartbeat)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("timezone", cfg.Timezone)

	g := cfg.Gateway
	v.SetDefault("gateway.addr", g.Addr)
	v.SetDefault("gateway.read_header_timeout", g.ReadHeaderTimeout)
	v.SetDefault("gateway.shutdown_timeout", g.ShutdownTimeout)
	v.SetDefault("gateway.database_path", g.DatabasePath)
	v.SetDefault("gateway.jwt_secret", g.JWTSecret)
	v.SetDefault("gateway.jwt_issuer", g.JWTIssuer)
	v.SetDefault("gateway.jwt_audience", g.JWTAudience)
	v.SetDefault("gateway.jwt_required", g.JWTRequired)
	v.SetDefault("gateway.token_ttl", g.TokenTTL)
	v.SetDefault("gateway.history_limit", g.HistoryLimit)
	v.SetDefault("gateway.rate_limit_per_minute", g.RateLimitPerMinute)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
