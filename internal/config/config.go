package config

import (
	"fmt"
	"time"
)

// Config holds client configuration values. Gateway carries the local gateway settings.
type Config struct {
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	GatewayURL     string        `mapstructure:"gateway_url" yaml:"gateway_url"`
	Token          string        `mapstructure:"token" yaml:"token"`
	TokenFile      string        `mapstructure:"token_file" yaml:"token_file"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	Heartbeat      time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	Timezone       string        `mapstructure:"timezone" yaml:"timezone"`

	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
}

// GatewayConfig holds local gateway configuration values.
type GatewayConfig struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret          string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer          string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience        string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTRequired        bool          `mapstructure:"jwt_required" yaml:"jwt_required"`
	TokenTTL           time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	HistoryLimit       int           `mapstructure:"history_limit" yaml:"history_limit"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		APIURL:         "http://localhost:8080",
		GatewayURL:     "ws://localhost:8080/ws-stomp",
		ReconnectDelay: 5 * time.Second,
		Heartbeat:      10 * time.Second,
		LogLevel:       "info",
		Gateway: GatewayConfig{
			Addr:               ":8080",
			ReadHeaderTimeout:  5 * time.Second,
			ShutdownTimeout:    5 * time.Second,
			DatabasePath:       "potchat.db",
			JWTSecret:          "change-me-in-production",
			JWTIssuer:          "potchat",
			JWTAudience:        "potchat-clients",
			JWTRequired:        true,
			TokenTTL:           24 * time.Hour,
			HistoryLimit:       200,
			RateLimitPerMinute: 120,
		},
	}
}

// Location resolves Timezone, falling back to the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.GatewayURL != "" {
		c.GatewayURL = other.GatewayURL
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.TokenFile != "" {
		c.TokenFile = other.TokenFile
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.Heartbeat != 0 {
		c.Heartbeat = other.Heartbeat
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Timezone != "" {
		c.Timezone = other.Timezone
	}
	c.Gateway.UpdateFrom(other.Gateway)
}

// UpdateFrom overwrites non-zero values from other into receiver. JWTRequired is only ever switched off here.
func (g *GatewayConfig) UpdateFrom(other GatewayConfig) {
	if other.Addr != "" {
		g.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		g.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		g.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		g.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		g.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		g.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		g.JWTAudience = other.JWTAudience
	}
	if other.TokenTTL != 0 {
		g.TokenTTL = other.TokenTTL
	}
	if other.HistoryLimit != 0 {
		g.HistoryLimit = other.HistoryLimit
	}
	if other.RateLimitPerMinute != 0 {
		g.RateLimitPerMinute = other.RateLimitPerMinute
	}
}
