// Package config loads runtime configuration for the CLI and the status
// server.
//
// Precedence, highest first: runtime overrides, environment variables
// (GRIDRUN_ prefix), config file (gridrun.config.yaml at the project root),
// built-in defaults.
package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Runs    RunsConfig    `mapstructure:"runs"`

	// Workers bounds concurrent cell execution in matrix mode.
	Workers int `mapstructure:"workers"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// CacheConfig locates the local dependency cache root.
type CacheConfig struct {
	Root string `mapstructure:"root"`
}

// RunsConfig locates the run record store.
type RunsConfig struct {
	Root string `mapstructure:"root"`
}
