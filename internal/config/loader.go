package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const envPrefix = "GRIDRUN"

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// envSpec maps a flat environment variable to a nested config path.
type envSpec struct {
	Name string
	Path string
}

// getEnvSpecs returns the supported flat environment variables.
//
// Flat names (GRIDRUN_PORT rather than GRIDRUN_SERVER_PORT) follow the
// conventional twelve-factor names CI systems expect.
func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: envPrefix + "_HOST", Path: "server.host"},
		{Name: envPrefix + "_PORT", Path: "server.port"},
		{Name: envPrefix + "_READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: envPrefix + "_WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: envPrefix + "_IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: envPrefix + "_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: envPrefix + "_LOG_LEVEL", Path: "logging.level"},
		{Name: envPrefix + "_LOG_PROFILE", Path: "logging.profile"},
		{Name: envPrefix + "_CACHE_ROOT", Path: "cache.root"},
		{Name: envPrefix + "_RUNS_ROOT", Path: "runs.root"},
		{Name: envPrefix + "_WORKERS", Path: "workers"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "cli")

	v.SetDefault("cache.root", defaultDataPath("cache"))
	v.SetDefault("runs.root", defaultDataPath("runs"))

	v.SetDefault("workers", 4)
}

func defaultDataPath(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gridrun", sub)
	}
	return filepath.Join(home, ".gridrun", sub)
}

// Load builds configuration and installs it as the process config.
//
// Optional runtime overrides are nested maps matching the config file
// structure; they take precedence over environment variables.
func Load(_ context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Optional project config file; absence is not an error.
	if root, err := findProjectRoot(); err == nil {
		v.SetConfigName("gridrun.config")
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errorsAs(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	for _, spec := range getEnvSpecs() {
		if val, ok := os.LookupEnv(spec.Name); ok && val != "" {
			v.Set(spec.Path, coerceEnvValue(val))
		}
	}

	// Runtime overrides land in the same viper layer as env values; Set
	// is last-write-wins, so applying them after env gives them precedence.
	for _, override := range overrides {
		applyOverrideLayer(v, "", override)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// coerceEnvValue converts env strings to the types Unmarshal expects.
// Durations stay strings; viper's duration decode hook parses them.
func coerceEnvValue(val string) any {
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return val
}

func applyOverrideLayer(v *viper.Viper, prefix string, m map[string]any) {
	for key, val := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrideLayer(v, path, nested)
			continue
		}
		v.Set(path, val)
	}
}

// GetConfig returns the most recently loaded config, or nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// findProjectRoot walks upward from the working directory looking for
// go.mod or a gridrun manifest. In CI, workspace env vars are honored
// first since the checkout may live outside $HOME.
func findProjectRoot() (string, error) {
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		for _, name := range []string{"GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
			dir := os.Getenv(name)
			if dir == "" || !filepath.IsAbs(dir) {
				continue
			}
			if containsCwd(dir) {
				return dir, nil
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := cwd
	for {
		for _, marker := range []string{"go.mod", "gridrun.yaml", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

func containsCwd(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, cwd)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// errorsAs wraps errors.As for the viper not-found value type.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
