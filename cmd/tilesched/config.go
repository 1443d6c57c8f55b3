package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/tilesched/internal/hardware"
	"github.com/samcharles93/tilesched/internal/logger"
)

// Config represents the tilesched configuration file
// (~/.config/tilesched/config.yaml). Values only apply when the matching flag
// was not set on the command line.
type Config struct {
	Profile      string `yaml:"profile"`
	ProfilesFile string `yaml:"profiles_file"`
	Output       string `yaml:"output"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string   `yaml:"server_address"`
	RateLimit     *float64 `yaml:"rate_limit"`
	StoreLimit    *int     `yaml:"store_limit"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tilesched", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyGlobalConfig applies config file defaults to the shared flags.
func applyGlobalConfig(c *cli.Command, cfg Config) {
	if cfg.Profile != "" && !c.IsSet("profile") {
		profileName = cfg.Profile
	}
	if cfg.ProfilesFile != "" && !c.IsSet("profiles-file") {
		profilesFile = cfg.ProfilesFile
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyOutputConfig(c *cli.Command, cfg Config, output *string) {
	if cfg.Output != "" && !c.IsSet("output") {
		*output = cfg.Output
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, rps *float64, storeLimit *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RateLimit != nil && !c.IsSet("rate-limit") {
		*rps = *cfg.RateLimit
	}
	if cfg.StoreLimit != nil && !c.IsSet("store-limit") {
		*storeLimit = int64(*cfg.StoreLimit)
	}
}

// setup loads the config, applies it to the shared flags and installs the
// logger on the returned context.
func setup(ctx context.Context, c *cli.Command) (context.Context, Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ctx, cfg, cli.Exit(err.Error(), 1)
	}
	applyGlobalConfig(c, cfg)

	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, logFormat, level)
	if err != nil {
		return ctx, cfg, cli.Exit(err.Error(), 1)
	}
	return logger.WithContext(ctx, log), cfg, nil
}

// loadRegistry returns the built-in profiles plus any from profilesFile.
func loadRegistry() (*hardware.Registry, error) {
	reg := hardware.NewRegistry()
	if profilesFile != "" {
		if err := reg.LoadFile(profilesFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
