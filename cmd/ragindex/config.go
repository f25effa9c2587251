package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/pkg/utils"
)

const (
	defaultConfigPath = "/usr/local/etc/ragindex/config.yaml"
	dotEnvPath        = ".env"
)

// loadConfig loads .env, then the config file, then overlays the environment.
// When path is the default, config.yaml in the current directory wins if it exists;
// when neither exists the built-in defaults are used, so the service runs from
// environment variables alone. Returns the config and the path actually loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, "", err
	}
	cfg, resolved, err := readConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func readConfigFile(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, err := config.Load(fallback)
			if err != nil {
				return nil, "", err
			}
			return cfg, fallback, nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Default(), "", nil
		}
		return nil, "", fmt.Errorf("stat config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads config and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	source := resolved
	if source == "" {
		source = "defaults"
	}
	logger.Debug("config loaded",
		zap.String("config_path", source),
		zap.String("env", cfg.Env),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, nil
}
