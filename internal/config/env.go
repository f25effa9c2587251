package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hyperjump/ragindex/internal/apperr"
)

// Environment variables read on top of the config file.
const (
	EnvPort            = "PORT"
	EnvMode            = "env"
	EnvEmbeddingURL    = "OPENAI_API_URL"
	EnvEmbeddingModel  = "EMBEDDING_MODEL"
	EnvEmbeddingDriver = "EMBEDDING_DRIVER"
	EnvDataDir         = "DATA_DIR"
	EnvStoragePath     = "STORE_PATH"
	EnvStorageDriver   = "STORAGE_DRIVER"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads path (usually ".env") into the process environment when the file exists.
// Values in the file override variables already set.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. A PORT that is not an integer is a
// configuration error and must abort startup.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookupNonEmpty(lookup, EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Configuration("%s must be an integer, got %q", EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookupNonEmpty(lookup, EnvMode); ok {
		cfg.Env = v
	} else if v, ok := lookupNonEmpty(lookup, strings.ToUpper(EnvMode)); ok {
		cfg.Env = v
	}
	if cfg.IsDevelopment() {
		cfg.Debug = true
	}
	if v, ok := lookupNonEmpty(lookup, EnvEmbeddingURL); ok {
		cfg.Embedding.BaseURL = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvEmbeddingModel); ok {
		cfg.Embedding.Model = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvEmbeddingDriver); ok {
		cfg.Embedding.Driver = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvDataDir); ok {
		cfg.Ingest.DataDir = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvStoragePath); ok {
		cfg.Storage.Path = v
	}
	if v, ok := lookupNonEmpty(lookup, EnvStorageDriver); ok {
		cfg.Storage.Driver = v
	}
	return nil
}

func lookupNonEmpty(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
