// Package main is the entry point for rewrite-sync.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/rewrite-sync/cmd/rewrite-sync/app"
	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/logging"
)

// getLogLevel parses the REWRITE_SYNC_LOG_LEVEL environment variable and returns the corresponding slog.Level.
// Falls back to LOG_LEVEL.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	if levelStr == "" {
		return slog.LevelInfo
	}

	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
	return level
}

func main() {
	// A missing .env file is fine; variables may come from the environment
	envErr := godotenv.Load()

	// Logs go to stderr to keep stdout clean for command output
	slog.SetDefault(logging.New(logging.WithLevel(getLogLevel())))

	if envErr != nil && !os.IsNotExist(envErr) {
		slog.Warn("Failed to load .env file", "error", envErr)
	}

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
