package util

import (
	"context"
	"os"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/pkg/config"
	"github.com/mpapenbr/f1-livetiming-go/pkg/utils"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the logger from the config values and installs it as default.
func SetupLogger() (*log.Logger, error) {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	filtered, err := logger.WithFilter(config.LogFilter)
	if err != nil {
		return nil, err
	}
	log.ResetDefault(filtered)
	return filtered, nil
}

// WaitForServices waits until the hosts of the given urls accept tcp connections.
// Urls without resolvable address are ignored.
func WaitForServices(ctx context.Context, urls ...string) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid wait-for-services, using 15s",
			log.String("value", config.WaitForServices))
		timeout = 15 * time.Second
	}
	for _, u := range urls {
		addr := utils.ExtractAddr(u)
		if addr == "" {
			continue
		}
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			return err
		}
		log.Debug("Service is ready", log.String("addr", addr))
	}
	return nil
}

// ParseDuration parses a duration flag value, returning def for invalid values.
func ParseDuration(name, value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("Invalid duration, using default",
			log.String("flag", name), log.String("value", value), log.Duration("default", def))
		return def
	}
	return d
}
