// Package identity wires flags, environment, and telemetry for the
// identity service binary.
package identity

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/alexanders1003/scribble.identity/internal/platform/otel"
	server "github.com/alexanders1003/scribble.identity/internal/services/identity/app"
)

// Config holds identity command configuration.
type Config struct {
	Port     int
	HTTPAddr string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		Port:     8093,
		HTTPAddr: envOrDefault(lookup, []string{"SCRIBBLE_IDENTITY_HTTP_ADDR"}, "localhost:8094"),
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "The identity gRPC health port")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The identity HTTP server address")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the identity server with tracing configured.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "identity")
	if err != nil {
		log.Printf("otel setup: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("otel shutdown: %v", err)
			}
		}()
	}

	return server.Run(ctx, cfg.Port, cfg.HTTPAddr)
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
