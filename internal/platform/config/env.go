// Package config holds the environment and process-exit helpers shared
// by the identity binaries.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name declared in env struct
// tags.
const EnvPrefix = "SCRIBBLE_IDENTITY_"

// ParseEnv loads configuration from SCRIBBLE_IDENTITY_-prefixed
// environment variables into the tagged struct.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
