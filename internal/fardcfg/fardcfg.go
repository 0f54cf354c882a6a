// Package fardcfg resolves the small environment+flag configuration every
// cmd/* entrypoint needs: where the content-addressed registry lives and
// how verbose diagnostic logging should be. Generalized from the teacher's
// config.go strict-decode-a-file pattern to env/flag resolution, since the
// CLIs here are argv/env driven rather than config-file driven.
package fardcfg

import "fmt"

// Config is the resolved runtime configuration for a cmd/* entrypoint.
type Config struct {
	RegistryDir string
	LogLevel    string
}

const (
	defaultRegistryDir = "_registry"
	defaultLogLevel    = "info"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load resolves FARD_REGISTRY_DIR / FARD_LOG_LEVEL from env, then applies
// any --registry-dir/--log-level flags found in args (flags win over
// env). Unrecognized flags are left untouched for the caller to parse.
func Load(env map[string]string, args []string) (*Config, error) {
	cfg := &Config{RegistryDir: defaultRegistryDir, LogLevel: defaultLogLevel}

	if v, ok := env["FARD_REGISTRY_DIR"]; ok && v != "" {
		cfg.RegistryDir = v
	}
	if v, ok := env["FARD_LOG_LEVEL"]; ok && v != "" {
		if !validLogLevels[v] {
			return nil, fmt.Errorf("FARD_LOG_LEVEL: invalid level %q", v)
		}
		cfg.LogLevel = v
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--registry-dir":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--registry-dir requires a value")
			}
			cfg.RegistryDir = args[i+1]
			i++
		case "--log-level":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--log-level requires a value")
			}
			if !validLogLevels[args[i+1]] {
				return nil, fmt.Errorf("--log-level: invalid level %q", args[i+1])
			}
			cfg.LogLevel = args[i+1]
			i++
		}
	}

	return cfg, nil
}
