package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment key; EnvConfigFile names the YAML file.
const (
	EnvPrefix     = "ADMIT_"
	EnvConfigFile = "ADMIT_CONFIG"
)

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"cors_origins":      true,
	"qualifier_phrases": true,
}

// tableKeys are read from the environment as "KEY=value,KEY=value".
var tableKeys = map[string]bool{
	"area_bonus":   true,
	"object_bonus": true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ADMIT_CONFIG is set
//  3. env (prefix ADMIT_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ADMIT_CACHE_TTL_SECONDS -> cache_ttl_seconds. The "." delimiter keeps
	// underscores inside flat keys.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		switch {
		case listKeys[key]:
			return key, splitList(value)
		case tableKeys[key]:
			return key, splitTable(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitTable parses "KV1=0.75,KV2=0.25". Malformed pairs are passed through as
// strings so that unmarshalling reports them.
func splitTable(v string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, pair := range splitList(v) {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			out[strings.TrimSpace(pair)] = pair
			continue
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			out[name] = f
		} else {
			out[name] = raw
		}
	}
	return out
}
