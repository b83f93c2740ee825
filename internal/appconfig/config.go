// Package appconfig loads modelgated's runtime configuration: provider
// credentials from the environment (spec.md §6, via internal/registry) plus
// an optional TOML file for non-secret tuning knobs.
package appconfig

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the parsed, env-expanded tuning file plus defaults for any
// field the file omits.
type Config struct {
	StorePath          string        `toml:"store_path"`
	CapCacheTTL        time.Duration `toml:"-"`
	CapCacheTTLRaw     string        `toml:"cap_cache_ttl"`
	AsyncOverallTimeout time.Duration `toml:"-"`
	AsyncOverallTimeoutRaw string     `toml:"async_overall_timeout"`
	MaxHistoryMessages int           `toml:"max_history_messages"`
	Concurrency        map[string]int64 `toml:"concurrency"`
}

const (
	// DefaultStorePath is the bare relative store filename used when
	// neither a config file nor a caller override supplies one. Callers
	// that want an XDG-rooted default (see internal/paths) should check
	// for this sentinel and substitute their own path.
	DefaultStorePath           = "modelgate.db"
	defaultCapCacheTTL         = time.Hour
	defaultAsyncOverallTimeout = 30 * time.Second
	defaultMaxHistoryMessages  = 50
)

// Default returns a Config populated entirely with built-in defaults, used
// when no config file is present.
func Default() *Config {
	return &Config{
		StorePath:           DefaultStorePath,
		CapCacheTTL:         defaultCapCacheTTL,
		AsyncOverallTimeout: defaultAsyncOverallTimeout,
		MaxHistoryMessages:  defaultMaxHistoryMessages,
	}
}

// Load reads and parses the TOML config file at path, expanding ${ENV_VAR}
// references the same way the teacher's internal/config does for server
// definitions. A missing file is not an error: Default() is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var parsed Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if parsed.StorePath != "" {
		cfg.StorePath = expandEnvVars(parsed.StorePath)
	}
	if parsed.CapCacheTTLRaw != "" {
		d, err := time.ParseDuration(expandEnvVars(parsed.CapCacheTTLRaw))
		if err != nil {
			return nil, fmt.Errorf("parsing cap_cache_ttl: %w", err)
		}
		cfg.CapCacheTTL = d
	}
	if parsed.AsyncOverallTimeoutRaw != "" {
		d, err := time.ParseDuration(expandEnvVars(parsed.AsyncOverallTimeoutRaw))
		if err != nil {
			return nil, fmt.Errorf("parsing async_overall_timeout: %w", err)
		}
		cfg.AsyncOverallTimeout = d
	}
	if parsed.MaxHistoryMessages > 0 {
		cfg.MaxHistoryMessages = parsed.MaxHistoryMessages
	}
	if len(parsed.Concurrency) > 0 {
		cfg.Concurrency = parsed.Concurrency
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment
// variable, leaving unresolved references untouched (mirrors the teacher's
// internal/config.expandEnvVars).
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
