// Package config loads the Runtime's tunables: hit-queue retry interval and
// batch limit, rules cache directory, and default privacy status. Grounded
// on the teacher's internal/config viper wiring — env-var overrides under a
// COREHUB_ prefix, an optional YAML/TOML file, and defaults that make a
// zero-config Runtime usable out of the box.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved set of tunables a Runtime is constructed with.
type Config struct {
	// HitQueueRetryInterval is the resolved hitqueue.retryinterval setting.
	// Hit queues do not read it: each Processor's RetryInterval decides the
	// wait before a failed hit is retried.
	HitQueueRetryInterval time.Duration
	// HitQueueBatchLimit is how many hits must be queued before a hit queue
	// drains a batch; 0 means no threshold.
	HitQueueBatchLimit int
	// RulesCacheDir is where downloaded rule archives and their cache
	// metadata live.
	RulesCacheDir string
	// DefaultPrivacyStatus seeds global.privacy before any configuration
	// event has been processed.
	DefaultPrivacyStatus string
}

const envPrefix = "COREHUB"

// Load resolves configuration from (in ascending priority) built-in
// defaults, an optional config file at path (if non-empty and present),
// and COREHUB_-prefixed environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("hitqueue.retryinterval", 30*time.Second)
	v.SetDefault("hitqueue.batchlimit", 0)
	v.SetDefault("rules.cachedir", "./corehub-rules-cache")
	v.SetDefault("privacy.default", "optUnknown")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	return Config{
		HitQueueRetryInterval: v.GetDuration("hitqueue.retryinterval"),
		HitQueueBatchLimit:    v.GetInt("hitqueue.batchlimit"),
		RulesCacheDir:         v.GetString("rules.cachedir"),
		DefaultPrivacyStatus:  v.GetString("privacy.default"),
	}, nil
}

// Default returns the zero-config Runtime tunables: Load("") can never
// error, but Default avoids callers having to check anyway.
func Default() Config {
	cfg, _ := Load("")
	return cfg
}
