package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileShape mirrors the dotted viper keys Load reads, as a nested struct so
// it marshals into a readable starter file.
type fileShape struct {
	HitQueue struct {
		RetryInterval string `yaml:"retryinterval" toml:"retryinterval"`
		BatchLimit    int    `yaml:"batchlimit" toml:"batchlimit"`
	} `yaml:"hitqueue" toml:"hitqueue"`
	Rules struct {
		CacheDir string `yaml:"cachedir" toml:"cachedir"`
	} `yaml:"rules" toml:"rules"`
	Privacy struct {
		Default string `yaml:"default" toml:"default"`
	} `yaml:"privacy" toml:"privacy"`
}

func defaultFileShape(cfg Config) fileShape {
	var fs fileShape
	fs.HitQueue.RetryInterval = cfg.HitQueueRetryInterval.String()
	fs.HitQueue.BatchLimit = cfg.HitQueueBatchLimit
	fs.Rules.CacheDir = cfg.RulesCacheDir
	fs.Privacy.Default = cfg.DefaultPrivacyStatus
	return fs
}

// WriteDefault writes a starter configuration file at path in the format
// implied by its extension (.yaml/.yml or .toml), seeded from Default().
func WriteDefault(path string) error {
	fs := defaultFileShape(Default())

	var body []byte
	var err error
	switch {
	case strings.HasSuffix(path, ".toml"):
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(fs); err != nil {
			return err
		}
		body = buf.Bytes()
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		body, err = yaml.Marshal(fs)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: unsupported file extension for %q, want .yaml/.yml/.toml", path)
	}

	return os.WriteFile(path, body, 0o644)
}
