package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PROXYCHK_VALIDATION_KEY.
const EnvPrefix = "PROXYCHK"

// Load reads configuration from defaults, an optional YAML file and the
// environment. With an empty path it looks for config.yaml in the XDG
// config dir and the working directory, and a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(XDGConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := NewConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("socket_timeout", d.SocketTimeout)
	v.SetDefault("enrich_timeout", d.EnrichTimeout)
	v.SetDefault("dns_cache_ttl", d.DNSCacheTTL)
	v.SetDefault("external_timeout_ratio", d.ExternalTimeoutRatio)
	v.SetDefault("race_timeout_ratio", d.RaceTimeoutRatio)
	v.SetDefault("batch_timeout_ratio", d.BatchTimeoutRatio)
	v.SetDefault("validation.url", d.Validation.URL)
	v.SetDefault("validation.host", d.Validation.Host)
	v.SetDefault("validation.key", d.Validation.Key)
	v.SetDefault("validation.usable_status_ceiling", d.Validation.UsableStatusCeiling)
	v.SetDefault("targets.http", d.Targets.HTTP)
	v.SetDefault("targets.https", d.Targets.HTTPS)
	v.SetDefault("targets.socks4", d.Targets.SOCKS4)
	v.SetDefault("targets.socks5", d.Targets.SOCKS5)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("max_body_size", d.MaxBodySize)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("format", d.Format)
}
