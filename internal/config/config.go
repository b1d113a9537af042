// README: Config loader backed by viper. Values come from an optional config file and
// FLEETCLAIM_* environment variables, over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type RemoteConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Remote RemoteConfig
	DB     struct {
		DSN     string
		Migrate bool
	}
	Redis struct {
		Addr          string
		ClaimGuardTTL time.Duration
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Log struct {
		Level  string
		Format string
	}
	Acceptance struct {
		PlaceholderFallback bool
	}
}

const envPrefix = "FLEETCLAIM"

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", "10s")
	v.SetDefault("remote.retry_attempts", 3)
	v.SetDefault("remote.retry_base_delay", "100ms")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.claim_guard_ttl", "15s")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "assignment-events")
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("acceptance.placeholder_fallback", true)
}

// Load reads configuration. configFile may be empty, in which case ./fleetclaim.yaml is
// used if present.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("fleetclaim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.Remote.BaseURL = strings.TrimRight(v.GetString("remote.base_url"), "/")
	cfg.Remote.Timeout = v.GetDuration("remote.timeout")
	cfg.Remote.RetryAttempts = v.GetInt("remote.retry_attempts")
	cfg.Remote.RetryBaseDelay = v.GetDuration("remote.retry_base_delay")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.DB.Migrate = v.GetBool("db.migrate")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.ClaimGuardTTL = v.GetDuration("redis.claim_guard_ttl")
	cfg.Kafka.Brokers = splitList(v.Get("kafka.brokers"))
	cfg.Kafka.Topic = v.GetString("kafka.topic")
	cfg.Firebase.ProjectID = v.GetString("firebase.project_id")
	cfg.Firebase.CredentialsFile = v.GetString("firebase.credentials_file")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Acceptance.PlaceholderFallback = v.GetBool("acceptance.placeholder_fallback")
	return cfg, cfg.Validate()
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	} else if !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("remote.base_url %q must be an http(s) URL", c.Remote.BaseURL))
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote.timeout must be positive"))
	}
	if c.Remote.RetryAttempts < 1 {
		errs = append(errs, errors.New("remote.retry_attempts must be at least 1"))
	}
	if c.Remote.RetryBaseDelay < 0 {
		errs = append(errs, errors.New("remote.retry_base_delay must not be negative"))
	}
	if c.Redis.Addr != "" && c.Redis.ClaimGuardTTL <= 0 {
		errs = append(errs, errors.New("redis.claim_guard_ttl must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// splitList accepts either a list value from a config file or a comma separated string.
func splitList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
