package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"

	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		DefaultLanguage  string `env:"LANG,default=en"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.ngguard"`
		Workers          int    `env:"WORKERS,default=8"`
		MetricsAddr      string `env:"METRICS_ADDR,default=:2112"`
		Moderation       Moderation
		Storage          Storage
	}

	Moderation struct {
		Markers          []string      `env:"MARKERS,default=http,https,www,.com,.io,t.me,telegram.me,telegram.dog"`
		CaseSensitive    bool          `env:"CASE_SENSITIVE,default=false"`
		Threshold        int           `env:"THRESHOLD,default=5"`
		Sanction         string        `env:"SANCTION,default=restrict"`
		SanctionDuration time.Duration `env:"SANCTION_DURATION,default=24h"`
		RestrictDuration time.Duration `env:"RESTRICT_DURATION,default=0s"`
		Warn             bool          `env:"WARN,default=false"`
		NoticeTTL        time.Duration `env:"NOTICE_TTL,default=1m"`
		Greet            bool          `env:"GREET,default=true"`
	}

	Storage struct {
		Backend    string        `env:"STORE,default=memory"`
		SQLitePath string        `env:"SQLITE_PATH,default=:memory:"`
		RedisURL   string        `env:"REDIS_URL,default=redis://localhost:6379/0"`
		RecordTTL  time.Duration `env:"RECORD_TTL,default=0s"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Parse reads the configuration from l, all keys prefixed with NG_.
func Parse(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper("NG_", l),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return Config{}, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return *cfg, nil
}

func Load() (Config, error) {
	once.Do(func() {
		cfg, err := Parse(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = &cfg
	})
	return *globalConfig, globalErr
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("%w: unknown store %q", ngerrors.ErrInvalidInput, c.Storage.Backend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ngerrors.ErrInvalidInput, c.Workers)
	}
	if c.Storage.RecordTTL < 0 {
		return fmt.Errorf("%w: record ttl must not be negative", ngerrors.ErrInvalidInput)
	}
	if _, err := moderation.ParseSanctionAction(c.Moderation.Sanction); err != nil {
		return fmt.Errorf("%w: %w", ngerrors.ErrInvalidInput, err)
	}
	return nil
}

// Policy builds the escalation policy.
func (c Config) Policy() (moderation.Policy, error) {
	action, err := moderation.ParseSanctionAction(c.Moderation.Sanction)
	if err != nil {
		return moderation.Policy{}, err
	}
	return moderation.Policy{
		Threshold:        c.Moderation.Threshold,
		Action:           action,
		SanctionDuration: c.Moderation.SanctionDuration,
		Warn:             c.Moderation.Warn,
	}, nil
}

// RuleSet builds the blacklist rule set.
func (c Config) RuleSet() *moderation.RuleSet {
	return moderation.NewRuleSet(c.Moderation.Markers, c.Moderation.CaseSensitive)
}
