package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string  `env:"TOKEN,required"`
		DefaultLanguage  string  `env:"LANG,default=en"`
		LogLevel         int     `env:"LOG_LEVEL,default=4"`
		DotPath          string  `env:"DOT_PATH,default=~/.ngwarden"`
		DBName           string  `env:"DB_NAME,default=warden.db"`
		MetricsAddr      string  `env:"METRICS_ADDR,default=:2112"`
		CommandPrefix    string  `env:"COMMAND_PREFIX,default=/"`
		APIRateLimit     float64 `env:"API_RATE_LIMIT,default=25"`
		Moderation       Moderation
	}

	Moderation struct {
		SpamInterval          time.Duration `env:"SPAM_INTERVAL,default=10s"`
		SpamThreshold         int           `env:"SPAM_THRESHOLD,default=5"`
		WarningLimitForNotice int           `env:"WARNING_LIMIT_FOR_NOTICE,default=3"`
		MuteThreshold         int           `env:"MUTE_THRESHOLD,default=5"`
		MuteDuration          time.Duration `env:"MUTE_DURATION,default=5m"`
		NoticeTTL             time.Duration `env:"NOTICE_TTL,default=5s"`
		ReplyTTL              time.Duration `env:"REPLY_TTL,default=10s"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// LoadWith reads NG_ prefixed variables through the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper("NG_", lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	cfg.Moderation = cfg.Moderation.normalized()
	return cfg, nil
}

// Level keeps fatal messages visible whatever NG_LOG_LEVEL holds.
func (c Config) Level() log.Level {
	level := log.Level(c.LogLevel)
	switch {
	case level < log.FatalLevel:
		return log.FatalLevel
	case level > log.TraceLevel:
		return log.TraceLevel
	}
	return level
}

func (m Moderation) normalized() Moderation {
	if m.SpamInterval <= 0 {
		m.SpamInterval = 10 * time.Second
	}
	if m.SpamThreshold < 1 {
		m.SpamThreshold = 5
	}
	if m.MuteThreshold < 1 {
		m.MuteThreshold = 5
	}
	if m.MuteDuration <= 0 {
		m.MuteDuration = 5 * time.Minute
	}
	if m.WarningLimitForNotice < 0 {
		m.WarningLimitForNotice = 0
	}
	return m
}
