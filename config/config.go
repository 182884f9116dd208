package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env                string `env:"ENVIRONMENT"`
	BotToken           string `env:"BOT_TOKEN"`
	NitterBaseURL      string `env:"NITTER_BASE_URL" envDefault:"https://nitter.woodland.cafe"`
	EmbedHost          string `env:"EMBED_HOST" envDefault:"vxtwitter.com"`
	DiscordAPIBase     string `env:"DISCORD_API_BASE" envDefault:"https://discord.com/api/v10"`
	UpdateIntervalMins int    `env:"UPDATE_INTERVAL_MINS" envDefault:"10"`
	DBPath             string `env:"DB_PATH" envDefault:"chirpwatch.sqlite"`
	ServerPort         int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds     string `env:"BASIC_AUTH_CREDS"`

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panic(err)
	}

	if cfg.BotToken == "" && cfg.Env == "production" {
		log.Sugar().Panic("BOT_TOKEN envvar must be populated")
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		log.Sugar().Panic(err)
	}
	cfg.creds = creds

	return cfg
}

func (cfg *Config) UpdateInterval() time.Duration {
	return time.Duration(cfg.UpdateIntervalMins) * time.Minute
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, nil
	}

	result := make(map[string]string)
	for _, cred := range strings.Split(cfg.BasicAuthCreds, ",") {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
