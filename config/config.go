package config

import (
	"strconv"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/logger"
)

// Config holds every recognized environment option. Only this struct may be
// used to read configuration; no direct os.Getenv access elsewhere.
type Config struct {
	AppEnv  string `env:"APP_ENV,default=dev"`
	AppName string `env:"APP_NAME,default=exchange-desk-bot"`

	TelegramToken        string `env:"TELEGRAM_BOT_TOKEN"`
	NotificationToken    string `env:"NOTIFICATION_BOT_TOKEN"`
	SuperAdminIDs        string `env:"SUPER_ADMIN_IDS"`
	DBPath               string `env:"DB_PATH,default=./exchange_desk.db"`
	Port                 string `env:"PORT,default=3000"`
	NotificationPort     string `env:"NOTIFICATION_PORT,default=3001"`
	Polling              bool   `env:"POLLING,default=1"`
	BlockExplorerBaseURL string `env:"BLOCK_EXPLORER_BASE_URL,default=https://etherscan.io/tx/"`
}

var config *Config

func Load(path string) error {
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			logger.Warn("no env file found, using process environment", "path", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Config")
	}
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		panic("config is not initialized")
	}
	return config
}

// SuperAdmins parses the comma-separated SUPER_ADMIN_IDS list. Malformed
// entries are skipped with a warning rather than failing boot.
func (c *Config) SuperAdmins() []int64 {
	var ids []int64
	for _, part := range strings.Split(c.SuperAdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("skipping malformed super admin id", "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
