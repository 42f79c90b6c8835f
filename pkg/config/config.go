package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
		LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	}
	Backend struct {
		BaseURL string        `env:"BACKEND_BASE_URL" env-default:"http://localhost:9090" env-description:"Base URL of the extraction backend; also the proxy origin"`
		Timeout time.Duration `env:"BACKEND_TIMEOUT" env-default:"30s"`
		Browser string        `env:"BACKEND_BROWSER" env-default:"chrome" env-description:"chrome, firefox or chrome-mobile"`
	}
	Media struct {
		Origin       string   `env:"MEDIA_ORIGIN" env-default:"https://www.instagram.com"`
		DomainTokens []string `env:"MEDIA_DOMAIN_TOKENS" env-default:"instagram.com,instagr.am"`
	}
	Download struct {
		Dir          string        `env:"DOWNLOAD_DIR" env-default:"./downloads"`
		Stagger      time.Duration `env:"DOWNLOAD_STAGGER" env-default:"300ms"`
		StatusRevert time.Duration `env:"DOWNLOAD_STATUS_REVERT" env-default:"3s"`
		MaxParallel  int           `env:"DOWNLOAD_MAX_PARALLEL" env-default:"4"`
	}
	Diagnostics struct {
		ProxyTestURL string        `env:"DIAGNOSTICS_PROXY_TEST_URL" env-default:"https://www.instagram.com/static/images/ico/favicon-192.png/68d99ba29cc8.png"`
		Interval     time.Duration `env:"DIAGNOSTICS_INTERVAL" env-default:"5m"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Archive struct {
		Retention       time.Duration `env:"ARCHIVE_RETENTION" env-default:"720h" env-description:"Archived records older than this are deleted; 0 keeps everything"`
		CleanupInterval time.Duration `env:"ARCHIVE_CLEANUP_INTERVAL" env-default:"24h"`
	}
	Telegram struct {
		User  int64  `env:"TELEGRAM_USER"`
		Token string `env:"TELEGRAM_TOKEN"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// ArchiveEnabled reports whether a Postgres history archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.Postgres.Host != ""
}

// AlertsEnabled reports whether diagnostics alerts can be sent to Telegram.
func (c *Config) AlertsEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.User != 0
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}
