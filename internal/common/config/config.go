package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"proxy_store"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
		AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken string `env:"BOT_TOKEN,required"`
		// Init-data whose auth_date is older than this window is rejected
		// even with a correct signature. 0 disables the freshness check.
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	Proxy struct {
		// Gateway the issued credentials point at, as host:port.
		Gateway string `env:"PROXY_GATEWAY" envDefault:"gate.proxy-store.local:1080"`
	}

	Payment struct {
		APIKey        string `env:"RUPANTOR_API_KEY,required"`
		BaseURL       string `env:"RUPANTOR_BASE_URL" envDefault:"https://api.rupantorpay.com"`
		SuccessURL    string `env:"SUCCESS_URL,required"`
		CancelURL     string `env:"CANCEL_URL,required"`
		CallbackURL   string `env:"CALLBACK_URL,required"`
		WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" envDefault:""`

		// Sending a synthesized customer identity to the processor is a
		// business choice with privacy implications, so it is off by default.
		SendCustomer        bool   `env:"PAYMENT_SEND_CUSTOMER" envDefault:"false"`
		CustomerEmailDomain string `env:"PAYMENT_CUSTOMER_EMAIL_DOMAIN" envDefault:"telegram.com"`
	}
}

// GetDSN builds a lib/pq connection string from the Postgres section.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User,
		c.Postgres.Password, c.Postgres.Database, c.Postgres.SSLMode)
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Ignore a missing .env file; in production the variables are set
		// directly in the environment.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
