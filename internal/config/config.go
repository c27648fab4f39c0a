package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type DBConfig struct {
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD"`
	Host     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	Port     string `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"ledger"`
}

// DSN builds the MySQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_URL" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type KafkaConfig struct {
	Brokers string `envconfig:"KAFKA_BROKERS"`
	Topic   string `envconfig:"KAFKA_TOPIC" default:"ledger.transactions"`
}

// BrokerList splits the comma separated broker string. Empty means events are disabled.
func (c KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me"`
	Issuer    string `envconfig:"JWT_ISSUER"`
}

type GatewayConfig struct {
	BaseURL    string        `envconfig:"FLW_BASE_URL" default:"https://api.flutterwave.com/v3"`
	SecretKey  string        `envconfig:"FLW_SECRET_KEY"`
	SecretHash string        `envconfig:"FLW_SECRET_HASH"`
	Country    string        `envconfig:"FLW_COUNTRY" default:"NG"`
	Timeout    time.Duration `envconfig:"FLW_TIMEOUT" default:"15s"`
	LogoURL    string        `envconfig:"FLW_LOGO_URL"`
}

type LedgerConfig struct {
	DefaultCurrency              string          `envconfig:"DEFAULT_CURRENCY" default:"NGN"`
	MembershipFee                decimal.Decimal `envconfig:"MEMBERSHIP_FEE" default:"5000"`
	ReferencePrefix              string          `envconfig:"TX_REFERENCE_PREFIX" default:"SFH"`
	ReferenceLength              int             `envconfig:"TX_REFERENCE_LENGTH" default:"24"`
	ReferralWithdrawalThreshold  decimal.Decimal `envconfig:"REFERRAL_WITHDRAWAL_THRESHOLD" default:"5000"`
	AffiliateWithdrawalThreshold decimal.Decimal `envconfig:"AFFILIATE_WITHDRAWAL_THRESHOLD" default:"5000"`
	ReferralBonus                decimal.Decimal `envconfig:"REFERRAL_BONUS" default:"2000"`
	AffiliateBonus               decimal.Decimal `envconfig:"AFFILIATE_BONUS" default:"2000"`
	PendingTTL                   time.Duration   `envconfig:"PENDING_TTL" default:"30m"`
	PendingExpiry                time.Duration   `envconfig:"PENDING_EXPIRY" default:"168h"`
	SweepSchedule                string          `envconfig:"SWEEP_SCHEDULE" default:"*/10 * * * *"`
	BankRefreshSchedule          string          `envconfig:"BANK_REFRESH_SCHEDULE" default:"0 3 * * *"`
	LockTTL                      time.Duration   `envconfig:"LOCK_TTL" default:"30s"`
}

type URLConfig struct {
	AppURL         string `envconfig:"APP_URL" default:"http://localhost:3000"`
	ServerURL      string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	LandingPageURL string `envconfig:"LANDING_PAGE_URL" default:"http://localhost:3000"`
}

type Config struct {
	AppName  string `envconfig:"APP_NAME" default:"ledger-service"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	GinMode  string `envconfig:"GIN_MODE"`
	Port     string `envconfig:"PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"50051"`
	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Gateway  GatewayConfig
	Ledger   LedgerConfig
	URLs     URLConfig
}

// Load reads .env (current directory, then parent) and the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", "../.env"}
	}
	loaded := false
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			loaded = true
			break
		}
	}
	if !loaded {
		log.Println("No .env file found, using system environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Ledger.ReferenceLength <= len(c.Ledger.ReferencePrefix) {
		return fmt.Errorf("config: reference length %d must exceed prefix %q", c.Ledger.ReferenceLength, c.Ledger.ReferencePrefix)
	}
	if !c.Ledger.MembershipFee.IsPositive() {
		return fmt.Errorf("config: membership fee must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Default processes the environment without touching .env files.
func Default() *Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return &cfg
}
