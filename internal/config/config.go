package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OtelEnabled  bool
	OTLPEndpoint string
	OTLPProtocol string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis       RedisConfig
	Idempotency IdempotencyConfig
	PayOS       PayOSConfig
	Sepay       SepayConfig
	Wallet      WalletConfig
	Reaper      ReaperConfig
	Slack       SlackConfig
	Signup      SignupConfig
	AWS         AWSConfig
	Archive     ArchiveConfig
	RateLimit   RateLimitConfig
	Notify      NotifyConfig
	Operators   []OperatorKey
}

type LoggerConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type IdempotencyConfig struct {
	Backend     string
	TTL         time.Duration
	DynamoTable string
}

type PayOSConfig struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
	MaxRetries  int
}

type SepayConfig struct {
	APIKey string
}

type WalletConfig struct {
	SystemOwnerID string
}

type ReaperConfig struct {
	Cron        string
	StaleAfter  time.Duration
	BatchSize   int
	ItemTimeout time.Duration
	JobTimeout  time.Duration
}

type SlackConfig struct {
	WebhookURL string
	Channel    string
}

type SignupConfig struct {
	UserPoolID        string
	ClientID          string
	ProfileServiceURL string
	ProfileTimeout    time.Duration
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type ArchiveConfig struct {
	Bucket string
}

type RateLimitConfig struct {
	DonationCapacity int64
	DonationRefill   int64
	DonationWindow   time.Duration
}

type NotifyConfig struct {
	PoolSize int
}

// OperatorKey binds an argon2id key hash to a casbin role.
type OperatorKey struct {
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`
	Hash string `mapstructure:"hash"`
}

const (
	IdempotencyBackendRedis    = "redis"
	IdempotencyBackendDynamoDB = "dynamodb"
	IdempotencyBackendMemory   = "memory"
)

var (
	ErrMissingPayOSCredentials = errors.New("missing_payos_credentials")
	ErrMissingSepayAPIKey      = errors.New("missing_sepay_api_key")
	ErrMissingSystemWallet     = errors.New("missing_system_wallet_owner")
)

// Load loads configuration from a .env file, an optional foodfund.yaml and environment variables.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("foodfund")
	v.SetConfigType("yaml")
	v.AddConfigPath("/var/lib/foodfund/config")
	v.AddConfigPath("/etc/foodfund")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("[config] read foodfund.yaml: %v", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "foodfund-payment")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otlp.endpoint", "localhost:4317")
	v.SetDefault("otlp.protocol", "grpc")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "foodfund")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conn", 10)
	v.SetDefault("database.max_open_conn", 50)
	v.SetDefault("database.conn_max_lifetime", 1800)
	v.SetDefault("database.conn_max_idle_time", 300)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("idempotency.backend", IdempotencyBackendRedis)
	v.SetDefault("idempotency.ttl", 7*24*time.Hour)
	v.SetDefault("idempotency.dynamo_table", "foodfund-webhook-idempotency")

	v.SetDefault("payos.base_url", "https://api-merchant.payos.vn")
	v.SetDefault("payos.return_url", "https://foodfund.vn/donations/success")
	v.SetDefault("payos.cancel_url", "https://foodfund.vn/donations/cancel")
	v.SetDefault("payos.timeout", 10*time.Second)
	v.SetDefault("payos.max_retries", 3)

	v.SetDefault("wallet.system_owner_id", "system")

	v.SetDefault("reaper.cron", "0 3 * * *")
	v.SetDefault("reaper.stale_after", 24*time.Hour)
	v.SetDefault("reaper.batch_size", 200)
	v.SetDefault("reaper.item_timeout", 15*time.Second)
	v.SetDefault("reaper.job_timeout", 10*time.Minute)

	v.SetDefault("slack.channel", "#payments-ops")

	v.SetDefault("signup.profile_timeout", 5*time.Second)

	v.SetDefault("aws.region", "ap-southeast-1")

	v.SetDefault("ratelimit.donation_capacity", 10)
	v.SetDefault("ratelimit.donation_refill", 10)
	v.SetDefault("ratelimit.donation_window", time.Minute)

	v.SetDefault("notify.pool_size", 64)
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		AppName:      v.GetString("app.name"),
		AppVersion:   v.GetString("app.version"),
		Environment:  v.GetString("environment"),
		HTTPAddr:     v.GetString("http.addr"),
		OtelEnabled:  v.GetBool("otel.enabled"),
		OTLPEndpoint: strings.TrimSpace(v.GetString("otlp.endpoint")),
		OTLPProtocol: strings.ToLower(strings.TrimSpace(v.GetString("otlp.protocol"))),
		Logger: LoggerConfig{
			Level:      strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format:     strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
			FilePath:   strings.TrimSpace(v.GetString("log.file")),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		DBType:            v.GetString("database.type"),
		DBHost:            v.GetString("database.host"),
		DBPort:            v.GetString("database.port"),
		DBName:            v.GetString("database.name"),
		DBUser:            v.GetString("database.user"),
		DBPassword:        v.GetString("database.password"),
		DBSSLMode:         v.GetString("database.sslmode"),
		DBMaxIdleConn:     v.GetInt("database.max_idle_conn"),
		DBMaxOpenConn:     v.GetInt("database.max_open_conn"),
		DBConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		DBConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Idempotency: IdempotencyConfig{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString("idempotency.backend"))),
			TTL:         v.GetDuration("idempotency.ttl"),
			DynamoTable: strings.TrimSpace(v.GetString("idempotency.dynamo_table")),
		},
		PayOS: PayOSConfig{
			ClientID:    strings.TrimSpace(v.GetString("payos.client_id")),
			APIKey:      strings.TrimSpace(v.GetString("payos.api_key")),
			ChecksumKey: strings.TrimSpace(v.GetString("payos.checksum_key")),
			BaseURL:     strings.TrimRight(strings.TrimSpace(v.GetString("payos.base_url")), "/"),
			ReturnURL:   v.GetString("payos.return_url"),
			CancelURL:   v.GetString("payos.cancel_url"),
			Timeout:     v.GetDuration("payos.timeout"),
			MaxRetries:  v.GetInt("payos.max_retries"),
		},
		Sepay: SepayConfig{
			APIKey: strings.TrimSpace(v.GetString("sepay.api_key")),
		},
		Wallet: WalletConfig{
			SystemOwnerID: strings.TrimSpace(v.GetString("wallet.system_owner_id")),
		},
		Reaper: ReaperConfig{
			Cron:        v.GetString("reaper.cron"),
			StaleAfter:  v.GetDuration("reaper.stale_after"),
			BatchSize:   v.GetInt("reaper.batch_size"),
			ItemTimeout: v.GetDuration("reaper.item_timeout"),
			JobTimeout:  v.GetDuration("reaper.job_timeout"),
		},
		Slack: SlackConfig{
			WebhookURL: strings.TrimSpace(v.GetString("slack.webhook_url")),
			Channel:    v.GetString("slack.channel"),
		},
		Signup: SignupConfig{
			UserPoolID:        strings.TrimSpace(v.GetString("signup.user_pool_id")),
			ClientID:          strings.TrimSpace(v.GetString("signup.client_id")),
			ProfileServiceURL: strings.TrimRight(strings.TrimSpace(v.GetString("signup.profile_service_url")), "/"),
			ProfileTimeout:    v.GetDuration("signup.profile_timeout"),
		},
		AWS: AWSConfig{
			Region:   strings.TrimSpace(v.GetString("aws.region")),
			Endpoint: strings.TrimSpace(v.GetString("aws.endpoint")),
		},
		Archive: ArchiveConfig{
			Bucket: strings.TrimSpace(v.GetString("archive.bucket")),
		},
		RateLimit: RateLimitConfig{
			DonationCapacity: v.GetInt64("ratelimit.donation_capacity"),
			DonationRefill:   v.GetInt64("ratelimit.donation_refill"),
			DonationWindow:   v.GetDuration("ratelimit.donation_window"),
		},
		Notify: NotifyConfig{
			PoolSize: v.GetInt("notify.pool_size"),
		},
	}

	var operators []OperatorKey
	if err := v.UnmarshalKey("operators", &operators); err == nil && len(operators) > 0 {
		cfg.Operators = operators
	} else {
		cfg.Operators = parseOperatorKeys(v.GetString("operator.keys"))
	}

	return cfg
}

// Validate checks the gateway settings the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.PayOS.ClientID == "" || c.PayOS.APIKey == "" || c.PayOS.ChecksumKey == "" {
		errs = append(errs, ErrMissingPayOSCredentials)
	}
	if c.Sepay.APIKey == "" {
		errs = append(errs, ErrMissingSepayAPIKey)
	}
	if c.Wallet.SystemOwnerID == "" {
		errs = append(errs, ErrMissingSystemWallet)
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// parseOperatorKeys reads "name|role|hash" entries separated by ";".
func parseOperatorKeys(raw string) []OperatorKey {
	entries := strings.Split(raw, ";")
	out := make([]OperatorKey, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "|", 3)
		if len(parts) != 3 {
			log.Printf("[config] ignoring malformed operator key entry")
			continue
		}
		out = append(out, OperatorKey{
			Name: strings.TrimSpace(parts[0]),
			Role: strings.ToLower(strings.TrimSpace(parts[1])),
			Hash: strings.TrimSpace(parts[2]),
		})
	}
	return out
}
