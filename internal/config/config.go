package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	State     StateConfig     `mapstructure:"state"`
	Local     LocalConfig     `mapstructure:"local"`
	Cloud     CloudConfig     `mapstructure:"cloud"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Images    ImagesConfig    `mapstructure:"images"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OAuth2    OAuth2Config    `mapstructure:"oauth2"`
	Invite    InviteConfig    `mapstructure:"invite"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Mail      MailConfig      `mapstructure:"mail"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
	MaxUploadBytes          int64         `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Driver      string         `mapstructure:"driver"` // "postgres" | "mysql" | "sqlite" | "mongo"
	AutoMigrate bool           `mapstructure:"auto_migrate"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	MySQL       MySQLConfig    `mapstructure:"mysql"`
	SQLite      SQLiteConfig   `mapstructure:"sqlite"`
	Mongo       MongoConfig    `mapstructure:"mongo"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type MySQLConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Prefix   string `mapstructure:"prefix"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory" | "file" | "sqlite"
	Dir     string `mapstructure:"dir"`
	Path    string `mapstructure:"path"`
}

// LocalConfig drives the single-household offline inventory.
type LocalConfig struct {
	Enabled  bool        `mapstructure:"enabled"`
	Store    StateConfig `mapstructure:"store"`
	ImageDir string      `mapstructure:"image_dir"`
}

type CloudConfig struct {
	// TransactionalWrites runs multi-document writes (child/category deletion,
	// invite redemption) in one transaction. Off means last writer wins.
	TransactionalWrites bool `mapstructure:"transactional_writes"`
	LockGroupRows       bool `mapstructure:"lock_group_rows"`
}

type NotifyConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type ImagesConfig struct {
	Backend      string   `mapstructure:"backend"` // "local" | "s3"
	Dir          string   `mapstructure:"dir"`
	BaseURL      string   `mapstructure:"base_url"`
	MaxDimension int      `mapstructure:"max_dimension"`
	JPEGQuality  int      `mapstructure:"jpeg_quality"`
	S3           S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Prefix       string `mapstructure:"prefix"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	PublicURL    string `mapstructure:"public_url"`
}

type JWTConfig struct {
	SigningKey      string        `mapstructure:"signing_key"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// OAuth2Config enables "sign in with" providers. A provider without a client id is off.
type OAuth2Config struct {
	Google OAuth2ProviderConfig `mapstructure:"google"`
	GitHub OAuth2ProviderConfig `mapstructure:"github"`
}

type OAuth2ProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	// Endpoint overrides, empty means the provider's public endpoints.
	AuthURL     string `mapstructure:"auth_url"`
	TokenURL    string `mapstructure:"token_url"`
	UserInfoURL string `mapstructure:"user_info_url"`
}

type InviteConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	CodeLength int           `mapstructure:"code_length"`
	// AppURL is linked from invite e-mails.
	AppURL string `mapstructure:"app_url"`
}

type VisionConfig struct {
	// BaseURL is an OpenAI-compatible API root; requests go to <BaseURL>/chat/completions.
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// SealKey encrypts users' API keys at rest.
	SealKey string `mapstructure:"seal_key"`
}

type MailConfig struct {
	Backend   string        `mapstructure:"backend"` // "none" | "smtp" | "ses" | "mailgun"
	FromEmail string        `mapstructure:"from_email"`
	FromName  string        `mapstructure:"from_name"`
	SMTP      SMTPConfig    `mapstructure:"smtp"`
	SES       SESConfig     `mapstructure:"ses"`
	Mailgun   MailgunConfig `mapstructure:"mailgun"`
}

type SMTPConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	UseSTARTTLS   bool   `mapstructure:"use_starttls"`
	SkipTLSVerify bool   `mapstructure:"skip_tls_verify"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
}

type MailgunConfig struct {
	Domain string `mapstructure:"domain"`
	APIKey string `mapstructure:"api_key"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// RateLimitConfig is a per-user token bucket for the expensive or guessable endpoints.
type RateLimitConfig struct {
	RedeemPerMinute float64 `mapstructure:"redeem_per_minute"`
	RedeemBurst     int     `mapstructure:"redeem_burst"`
	VisionPerMinute float64 `mapstructure:"vision_per_minute"`
	VisionBurst     int     `mapstructure:"vision_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.graceful_shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.sqlite.path", "inventoryhub.db")
	v.SetDefault("database.mongo.database", "inventoryhub")
	v.SetDefault("database.mongo.connect_timeout", 10*time.Second)
	v.SetDefault("database.redis.prefix", "inventoryhub:")
	v.SetDefault("state.backend", "memory")
	v.SetDefault("local.store.backend", "file")
	v.SetDefault("local.store.dir", "data/state")
	v.SetDefault("local.image_dir", "data/inventory_images")
	v.SetDefault("cloud.transactional_writes", true)
	v.SetDefault("cloud.lock_group_rows", true)
	v.SetDefault("notify.backend", "memory")
	v.SetDefault("images.backend", "local")
	v.SetDefault("images.dir", "data/images")
	v.SetDefault("images.base_url", "/images")
	v.SetDefault("images.max_dimension", 800)
	v.SetDefault("images.jpeg_quality", 85)
	v.SetDefault("jwt.issuer", "inventoryhub")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("oauth2.google.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("oauth2.github.scopes", []string{"read:user", "user:email"})
	v.SetDefault("invite.ttl", 72*time.Hour)
	v.SetDefault("invite.code_length", 6)
	v.SetDefault("vision.base_url", "https://api.openai.com/v1")
	v.SetDefault("vision.model", "gpt-4o")
	v.SetDefault("vision.max_tokens", 300)
	v.SetDefault("vision.timeout", 60*time.Second)
	v.SetDefault("mail.backend", "none")
	v.SetDefault("rate_limit.redeem_per_minute", 10)
	v.SetDefault("rate_limit.redeem_burst", 5)
	v.SetDefault("rate_limit.vision_per_minute", 6)
	v.SetDefault("rate_limit.vision_burst", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: DATABASE_POSTGRES_HOST -> database.postgres.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite", "mongo":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.SigningKey) == "" {
		return fmt.Errorf("jwt.signing_key is required")
	}
	if strings.TrimSpace(c.Vision.SealKey) == "" {
		return fmt.Errorf("vision.seal_key is required")
	}
	if c.Images.Backend == "s3" && c.Images.S3.Bucket == "" {
		return fmt.Errorf("images.s3.bucket is required for the s3 backend")
	}
	if c.Invite.CodeLength < 4 {
		return fmt.Errorf("invite.code_length must be at least 4")
	}
	return nil
}
