package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SANDGALLERY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "SANDGALLERY_APP_ENV"
	EnvPort           = "SANDGALLERY_APP_PORT"
	EnvDBDSN          = "SANDGALLERY_DB_DSN"
	EnvDBHost         = "SANDGALLERY_DB_HOST"
	EnvDBUser         = "SANDGALLERY_DB_USER"
	EnvDBName         = "SANDGALLERY_DB_NAME"
	EnvRedisURL       = "SANDGALLERY_REDIS_URL"
	EnvAuthSecret     = "SANDGALLERY_AUTH_SECRET"
	EnvAuthJWKSURL    = "SANDGALLERY_AUTH_JWKS_URL"
	EnvAdminSecret    = "SANDGALLERY_ADMIN_SECRET"
	EnvStorageDriver  = "SANDGALLERY_STORAGE_DRIVER"
	EnvGCSBucket      = "SANDGALLERY_GCS_BUCKET_NAME"
	EnvS3Endpoint     = "SANDGALLERY_S3_ENDPOINT"
	EnvS3Bucket       = "SANDGALLERY_S3_BUCKET"
	EnvGitHubToken    = "SANDGALLERY_GITHUB_TOKEN"
	EnvGitHubOwner    = "SANDGALLERY_GITHUB_OWNER"
	EnvGitHubRepo     = "SANDGALLERY_GITHUB_REPO"
	EnvVideoPollEvery = "SANDGALLERY_VIDEO_POLL_INTERVAL"

	StorageDriverGCS = "gcs"
	StorageDriverS3  = "s3"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Admin     AdminConfig
	Credits   CreditsConfig
	Storage   StorageConfig
	GCP       GCPConfig
	GCS       GCSConfig
	S3        S3Config
	Providers ProvidersConfig
	Video     VideoConfig
	Worker    WorkerConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SANDGALLERY_APP_ENV" required:"true"`
	Port         string `envconfig:"SANDGALLERY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SANDGALLERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SANDGALLERY_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"SANDGALLERY_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SANDGALLERY_DB_DSN"`

	LegacyHost     string `envconfig:"SANDGALLERY_DB_HOST"`
	LegacyPort     int    `envconfig:"SANDGALLERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SANDGALLERY_DB_USER"`
	LegacyPassword string `envconfig:"SANDGALLERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SANDGALLERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SANDGALLERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SANDGALLERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SANDGALLERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SANDGALLERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SANDGALLERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SANDGALLERY_REDIS_URL"`
	Address      string        `envconfig:"SANDGALLERY_REDIS_ADDR"`
	Password     string        `envconfig:"SANDGALLERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SANDGALLERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SANDGALLERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SANDGALLERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SANDGALLERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SANDGALLERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SANDGALLERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig controls verification of caller identity tokens. When JWKSURL is
// set tokens are RS256 (Firebase ID tokens); otherwise HS256 with Secret.
type AuthConfig struct {
	Secret   string `envconfig:"SANDGALLERY_AUTH_SECRET"`
	JWKSURL  string `envconfig:"SANDGALLERY_AUTH_JWKS_URL"`
	Issuer   string `envconfig:"SANDGALLERY_AUTH_ISSUER"`
	Audience string `envconfig:"SANDGALLERY_AUTH_AUDIENCE"`
}

type AdminConfig struct {
	Secret string `envconfig:"SANDGALLERY_ADMIN_SECRET"`
}

type CreditsConfig struct {
	SignupCredits int `envconfig:"SANDGALLERY_SIGNUP_CREDITS" default:"10"`
}

type StorageConfig struct {
	Driver        string `envconfig:"SANDGALLERY_STORAGE_DRIVER" default:"gcs"`
	PublicBaseURL string `envconfig:"SANDGALLERY_STORAGE_PUBLIC_BASE_URL" default:"https://firebasestorage.googleapis.com"`
	QuotaBytes    int64  `envconfig:"SANDGALLERY_STORAGE_QUOTA_BYTES" default:"52428800"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverGCS, StorageDriverS3:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvStorageDriver, StorageDriverGCS, StorageDriverS3, s.Driver)
	}
}

// UsesS3 reports whether artifacts go to the S3-compatible backend.
func (s StorageConfig) UsesS3() bool {
	return strings.EqualFold(strings.TrimSpace(s.Driver), StorageDriverS3)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SANDGALLERY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SANDGALLERY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SANDGALLERY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"SANDGALLERY_GCS_BUCKET_NAME"`
}

type S3Config struct {
	Endpoint  string `envconfig:"SANDGALLERY_S3_ENDPOINT"`
	Region    string `envconfig:"SANDGALLERY_S3_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"SANDGALLERY_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"SANDGALLERY_S3_SECRET_KEY"`
	Bucket    string `envconfig:"SANDGALLERY_S3_BUCKET"`
	UseSSL    bool   `envconfig:"SANDGALLERY_S3_USE_SSL" default:"true"`
}

// ProvidersConfig holds provider keys. Keys are optional at boot and checked
// at call time so a missing key surfaces as MISSING_CREDENTIAL.
type ProvidersConfig struct {
	ReplicateToken   string        `envconfig:"SANDGALLERY_REPLICATE_API_TOKEN"`
	ReplicateBaseURL string        `envconfig:"SANDGALLERY_REPLICATE_BASE_URL" default:"https://api.replicate.com/v1"`
	OpenAIKey        string        `envconfig:"SANDGALLERY_OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"SANDGALLERY_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenRouterKey    string        `envconfig:"SANDGALLERY_OPENROUTER_API_KEY"`
	OpenRouterURL    string        `envconfig:"SANDGALLERY_OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	DefaultTextModel string        `envconfig:"SANDGALLERY_DEFAULT_TEXT_MODEL" default:"google/gemini-2.0-flash-001"`
	GeminiKey        string        `envconfig:"SANDGALLERY_GEMINI_API_KEY"`
	HTTPTimeout      time.Duration `envconfig:"SANDGALLERY_PROVIDER_HTTP_TIMEOUT" default:"60s"`
}

type VideoConfig struct {
	Model           string        `envconfig:"SANDGALLERY_VIDEO_MODEL" default:"gemini-2.5-pro"`
	PollInterval    time.Duration `envconfig:"SANDGALLERY_VIDEO_POLL_INTERVAL" default:"2s"`
	MaxPollAttempts int           `envconfig:"SANDGALLERY_VIDEO_MAX_POLL_ATTEMPTS" default:"30"`
	Timeout         time.Duration `envconfig:"SANDGALLERY_VIDEO_TIMEOUT" default:"540s"`
}

type WorkerConfig struct {
	Interval      time.Duration `envconfig:"SANDGALLERY_WORKER_INTERVAL" default:"5m"`
	BatchSize     int           `envconfig:"SANDGALLERY_WORKER_BATCH_SIZE" default:"3"`
	QueueLabel    string        `envconfig:"SANDGALLERY_WORKER_QUEUE_LABEL" default:"ai-task"`
	WorkingLabel  string        `envconfig:"SANDGALLERY_WORKER_WORKING_LABEL" default:"ai-processing"`
	Model         string        `envconfig:"SANDGALLERY_WORKER_MODEL" default:"google/gemini-2.5-pro"`
	LockTTL       time.Duration `envconfig:"SANDGALLERY_WORKER_LOCK_TTL" default:"300s"`
	GenerationTTL time.Duration `envconfig:"SANDGALLERY_WORKER_GENERATION_TIMEOUT" default:"60s"`
}

type GitHubConfig struct {
	Token   string `envconfig:"SANDGALLERY_GITHUB_TOKEN"`
	Owner   string `envconfig:"SANDGALLERY_GITHUB_OWNER"`
	Repo    string `envconfig:"SANDGALLERY_GITHUB_REPO"`
	BaseURL string `envconfig:"SANDGALLERY_GITHUB_BASE_URL" default:"https://api.github.com"`
}

type RateLimitConfig struct {
	GenerateWindow time.Duration `envconfig:"SANDGALLERY_RATE_LIMIT_GENERATE_WINDOW" default:"1m"`
	GenerateLimit  int           `envconfig:"SANDGALLERY_RATE_LIMIT_GENERATE_LIMIT" default:"20"`
}

type CacheConfig struct {
	ContentSize int           `envconfig:"SANDGALLERY_CACHE_CONTENT_SIZE" default:"16"`
	ContentTTL  time.Duration `envconfig:"SANDGALLERY_CACHE_CONTENT_TTL" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
