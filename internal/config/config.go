package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	LLM        LLMConfig
	RateLimit  RateLimitConfig
	Worker     WorkerConfig
	Extraction ExtractionConfig
	Fetch      FetchConfig
	Sweeper    SweeperConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	Driver     string
	SQLitePath string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration

	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	IPGeneral   int           `yaml:"ip_general"`
	IPAI        int           `yaml:"ip_ai"`
	UserGeneral int           `yaml:"user_general"`
	UserAI      int           `yaml:"user_ai"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
	Queue int `yaml:"queue"`
	// StartsPerSecond caps outbound fetch pressure. 0 means unlimited.
	StartsPerSecond int `yaml:"starts_per_second"`
	// DrainTimeout bounds how long shutdown waits for queued enrichment.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type ExtractionConfig struct {
	MaxTextChars   int           `yaml:"max_text_chars"`
	SemanticChars  int           `yaml:"semantic_chars"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens   int           `yaml:"llm_max_tokens"`
	LLMTemperature float64       `yaml:"llm_temperature"`
}

type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodySize int           `yaml:"max_body_size"`
	Headless    bool          `yaml:"headless"`
}

type SweeperConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Schedule    string        `yaml:"schedule"`
	MaxAttempts int           `yaml:"max_attempts"`
	MinAge      time.Duration `yaml:"min_age"`
	BatchSize   int           `yaml:"batch_size"`
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variables")
)

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:         "postgres",
			SQLitePath:     "job-ingest.db",
			DBSSLMode:      "disable",
			ConnectTimeout: 5 * time.Second,
			AutoMigrate:    true,
		},
		Redis: RedisConfig{Host: "localhost", Port: "6379"},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		RateLimit: RateLimitConfig{
			Window:      time.Minute,
			IPGeneral:   60,
			IPAI:        10,
			UserGeneral: 120,
			UserAI:      20,
		},
		Worker: WorkerConfig{Count: 4, Queue: 256, DrainTimeout: 15 * time.Second},
		Extraction: ExtractionConfig{
			MaxTextChars:   20000,
			SemanticChars:  20000,
			LLMTimeout:     30 * time.Second,
			LLMMaxTokens:   2000,
			LLMTemperature: 0.1,
		},
		Fetch: FetchConfig{Timeout: 25 * time.Second, MaxBodySize: 5 << 20},
		Sweeper: SweeperConfig{
			Enabled:     true,
			Schedule:    "@every 5m",
			MaxAttempts: 3,
			MinAge:      10 * time.Minute,
			BatchSize:   50,
		},
	}
}

// Load builds the config from defaults, then the optional CONFIG_FILE
// overlay, then the environment.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	var missing, invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return def
	}
	optInt := func(key string, def int) int {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return n
	}
	optBool := func(key string, def bool) bool {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return b
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return d
	}
	optFloat := func(key string, def float64) float64 {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return f
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}
	cfg.JWT = JWTConfig{Secret: req("JWT_SECRET")}

	db := &cfg.Database
	db.Driver = strings.ToLower(opt("DB_DRIVER", db.Driver))
	db.SQLitePath = opt("SQLITE_PATH", db.SQLitePath)
	db.DBHost = opt("DB_HOST", db.DBHost)
	db.DBPort = opt("DB_PORT", db.DBPort)
	db.DBName = opt("DB_NAME", db.DBName)
	db.DBUser = opt("DB_USER", db.DBUser)
	db.DBPassword = opt("DB_PASSWORD", db.DBPassword)
	db.DBSSLMode = opt("DB_SSL_MODE", db.DBSSLMode)
	db.ConnectTimeout = optDuration("DB_CONNECT_TIMEOUT", db.ConnectTimeout)
	db.PoolMaxConns = int32(optInt("DB_POOL_MAX_CONNS", int(db.PoolMaxConns)))
	db.PoolMinConns = int32(optInt("DB_POOL_MIN_CONNS", int(db.PoolMinConns)))
	db.PoolMaxConnLifetime = optDuration("DB_POOL_MAX_CONN_LIFETIME", db.PoolMaxConnLifetime)
	db.PoolMaxConnIdleTime = optDuration("DB_POOL_MAX_CONN_IDLE_TIME", db.PoolMaxConnIdleTime)
	db.PoolHealthCheckPeriod = optDuration("DB_POOL_HEALTH_CHECK_PERIOD", db.PoolHealthCheckPeriod)
	db.MigrationsDir = opt("MIGRATIONS_DIR", db.MigrationsDir)
	db.AutoMigrate = optBool("DB_AUTO_MIGRATE", db.AutoMigrate)

	cfg.Redis = RedisConfig{
		Enabled:  optBool("REDIS_ENABLED", cfg.Redis.Enabled),
		Host:     opt("REDIS_HOST", cfg.Redis.Host),
		Port:     opt("REDIS_PORT", cfg.Redis.Port),
		Password: opt("REDIS_PASSWORD", cfg.Redis.Password),
		DB:       optInt("REDIS_DB", cfg.Redis.DB),
	}

	cfg.LLM = LLMConfig{
		BaseURL: opt("LLM_BASE_URL", cfg.LLM.BaseURL),
		APIKey:  opt("LLM_API_KEY", cfg.LLM.APIKey),
		Model:   opt("LLM_MODEL", cfg.LLM.Model),
	}

	rl := &cfg.RateLimit
	rl.Window = optDuration("RATE_LIMIT_WINDOW", rl.Window)
	rl.IPGeneral = optInt("RATE_LIMIT_IP_GENERAL", rl.IPGeneral)
	rl.IPAI = optInt("RATE_LIMIT_IP_AI", rl.IPAI)
	rl.UserGeneral = optInt("RATE_LIMIT_USER_GENERAL", rl.UserGeneral)
	rl.UserAI = optInt("RATE_LIMIT_USER_AI", rl.UserAI)

	cfg.Worker.Count = optInt("WORKER_COUNT", cfg.Worker.Count)
	cfg.Worker.Queue = optInt("WORKER_QUEUE", cfg.Worker.Queue)
	cfg.Worker.StartsPerSecond = optInt("WORKER_STARTS_PER_SECOND", cfg.Worker.StartsPerSecond)
	cfg.Worker.DrainTimeout = optDuration("WORKER_DRAIN_TIMEOUT", cfg.Worker.DrainTimeout)

	ex := &cfg.Extraction
	ex.MaxTextChars = optInt("EXTRACT_MAX_TEXT_CHARS", ex.MaxTextChars)
	ex.SemanticChars = optInt("EXTRACT_SEMANTIC_CHARS", ex.SemanticChars)
	ex.LLMTimeout = optDuration("LLM_TIMEOUT", ex.LLMTimeout)
	ex.LLMMaxTokens = optInt("LLM_MAX_TOKENS", ex.LLMMaxTokens)
	ex.LLMTemperature = optFloat("LLM_TEMPERATURE", ex.LLMTemperature)

	cfg.Fetch.Timeout = optDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxBodySize = optInt("FETCH_MAX_BODY_SIZE", cfg.Fetch.MaxBodySize)
	cfg.Fetch.Headless = optBool("FETCH_HEADLESS", cfg.Fetch.Headless)

	sw := &cfg.Sweeper
	sw.Enabled = optBool("SWEEP_ENABLED", sw.Enabled)
	sw.Schedule = opt("SWEEP_INTERVAL", sw.Schedule)
	sw.MaxAttempts = optInt("SWEEP_MAX_ATTEMPTS", sw.MaxAttempts)
	sw.MinAge = optDuration("SWEEP_MIN_AGE", sw.MinAge)
	sw.BatchSize = optInt("SWEEP_BATCH_SIZE", sw.BatchSize)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}
	if db.Driver != "postgres" && db.Driver != "sqlite" {
		return Config{}, fmt.Errorf("%w: DB_DRIVER must be postgres or sqlite, got %q", errInvalidEnv, db.Driver)
	}

	return cfg, nil
}
