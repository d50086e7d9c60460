package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeDemo    AuthMode = "demo"    // Local storage only, no identity provider
	AuthModeCognito AuthMode = "cognito" // Hosted Cognito user pool
)

type DemoStorage string

const (
	DemoStorageSQLite DemoStorage = "sqlite"
	DemoStorageMemory DemoStorage = "memory"
	DemoStorageRedis  DemoStorage = "redis"
)

type (
	Config struct {
		HTTP
		Global
		Log
		Auth
		Demo
		API
		Database
		TokenStore
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // json or console
	}
	Auth struct {
		UserPoolID      string
		ClientID        string
		Domain          string // Hosted UI domain; enables federated sign-in when set
		Region          string
		PublicURL       string // Origin the UI is served from
		RedirectSignIn  string
		RedirectSignOut string

		CSRFSecret      string        // CSRF protection is disabled when empty
		SecureCookies   bool          // Set to false for local dev without HTTPS
		SessionLifetime time.Duration // Browser session cookie lifetime (default: 720h)

		MaxSignInAttempts int           // Attempts allowed per window (default: 5)
		SignInWindow      time.Duration // Window for counting attempts (default: 15m)
	}
	Demo struct {
		Storage       DemoStorage
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		Latency       time.Duration // Simulated provider latency
	}
	API struct {
		BaseURL string
	}
	Database struct {
		Path string
	}
	TokenStore struct {
		EncryptionKey string
		KeyFile       string
	}
	Audit struct {
		RetentionDays   int    // Days to keep auth events (default: 30)
		CleanupSchedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

// Complete reports whether both identifiers needed to reach the user pool are set.
func (a Auth) Complete() bool {
	return strings.TrimSpace(a.UserPoolID) != "" && strings.TrimSpace(a.ClientID) != ""
}

// Federated reports whether a hosted UI domain is configured.
func (a Auth) Federated() bool {
	return strings.TrimSpace(a.Domain) != ""
}

// rootURL returns the origin's root path, used when redirect URLs are not set.
func rootURL(origin string) string {
	return strings.TrimRight(origin, "/") + "/"
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return fallback
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("server_port", 8188)
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("database_path", DefaultDatabasePath)

	// Identity provider
	v.SetDefault("cognito_user_pool_id", "")
	v.SetDefault("cognito_client_id", "")
	v.SetDefault("cognito_domain", "")
	v.SetDefault("cognito_region", DefaultRegion)
	v.SetDefault("public_url", DefaultPublicURL)
	v.SetDefault("auth_csrf_secret", "")
	v.SetDefault("auth_secure_cookies", false)
	v.SetDefault("auth_max_signin_attempts", 5)
	v.SetDefault("auth_signin_window", "15m")
	v.SetDefault("auth_session_lifetime", "720h") // 30 days

	// Demo mode
	v.SetDefault("demo_storage", string(DemoStorageSQLite))
	v.SetDefault("demo_redis_addr", "localhost:6379")
	v.SetDefault("demo_redis_password", "")
	v.SetDefault("demo_redis_db", 0)
	v.SetDefault("demo_latency", "1s")

	v.SetDefault("api_base_url", "")
	v.SetDefault("token_encryption_key", "")
	v.SetDefault("token_key_file", "")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("audit_cleanup_schedule", "0 3 * * *")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	publicURL := v.GetString("PUBLIC_URL")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("SERVER_PORT"),
			Host: v.GetString("SERVER_HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Auth: Auth{
			UserPoolID:        v.GetString("COGNITO_USER_POOL_ID"),
			ClientID:          v.GetString("COGNITO_CLIENT_ID"),
			Domain:            v.GetString("COGNITO_DOMAIN"),
			Region:            v.GetString("COGNITO_REGION"),
			PublicURL:         publicURL,
			RedirectSignIn:    stringOr(v, "COGNITO_REDIRECT_SIGN_IN", rootURL(publicURL)),
			RedirectSignOut:   stringOr(v, "COGNITO_REDIRECT_SIGN_OUT", rootURL(publicURL)),
			CSRFSecret:        v.GetString("AUTH_CSRF_SECRET"),
			SecureCookies:     v.GetBool("AUTH_SECURE_COOKIES"),
			MaxSignInAttempts: v.GetInt("AUTH_MAX_SIGNIN_ATTEMPTS"),
			SignInWindow:      v.GetDuration("AUTH_SIGNIN_WINDOW"),
			SessionLifetime:   v.GetDuration("AUTH_SESSION_LIFETIME"),
		},
		Demo: Demo{
			Storage:       DemoStorage(strings.ToLower(v.GetString("DEMO_STORAGE"))),
			RedisAddr:     v.GetString("DEMO_REDIS_ADDR"),
			RedisPassword: v.GetString("DEMO_REDIS_PASSWORD"),
			RedisDB:       v.GetInt("DEMO_REDIS_DB"),
			Latency:       v.GetDuration("DEMO_LATENCY"),
		},
		API: API{
			BaseURL: v.GetString("API_BASE_URL"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		TokenStore: TokenStore{
			EncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
			KeyFile:       v.GetString("TOKEN_KEY_FILE"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
