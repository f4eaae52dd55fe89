package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Booking backend.
	BookingAPIURL     string        `mapstructure:"BOOKING_API_URL"`
	BookingAPIToken   string        `mapstructure:"BOOKING_API_TOKEN"`
	BookingAPITimeout time.Duration `mapstructure:"BOOKING_API_TIMEOUT"`

	// Reservation page behaviour.
	TickInterval         time.Duration `mapstructure:"TICK_INTERVAL"`
	UrgencyThreshold     time.Duration `mapstructure:"URGENCY_THRESHOLD"`
	ExpiryRedirectDelay  time.Duration `mapstructure:"EXPIRY_REDIRECT_DELAY"`
	ConfirmRedirectDelay time.Duration `mapstructure:"CONFIRM_REDIRECT_DELAY"`
	PageIdleTTL          time.Duration `mapstructure:"PAGE_IDLE_TTL"`
	BookingsListEnabled  bool          `mapstructure:"BOOKINGS_LIST_ENABLED"`

	// Redis configuration.
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisSnapshotDB     int    `mapstructure:"REDIS_SNAPSHOT_DB"`
	RedisReceiptQueueDB int    `mapstructure:"REDIS_RECEIPT_QUEUE_DB"`
	WorkerConcurrency   int    `mapstructure:"WORKER_CONCURRENCY"`

	// Payments and push.
	StripeKey                     string `mapstructure:"STRIPE_KEY"`
	StripeCurrency                string `mapstructure:"STRIPE_CURRENCY"`
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
}

var AppConfig Config

// LoadConfig reads config.yaml (or the file given by path) and the environment into AppConfig.
func LoadConfig(path string) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		// Look for a config file named "config.yaml" in the current and "config" directory.
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "pagoda")

	v.SetDefault("BOOKING_API_URL", "http://localhost:8000")
	v.SetDefault("BOOKING_API_TOKEN", "")
	v.SetDefault("BOOKING_API_TIMEOUT", "15s")

	v.SetDefault("TICK_INTERVAL", "1s")
	v.SetDefault("URGENCY_THRESHOLD", "2m")
	v.SetDefault("EXPIRY_REDIRECT_DELAY", "3s")
	v.SetDefault("CONFIRM_REDIRECT_DELAY", "2s")
	v.SetDefault("PAGE_IDLE_TTL", "30m")
	v.SetDefault("BOOKINGS_LIST_ENABLED", true)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SNAPSHOT_DB", 0)
	v.SetDefault("REDIS_RECEIPT_QUEUE_DB", 1)
	v.SetDefault("WORKER_CONCURRENCY", 10)

	v.SetDefault("STRIPE_KEY", "")
	v.SetDefault("STRIPE_CURRENCY", "myr")
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
