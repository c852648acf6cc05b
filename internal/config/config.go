package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	Kafka         KafkaConfig
	Orders        OrdersConfig
	Notifications NotificationsConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	Schema        string
	SSLMode       string
	MaxOpenConns  int
	TxMaxAttempts int
	TxTimeout     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	NotificationTopic string
	PaymentTopic      string
	FulfillmentTopic  string
	GroupID           string
}

type OrdersConfig struct {
	CancelWindow time.Duration
	ReturnWindow time.Duration
}

type NotificationsConfig struct {
	Timeout time.Duration
	From    string
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	// Populate the process environment first so both viper and the rest of the process see .env values
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_TX_MAX_ATTEMPTS", 3)
	v.SetDefault("DB_TX_TIMEOUT", "5s")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "notifications.email")
	v.SetDefault("KAFKA_PAYMENT_TOPIC", "payments.confirmed")
	v.SetDefault("KAFKA_FULFILLMENT_TOPIC", "fulfillment.shipped")
	v.SetDefault("KAFKA_GROUP_ID", "farmmarket-orders")
	v.SetDefault("ORDER_CANCEL_WINDOW", "24h")
	v.SetDefault("ORDER_RETURN_WINDOW", "168h")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_FROM", "no-reply@farmmarket.local")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			Database:      v.GetString("DB_DATABASE"),
			Schema:        v.GetString("DB_SCHEMA"),
			SSLMode:       v.GetString("DB_SSLMODE"),
			MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
			TxMaxAttempts: v.GetInt("DB_TX_MAX_ATTEMPTS"),
			TxTimeout:     v.GetDuration("DB_TX_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Kafka: KafkaConfig{
			Enabled:           v.GetBool("KAFKA_ENABLED"),
			Brokers:           splitList(v.GetString("KAFKA_BROKERS")),
			NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
			PaymentTopic:      v.GetString("KAFKA_PAYMENT_TOPIC"),
			FulfillmentTopic:  v.GetString("KAFKA_FULFILLMENT_TOPIC"),
			GroupID:           v.GetString("KAFKA_GROUP_ID"),
		},
		Orders: OrdersConfig{
			CancelWindow: v.GetDuration("ORDER_CANCEL_WINDOW"),
			ReturnWindow: v.GetDuration("ORDER_RETURN_WINDOW"),
		},
		Notifications: NotificationsConfig{
			Timeout: v.GetDuration("NOTIFY_TIMEOUT"),
			From:    v.GetString("NOTIFY_FROM"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
