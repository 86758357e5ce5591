package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is a application configuration structure
type (
	AppConfig struct {
		Database  DatabaseConfig
		Logging   LoggingConfig
		Mail      MailConfig
		Queue     QueueConfig
		RateLimit RateLimitConfig
		Engine    EngineConfig
	}

	QueueConfig struct {
		Brokers []string
		GroupID string
	}

	MailConfig struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}

	RateLimitConfig struct {
		Window        time.Duration
		ResetRequests int
		ResetSubmits  int
	}

	EngineConfig struct {
		MaxAttempts   int
		SweepInterval time.Duration
		SweepBatch    int
	}
)

var (
	Logging   *LoggingConfig
	Database  *DatabaseConfig
	Mail      *MailConfig
	Queue     *QueueConfig
	RateLimit *RateLimitConfig
	Engine    *EngineConfig
)

func Setup() {

	if err := godotenv.Load(".env"); err != nil {
		fmt.Println("Error loading .env file:", err)
	}

	Http := &AppConfig{
		Database: DatabaseConfig{
			Driver:   os.Getenv("DB_DRIVER"),
			Host:     os.Getenv("DB_HOST"),
			Username: os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			Port:     getEnvAsInt("DB_PORT", 3306),
			Debug:    os.Getenv("DB_DEBUG") == "true",
		},
		Logging: LoggingConfig{
			Type:       os.Getenv("LOG_TYPE"),
			ServerName: os.Getenv("SERVER_NAME"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("MAIL_FROM"),
		},
		Queue: QueueConfig{
			Brokers: strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
			GroupID: os.Getenv("KAFKA_GROUP_ID"),
		},
		RateLimit: RateLimitConfig{
			Window:        time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
			ResetRequests: getEnvAsInt("RATE_LIMIT_RESET_REQUESTS", 5),
			ResetSubmits:  getEnvAsInt("RATE_LIMIT_RESET_SUBMITS", 10),
		},
		Engine: EngineConfig{
			MaxAttempts:   getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			SweepInterval: time.Duration(getEnvAsInt("NOTIFY_SWEEP_SECONDS", 10)) * time.Second,
			SweepBatch:    getEnvAsInt("NOTIFY_SWEEP_BATCH", 50),
		},
	}

	Http.Database.Setup()
	Http.Logging.Setup()

	Database = &Http.Database
	Logging = &Http.Logging
	Mail = &Http.Mail
	Queue = &Http.Queue
	RateLimit = &Http.RateLimit
	Engine = &Http.Engine
}

func Config(key string) string {
	return os.Getenv(key)
}

// Helper convert env -> int
func getEnvAsInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
