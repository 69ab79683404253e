package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Booking  BookingConfig
	Tasks    TaskConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// BookingConfig holds the business rules of the reservation engine.
type BookingConfig struct {
	Timezone    string
	WorkStart   string
	WorkEnd     string
	HoldMinutes int
}

type TaskConfig struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	Lease         time.Duration
	Concurrency   int
	BatchSize     int
}

// LoadConfig reads configuration from an optional .env file and the process
// environment. Environment variables win over the file.
func LoadConfig(envFile string) (*Config, error) {
	v := viper.New()
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")

	v.SetDefault("APP_NAME", "room-booking")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "room_booking")
	v.SetDefault("DB_USER", "room_booking")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("BOOKING_TIMEZONE", "Europe/Warsaw")
	v.SetDefault("BOOKING_WORK_START", "08:00")
	v.SetDefault("BOOKING_WORK_END", "18:00")
	v.SetDefault("BOOKING_HOLD_MINUTES", 15)
	v.SetDefault("TASK_POLL_INTERVAL", "2s")
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("TASK_LEASE", "1m")
	v.SetDefault("TASK_CONCURRENCY", 4)
	v.SetDefault("TASK_BATCH_SIZE", 25)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Port:        v.GetString("PORT"),
			Debug:       v.GetBool("DEBUG"),
			LogPath:     v.GetString("LOG_PATH"),
			CORSOrigins: v.GetStringSlice("CORS_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Booking: BookingConfig{
			Timezone:    v.GetString("BOOKING_TIMEZONE"),
			WorkStart:   v.GetString("BOOKING_WORK_START"),
			WorkEnd:     v.GetString("BOOKING_WORK_END"),
			HoldMinutes: v.GetInt("BOOKING_HOLD_MINUTES"),
		},
		Tasks: TaskConfig{
			PollInterval:  v.GetDuration("TASK_POLL_INTERVAL"),
			SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
			Lease:         v.GetDuration("TASK_LEASE"),
			Concurrency:   v.GetInt("TASK_CONCURRENCY"),
			BatchSize:     v.GetInt("TASK_BATCH_SIZE"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Booking.HoldMinutes < 1 {
		return fmt.Errorf("BOOKING_HOLD_MINUTES must be >= 1, got %d", c.Booking.HoldMinutes)
	}
	if c.Tasks.PollInterval <= 0 || c.Tasks.SweepInterval <= 0 || c.Tasks.Lease <= 0 {
		return errors.New("TASK_POLL_INTERVAL, SWEEP_INTERVAL and TASK_LEASE must be positive")
	}
	if c.Tasks.Concurrency < 1 {
		return fmt.Errorf("TASK_CONCURRENCY must be >= 1, got %d", c.Tasks.Concurrency)
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}
	return nil
}
