package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/idverify/constants"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	OCR    OCRConfig
	Queue  QueueConfig
	Store  StoreConfig
	Auth   AuthConfig
	Log    LogConfig
}

// ServerConfig holds HTTP and gRPC listener configuration
type ServerConfig struct {
	HTTPAddr            string
	GRPCAddr            string
	MaxUploadBytes      int64
	ShutdownTimeout     time.Duration
	HealthProbeInterval time.Duration
	CORSAllowedOrigins  []string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractCmd   string
	TessdataDir    string
	Language       string
	Profiles       []constants.Profile
	ProfileTimeout time.Duration
	WorkingWidth   int
}

// QueueConfig holds worker pool configuration
type QueueConfig struct {
	Workers     int
	Capacity    int // 0 = unbounded
	TaskTimeout time.Duration
}

// StoreConfig holds result store configuration
type StoreConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// AuthConfig holds optional bearer-token configuration; empty secret disables auth
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return WrapError(err, "load env file")
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	profiles, _ := constants.ParseProfiles(getEnv("OCR_PROFILES", "block,column,sparse"))
	if len(profiles) == 0 {
		profiles = constants.DefaultProfiles
	}

	return &Config{
		Server: ServerConfig{
			HTTPAddr:            listenAddr(getEnv("HTTP_ADDR", getEnv("PORT", "10000"))),
			GRPCAddr:            listenAddr(getEnv("GRPC_ADDR", "9090")),
			MaxUploadBytes:      getEnvAsInt64("MAX_UPLOAD_BYTES", constants.DefaultMaxUploadBytes),
			ShutdownTimeout:     getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthProbeInterval: getEnvAsDuration("HEALTH_PROBE_INTERVAL", 30*time.Second),
			CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		},
		OCR: OCRConfig{
			TesseractCmd:   getEnv("TESSERACT_CMD", ""),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			Language:       getEnv("TESSERACT_LANG", "eng"),
			Profiles:       profiles,
			ProfileTimeout: getEnvAsDuration("OCR_PROFILE_TIMEOUT", 30*time.Second),
			WorkingWidth:   getEnvAsInt("OCR_WORKING_WIDTH", 2000),
		},
		Queue: QueueConfig{
			Workers:     getEnvAsInt("WORKER_COUNT", 2),
			Capacity:    getEnvAsInt("QUEUE_CAPACITY", 0),
			TaskTimeout: getEnvAsDuration("TASK_TIMEOUT", 3*time.Minute),
		},
		Store: StoreConfig{
			Retention:     getEnvAsDuration("RESULT_RETENTION", 24*time.Hour),
			SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:   strings.TrimSpace(getEnv("JWT_SECRET", "")),
			JWTAudience: strings.TrimSpace(getEnv("JWT_AUDIENCE", "")),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// listenAddr accepts "8080" or ":8080" or "host:8080".
func listenAddr(addr string) string {
	if addr == "" || strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Queue.Workers < 1 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("WORKER_COUNT must be at least 1, got %d", c.Queue.Workers), ErrInvalidInput)
	}
	if c.Queue.Capacity < 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_CAPACITY must not be negative", ErrInvalidInput)
	}
	if c.Queue.TaskTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "TASK_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Store.Retention <= 0 || c.Store.SweepInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "RESULT_RETENTION and SWEEP_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.OCR.ProfileTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_PROFILE_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.OCR.WorkingWidth < 100 {
		return NewAppError("CONFIG_ERROR", "OCR_WORKING_WIDTH must be at least 100", ErrInvalidInput)
	}
	if len(c.OCR.Profiles) == 0 {
		return NewAppError("CONFIG_ERROR", "OCR_PROFILES must name at least one profile", ErrInvalidInput)
	}
	return nil
}
