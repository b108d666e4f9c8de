package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"interview-analyzer/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config represents the complete application configuration
type Config struct {
	HTTP       HTTPConfig       `json:"http"`
	Logging    LoggingConfig    `json:"logging"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Messaging  MessagingConfig  `json:"messaging"`
	Transcribe TranscribeConfig `json:"transcribe"`
}

// HTTPConfig holds the API server configuration
type HTTPConfig struct {
	Port          int           `json:"port" env:"HTTP_PORT" default:"8080"`
	ReadTimeout   time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"30s"`
	EnableMetrics bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	MetricsPath   string        `json:"metrics_path" env:"HTTP_METRICS_PATH" default:"/metrics"`

	RateLimit RateLimitConfig `json:"rate_limit"`
}

// RateLimitConfig throttles API clients by address
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled" env:"RATE_LIMIT_ENABLED" default:"false"`
	RequestsPerSecond float64       `json:"requests_per_second" env:"RATE_LIMIT_RPS" default:"20"`
	BurstSize         int           `json:"burst_size" env:"RATE_LIMIT_BURST" default:"40"`
	BlockDuration     time.Duration `json:"block_duration" env:"RATE_LIMIT_BLOCK_DURATION" default:"1m"`
	WhitelistedIPs    []string      `json:"whitelisted_ips" env:"RATE_LIMIT_WHITELIST_IPS"`
}

// LoggingConfig holds the logger configuration
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"LOG_FORMAT" default:"text"`
	OutputFile string `json:"output_file" env:"LOG_OUTPUT_FILE"`
}

// AnalysisConfig controls the analysis orchestrator
type AnalysisConfig struct {
	CacheCapacity   int           `json:"cache_capacity" env:"ANALYSIS_CACHE_CAPACITY" default:"100"`
	QueueCapacity   int           `json:"queue_capacity" env:"ANALYSIS_QUEUE_CAPACITY" default:"10"`
	DrainDelay      time.Duration `json:"drain_delay" env:"ANALYSIS_DRAIN_DELAY" default:"10ms"`
	ProgressEnabled bool          `json:"progress_enabled" env:"ANALYSIS_PROGRESS_ENABLED" default:"false"`
	EventBuffer     int           `json:"event_buffer" env:"ANALYSIS_EVENT_BUFFER" default:"64"`
	QuestionBank    string        `json:"question_bank" env:"ANALYSIS_QUESTION_BANK"`
}

// MessagingConfig holds the AMQP event publisher configuration
type MessagingConfig struct {
	Enabled    bool   `json:"enabled" env:"AMQP_ENABLED" default:"false"`
	URL        string `json:"url" env:"AMQP_URL"`
	QueueName  string `json:"queue_name" env:"AMQP_QUEUE_NAME" default:"interview-analysis-events"`
	Exchange   string `json:"exchange" env:"AMQP_EXCHANGE"`
	RoutingKey string `json:"routing_key" env:"AMQP_ROUTING_KEY"`
	BufferSize int    `json:"buffer_size" env:"AMQP_BUFFER_SIZE" default:"256"`
}

// TranscribeConfig selects and configures the live transcription provider
type TranscribeConfig struct {
	Provider     string        `json:"provider" env:"TRANSCRIBE_PROVIDER" default:"none"`
	Language     string        `json:"language" env:"TRANSCRIBE_LANGUAGE" default:"en-US"`
	SampleRate   int           `json:"sample_rate" env:"TRANSCRIBE_SAMPLE_RATE" default:"16000"`
	MaxRetries   int           `json:"max_retries" env:"TRANSCRIBE_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `json:"retry_backoff" env:"TRANSCRIBE_RETRY_BACKOFF" default:"500ms"`

	Google GoogleSTTConfig `json:"google"`
	Amazon AmazonSTTConfig `json:"amazon"`
}

// GoogleSTTConfig holds Google Cloud Speech credentials and options
type GoogleSTTConfig struct {
	APIKey                     string `json:"-" env:"GOOGLE_STT_API_KEY"`
	CredentialsFile            string `json:"credentials_file" env:"GOOGLE_STT_CREDENTIALS_FILE"`
	Model                      string `json:"model" env:"GOOGLE_STT_MODEL" default:"latest_long"`
	EnableAutomaticPunctuation bool   `json:"auto_punctuation" env:"GOOGLE_STT_AUTO_PUNCTUATION" default:"true"`
}

// AmazonSTTConfig holds AWS Transcribe credentials
type AmazonSTTConfig struct {
	Region          string `json:"region" env:"AWS_REGION" default:"us-east-1"`
	AccessKeyID     string `json:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"AWS_SECRET_ACCESS_KEY"`
	VocabularyName  string `json:"vocabulary_name" env:"AWS_TRANSCRIBE_VOCABULARY"`
}

// Supported transcription providers
const (
	ProviderNone   = "none"
	ProviderGoogle = "google"
	ProviderAmazon = "amazon"
)

// Load loads configuration from a .env file, if one is found, and the environment
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			absPath, _ := filepath.Abs(envFile)
			logger.WithField("path", absPath).Debug("Attempting to load .env file")

			if loadErr := godotenv.Load(envFile); loadErr == nil {
				loadedFrom = absPath
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}

	return FromEnv(logger)
}

// FromEnv builds the configuration from environment variables alone
func FromEnv(logger *logrus.Logger) (*Config, error) {
	config := &Config{}

	if err := loadHTTPConfig(logger, &config.HTTP); err != nil {
		return nil, errors.Wrap(err, "failed to load HTTP configuration")
	}
	loadLoggingConfig(logger, &config.Logging)
	loadAnalysisConfig(&config.Analysis)
	loadMessagingConfig(&config.Messaging)
	loadTranscribeConfig(logger, &config.Transcribe)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	httpPortStr := getEnv("HTTP_PORT", "8080")
	httpPort, err := strconv.Atoi(httpPortStr)
	if err != nil || httpPort < 1 || httpPort > 65535 {
		logger.Warn("Invalid HTTP_PORT value, using default: 8080")
		config.Port = 8080
	} else {
		config.Port = httpPort
	}

	config.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	config.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	config.EnableMetrics = getEnvBool("HTTP_ENABLE_METRICS", true)
	config.MetricsPath = getEnv("HTTP_METRICS_PATH", "/metrics")
	if !strings.HasPrefix(config.MetricsPath, "/") {
		return errors.NewInvalidInput(fmt.Sprintf("HTTP_METRICS_PATH must start with '/': %s", config.MetricsPath))
	}

	config.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", false)
	config.RateLimit.RequestsPerSecond = getEnvFloat("RATE_LIMIT_RPS", 20)
	config.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", 40)
	config.RateLimit.BlockDuration = getEnvDuration("RATE_LIMIT_BLOCK_DURATION", time.Minute)
	config.RateLimit.WhitelistedIPs = getEnvList("RATE_LIMIT_WHITELIST_IPS")
	return nil
}

func loadLoggingConfig(logger *logrus.Logger, config *LoggingConfig) {
	config.Level = getEnv("LOG_LEVEL", "info")
	if _, err := logrus.ParseLevel(config.Level); err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", config.Level)
		config.Level = "info"
	}

	config.Format = getEnv("LOG_FORMAT", "text")
	if config.Format != "json" && config.Format != "text" {
		logger.Warn("Invalid LOG_FORMAT, must be 'json' or 'text', defaulting to 'text'")
		config.Format = "text"
	}

	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")
}

func loadAnalysisConfig(config *AnalysisConfig) {
	config.CacheCapacity = getEnvInt("ANALYSIS_CACHE_CAPACITY", 100)
	config.QueueCapacity = getEnvInt("ANALYSIS_QUEUE_CAPACITY", 10)
	config.DrainDelay = getEnvDuration("ANALYSIS_DRAIN_DELAY", 10*time.Millisecond)
	config.ProgressEnabled = getEnvBool("ANALYSIS_PROGRESS_ENABLED", false)
	config.EventBuffer = getEnvInt("ANALYSIS_EVENT_BUFFER", 64)
	config.QuestionBank = getEnv("ANALYSIS_QUESTION_BANK", "")
}

func loadMessagingConfig(config *MessagingConfig) {
	config.Enabled = getEnvBool("AMQP_ENABLED", false)
	config.URL = getEnv("AMQP_URL", "")
	config.QueueName = getEnv("AMQP_QUEUE_NAME", "interview-analysis-events")
	config.Exchange = getEnv("AMQP_EXCHANGE", "")
	config.RoutingKey = getEnv("AMQP_ROUTING_KEY", "")
	config.BufferSize = getEnvInt("AMQP_BUFFER_SIZE", 256)
}

func loadTranscribeConfig(logger *logrus.Logger, config *TranscribeConfig) {
	config.Provider = strings.ToLower(getEnv("TRANSCRIBE_PROVIDER", ProviderNone))
	config.Language = getEnv("TRANSCRIBE_LANGUAGE", "en-US")
	config.SampleRate = getEnvInt("TRANSCRIBE_SAMPLE_RATE", 16000)
	config.MaxRetries = getEnvInt("TRANSCRIBE_MAX_RETRIES", 3)
	config.RetryBackoff = getEnvDuration("TRANSCRIBE_RETRY_BACKOFF", 500*time.Millisecond)

	config.Google.APIKey = getEnv("GOOGLE_STT_API_KEY", "")
	config.Google.CredentialsFile = getEnv("GOOGLE_STT_CREDENTIALS_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""))
	config.Google.Model = getEnv("GOOGLE_STT_MODEL", "latest_long")
	config.Google.EnableAutomaticPunctuation = getEnvBool("GOOGLE_STT_AUTO_PUNCTUATION", true)

	config.Amazon.Region = getEnv("AWS_REGION", "us-east-1")
	config.Amazon.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	config.Amazon.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	config.Amazon.VocabularyName = getEnv("AWS_TRANSCRIBE_VOCABULARY", "")

	if config.Provider == ProviderGoogle && config.Google.APIKey == "" && config.Google.CredentialsFile == "" {
		logger.Warn("Google transcription selected but neither GOOGLE_STT_API_KEY nor GOOGLE_STT_CREDENTIALS_FILE is set")
	}
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Analysis.CacheCapacity <= 0 {
		return errors.NewInvalidInput("ANALYSIS_CACHE_CAPACITY must be positive")
	}
	if c.Analysis.QueueCapacity <= 0 {
		return errors.NewInvalidInput("ANALYSIS_QUEUE_CAPACITY must be positive")
	}
	if c.Analysis.DrainDelay < 0 {
		return errors.NewInvalidInput("ANALYSIS_DRAIN_DELAY must not be negative")
	}
	if c.Analysis.EventBuffer <= 0 {
		return errors.NewInvalidInput("ANALYSIS_EVENT_BUFFER must be positive")
	}

	switch c.Transcribe.Provider {
	case ProviderNone, ProviderGoogle, ProviderAmazon:
	default:
		return errors.NewInvalidInput(fmt.Sprintf("unknown TRANSCRIBE_PROVIDER: %s", c.Transcribe.Provider)).
			WithField("supported", []string{ProviderNone, ProviderGoogle, ProviderAmazon})
	}
	if c.Transcribe.MaxRetries < 0 {
		return errors.NewInvalidInput("TRANSCRIBE_MAX_RETRIES must not be negative")
	}
	if c.Transcribe.SampleRate <= 0 {
		return errors.NewInvalidInput("TRANSCRIBE_SAMPLE_RATE must be positive")
	}

	if c.HTTP.RateLimit.Enabled && (c.HTTP.RateLimit.RequestsPerSecond <= 0 || c.HTTP.RateLimit.BurstSize <= 0) {
		return errors.NewInvalidInput("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	if c.Messaging.Enabled && c.Messaging.URL == "" {
		return errors.NewInvalidInput("AMQP_ENABLED is set but AMQP_URL is empty")
	}
	return nil
}

// ApplyLogging applies the logging configuration to the logger
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to open log file: %s", c.Logging.OutputFile))
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// Helper function to get a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
