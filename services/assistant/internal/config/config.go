package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

const (
	defaultPort              = "8000"
	defaultLogLevel          = "info"
	defaultProvider          = "openai"
	defaultTemperature       = 0.01
	defaultCompletionTimeout = 120
	defaultHistoryLimit      = 5
	defaultOCREngine         = "command"
	defaultOCRCommand        = "tesseract"
	defaultOCRTimeout        = 60
	defaultMaxUploadBytes    = 10 << 20
	defaultMinioBucket       = "receipts"
)

var defaultOCRArgs = []string{"stdin", "stdout"}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"logLevel"`
	CORSOrigin string `yaml:"corsOrigin"`

	DatabaseURL string `yaml:"databaseURL"`
	// DBMaxOpenConns caps the postgres pool; 0 leaves it unbounded. SQLite
	// always uses a single connection.
	DBMaxOpenConns int `yaml:"dbMaxOpenConns"`

	CompletionProvider       string   `yaml:"completionProvider"`
	CompletionBaseURL        string   `yaml:"completionBaseURL"`
	CompletionAPIKey         string   `yaml:"completionAPIKey"`
	DefaultModel             string   `yaml:"defaultModel"`
	Temperature              *float64 `yaml:"temperature"`
	MaxTokens                int      `yaml:"maxTokens"`
	CompletionTimeoutSeconds int      `yaml:"completionTimeoutSeconds"`
	HistoryLimit             int      `yaml:"historyLimit"`

	OCREngine         string   `yaml:"ocrEngine"`
	OCRCommand        string   `yaml:"ocrCommand"`
	OCRArgs           []string `yaml:"ocrArgs"`
	OCRURL            string   `yaml:"ocrURL"`
	OCRTimeoutSeconds int      `yaml:"ocrTimeoutSeconds"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// TemperatureValue returns the configured sampling temperature.
func (c FileConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result. A missing file at the default path is
// not an error so the service can run from environment alone.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	explicit := path != "" && path != ConfigPath
	if !explicit {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBMaxOpenConns = n
		}
	}
	if v := os.Getenv("COMPLETION_PROVIDER"); v != "" {
		cfg.CompletionProvider = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.CompletionBaseURL = v
	}
	if strings.EqualFold(strings.TrimSpace(cfg.CompletionProvider), "anthropic") {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.CompletionAPIKey = v
		}
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.CompletionAPIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("COMPLETION_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	if v := os.Getenv("COMPLETION_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("COMPLETION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CompletionTimeoutSeconds = n
		}
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
	if v := os.Getenv("OCR_ENGINE"); v != "" {
		cfg.OCREngine = v
	}
	if v := os.Getenv("OCR_COMMAND"); v != "" {
		cfg.OCRCommand = v
	}
	if v := os.Getenv("OCR_ARGS"); v != "" {
		cfg.OCRArgs = strings.Fields(v)
	}
	if v := os.Getenv("OCR_URL"); v != "" {
		cfg.OCRURL = v
	}
	if v := os.Getenv("OCR_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCRTimeoutSeconds = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.CompletionProvider == "" {
		cfg.CompletionProvider = defaultProvider
	}
	if cfg.Temperature == nil {
		t := defaultTemperature
		cfg.Temperature = &t
	}
	if cfg.CompletionTimeoutSeconds == 0 {
		cfg.CompletionTimeoutSeconds = defaultCompletionTimeout
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.OCREngine == "" {
		cfg.OCREngine = defaultOCREngine
	}
	if cfg.OCREngine == defaultOCREngine && cfg.OCRCommand == "" {
		cfg.OCRCommand = defaultOCRCommand
		if cfg.OCRArgs == nil {
			cfg.OCRArgs = append([]string(nil), defaultOCRArgs...)
		}
	}
	if cfg.OCRTimeoutSeconds == 0 {
		cfg.OCRTimeoutSeconds = defaultOCRTimeout
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		cfg.MinioBucket = defaultMinioBucket
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.DBMaxOpenConns < 0 {
		return errors.New("config: dbMaxOpenConns must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.CompletionProvider)) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("config: completionProvider must be openai or anthropic, got %q", cfg.CompletionProvider)
	}
	if t := cfg.TemperatureValue(); t < 0 || t > 2 {
		return errors.New("config: temperature must be between 0 and 2")
	}
	if cfg.MaxTokens < 0 {
		return errors.New("config: maxTokens must be >= 0")
	}
	if cfg.CompletionTimeoutSeconds < 0 {
		return errors.New("config: completionTimeoutSeconds must be >= 0")
	}
	if cfg.HistoryLimit < 0 {
		return errors.New("config: historyLimit must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.OCREngine)) {
	case "command":
		if strings.TrimSpace(cfg.OCRCommand) == "" {
			return errors.New("config: ocrCommand is required when ocrEngine=command")
		}
	case "paddle":
		if strings.TrimSpace(cfg.OCRURL) == "" {
			return errors.New("config: ocrURL is required when ocrEngine=paddle")
		}
	default:
		return fmt.Errorf("config: ocrEngine must be command or paddle, got %q", cfg.OCREngine)
	}
	if cfg.OCRTimeoutSeconds < 0 {
		return errors.New("config: ocrTimeoutSeconds must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioAccessKey and minioSecretKey are required when minioEndpoint is set")
	}
	return nil
}
