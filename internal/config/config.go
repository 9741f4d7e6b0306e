package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL              string
	NATSSubject          string
	NATSQueueGroup       string
	IngestMode           string
	WorkerMetricsPort    string
	WorkerHandlerTimeout time.Duration

	LLMProvider   string
	LLMTimeout    time.Duration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OllamaURL     string
	OllamaModel   string
	GeminiAPIKey  string
	GeminiModel   string

	ClassifierTemperature float64
	ClassifierMaxTokens   int
	ClassifierPromptChars int

	RetryMaxAttempts     int
	RetryInitialBackoff  time.Duration
	RetryMaxBackoff      time.Duration
	BreakerEnabled       bool
	BreakerMinRequests   int
	BreakerFailureRatio  float64
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenCalls int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	StorageBackend string
	StoragePath    string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool
	S3Prefix       string

	ExtractPDFMode string
	MaxUploadBytes int64

	APIRateLimitRPS            float64
	APIRateLimitBurst          int
	APIBackpressureMaxInFlight int
	APIBackpressureWait        time.Duration
	APIMaxConnections          int
	ShutdownTimeout            time.Duration
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then the
// process environment. Environment values win over file values.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return load(source{file: file, lookup: os.LookupEnv})
}

func load(env source) (Config, error) {
	cfg := Config{
		APIPort:  env.mustEnv("API_PORT", "8080"),
		LogLevel: env.mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: env.mustEnv("POSTGRES_DSN", ""),

		NATSURL:              env.mustEnv("NATS_URL", ""),
		NATSSubject:          env.mustEnv("NATS_SUBJECT", "documents.ingest"),
		NATSQueueGroup:       env.mustEnv("NATS_QUEUE_GROUP", "intellidocs-workers"),
		IngestMode:           strings.ToLower(env.mustEnv("INGEST_MODE", "sync")),
		WorkerMetricsPort:    env.mustEnv("WORKER_METRICS_PORT", "9090"),
		WorkerHandlerTimeout: env.mustEnvDuration("WORKER_HANDLER_TIMEOUT", 5*time.Minute),

		LLMProvider:   strings.ToLower(env.mustEnv("LLM_PROVIDER", "openai")),
		LLMTimeout:    env.mustEnvDuration("LLM_TIMEOUT", 60*time.Second),
		OpenAIAPIKey:  env.mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: env.mustEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   env.mustEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaURL:     env.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   env.mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		GeminiAPIKey:  env.mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:   env.mustEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		ClassifierTemperature: env.mustEnvFloat("CLASSIFIER_TEMPERATURE", 0.3),
		ClassifierMaxTokens:   env.mustEnvInt("CLASSIFIER_MAX_TOKENS", 500),
		ClassifierPromptChars: env.mustEnvInt("CLASSIFIER_PROMPT_CHARS", 4000),

		// Zero keeps the per-call defaults of the resilience package.
		RetryMaxAttempts:     env.mustEnvInt("RETRY_MAX_ATTEMPTS", 0),
		RetryInitialBackoff:  env.mustEnvDuration("RETRY_INITIAL_BACKOFF", 0),
		RetryMaxBackoff:      env.mustEnvDuration("RETRY_MAX_BACKOFF", 0),
		BreakerEnabled:       env.mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:   env.mustEnvInt("BREAKER_MIN_REQUESTS", 0),
		BreakerFailureRatio:  env.mustEnvFloat("BREAKER_FAILURE_RATIO", 0),
		BreakerOpenTimeout:   env.mustEnvDuration("BREAKER_OPEN_TIMEOUT", 0),
		BreakerHalfOpenCalls: env.mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 0),

		RedisAddr:     env.mustEnv("REDIS_ADDR", ""),
		RedisPassword: env.mustEnv("REDIS_PASSWORD", ""),
		RedisDB:       env.mustEnvInt("REDIS_DB", 0),
		CacheTTL:      env.mustEnvDuration("CLASSIFICATION_CACHE_TTL", 24*time.Hour),

		StorageBackend: strings.ToLower(env.mustEnv("STORAGE_BACKEND", "localfs")),
		StoragePath:    env.mustEnv("STORAGE_PATH", "./data/storage"),
		S3Bucket:       env.mustEnv("S3_BUCKET", ""),
		S3Region:       env.mustEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     env.mustEnv("S3_ENDPOINT", ""),
		S3AccessKey:    env.mustEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    env.mustEnv("S3_SECRET_KEY", ""),
		S3PathStyle:    env.mustEnvBool("S3_PATH_STYLE", false),
		S3Prefix:       env.mustEnv("S3_PREFIX", ""),

		ExtractPDFMode: strings.ToLower(env.mustEnv("EXTRACT_PDF_MODE", "auto")),
		MaxUploadBytes: int64(env.mustEnvInt("MAX_UPLOAD_BYTES", 20<<20)),

		APIRateLimitRPS:            env.mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:          env.mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIBackpressureMaxInFlight: env.mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 32),
		APIBackpressureWait:        env.mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIMaxConnections:          env.mustEnvInt("API_MAX_CONNECTIONS", 256),
		ShutdownTimeout:            env.mustEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.IngestMode {
	case "sync", "async":
	default:
		errs = append(errs, fmt.Errorf("INGEST_MODE must be sync or async, got %q", c.IngestMode))
	}
	if c.IngestMode == "async" && c.NATSURL == "" {
		errs = append(errs, errors.New("INGEST_MODE=async requires NATS_URL"))
	}
	if c.IngestMode == "async" && c.PostgresDSN == "" {
		errs = append(errs, errors.New("INGEST_MODE=async requires POSTGRES_DSN shared with the worker"))
	}
	switch c.LLMProvider {
	case "openai", "ollama", "gemini", "none":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be openai, ollama, gemini or none, got %q", c.LLMProvider))
	}
	switch c.StorageBackend {
	case "localfs":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=s3 requires S3_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be localfs or s3, got %q", c.StorageBackend))
	}
	switch c.ExtractPDFMode {
	case "auto", "heuristic":
	default:
		errs = append(errs, fmt.Errorf("EXTRACT_PDF_MODE must be auto or heuristic, got %q", c.ExtractPDFMode))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func readFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// source resolves a key from the environment first, then from the config file.
type source struct {
	file   map[string]string
	lookup func(string) (string, bool)
}

func (s source) get(key string) string {
	if s.lookup != nil {
		if v, ok := s.lookup(key); ok && v != "" {
			return v
		}
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
