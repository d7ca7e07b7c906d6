package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Upload   UploadConfig   `mapstructure:"upload"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// AllowedOrigins is the CORS allow-list. "*" permits any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains settings for the optional task view cache.
// Caching is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig contains settings for the background task poller.
type WorkerConfig struct {
	// PollInterval is the tick interval in seconds between worker passes.
	PollInterval int `mapstructure:"poll_interval" validate:"required,gt=0"`

	// ErrorBackoff is the longer sleep in seconds applied after a pass
	// fails, to avoid hot-looping against a failing store.
	ErrorBackoff int `mapstructure:"error_backoff" validate:"required,gt=0"`

	// DwellSeconds is the minimum time a task stays queued before the
	// execution pass picks it up.
	DwellSeconds int `mapstructure:"dwell_seconds" validate:"gte=0"`

	// BatchSize bounds how many tasks one pass fetches.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`
}

// AnalyzerConfig contains settings for the sentiment classifier.
type AnalyzerConfig struct {
	// Provider selects the classifier implementation: "lexicon" runs the
	// in-process scorer, "gemini" calls the remote model.
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=lexicon gemini"`

	// GeminiAPIKey authenticates against the Gemini API. Required only
	// when Provider is "gemini".
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// ModelName is the Gemini model identifier.
	ModelName string `mapstructure:"model_name"`

	// MaxRetries bounds retry attempts for transient remote failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryDelaySeconds is the base delay for exponential backoff.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// UploadConfig contains settings for batch file intake.
type UploadConfig struct {
	// Dir is the directory batch files are spooled to before processing.
	Dir string `mapstructure:"dir" validate:"required"`

	// MaxBytes is the exclusive upper bound on accepted file size.
	MaxBytes int64 `mapstructure:"max_bytes" validate:"required,gt=0"`
}
