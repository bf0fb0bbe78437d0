package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Notifier NotifierConfig `mapstructure:"notifier" validate:"required"`
	Droid    DroidConfig    `mapstructure:"droid"`
}

// ServerConfig contains the HTTP server and logging settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json console"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the producer/ops API.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// WorkerConfig contains the job worker settings.
type WorkerConfig struct {
	// PollIntervalMs is the delay between claim attempts when the
	// worker has spare capacity.
	PollIntervalMs int `mapstructure:"poll_interval_ms" validate:"required,gte=50"`

	// MaxConcurrent bounds the number of simultaneously executing jobs.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gte=1"`

	// JobTypes restricts which job types this worker claims.
	// Empty means all registered types.
	JobTypes []string `mapstructure:"job_types"`

	// ShutdownGraceSeconds is how long Stop waits for active jobs to
	// finish before cancelling them.
	ShutdownGraceSeconds int `mapstructure:"shutdown_grace_seconds" validate:"gte=0"`

	// Verbose enables per-claim-attempt debug logging.
	Verbose bool `mapstructure:"verbose"`

	// MaxConversationLocks caps the number of conversation keys that
	// may hold the synchronous-path lock at once.
	MaxConversationLocks int `mapstructure:"max_conversation_locks" validate:"required,gte=1"`
}

// NotifierConfig contains the progress notification settings.
type NotifierConfig struct {
	// ProgressIntervalMs is the minimum delay between progress
	// deliveries for a single job.
	ProgressIntervalMs int `mapstructure:"progress_interval_ms" validate:"required,gte=0"`

	// ProgressPercentStep delivers a progress update early when percent
	// advanced at least this much since the last delivery.
	ProgressPercentStep int `mapstructure:"progress_percent_step" validate:"required,gte=1,lte=100"`

	// NSQDAddr is the nsqd TCP address the sink publishes to.
	// Empty disables NSQ delivery; messages are logged instead.
	NSQDAddr string `mapstructure:"nsqd_addr"`

	// NSQTopic is the topic the chat transport adapter consumes.
	NSQTopic string `mapstructure:"nsq_topic" validate:"required_with=NSQDAddr"`
}

// DroidConfig contains the AI execution client settings.
type DroidConfig struct {
	// GeminiAPIKey authorizes the Gemini streaming backend. Empty
	// disables the built-in droid handler registration.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// ModelName selects the Gemini model for droid executions.
	ModelName string `mapstructure:"model_name"`
}
