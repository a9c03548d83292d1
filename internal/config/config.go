package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Configuration provides type-safe access to application settings
type Configuration struct {
	viper *viper.Viper
}

// setDefaults applies the default settings shared by all constructors
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.key", "speakerscribe:jobs")
	v.SetDefault("jobs.upload_dir", filepath.Join(os.TempDir(), "speakerscribe"))
	v.SetDefault("jobs.worker_count", 2)
	v.SetDefault("jobs.execution_timeout_sec", 1800)
	v.SetDefault("jobs.retention_sec", 3600)
	v.SetDefault("whisper.model", "large-v3-turbo")
	v.SetDefault("whisper.language", "")
	v.SetDefault("diarizer.model", "pyannote/speaker-diarization-3.1")
	v.SetDefault("tools.python_path", "python3")
	v.SetDefault("tools.ffmpeg_path", "ffmpeg")
	v.SetDefault("performance.benchmark", false)
}

// NewConfiguration creates a new Configuration instance with default settings
func NewConfiguration() *Configuration {
	v := viper.New()
	setDefaults(v)
	return &Configuration{viper: v}
}

// NewConfigurationFromFile creates a Configuration instance from a config file
func NewConfigurationFromFile(configFile string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return &Configuration{viper: v}, nil
}

// NewConfigurationFromEnv creates a Configuration instance that reads from environment variables
func NewConfigurationFromEnv() (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	// Set up environment variable mapping
	v.SetEnvPrefix("SCRIBE")
	v.AutomaticEnv()

	// Map specific environment variables
	v.BindEnv("server.listen_addr", "LISTEN_ADDR")
	v.BindEnv("server.auth_token", "AUTH_TOKEN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("queue.key", "QUEUE_KEY")
	v.BindEnv("jobs.upload_dir", "UPLOAD_DIR")
	v.BindEnv("jobs.worker_count", "WORKER_COUNT")
	v.BindEnv("jobs.execution_timeout_sec", "EXECUTION_TIMEOUT_SEC")
	v.BindEnv("jobs.retention_sec", "JOB_RETENTION_SEC")
	v.BindEnv("whisper.model", "WHISPER_MODEL")
	v.BindEnv("whisper.language", "WHISPER_LANGUAGE")
	v.BindEnv("diarizer.model", "DIARIZER_MODEL")
	v.BindEnv("tools.python_path", "PYTHON_PATH")
	v.BindEnv("tools.ffmpeg_path", "FFMPEG_PATH")
	v.BindEnv("performance.benchmark", "BENCHMARK_MODE")

	return &Configuration{viper: v}, nil
}

// GetListenAddr returns the HTTP listen address for the submission API
func (c *Configuration) GetListenAddr() string {
	return c.viper.GetString("server.listen_addr")
}

// GetAuthToken returns the bearer token required on API requests.
// An empty token disables authentication.
func (c *Configuration) GetAuthToken() string {
	return c.viper.GetString("server.auth_token")
}

// GetRedisAddr returns the Redis host:port used for the queue and job store
func (c *Configuration) GetRedisAddr() string {
	return c.viper.GetString("redis.addr")
}

// GetRedisPassword returns the Redis password
func (c *Configuration) GetRedisPassword() string {
	return c.viper.GetString("redis.password")
}

// GetRedisDB returns the Redis database number
func (c *Configuration) GetRedisDB() int {
	return c.viper.GetInt("redis.db")
}

// GetQueueKey returns the Redis list key jobs are enqueued on
func (c *Configuration) GetQueueKey() string {
	return c.viper.GetString("queue.key")
}

// GetUploadDir returns the directory uploaded media files are stored in
func (c *Configuration) GetUploadDir() string {
	return c.viper.GetString("jobs.upload_dir")
}

// GetWorkerCount returns the number of concurrent job workers
func (c *Configuration) GetWorkerCount() int {
	count := c.viper.GetInt("jobs.worker_count")
	if count < 1 {
		return 1
	}
	return count
}

// GetExecutionTimeout returns the wall-clock ceiling for one job execution
func (c *Configuration) GetExecutionTimeout() time.Duration {
	return time.Duration(c.viper.GetInt("jobs.execution_timeout_sec")) * time.Second
}

// GetJobRetention returns how long terminal job records are retained
func (c *Configuration) GetJobRetention() time.Duration {
	return time.Duration(c.viper.GetInt("jobs.retention_sec")) * time.Second
}

// GetWhisperModel returns the configured Whisper model name
func (c *Configuration) GetWhisperModel() string {
	return c.viper.GetString("whisper.model")
}

// GetDefaultLanguage returns the transcription language used when a job does
// not specify one. Empty means the model auto-detects the language.
func (c *Configuration) GetDefaultLanguage() string {
	return c.viper.GetString("whisper.language")
}

// GetDiarizerModel returns the configured diarization model name
func (c *Configuration) GetDiarizerModel() string {
	return c.viper.GetString("diarizer.model")
}

// GetPythonPath returns the python interpreter used for model helpers
func (c *Configuration) GetPythonPath() string {
	return c.viper.GetString("tools.python_path")
}

// GetFFmpegPath returns the ffmpeg binary used for fallback conversion
func (c *Configuration) GetFFmpegPath() string {
	return c.viper.GetString("tools.ffmpeg_path")
}

// GetBenchmarkMode reports whether per-job performance timings are logged
func (c *Configuration) GetBenchmarkMode() bool {
	return c.viper.GetBool("performance.benchmark")
}
