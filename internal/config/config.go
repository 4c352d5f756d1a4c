package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	WhisperURL     string        `env:"WHISPER_URL" envDefault:"http://localhost:9000"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"base"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"10m"`

	NLLBURL     string        `env:"NLLB_URL" envDefault:"http://localhost:6060"`
	NLLBModel   string        `env:"NLLB_MODEL" envDefault:"nllb-200-distilled-600M"`
	NLLBTimeout time.Duration `env:"NLLB_TIMEOUT" envDefault:"5m"`

	Temperature     float64 `env:"WHISPER_TEMPERATURE" envDefault:"0.0"`
	BeamSize        int     `env:"WHISPER_BEAM_SIZE" envDefault:"5"`
	PreprocessAudio bool    `env:"PREPROCESS_AUDIO" envDefault:"false"`

	DatabaseURL string `env:"DATABASE_URL"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopic     string `env:"MQTT_TOPIC" envDefault:"mstuts/events"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"ur-engine"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	AudioDir string `env:"AUDIO_DIR" envDefault:"./audio"`
	WatchDir string `env:"WATCH_DIR"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	AudioRetention time.Duration `env:"AUDIO_RETENTION" envDefault:"720h"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	// Long read timeout: uploads arrive as one large multipart body.
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"209715200"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// HistoryEnabled reports whether transcript history persistence is on.
func (c *Config) HistoryEnabled() bool { return c.DatabaseURL != "" }

// MQTTEnabled reports whether event publishing over MQTT is on.
func (c *Config) MQTTEnabled() bool { return c.MQTTBrokerURL != "" }

// WatchEnabled reports whether the watch folder is on.
func (c *Config) WatchEnabled() bool { return c.WatchDir != "" }

// S3Enabled reports whether the S3 archive store is on.
func (c *Config) S3Enabled() bool { return c.S3Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	WhisperURL   string
	WhisperModel string
	NLLBURL      string
	DatabaseURL  string
	AudioDir     string
	WatchDir     string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.WhisperModel != "" {
		cfg.WhisperModel = overrides.WhisperModel
	}
	if overrides.NLLBURL != "" {
		cfg.NLLBURL = overrides.NLLBURL
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}

	return cfg, nil
}
