package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del cliente.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Live    LiveConfig    `yaml:"live"`
	AutoBid AutoBidConfig `yaml:"autobid"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig contiene el backend y la credencial del usuario.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`     // BIDSYNC_TOKEN en .env
	UserID    int64  `yaml:"user_id"`   // solo para el topic de notificaciones
	Transport string `yaml:"transport"` // sse | ws
}

// LiveConfig controla reconexión y watchdog de las suscripciones.
type LiveConfig struct {
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`
	BaseDelaySeconds        int `yaml:"base_delay_seconds"`
	MaxDelaySeconds         int `yaml:"max_delay_seconds"`
	MaxRetries              int `yaml:"max_retries"`
	DialTimeoutSeconds      int `yaml:"dial_timeout_seconds"`
}

// AutoBidConfig controla el watcher de depósitos.
type AutoBidConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// StorageConfig controla dónde se persisten las PendingBids.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // vacío = stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Un archivo YAML inexistente no es error: se usan defaults y variables de entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// HeartbeatTimeout devuelve el timeout del watchdog como time.Duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Live.HeartbeatTimeoutSeconds) * time.Second
}

func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Live.BaseDelaySeconds) * time.Second
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Live.MaxDelaySeconds) * time.Second
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Live.DialTimeoutSeconds) * time.Second
}

// PollInterval devuelve el intervalo de polling del depósito.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.AutoBid.PollIntervalSeconds) * time.Second
}

func (c *Config) validate() error {
	switch c.API.Transport {
	case "sse", "ws":
	default:
		return fmt.Errorf("api.transport %q: must be sse or ws", c.API.Transport)
	}
	if c.Live.MaxDelaySeconds < c.Live.BaseDelaySeconds {
		return fmt.Errorf("live.max_delay_seconds (%d) below base_delay_seconds (%d)",
			c.Live.MaxDelaySeconds, c.Live.BaseDelaySeconds)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BIDSYNC_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("BIDSYNC_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("BIDSYNC_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.API.UserID = id
		}
	}
	if v := os.Getenv("BIDSYNC_TRANSPORT"); v != "" {
		cfg.API.Transport = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000"
	}
	if cfg.API.Transport == "" {
		cfg.API.Transport = "sse"
	}
	if cfg.Live.HeartbeatTimeoutSeconds <= 0 {
		cfg.Live.HeartbeatTimeoutSeconds = 40
	}
	if cfg.Live.BaseDelaySeconds <= 0 {
		cfg.Live.BaseDelaySeconds = 1
	}
	if cfg.Live.MaxDelaySeconds <= 0 {
		cfg.Live.MaxDelaySeconds = 60
	}
	if cfg.Live.MaxRetries <= 0 {
		cfg.Live.MaxRetries = 3
	}
	if cfg.Live.DialTimeoutSeconds <= 0 {
		cfg.Live.DialTimeoutSeconds = 15
	}
	if cfg.AutoBid.PollIntervalSeconds <= 0 {
		cfg.AutoBid.PollIntervalSeconds = 3
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "bidsync.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 20
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
}
