package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Services ServicesConfig `yaml:"services"`
	Hub      HubConfig      `yaml:"hub"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
	SecretKey  string `yaml:"secret_key"`
}

type ServicesConfig struct {
	UserServiceURL    string `yaml:"user_service_url"`
	ProjectServiceURL string `yaml:"project_service_url"`
	NotiServiceURL    string `yaml:"noti_service_url"`
	InternalAPIKey    string `yaml:"internal_api_key"`
}

// HubConfig tunes the real-time hub. Zero values are replaced with the
// defaults below at load time.
type HubConfig struct {
	AuthTimeout        time.Duration `yaml:"auth_timeout"`
	IdleAfter          time.Duration `yaml:"idle_after"`
	AwayAfter          time.Duration `yaml:"away_after"`
	TypingTimeout      time.Duration `yaml:"typing_timeout"`
	CursorStaleAfter   time.Duration `yaml:"cursor_stale_after"`
	UploadTTL          time.Duration `yaml:"upload_ttl"`
	DrawingTTL         time.Duration `yaml:"drawing_ttl"`
	PresenceSweepEvery time.Duration `yaml:"presence_sweep_every"`
	TypingSweepEvery   time.Duration `yaml:"typing_sweep_every"`
	PositionSweepEvery time.Duration `yaml:"position_sweep_every"`
	RoomSweepEvery     time.Duration `yaml:"room_sweep_every"`
	UploadSweepEvery   time.Duration `yaml:"upload_sweep_every"`
	DrawingSweepEvery  time.Duration `yaml:"drawing_sweep_every"`

	// Connection attempt abuse control, per origin address.
	ConnAttemptLimit  int           `yaml:"conn_attempt_limit"`
	ConnAttemptWindow time.Duration `yaml:"conn_attempt_window"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     8004,
			BasePath: "/api/collab",
			Env:      "dev",
			LogLevel: "debug",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/3",
		},
		Hub: HubConfig{
			AuthTimeout:        10 * time.Second,
			IdleAfter:          5 * time.Minute,
			AwayAfter:          15 * time.Minute,
			TypingTimeout:      10 * time.Second,
			CursorStaleAfter:   30 * time.Minute,
			UploadTTL:          time.Hour,
			DrawingTTL:         30 * time.Minute,
			PresenceSweepEvery: 30 * time.Second,
			TypingSweepEvery:   5 * time.Second,
			PositionSweepEvery: 5 * time.Minute,
			RoomSweepEvery:     5 * time.Minute,
			UploadSweepEvery:   time.Hour,
			DrawingSweepEvery:  30 * time.Minute,
			ConnAttemptLimit:   30,
			ConnAttemptWindow:  time.Minute,
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if userURL := os.Getenv("USER_SERVICE_URL"); userURL != "" {
		cfg.Services.UserServiceURL = userURL
	}
	if projectURL := os.Getenv("PROJECT_SERVICE_URL"); projectURL != "" {
		cfg.Services.ProjectServiceURL = projectURL
	}
	if notiURL := os.Getenv("NOTI_SERVICE_URL"); notiURL != "" {
		cfg.Services.NotiServiceURL = notiURL
	}
	if apiKey := os.Getenv("INTERNAL_API_KEY"); apiKey != "" {
		cfg.Services.InternalAPIKey = apiKey
	}

	applyHubDefaults(&cfg.Hub)

	return cfg, nil
}

func applyHubDefaults(h *HubConfig) {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&h.AuthTimeout, 10*time.Second)
	def(&h.IdleAfter, 5*time.Minute)
	def(&h.AwayAfter, 15*time.Minute)
	def(&h.TypingTimeout, 10*time.Second)
	def(&h.CursorStaleAfter, 30*time.Minute)
	def(&h.UploadTTL, time.Hour)
	def(&h.DrawingTTL, 30*time.Minute)
	def(&h.PresenceSweepEvery, 30*time.Second)
	def(&h.TypingSweepEvery, 5*time.Second)
	def(&h.PositionSweepEvery, 5*time.Minute)
	def(&h.RoomSweepEvery, 5*time.Minute)
	def(&h.UploadSweepEvery, time.Hour)
	def(&h.DrawingSweepEvery, 30*time.Minute)
	if h.ConnAttemptLimit <= 0 {
		h.ConnAttemptLimit = 30
	}
	def(&h.ConnAttemptWindow, time.Minute)
}
