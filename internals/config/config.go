package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type WebSocketConfig struct {
	Path           string        `yaml:"path"`
	MaxPayloadSize int           `yaml:"max_payload_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`

	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Timeout is informational: the effective per-peer deadline is one
	// full Interval (mark-and-ping), not Interval+Timeout.
	Timeout time.Duration `yaml:"timeout"`
}

type RoomsConfig struct {
	MaxPeersPerRoom int `yaml:"max_peers_per_room"`
	MaxRooms        int `yaml:"max_rooms"`
}

type CleanupConfig struct {
	Interval    time.Duration `yaml:"interval"`
	PeerTimeout time.Duration `yaml:"peer_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CORSConfig struct {
	Origin string `yaml:"origin"`
}

func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SIGNALING_HOST", "0.0.0.0"),
			Port:            getEnvInt("SIGNALING_PORT", 3001),
			ReadTimeout:     time.Duration(getEnvInt("SIGNALING_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("SIGNALING_WRITE_TIMEOUT", 30)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("SIGNALING_SHUTDOWN_TIMEOUT", 10)) * time.Second,
		},
		WebSocket: WebSocketConfig{
			Path:            getEnv("SIGNALING_WS_PATH", "/ws"),
			MaxPayloadSize:  getEnvInt("SIGNALING_MAX_PAYLOAD_SIZE", 65536),
			WriteTimeout:    time.Duration(getEnvInt("SIGNALING_WS_WRITE_TIMEOUT", 10)) * time.Second,
			PingInterval:    time.Duration(getEnvInt("SIGNALING_WS_PING_INTERVAL", 54)) * time.Second,
			PongTimeout:     time.Duration(getEnvInt("SIGNALING_WS_PONG_TIMEOUT", 60)) * time.Second,
			SendBuffer:      getEnvInt("SIGNALING_WS_SEND_BUFFER", 256),
			RateLimitPerSec: float64(getEnvInt("SIGNALING_RATE_LIMIT_PER_SEC", 20)),
			RateLimitBurst:  getEnvInt("SIGNALING_RATE_LIMIT_BURST", 40),
		},
		Heartbeat: HeartbeatConfig{
			Interval: time.Duration(getEnvInt("SIGNALING_HEARTBEAT_INTERVAL_MS", 30000)) * time.Millisecond,
			Timeout:  time.Duration(getEnvInt("SIGNALING_HEARTBEAT_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Rooms: RoomsConfig{
			MaxPeersPerRoom: getEnvInt("SIGNALING_MAX_PEERS_PER_ROOM", 10),
			MaxRooms:        getEnvInt("SIGNALING_MAX_ROOMS", 100),
		},
		Cleanup: CleanupConfig{
			Interval:    time.Duration(getEnvInt("SIGNALING_CLEANUP_INTERVAL_MS", 30000)) * time.Millisecond,
			PeerTimeout: time.Duration(getEnvInt("SIGNALING_PEER_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("PRESENCE_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			Origin: getEnv("CORS_ORIGIN", "*"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
