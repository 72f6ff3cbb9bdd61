package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	JWT     JWTConfig     `yaml:"jwt"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Grid    GridConfig    `yaml:"grid"`
	Level   LevelConfig   `yaml:"level"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
}

// SessionConfig holds query session settings
type SessionConfig struct {
	MaxAgents int `yaml:"max_agents"`
}

// GridConfig describes how the hex lattice maps to world space
type GridConfig struct {
	CellRadius   float64 `yaml:"cell_radius"`
	LayerHeight  float64 `yaml:"layer_height"`
	SearchHeight int     `yaml:"search_height"` // layers a single step may climb
}

// LevelConfig describes the level the grid is populated from
type LevelConfig struct {
	Name           string    `yaml:"name"`
	Radius         int       `yaml:"radius"` // hex radius of the populated disk
	Seed           int64     `yaml:"seed"`
	MaxLayer       int       `yaml:"max_layer"` // 0 keeps the level flat
	NoiseFrequency float64   `yaml:"noise_frequency"`
	Holes          [][2]int  `yaml:"holes"` // [q, r] columns left unpopulated
	Cells          [][3]int  `yaml:"cells"` // extra [q, r, h] cells
	Walls          []Wall    `yaml:"walls"`
	Boxes          []BoxSpec `yaml:"boxes"`
}

// Wall blocks the edge between two adjacent cells
type Wall struct {
	From [3]int `yaml:"from"`
	To   [3]int `yaml:"to"`
}

// BoxSpec is an axis-aligned obstacle in world space
type BoxSpec struct {
	Center      [3]float64 `yaml:"center"`
	HalfExtents [3]float64 `yaml:"half_extents"`
}

// AuditConfig holds query audit log settings
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults
func Parse(data []byte) (*Config, error) {
	// search_height 0 is a valid band, so its default is seeded before decoding
	cfg := Config{Grid: GridConfig{SearchHeight: 1}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Session.MaxAgents == 0 {
		cfg.Session.MaxAgents = 100
	}
	if cfg.Grid.CellRadius == 0 {
		cfg.Grid.CellRadius = 1.0
	}
	if cfg.Grid.LayerHeight == 0 {
		cfg.Grid.LayerHeight = 1.0
	}
	if cfg.Level.Name == "" {
		cfg.Level.Name = "default"
	}
	if cfg.Level.Radius == 0 {
		cfg.Level.Radius = 8
	}
	if cfg.Level.NoiseFrequency == 0 {
		cfg.Level.NoiseFrequency = 0.15
	}
	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = "./data/audit"
	}
}

func (cfg *Config) validate() error {
	if cfg.Grid.CellRadius < 0 || cfg.Grid.LayerHeight < 0 {
		return fmt.Errorf("grid dimensions must be positive")
	}
	if cfg.Grid.SearchHeight < -1 {
		return fmt.Errorf("grid search_height must be -1 (unbounded) or more, got %d", cfg.Grid.SearchHeight)
	}
	if cfg.Level.Radius < 0 {
		return fmt.Errorf("level radius must not be negative, got %d", cfg.Level.Radius)
	}
	if cfg.Level.MaxLayer < 0 {
		return fmt.Errorf("level max_layer must not be negative, got %d", cfg.Level.MaxLayer)
	}
	return nil
}
