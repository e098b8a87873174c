package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/classroomlink/link/internal/logging"
)

var log = logging.L("config")

// Config holds settings shared by both the student-agent and
// teacher-console binaries. Fields that only apply to one role are
// simply left at their default on the other.
type Config struct {
	// Identity
	AgentID     string `mapstructure:"agent_id"`
	DisplayName string `mapstructure:"display_name"`

	// Discovery
	DiscoveryPort      int    `mapstructure:"discovery_port"`
	DiscoveryBroadcast string `mapstructure:"discovery_broadcast_addr"`

	// Signaling: port the student listens on for the teacher's
	// incoming connection.
	SignalingPort int `mapstructure:"signaling_port"`

	// Versioning / fleet update
	AgentVersion    string `mapstructure:"agent_version"`
	RequiredVersion string `mapstructure:"required_version"`
	UpdateURL       string `mapstructure:"update_url"`
	UpdateSHA256    string `mapstructure:"update_sha256"`

	// File transfer
	InboundFilesDir string `mapstructure:"inbound_files_dir"`

	// Logging configuration
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Concurrency limits
	CommandQueueSize int `mapstructure:"command_queue_size"`
}

func Default() *Config {
	return &Config{
		DisplayName:        hostname(),
		DiscoveryPort:      3017,
		DiscoveryBroadcast: "255.255.255.255",
		// Same well-known port as discovery; a separate socket by
		// protocol (TCP here, UDP for the beacon).
		SignalingPort: 3017,
		AgentVersion:       "0.1.0",
		InboundFilesDir:    filepath.Join(GetDataDir(), "inbound"),
		LogLevel:           "info",
		LogFormat:          "text",
		LogMaxSizeMB:       50,
		LogMaxBackups:      3,
		CommandQueueSize:   100,
	}
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "classroom-link"
}

// Load reads configuration from cfgFile (or the default search path if
// cfgFile is empty), applies environment overrides, and validates the
// result. Warnings are logged; fatal errors abort startup.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CLASSROOM_LINK")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("agent_id", cfg.AgentID)
	v.Set("display_name", cfg.DisplayName)
	v.Set("discovery_port", cfg.DiscoveryPort)
	v.Set("discovery_broadcast_addr", cfg.DiscoveryBroadcast)
	v.Set("signaling_port", cfg.SignalingPort)
	v.Set("agent_version", cfg.AgentVersion)
	v.Set("required_version", cfg.RequiredVersion)
	v.Set("update_url", cfg.UpdateURL)
	v.Set("update_sha256", cfg.UpdateSHA256)
	v.Set("inbound_files_dir", cfg.InboundFilesDir)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)
	v.Set("log_max_size_mb", cfg.LogMaxSizeMB)
	v.Set("log_max_backups", cfg.LogMaxBackups)
	v.Set("command_queue_size", cfg.CommandQueueSize)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "config.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ClassroomLink", "data")
	case "darwin":
		return "/Library/Application Support/ClassroomLink/data"
	default:
		return "/var/lib/classroom-link"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "ClassroomLink")
	case "darwin":
		return "/Library/Application Support/ClassroomLink"
	default:
		return "/etc/classroom-link"
	}
}
