// Package config resolves the keyring configuration from built-in
// defaults, an optional YAML file and a few environment overrides.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"whisper2/go-keyring/internal/identity"
	"whisper2/go-keyring/internal/keystore"
)

const (
	defaultListenAddr = "127.0.0.1:8990"
	defaultLogLevel   = "info"
	dataDirName       = ".whisper-keyring"
)

// Config is the resolved configuration shared by the CLI and the agent.
type Config struct {
	DataDir       string
	KeystoreDir   string
	KeystoreAlias string
	ListenAddr    string
	LogLevel      string
	Backup        identity.BackupParams
}

// FileConfig is the YAML shape of a config file. Absent fields keep
// their defaults.
type FileConfig struct {
	DataDir            string `yaml:"data_dir"`
	KeystoreDir        string `yaml:"keystore_dir"`
	KeystoreAlias      string `yaml:"keystore_alias"`
	ListenAddr         string `yaml:"listen_addr"`
	LogLevel           string `yaml:"log_level"`
	BackupKDFTime      uint32 `yaml:"backup_kdf_time"`
	BackupKDFMemoryKiB uint32 `yaml:"backup_kdf_memory_kib"`
	BackupKDFThreads   uint8  `yaml:"backup_kdf_threads"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() Config {
	cfg := base()
	cfg.normalize()
	return cfg
}

func base() Config {
	// KeystoreDir stays empty until normalize derives it from DataDir.
	return Config{
		DataDir:       defaultDataDir(),
		KeystoreAlias: keystore.DefaultAlias,
		ListenAddr:    defaultListenAddr,
		LogLevel:      defaultLogLevel,
		Backup:        identity.DefaultBackupParams(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// Load reads the YAML file at path and merges it over the defaults.
// An empty path tries the usual locations. A missing or unparseable
// file yields the defaults; environment overrides apply last.
func Load(path string) Config {
	cfg := base()

	candidates := make([]string, 0, 2)
	if path != "" {
		candidates = append(candidates, path)
	} else {
		candidates = append(candidates,
			filepath.Join(cfg.DataDir, "config.yaml"),
			"whisper-keyring.yaml",
		)
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	cfg.normalize()
	return cfg
}

// Merge copies the fields set in src over dst. Zero values in src are
// treated as absent.
func Merge(dst *Config, src FileConfig) {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.KeystoreDir != "" {
		dst.KeystoreDir = src.KeystoreDir
	}
	if src.KeystoreAlias != "" {
		dst.KeystoreAlias = src.KeystoreAlias
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.BackupKDFTime != 0 {
		dst.Backup.Time = src.BackupKDFTime
	}
	if src.BackupKDFMemoryKiB != 0 {
		dst.Backup.MemoryKiB = src.BackupKDFMemoryKiB
	}
	if src.BackupKDFThreads != 0 {
		dst.Backup.Threads = src.BackupKDFThreads
	}
}

// ApplyEnvOverrides lets the environment win over file values.
func ApplyEnvOverrides(cfg *Config) {
	if dir := strings.TrimSpace(os.Getenv("WHISPER_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}
	if addr := strings.TrimSpace(os.Getenv("WHISPER_LISTEN_ADDR")); addr != "" {
		cfg.ListenAddr = addr
	}
	if level := strings.TrimSpace(os.Getenv("WHISPER_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

func (c *Config) normalize() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.KeystoreDir == "" {
		c.KeystoreDir = filepath.Join(c.DataDir, "keystore")
	}
	if c.KeystoreAlias == "" {
		c.KeystoreAlias = keystore.DefaultAlias
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	c.Backup = c.Backup.Clamp()
}

// Level maps LogLevel onto its slog value.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
