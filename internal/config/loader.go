package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"dispatchd/pkg/types"
)

// WorkerConfig describes one worker child the dispatcher supervises.
type WorkerConfig struct {
	// Name keys the worker and names its socket file.
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Command string   `json:"command" yaml:"command" toml:"command"`
	Args    []string `json:"args" yaml:"args" toml:"args"`
}

// Config holds runtime parameters for the dispatcher.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	InferAddr      string `json:"infer_addr" yaml:"infer_addr" toml:"infer_addr"`
	ManagementAddr string `json:"management_addr" yaml:"management_addr" toml:"management_addr"`
	SocketDir      string `json:"socket_dir" yaml:"socket_dir" toml:"socket_dir"`
	LogLevel       string `json:"log_level" yaml:"log_level" toml:"log_level"`

	PoolMaxConns  int  `json:"pool_max_conns" yaml:"pool_max_conns" toml:"pool_max_conns"`
	PoolSingleUse bool `json:"pool_single_use" yaml:"pool_single_use" toml:"pool_single_use"`

	// Directory registration. Empty DirectoryURL disables announcement and
	// delegation.
	DirectoryURL  string `json:"directory_url" yaml:"directory_url" toml:"directory_url"`
	ReplicaID     string `json:"replica_id" yaml:"replica_id" toml:"replica_id"`
	AdvertiseAddr string `json:"advertise_addr" yaml:"advertise_addr" toml:"advertise_addr"`

	// Capabilities are static offers announced in addition to the per-model
	// offers derived from the registry.
	Capabilities []types.Capability `json:"capabilities" yaml:"capabilities" toml:"capabilities"`

	// Workers are spawned and supervised at startup.
	Workers []WorkerConfig `json:"workers" yaml:"workers" toml:"workers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	expanded, err := expandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if cfg.SocketDir != "" {
		if cfg.SocketDir, err = expandHome(cfg.SocketDir); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// expandHome rewrites a leading "~" or "~/" to the current user's home
// directory. Other tilde forms ("~user") pass through untouched.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")
	if rest == "" {
		return home, nil
	}
	return filepath.Join(home, rest), nil
}
