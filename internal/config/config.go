package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/harshul/devmux/internal/argv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the optional per-project configuration file, read from the
// working directory when present.
const DefaultFile = ".devmux.yaml"

// Config is the full configuration surface of the supervisor. Precedence,
// lowest to highest: compiled defaults, .devmux.yaml, DEVMUX_* environment
// variables, command-line flags.
type Config struct {
	BackendPort  int    `yaml:"backend-port"`
	FrontendPort int    `yaml:"frontend-port"`
	ProxyPort    int    `yaml:"proxy-port"`
	Host         string `yaml:"host"`
	BackendDir   string `yaml:"backend-dir"`
	FrontendDir  string `yaml:"frontend-dir"`
	PythonCmd    string `yaml:"python"`
	NpmCmd       string `yaml:"npm"`
	LabelOutput  bool   `yaml:"label-output"`
	TUI          bool   `yaml:"tui"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		BackendPort:  8000,
		FrontendPort: 5173,
		ProxyPort:    3000,
		Host:         "127.0.0.1",
		BackendDir:   "backend",
		FrontendDir:  "frontend",
	}
}

// settings maps normalized flag keys to their DEVMUX_* environment variable
// names. Flags and env vars are equivalently named.
var settings = map[string]string{
	"backendPort":  "DEVMUX_BACKEND_PORT",
	"frontendPort": "DEVMUX_FRONTEND_PORT",
	"proxyPort":    "DEVMUX_PROXY_PORT",
	"host":         "DEVMUX_HOST",
	"backendDir":   "DEVMUX_BACKEND_DIR",
	"frontendDir":  "DEVMUX_FRONTEND_DIR",
	"python":       "DEVMUX_PYTHON",
	"npm":          "DEVMUX_NPM",
	"labelOutput":  "DEVMUX_LABEL_OUTPUT",
	"tui":          "DEVMUX_TUI",
}

// Load builds the effective configuration from raw command-line tokens, the
// process environment, and an optional .devmux.yaml in workDir.
func Load(workDir string, tokens []string) (Config, error) {
	cfg := Defaults()

	if err := readFile(filepath.Join(workDir, DefaultFile), &cfg); err != nil {
		return Config{}, err
	}

	values := make(map[string]string)
	for key, env := range settings {
		if v, ok := os.LookupEnv(env); ok {
			values[key] = v
		}
	}
	for key, v := range argv.Parse(tokens) {
		values[key] = v
	}

	if err := apply(&cfg, values); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readFile merges a YAML config file into cfg. A missing file is not an
// error; a malformed one is.
func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return nil
}

func apply(cfg *Config, values map[string]string) error {
	for key, v := range values {
		switch key {
		case "backendPort":
			p, err := parsePort(key, v)
			if err != nil {
				return err
			}
			cfg.BackendPort = p
		case "frontendPort":
			p, err := parsePort(key, v)
			if err != nil {
				return err
			}
			cfg.FrontendPort = p
		case "proxyPort":
			p, err := parsePort(key, v)
			if err != nil {
				return err
			}
			cfg.ProxyPort = p
		case "host":
			cfg.Host = v
		case "backendDir":
			cfg.BackendDir = v
		case "frontendDir":
			cfg.FrontendDir = v
		case "python":
			cfg.PythonCmd = v
		case "npm":
			cfg.NpmCmd = v
		case "labelOutput":
			cfg.LabelOutput = v == "true"
		case "tui":
			cfg.TUI = v == "true"
		}
		// Unknown keys pass through silently; the parser accepts anything
		// shaped like a flag and validation lives here, per setting.
	}

	if cfg.BackendPort == cfg.FrontendPort ||
		cfg.BackendPort == cfg.ProxyPort ||
		cfg.FrontendPort == cfg.ProxyPort {
		return fmt.Errorf("backend, frontend, and proxy ports must be distinct (got %d, %d, %d)",
			cfg.BackendPort, cfg.FrontendPort, cfg.ProxyPort)
	}
	return nil
}

func parsePort(key, value string) (int, error) {
	p, err := strconv.Atoi(value)
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid value %q for --%s: expected a port between 1 and 65535", value, key)
	}
	return p, nil
}
