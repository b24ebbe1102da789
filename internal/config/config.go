package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the uitest.yml configuration
type Config struct {
	Version    int                  `yaml:"version"`
	Settings   Settings             `yaml:"settings"`
	App        AppConfig            `yaml:"app"`
	Containers map[string]Container `yaml:"containers"`
	Features   Features             `yaml:"features"`
}

// Settings is the process-wide test settings object handed to the
// shared step library at feature start.
type Settings struct {
	Timeout  time.Duration `yaml:"timeout"`
	FailFast bool          `yaml:"fail_fast"`
	Output   string        `yaml:"output"`
	// Pause after detaching from the application at feature end
	AppClosureTimeout time.Duration `yaml:"app_closure_timeout"`
	// Default wait for UI objects to appear
	ObjectTimeout time.Duration `yaml:"object_timeout"`
}

// AppConfig defines how to reach the automation server of the application under test
type AppConfig struct {
	Name string `yaml:"name"`
	// Direct URL of the automation endpoint
	URL string `yaml:"url,omitempty"`
	// Or a container started by uitest
	Container string `yaml:"container,omitempty"`
	Port      string `yaml:"port,omitempty"`
	Path      string `yaml:"path,omitempty"`

	HandshakeTimeout time.Duration     `yaml:"handshake_timeout,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`

	// Server launches the automation server as a local process before the run
	Server *ServerConfig `yaml:"server,omitempty"`
}

// ServerConfig describes a locally launched automation server
type ServerConfig struct {
	Command string            `yaml:"command"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Ready   *ReadyCheck       `yaml:"ready,omitempty"`
	// Extra wait after the server reports ready
	Wait time.Duration `yaml:"wait,omitempty"`
}

// ReadyCheck defines how to probe a launched server
type ReadyCheck struct {
	Type    string        `yaml:"type"` // tcp (default) or http
	Path    string        `yaml:"path,omitempty"`
	Status  int           `yaml:"status,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// UsesContainer returns true if the automation endpoint lives in a managed container
func (a *AppConfig) UsesContainer() bool {
	return a.URL == "" && a.Container != ""
}

type Container struct {
	Image     string            `yaml:"image"`
	Env       map[string]string `yaml:"env"`
	Ports     []string          `yaml:"ports"`
	DependsOn []string          `yaml:"depends_on"`
	WaitFor   WaitStrategy      `yaml:"wait_for"`
}

type WaitStrategy struct {
	// Can be: port, log, http, exec
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
	// For HTTP
	Method string `yaml:"method,omitempty"`
	Path   string `yaml:"path,omitempty"`

	Timeout time.Duration `yaml:"timeout"`
}

type Features struct {
	Paths []string `yaml:"paths"`
	Tags  string   `yaml:"tags"`
	// Suite selects the hook set installed for the run
	Suite string `yaml:"suite"`
	// Scenario filters scenarios by name (regex)
	Scenario string `yaml:"scenario,omitempty"`
}

// Load reads and parses the uitest.yml configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = 30 * time.Minute
	}
	if c.Settings.Output == "" {
		c.Settings.Output = "pretty"
	}
	if c.Settings.AppClosureTimeout == 0 {
		c.Settings.AppClosureTimeout = 2 * time.Second
	}
	if c.Settings.ObjectTimeout == 0 {
		c.Settings.ObjectTimeout = 10 * time.Second
	}
	if c.App.Name == "" {
		c.App.Name = "app"
	}
	if c.App.Path == "" {
		c.App.Path = "/automation"
	}
	if c.App.HandshakeTimeout == 0 {
		c.App.HandshakeTimeout = 10 * time.Second
	}
	if len(c.Features.Paths) == 0 {
		c.Features.Paths = []string{"./features"}
	}
}

func (c *Config) validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}

	if c.Settings.AppClosureTimeout < 0 {
		return fmt.Errorf("app_closure_timeout must not be negative: %s", c.Settings.AppClosureTimeout)
	}

	if c.App.URL == "" && c.App.Container == "" {
		return fmt.Errorf("app needs either url or container")
	}
	if c.App.Container != "" {
		if _, ok := c.Containers[c.App.Container]; !ok {
			return fmt.Errorf("app references unknown container %q", c.App.Container)
		}
		if c.App.URL == "" && c.App.Port == "" {
			return fmt.Errorf("app container %q needs a port", c.App.Container)
		}
	}

	if c.App.Server != nil {
		if c.App.Server.Command == "" {
			return fmt.Errorf("app.server needs a command")
		}
		if c.App.URL == "" {
			return fmt.Errorf("app.server needs app.url to probe")
		}
		if r := c.App.Server.Ready; r != nil && r.Type != "" && r.Type != "tcp" && r.Type != "http" {
			return fmt.Errorf("app.server.ready: unknown type %q", r.Type)
		}
	}

	for name, cont := range c.Containers {
		for _, dep := range cont.DependsOn {
			if _, ok := c.Containers[dep]; !ok {
				return fmt.Errorf("container %q depends on unknown container %q", name, dep)
			}
		}
	}

	return nil
}
