package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "uitest.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		errContains string
		validate    func(*testing.T, *Config)
	}{
		{
			name: "minimal valid config",
			content: `
version: 1
app:
  url: ws://localhost:4723/automation
`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Version != 1 {
					t.Errorf("expected version 1, got %d", cfg.Version)
				}
				if cfg.App.URL != "ws://localhost:4723/automation" {
					t.Errorf("unexpected url %s", cfg.App.URL)
				}
				if cfg.App.UsesContainer() {
					t.Error("url config should not use a container")
				}
			},
		},
		{
			name: "full config with container app",
			content: `
version: 1
settings:
  timeout: 10m
  fail_fast: true
  output: uitest
  app_closure_timeout: 5s
  object_timeout: 3s
app:
  name: status-mobile
  container: emulator
  port: "4723/tcp"
  path: /ws
  headers:
    X-Token: abc
containers:
  emulator:
    image: example/automation-server:latest
    ports:
      - "4723/tcp"
    wait_for:
      type: port
      target: "4723/tcp"
      timeout: 120s
features:
  paths:
    - ./features/onboarding
  tags: "@smoke"
  suite: onboarding/password_strength
`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Settings.Timeout != 10*time.Minute {
					t.Errorf("expected timeout 10m, got %v", cfg.Settings.Timeout)
				}
				if !cfg.Settings.FailFast {
					t.Error("expected fail_fast true")
				}
				if cfg.Settings.AppClosureTimeout != 5*time.Second {
					t.Errorf("expected closure timeout 5s, got %v", cfg.Settings.AppClosureTimeout)
				}
				if cfg.Settings.ObjectTimeout != 3*time.Second {
					t.Errorf("expected object timeout 3s, got %v", cfg.Settings.ObjectTimeout)
				}
				if !cfg.App.UsesContainer() {
					t.Error("expected app to use container")
				}
				if cfg.App.Path != "/ws" {
					t.Errorf("expected path /ws, got %s", cfg.App.Path)
				}
				if cfg.App.Headers["X-Token"] != "abc" {
					t.Errorf("expected header, got %v", cfg.App.Headers)
				}
				if cfg.Containers["emulator"].WaitFor.Timeout != 120*time.Second {
					t.Errorf("expected wait timeout 120s, got %v", cfg.Containers["emulator"].WaitFor.Timeout)
				}
				if cfg.Features.Suite != "onboarding/password_strength" {
					t.Errorf("unexpected suite %s", cfg.Features.Suite)
				}
				if cfg.Features.Tags != "@smoke" {
					t.Errorf("expected tags @smoke, got %s", cfg.Features.Tags)
				}
			},
		},
		{
			name:        "invalid YAML",
			content:     `version: [invalid`,
			wantErr:     true,
			errContains: "parsing config",
		},
		{
			name: "unsupported version",
			content: `
version: 2
app:
  url: ws://localhost
`,
			wantErr:     true,
			errContains: "unsupported config version",
		},
		{
			name: "app without endpoint",
			content: `
version: 1
`,
			wantErr:     true,
			errContains: "either url or container",
		},
		{
			name: "app references unknown container",
			content: `
version: 1
app:
  container: nonexistent
  port: "4723/tcp"
`,
			wantErr:     true,
			errContains: "unknown container",
		},
		{
			name: "container app without port",
			content: `
version: 1
app:
  container: emulator
containers:
  emulator:
    image: emu
`,
			wantErr:     true,
			errContains: "needs a port",
		},
		{
			name: "container depends on unknown container",
			content: `
version: 1
app:
  url: ws://localhost
containers:
  emulator:
    image: emu
    depends_on:
      - nonexistent
`,
			wantErr:     true,
			errContains: "depends on unknown container",
		},
		{
			name: "negative closure timeout",
			content: `
version: 1
settings:
  app_closure_timeout: -1s
app:
  url: ws://localhost
`,
			wantErr:     true,
			errContains: "must not be negative",
		},
		{
			name: "locally launched server",
			content: `
version: 1
app:
  url: ws://localhost:4723/automation
  server:
    command: appium --port 4723
    env:
      ANDROID_SERIAL: emulator-5554
    ready:
      type: http
      path: /status
      timeout: 45s
features:
  scenario: "^strong"
`,
			validate: func(t *testing.T, cfg *Config) {
				srv := cfg.App.Server
				if srv == nil || srv.Command != "appium --port 4723" {
					t.Fatalf("unexpected server config %+v", srv)
				}
				if srv.Env["ANDROID_SERIAL"] != "emulator-5554" {
					t.Errorf("unexpected env %v", srv.Env)
				}
				if srv.Ready.Type != "http" || srv.Ready.Timeout != 45*time.Second {
					t.Errorf("unexpected ready check %+v", srv.Ready)
				}
				if cfg.Features.Scenario != "^strong" {
					t.Errorf("unexpected scenario filter %s", cfg.Features.Scenario)
				}
			},
		},
		{
			name: "server without command",
			content: `
version: 1
app:
  url: ws://localhost:4723
  server:
    workdir: /tmp
`,
			wantErr:     true,
			errContains: "needs a command",
		},
		{
			name: "server without url",
			content: `
version: 1
app:
  container: emulator
  port: "4723/tcp"
  server:
    command: appium
containers:
  emulator:
    image: emu
`,
			wantErr:     true,
			errContains: "needs app.url",
		},
		{
			name: "server with unknown ready type",
			content: `
version: 1
app:
  url: ws://localhost:4723
  server:
    command: appium
    ready:
      type: grpc
`,
			wantErr:     true,
			errContains: `unknown type "grpc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempConfig(t, tt.content)

			cfg, err := Load(path)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/uitest.yml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "reading config") {
		t.Errorf("expected 'reading config' error, got %v", err)
	}
}

func TestLoadWithEnvVarExpansion(t *testing.T) {
	t.Setenv("UITEST_AUTOMATION_URL", "ws://device-farm:4723/automation")

	path := createTempConfig(t, `
version: 1
app:
  url: $UITEST_AUTOMATION_URL
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.URL != "ws://device-farm:4723/automation" {
		t.Errorf("expected env var expansion, got %s", cfg.App.URL)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.Version != 1 {
		t.Errorf("expected default version 1, got %d", cfg.Version)
	}
	if cfg.Settings.Timeout != 30*time.Minute {
		t.Errorf("expected default timeout 30m, got %v", cfg.Settings.Timeout)
	}
	if cfg.Settings.Output != "pretty" {
		t.Errorf("expected default output pretty, got %s", cfg.Settings.Output)
	}
	if cfg.Settings.AppClosureTimeout != 2*time.Second {
		t.Errorf("expected default closure timeout 2s, got %v", cfg.Settings.AppClosureTimeout)
	}
	if cfg.Settings.ObjectTimeout != 10*time.Second {
		t.Errorf("expected default object timeout 10s, got %v", cfg.Settings.ObjectTimeout)
	}
	if cfg.App.Path != "/automation" {
		t.Errorf("expected default path /automation, got %s", cfg.App.Path)
	}
	if len(cfg.Features.Paths) != 1 || cfg.Features.Paths[0] != "./features" {
		t.Errorf("expected default features path ./features, got %v", cfg.Features.Paths)
	}

	preserved := Config{Settings: Settings{Output: "uitest", AppClosureTimeout: time.Second}}
	preserved.applyDefaults()
	if preserved.Settings.Output != "uitest" {
		t.Errorf("output should be preserved, got %s", preserved.Settings.Output)
	}
	if preserved.Settings.AppClosureTimeout != time.Second {
		t.Errorf("closure timeout should be preserved, got %v", preserved.Settings.AppClosureTimeout)
	}
}
