package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/steps"
)

func TestGenerateConfig(t *testing.T) {
	t.Setenv("UITEST_APP_URL", "ws://device:4723/automation")

	tests := []struct {
		mode  string
		check func(t *testing.T, cfg *config.Config)
	}{
		{"url", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, "ws://device:4723/automation", cfg.App.URL)
			assert.Nil(t, cfg.App.Server)
		}},
		{"container", func(t *testing.T, cfg *config.Config) {
			assert.True(t, cfg.App.UsesContainer())
			assert.Equal(t, "4723/tcp", cfg.App.Port)
			assert.Equal(t, "port", cfg.Containers["emulator"].WaitFor.Type)
		}},
		{"server", func(t *testing.T, cfg *config.Config) {
			require.NotNil(t, cfg.App.Server)
			assert.Equal(t, "appium --port 4723", cfg.App.Server.Command)
			assert.Equal(t, "tcp", cfg.App.Server.Ready.Type)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			content, err := generateConfig(tt.mode)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), defaultConfigPath)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, "status-mobile", cfg.App.Name)
			tt.check(t, cfg)
		})
	}

	_, err := generateConfig("ftp")
	assert.ErrorContains(t, err, `unknown endpoint "ftp"`)
}

func TestInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, Run([]string{"uitest", "init", "--endpoint", "server"}))
	assert.FileExists(t, filepath.Join(dir, defaultConfigPath))
	assert.FileExists(t, filepath.Join(dir, "features", "onboarding", "password_strength.feature"))

	err := Run([]string{"uitest", "init", "--endpoint", "server"})
	assert.ErrorContains(t, err, "already exists")

	var out bytes.Buffer
	v := &Validator{configPath: defaultConfigPath}
	require.NoError(t, v.runPlain(&out))

	ok, warnings, errs := v.counts()
	assert.Equal(t, 0, errs, out.String())
	assert.Equal(t, 0, warnings, out.String())
	assert.Equal(t, 4, ok)
	assert.Contains(t, out.String(), "password_strength.feature: 3 scenario(s)")
}

func TestValidateReportsProblems(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := `app:
  url: ws://localhost:4723/automation
containers:
  emulator:
    image: example/emulator:latest
features:
  paths: [./features]
`
	require.NoError(t, os.WriteFile(defaultConfigPath, []byte(cfg), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join("features", "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join("features", "nested", "undefined.feature"), []byte(`Feature: Undefined
  Scenario: unknown step
    Given the user shakes the phone
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join("features", "broken.feature"), []byte("Scenario without feature\n  Given"), 0644))

	var out bytes.Buffer
	v := &Validator{configPath: defaultConfigPath}
	err := v.runPlain(&out)
	assert.ErrorContains(t, err, "validation failed with 1 error(s)")

	text := out.String()
	assert.Contains(t, text, "no wait_for strategy defined")
	assert.Contains(t, text, "undefined.feature: 1 undefined step(s): the user shakes the phone")
	assert.Contains(t, text, "broken.feature: parse error")
}

func TestValidateMissingConfig(t *testing.T) {
	v := &Validator{configPath: filepath.Join(t.TempDir(), "missing.yml")}
	err := v.runPlain(&bytes.Buffer{})
	assert.ErrorContains(t, err, "validation failed")
	require.Len(t, v.results, 1)
	assert.Equal(t, "config file not found", v.results[0].Message)
}

func TestCollectStepCategories(t *testing.T) {
	all, err := collectStepCategories("")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, "Onboarding", all[0].Name)
	assert.Equal(t, "Password strength (onboarding/password_strength)", all[1].Name)

	_, err = collectStepCategories("nope")
	assert.ErrorContains(t, err, `unknown suite "nope"`)
}

func TestFilterSteps(t *testing.T) {
	categories := []steps.StepCategory{
		{Name: "A", Steps: []steps.StepDef{
			{Pattern: `^the user taps "([^"]*)"$`, Description: "Taps an object"},
			{Pattern: `^the user inputs username "([^"]*)"$`, Description: "Types the username"},
		}},
		{Name: "B", Steps: []steps.StepDef{
			{Pattern: `^the password strength indicator is not visible$`, Description: "Indicator hidden"},
		}},
	}

	filtered := filterSteps(categories, "TAPS")
	require.Len(t, filtered, 1)
	assert.Equal(t, "A", filtered[0].Name)
	assert.Len(t, filtered[0].Steps, 1)

	assert.Equal(t, categories, filterSteps(categories, ""))
	assert.Empty(t, filterSteps(categories, "swipe"))
}
