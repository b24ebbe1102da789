package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tomatool/uitest/internal/suites"
	"github.com/urfave/cli/v2"
)

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "Initialize a new uitest project",
	Description: `Create uitest.yml and an example password-strength feature.

Asks how the automation server is reached unless --endpoint is given.`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "overwrite existing files",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "url, container or server (skips the interactive prompt)",
		},
		&cli.StringFlag{
			Name:  "dir",
			Value: ".",
			Usage: "project directory",
		},
	},
	Action: runInit,
}

// endpoint is a way of reaching the automation server
type endpoint struct {
	key         string
	name        string
	description string
}

var endpoints = []endpoint{
	{"url", "Running server", "Connect to an automation server that is already up"},
	{"container", "Emulator container", "Start an emulator image with the automation server inside"},
	{"server", "Local process", "Launch the automation server as a local command"},
}

type initModel struct {
	cursor    int
	done      bool
	cancelled bool
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(endpoints)-1 {
			m.cursor++
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("uitest init"))
	s.WriteString("\n")
	s.WriteString(subtitleStyle.Render("How is the automation server reached?"))
	s.WriteString("\n")

	for i, e := range endpoints {
		if i == m.cursor {
			s.WriteString(selectedStyle.Render("> " + e.name))
		} else {
			s.WriteString(unselectedStyle.Render("  " + e.name))
		}
		s.WriteString("  " + mutedStyle.Render(e.description) + "\n")
	}

	s.WriteString(helpStyle.Render("↑/↓ move • enter select • q quit"))
	return s.String()
}

func runInit(c *cli.Context) error {
	dir := c.String("dir")
	configPath := filepath.Join(dir, defaultConfigPath)

	if _, err := os.Stat(configPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	mode := c.String("endpoint")
	if mode == "" {
		result, err := tea.NewProgram(initModel{}).Run()
		if err != nil {
			return fmt.Errorf("error running init: %w", err)
		}
		m := result.(initModel)
		if m.cancelled || !m.done {
			fmt.Fprintln(c.App.Writer, "\nCancelled.")
			return nil
		}
		mode = endpoints[m.cursor].key
	}

	cfg, err := generateConfig(mode)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(cfg), 0644); err != nil {
		return fmt.Errorf("creating %s: %w", configPath, err)
	}

	featureDir := filepath.Join(dir, "features", "onboarding")
	if err := os.MkdirAll(featureDir, 0755); err != nil {
		return fmt.Errorf("creating features directory: %w", err)
	}
	featurePath := filepath.Join(featureDir, "password_strength.feature")
	if _, err := os.Stat(featurePath); os.IsNotExist(err) || c.Bool("force") {
		if err := os.WriteFile(featurePath, []byte(exampleFeature), 0644); err != nil {
			return fmt.Errorf("creating example feature: %w", err)
		}
	}

	w := c.App.Writer
	fmt.Fprintln(w, successStyle.Render("✓ Created "+configPath))
	fmt.Fprintln(w, successStyle.Render("✓ Created "+featurePath))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Point app settings in uitest.yml at your automation server")
	fmt.Fprintln(w, "  2. Run "+selectedStyle.Render("uitest validate"))
	fmt.Fprintln(w, "  3. Run "+selectedStyle.Render("uitest run"))
	return nil
}

func generateConfig(mode string) (string, error) {
	var s strings.Builder

	s.WriteString("version: 1\n\n")
	s.WriteString("settings:\n")
	s.WriteString("  timeout: 30m\n")
	s.WriteString("  output: pretty\n")
	s.WriteString("  app_closure_timeout: 2s\n")
	s.WriteString("  object_timeout: 10s\n\n")
	s.WriteString("app:\n")
	s.WriteString("  name: status-mobile\n")

	switch mode {
	case "url":
		s.WriteString("  url: ${UITEST_APP_URL}\n")
	case "container":
		s.WriteString("  container: emulator\n")
		s.WriteString("  port: \"4723/tcp\"\n")
		s.WriteString("  path: /automation\n\n")
		s.WriteString("containers:\n")
		s.WriteString("  emulator:\n")
		s.WriteString("    image: example/automation-server:latest\n")
		s.WriteString("    ports:\n")
		s.WriteString("      - \"4723/tcp\"\n")
		s.WriteString("    wait_for:\n")
		s.WriteString("      type: port\n")
		s.WriteString("      target: \"4723/tcp\"\n")
		s.WriteString("      timeout: 3m\n")
	case "server":
		s.WriteString("  url: ws://localhost:4723/automation\n")
		s.WriteString("  server:\n")
		s.WriteString("    command: appium --port 4723\n")
		s.WriteString("    ready:\n")
		s.WriteString("      type: tcp\n")
		s.WriteString("      timeout: 60s\n")
	default:
		return "", fmt.Errorf("unknown endpoint %q (use url, container or server)", mode)
	}

	s.WriteString("\nfeatures:\n")
	s.WriteString("  paths:\n")
	s.WriteString("    - ./features\n")
	s.WriteString("  suite: " + suites.Default + "\n")
	return s.String(), nil
}

const exampleFeature = `Feature: Password strength
  As a first time user
  I want feedback on my new password
  So that I pick one that is hard to guess

  Scenario: Weak password
    When the user inputs the password "abc"
    Then the password strength indicator is "Very weak"

  Scenario: Strong password
    When the user clears the password input
    And the user inputs the password "correct-Horse-battery-9"
    Then the password strength indicator is "Very strong"

  Scenario: Empty password
    When the user clears the password input
    Then the password strength indicator is not visible
`
