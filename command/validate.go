package command

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/suites"
	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Validate configuration and feature files",
	ArgsUsage: "[config]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "plain",
			Usage: "disable colors and interactive UI (for CI)",
		},
	},
	Action: runValidate,
}

// Result statuses
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// ValidationResult holds the result of a validation check
type ValidationResult struct {
	Category   string
	Item       string
	Status     string
	Message    string
	Suggestion string
}

// Validator performs all validation checks
type Validator struct {
	configPath   string
	config       *config.Config
	results      []ValidationResult
	stepPatterns []*regexp.Regexp
}

func runValidate(c *cli.Context) error {
	configPath := c.Args().First()
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := &Validator{configPath: configPath}
	if c.Bool("plain") {
		return v.runPlain(c.App.Writer)
	}
	return v.runInteractive()
}

// runPlain runs validation without the interactive UI
func (v *Validator) runPlain(w io.Writer) error {
	fmt.Fprintln(w, "Validating uitest configuration...")
	fmt.Fprintln(w)

	v.validate()

	for _, category := range v.categories() {
		fmt.Fprintf(w, "[%s]\n", category)
		for _, r := range v.results {
			if r.Category != category {
				continue
			}
			icon := "✓"
			switch r.Status {
			case statusError:
				icon = "✗"
			case statusWarning:
				icon = "!"
			}

			fmt.Fprintf(w, "  %s %s", icon, r.Item)
			if r.Message != "" {
				fmt.Fprintf(w, ": %s", r.Message)
			}
			fmt.Fprintln(w)
			if r.Suggestion != "" {
				fmt.Fprintf(w, "    → %s\n", r.Suggestion)
			}
		}
		fmt.Fprintln(w)
	}

	ok, warnings, errs := v.counts()
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", ok, warnings, errs)

	if errs > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errs)
	}
	if warnings > 0 {
		fmt.Fprintln(w, "Validation passed with warnings")
	} else {
		fmt.Fprintln(w, "Validation passed!")
	}
	return nil
}

// runInteractive runs validation with a Bubble Tea UI
func (v *Validator) runInteractive() error {
	m, err := tea.NewProgram(newValidateModel(v)).Run()
	if err != nil {
		return err
	}

	if _, _, errs := m.(validateModel).validator.counts(); errs > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errs)
	}
	return nil
}

func (v *Validator) add(r ValidationResult) {
	v.results = append(v.results, r)
}

// categories returns the result categories in first-seen order
func (v *Validator) categories() []string {
	var order []string
	seen := map[string]bool{}
	for _, r := range v.results {
		if !seen[r.Category] {
			seen[r.Category] = true
			order = append(order, r.Category)
		}
	}
	return order
}

func (v *Validator) counts() (ok, warnings, errs int) {
	for _, r := range v.results {
		switch r.Status {
		case statusOK:
			ok++
		case statusWarning:
			warnings++
		case statusError:
			errs++
		}
	}
	return ok, warnings, errs
}

// validate performs all validation checks
func (v *Validator) validate() {
	v.validateConfig()
	if v.config == nil {
		return
	}

	v.validateApp()
	v.validateContainers()
	v.validateFeatureFiles()
}

func (v *Validator) validateConfig() {
	if _, err := os.Stat(v.configPath); os.IsNotExist(err) {
		v.add(ValidationResult{
			Category:   "Config",
			Item:       v.configPath,
			Status:     statusError,
			Message:    "config file not found",
			Suggestion: "Run 'uitest init' or pass the config path",
		})
		return
	}

	cfg, err := config.Load(v.configPath)
	if err != nil {
		v.add(ValidationResult{
			Category:   "Config",
			Item:       v.configPath,
			Status:     statusError,
			Message:    err.Error(),
			Suggestion: "Check the config file syntax and structure",
		})
		return
	}

	v.config = cfg
	v.add(ValidationResult{
		Category: "Config",
		Item:     v.configPath,
		Status:   statusOK,
		Message:  "valid configuration",
	})

	for _, path := range cfg.Features.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			v.add(ValidationResult{
				Category:   "Config",
				Item:       "features.paths: " + path,
				Status:     statusWarning,
				Message:    "directory does not exist",
				Suggestion: "Create the directory: mkdir -p " + path,
			})
		}
	}

	if cfg.Features.Scenario != "" {
		if _, err := regexp.Compile(cfg.Features.Scenario); err != nil {
			v.add(ValidationResult{
				Category: "Config",
				Item:     "features.scenario",
				Status:   statusError,
				Message:  fmt.Sprintf("invalid regex: %v", err),
			})
		}
	}
}

func (v *Validator) validateApp() {
	app := v.config.App

	switch {
	case app.UsesContainer():
		v.add(ValidationResult{
			Category: "App",
			Item:     app.Name,
			Status:   statusOK,
			Message:  fmt.Sprintf("container %s port %s", app.Container, app.Port),
		})
	case app.Server != nil:
		v.add(ValidationResult{
			Category: "App",
			Item:     app.Name,
			Status:   statusOK,
			Message:  fmt.Sprintf("launches %q, connects to %s", app.Server.Command, app.URL),
		})
	default:
		v.add(ValidationResult{
			Category: "App",
			Item:     app.Name,
			Status:   statusOK,
			Message:  "connects to " + app.URL,
		})
	}

	suite := v.config.Features.Suite
	if suite == "" {
		suite = suites.Default
	}
	categories, err := collectStepCategories(suite)
	if err != nil {
		v.add(ValidationResult{
			Category:   "App",
			Item:       "features.suite",
			Status:     statusError,
			Message:    err.Error(),
			Suggestion: "Available suites: " + strings.Join(suites.Names(), ", "),
		})
		return
	}
	for _, cat := range categories {
		for _, step := range cat.Steps {
			if re, err := regexp.Compile(step.Pattern); err == nil {
				v.stepPatterns = append(v.stepPatterns, re)
			}
		}
	}
	v.add(ValidationResult{
		Category: "App",
		Item:     "features.suite",
		Status:   statusOK,
		Message:  suite,
	})
}

func (v *Validator) validateContainers() {
	for name, cont := range v.config.Containers {
		if cont.Image == "" {
			v.add(ValidationResult{
				Category:   "Containers",
				Item:       name,
				Status:     statusError,
				Message:    "missing image",
				Suggestion: "Add 'image: <image:tag>'",
			})
			continue
		}

		if cont.WaitFor.Type == "" {
			v.add(ValidationResult{
				Category:   "Containers",
				Item:       name,
				Status:     statusWarning,
				Message:    "no wait_for strategy defined",
				Suggestion: "Emulators boot slowly: wait_for: {type: port, target: \"4723/tcp\"}",
			})
		}

		v.add(ValidationResult{
			Category: "Containers",
			Item:     name,
			Status:   statusOK,
			Message:  "image: " + cont.Image,
		})
	}
}

func (v *Validator) validateFeatureFiles() {
	var featureFiles []string
	for _, root := range v.config.Features.Paths {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".feature") {
				featureFiles = append(featureFiles, path)
			}
			return nil
		})
	}

	if len(featureFiles) == 0 {
		v.add(ValidationResult{
			Category:   "Features",
			Item:       "(none)",
			Status:     statusWarning,
			Message:    "no feature files found",
			Suggestion: "Run 'uitest init' for an example feature",
		})
		return
	}

	for _, file := range featureFiles {
		v.validateFeatureFile(file)
	}
}

func (v *Validator) validateFeatureFile(path string) {
	item := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		v.add(ValidationResult{
			Category: "Features",
			Item:     item,
			Status:   statusError,
			Message:  fmt.Sprintf("cannot read file: %v", err),
		})
		return
	}
	defer f.Close()

	doc, err := gherkin.ParseGherkinDocument(f, (&messages.Incrementing{}).NewId)
	if err != nil {
		v.add(ValidationResult{
			Category:   "Features",
			Item:       item,
			Status:     statusError,
			Message:    fmt.Sprintf("parse error: %v", err),
			Suggestion: "Check Gherkin syntax: https://cucumber.io/docs/gherkin/reference/",
		})
		return
	}

	if doc.Feature == nil {
		v.add(ValidationResult{
			Category:   "Features",
			Item:       item,
			Status:     statusError,
			Message:    "no Feature found in file",
			Suggestion: "Add 'Feature: <name>' at the top of the file",
		})
		return
	}

	scenarioCount := 0
	var undefined []string
	check := func(steps []*messages.Step) {
		for _, step := range steps {
			if !v.isStepDefined(step.Text) {
				undefined = append(undefined, step.Text)
			}
		}
	}
	for _, child := range doc.Feature.Children {
		if child.Background != nil {
			check(child.Background.Steps)
		}
		if child.Scenario != nil {
			scenarioCount++
			check(child.Scenario.Steps)
		}
		if child.Rule != nil {
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					check(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					scenarioCount++
					check(rc.Scenario.Steps)
				}
			}
		}
	}

	if len(undefined) > 0 {
		shown := undefined
		if len(shown) > 3 {
			shown = shown[:3]
		}
		v.add(ValidationResult{
			Category:   "Features",
			Item:       item,
			Status:     statusWarning,
			Message:    fmt.Sprintf("%d undefined step(s): %s", len(undefined), strings.Join(shown, ", ")),
			Suggestion: "Run 'uitest steps' to see available steps",
		})
		return
	}

	v.add(ValidationResult{
		Category: "Features",
		Item:     item,
		Status:   statusOK,
		Message:  fmt.Sprintf("%d scenario(s)", scenarioCount),
	})
}

func (v *Validator) isStepDefined(text string) bool {
	for _, pattern := range v.stepPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Bubble Tea Model
type validateModel struct {
	validator *Validator
	frame     int
	done      bool
}

type (
	validationDoneMsg struct{}
	spinnerTickMsg    struct{}
)

func newValidateModel(v *Validator) validateModel {
	return validateModel{validator: v}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return spinnerTickMsg{} })
}

func (m validateModel) Init() tea.Cmd {
	return tea.Batch(
		spinnerTick(),
		func() tea.Msg {
			m.validator.validate()
			return validationDoneMsg{}
		},
	)
}

func (m validateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case validationDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, spinnerTick()
	}
	return m, nil
}

func (m validateModel) View() string {
	var s strings.Builder

	s.WriteString("\n")
	s.WriteString(titleStyle.Render("uitest validate"))
	s.WriteString("\n")

	if !m.done {
		s.WriteString(patternStyle.Render(spinnerFrames[m.frame]))
		s.WriteString(" Validating configuration...")
		return s.String()
	}

	v := m.validator
	for _, category := range v.categories() {
		s.WriteString(categoryStyle.Render(category))
		s.WriteString("\n")

		for _, r := range v.results {
			if r.Category != category {
				continue
			}
			var icon string
			switch r.Status {
			case statusOK:
				icon = successStyle.Render("✓")
			case statusWarning:
				icon = warnStyle.Render("!")
			case statusError:
				icon = errorStyle.Render("✗")
			}

			s.WriteString(fmt.Sprintf("  %s %s", icon, r.Item))
			if r.Message != "" {
				s.WriteString(": " + r.Message)
			}
			s.WriteString("\n")
			if r.Suggestion != "" {
				s.WriteString("    " + mutedStyle.Render("→ "+r.Suggestion) + "\n")
			}
		}
		s.WriteString("\n")
	}

	ok, warnings, errs := v.counts()
	parts := []string{successStyle.Render(fmt.Sprintf("%d passed", ok))}
	if warnings > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d warnings", warnings)))
	}
	if errs > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d errors", errs)))
	}
	s.WriteString("Summary: " + strings.Join(parts, ", ") + "\n")

	switch {
	case errs > 0:
		s.WriteString(errorStyle.Render("\n✗ Validation failed\n"))
	case warnings > 0:
		s.WriteString(warnStyle.Render("\n! Validation passed with warnings\n"))
	default:
		s.WriteString(successStyle.Render("\n✓ Validation passed!\n"))
	}
	return s.String()
}
