package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/steps"
	"github.com/tomatool/uitest/internal/suites"
	"github.com/urfave/cli/v2"
)

var stepsCommand = &cli.Command{
	Name:  "steps",
	Usage: "List available Gherkin steps",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Filter steps by keyword",
		},
		&cli.StringFlag{
			Name:    "suite",
			Aliases: []string{"s"},
			Usage:   "Only list the shared steps and the steps of this suite",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: runSteps,
}

func runSteps(c *cli.Context) error {
	categories, err := collectStepCategories(c.String("suite"))
	if err != nil {
		return err
	}
	categories = filterSteps(categories, c.String("filter"))

	if c.Bool("json") {
		output, err := json.MarshalIndent(categories, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(output))
		return nil
	}

	printSteps(c.App.Writer, categories)
	return nil
}

// collectStepCategories returns the shared library steps followed by the
// steps of every suite, or only of the named one.
func collectStepCategories(suite string) ([]steps.StepCategory, error) {
	apps := driver.NewApplications("app", "")
	lib := steps.NewLibrary(apps)

	names := suites.Names()
	if suite != "" {
		names = []string{suite}
	}

	categories := []steps.StepCategory{lib.Steps()}
	for _, name := range names {
		factory, err := suites.Lookup(name)
		if err != nil {
			return nil, err
		}
		cat := factory(lib, apps, config.Settings{}).Steps()
		cat.Name = fmt.Sprintf("%s (%s)", cat.Name, name)
		categories = append(categories, cat)
	}
	return categories, nil
}

func filterSteps(categories []steps.StepCategory, filter string) []steps.StepCategory {
	filter = strings.ToLower(filter)
	if filter == "" {
		return categories
	}

	var filtered []steps.StepCategory
	for _, cat := range categories {
		var matching []steps.StepDef
		for _, step := range cat.Steps {
			if strings.Contains(strings.ToLower(step.Description), filter) ||
				strings.Contains(strings.ToLower(step.Pattern), filter) {
				matching = append(matching, step)
			}
		}
		if len(matching) == 0 {
			continue
		}
		filtered = append(filtered, steps.StepCategory{
			Name:        cat.Name,
			Description: cat.Description,
			Steps:       matching,
		})
	}
	return filtered
}

func printSteps(w io.Writer, categories []steps.StepCategory) {
	for _, cat := range categories {
		fmt.Fprintf(w, "\n%s\n", categoryStyle.Render(cat.Name))
		fmt.Fprintf(w, "%s\n\n", mutedStyle.Render(cat.Description))

		for _, step := range cat.Steps {
			fmt.Fprintf(w, "  %s\n", step.Description)
			fmt.Fprintf(w, "  %s\n", patternStyle.Render(step.Pattern))
			if step.Example != "" {
				example := strings.Split(step.Example, "\n")[0]
				fmt.Fprintf(w, "  %s\n\n", mutedStyle.Render("Example: "+example))
			}
		}
	}
}
