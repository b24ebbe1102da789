package steps

import (
	"github.com/cucumber/godog"
)

// StepDef represents a structured step definition with metadata
type StepDef struct {
	// Pattern is the regex pattern for matching Gherkin steps
	Pattern string `json:"pattern"`

	// Description explains what this step does
	Description string `json:"description"`

	// Example shows how to use this step in a feature file
	Example string `json:"example,omitempty"`

	// Handler is the function that implements the step
	Handler interface{} `json:"-"`
}

// StepCategory groups related steps together
type StepCategory struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Steps       []StepDef `json:"steps"`
}

// StepProvider is implemented by packages that contribute step definitions
type StepProvider interface {
	Steps() StepCategory
}

// Register adds every step of category to the scenario context
func Register(ctx *godog.ScenarioContext, category StepCategory) {
	for _, step := range category.Steps {
		ctx.Step(step.Pattern, step.Handler)
	}
}
