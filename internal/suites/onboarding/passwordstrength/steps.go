package passwordstrength

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/tomatool/uitest/internal/steps"
)

const passwordStrengthIndicator = "onboarding_strengthIndicator"

// RegisterSteps registers the password steps of the feature
func (h *Hooks) RegisterSteps(ctx *godog.ScenarioContext) {
	steps.Register(ctx, h.Steps())
}

// Steps returns the structured step definitions of the feature
func (h *Hooks) Steps() steps.StepCategory {
	return steps.StepCategory{
		Name:        "Password strength",
		Description: "Steps for the new password screen of onboarding",
		Steps: []steps.StepDef{
			{
				Pattern:     `^the user inputs the password "([^"]*)"$`,
				Description: "Types a password into the new password input",
				Example:     `When the user inputs the password "abc"`,
				Handler:     h.inputPassword,
			},
			{
				Pattern:     `^the user clears the password input$`,
				Description: "Empties the new password input",
				Example:     `When the user clears the password input`,
				Handler:     h.clearPassword,
			},
			{
				Pattern:     `^the password strength indicator is "([^"]*)"$`,
				Description: "Asserts the strength shown for the typed password",
				Example:     `Then the password strength indicator is "Very weak"`,
				Handler:     h.strengthIs,
			},
			{
				Pattern:     `^the password strength indicator is not visible$`,
				Description: "Asserts no strength is shown",
				Example:     `Then the password strength indicator is not visible`,
				Handler:     h.strengthHidden,
			},
		},
	}
}

func (h *Hooks) inputPassword(ctx context.Context, password string) error {
	app, err := h.Apps.Current()
	if err != nil {
		return err
	}
	if err := app.WaitForObject(ctx, onboardingNewPswInput); err != nil {
		return err
	}
	return app.Type(ctx, onboardingNewPswInput, password)
}

func (h *Hooks) clearPassword(ctx context.Context) error {
	app, err := h.Apps.Current()
	if err != nil {
		return err
	}
	return app.Clear(ctx, onboardingNewPswInput)
}

func (h *Hooks) strengthIs(ctx context.Context, want string) error {
	app, err := h.Apps.Current()
	if err != nil {
		return err
	}
	got, err := app.Text(ctx, passwordStrengthIndicator)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected password strength %q, got %q", want, got)
	}
	return nil
}

func (h *Hooks) strengthHidden(ctx context.Context) error {
	app, err := h.Apps.Current()
	if err != nil {
		return err
	}
	visible, err := app.IsVisible(ctx, passwordStrengthIndicator)
	if err != nil {
		return err
	}
	if visible {
		return fmt.Errorf("expected password strength indicator to be hidden")
	}
	return nil
}
