// Package steps is the step library shared by the onboarding suites.
package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/driver"
)

// UserData keys written by ContextInit
const (
	KeySettings    = "settings"
	KeyApplication = "application"
)

// Onboarding objects
const (
	WelcomeScreen      = "onboarding_welcome_screen"
	GetStartedButton   = "onboarding_getStarted_button"
	KeysScreen         = "onboarding_keys_screen"
	GenerateKeysButton = "onboarding_generateNewKeys_button"
	UsernameInput      = "onboarding_username_input"
	NextButton         = "onboarding_next_button"
)

// Applications provides the application sessions steps act on
type Applications interface {
	Start(ctx context.Context) (*driver.Session, error)
	Current() (*driver.Session, error)
}

// Library holds the shared steps
type Library struct {
	apps Applications
}

func NewLibrary(apps Applications) *Library {
	return &Library{apps: apps}
}

// ContextInit attaches to the application and records the test settings in
// the hook context.
func (l *Library) ContextInit(ctx context.Context, bc *bdd.Context, settings config.Settings) error {
	s, err := l.apps.Start(ctx)
	if err != nil {
		return err
	}
	if settings.ObjectTimeout > 0 {
		s.SetObjectTimeout(settings.ObjectTimeout)
	}

	bc.UserData[KeySettings] = settings
	bc.UserData[KeyApplication] = s.Name()

	log.Debug().Str("application", s.Name()).Msg("context initialized")
	return nil
}

// AFirstTimeUserLandsOnAndGeneratesNewKey walks a new user from the welcome
// screen to the username prompt of key generation.
func (l *Library) AFirstTimeUserLandsOnAndGeneratesNewKey(ctx context.Context, bc *bdd.Context) error {
	s, err := l.apps.Current()
	if err != nil {
		return err
	}

	for _, step := range []func() error{
		func() error { return s.WaitForObject(ctx, WelcomeScreen) },
		func() error { return s.Tap(ctx, GetStartedButton) },
		func() error { return s.WaitForObject(ctx, KeysScreen) },
		func() error { return s.Tap(ctx, GenerateKeysButton) },
		func() error { return s.WaitForObject(ctx, UsernameInput) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// TheUserInputsUsername types username into the prompt and confirms it
func (l *Library) TheUserInputsUsername(ctx context.Context, username string) error {
	s, err := l.apps.Current()
	if err != nil {
		return err
	}

	if err := s.Type(ctx, UsernameInput, username); err != nil {
		return err
	}
	return s.Tap(ctx, NextButton)
}

// RegisterSteps registers the library's Gherkin steps
func (l *Library) RegisterSteps(ctx *godog.ScenarioContext) {
	Register(ctx, l.Steps())
}

// Steps returns the structured step definitions of the library
func (l *Library) Steps() StepCategory {
	return StepCategory{
		Name:        "Onboarding",
		Description: "Shared steps for the onboarding flow",
		Steps: []StepDef{
			{
				Pattern:     `^a first time user lands on the app and generates new key$`,
				Description: "Walks from the welcome screen to the username prompt",
				Example:     `Given a first time user lands on the app and generates new key`,
				Handler:     l.aFirstTimeUserStep,
			},
			{
				Pattern:     `^the user inputs username "([^"]*)"$`,
				Description: "Types the username and confirms it",
				Example:     `When the user inputs username "tester123"`,
				Handler:     l.TheUserInputsUsername,
			},
			{
				Pattern:     `^the user navigates to the "([^"]*)" screen$`,
				Description: "Moves the application to a named screen",
				Example:     `When the user navigates to the "onboarding" screen`,
				Handler:     l.navigate,
			},
			{
				Pattern:     `^the user taps "([^"]*)"$`,
				Description: "Taps an object",
				Example:     `When the user taps "onboarding_next_button"`,
				Handler:     l.tap,
			},
			{
				Pattern:     `^the "([^"]*)" object is visible$`,
				Description: "Waits until an object is visible",
				Example:     `Then the "onboarding_username_input" object is visible`,
				Handler:     l.objectVisible,
			},
		},
	}
}

func (l *Library) aFirstTimeUserStep(ctx context.Context) error {
	bc, ok := bdd.FromContext(ctx)
	if !ok {
		bc = bdd.NewContext()
	}
	return l.AFirstTimeUserLandsOnAndGeneratesNewKey(ctx, bc)
}

func (l *Library) navigate(ctx context.Context, screen string) error {
	s, err := l.apps.Current()
	if err != nil {
		return err
	}
	return s.Navigate(ctx, screen)
}

func (l *Library) tap(ctx context.Context, object string) error {
	s, err := l.apps.Current()
	if err != nil {
		return err
	}
	return s.Tap(ctx, object)
}

func (l *Library) objectVisible(ctx context.Context, object string) error {
	s, err := l.apps.Current()
	if err != nil {
		return err
	}
	if err := s.WaitForObject(ctx, object); err != nil {
		return fmt.Errorf("%s is not visible: %w", object, err)
	}
	return nil
}
