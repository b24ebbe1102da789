// Package passwordstrength holds the lifecycle hooks and co-located steps of
// the onboarding password-strength feature.
package passwordstrength

import (
	"context"
	"time"

	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/steps"
)

const (
	user                  = "tester123"
	onboardingNewPswInput = "onboarding_newPsw_Input"
)

// StepLibrary is the part of the shared step library used at feature start
type StepLibrary interface {
	ContextInit(ctx context.Context, bc *bdd.Context, settings config.Settings) error
	AFirstTimeUserLandsOnAndGeneratesNewKey(ctx context.Context, bc *bdd.Context) error
	TheUserInputsUsername(ctx context.Context, username string) error
}

// Hooks sets up and tears down the application around each password-strength
// feature and records the step being run.
type Hooks struct {
	Library      StepLibrary
	Apps         steps.Applications
	Snooze       func(ctx context.Context, d time.Duration) error
	TestSettings config.Settings
}

// New creates the hooks. Snooze defaults to driver.Snooze.
func New(lib StepLibrary, apps steps.Applications, settings config.Settings) *Hooks {
	return &Hooks{
		Library:      lib,
		Apps:         apps,
		Snooze:       driver.Snooze,
		TestSettings: settings,
	}
}

// RegisterHooks binds the feature's lifecycle hooks
func (h *Hooks) RegisterHooks(r *bdd.Registry) {
	r.OnFeatureStart(h.onFeatureStart)
	r.OnFeatureEnd(h.onFeatureEnd)
	r.OnStepEnd(h.onStepEnd)
}

func (h *Hooks) onFeatureStart(ctx context.Context, bc *bdd.Context) error {
	if err := h.Library.ContextInit(ctx, bc, h.TestSettings); err != nil {
		return err
	}
	if err := h.Library.AFirstTimeUserLandsOnAndGeneratesNewKey(ctx, bc); err != nil {
		return err
	}
	return h.Library.TheUserInputsUsername(ctx, user)
}

func (h *Hooks) onFeatureEnd(ctx context.Context, bc *bdd.Context) error {
	app, err := h.Apps.Current()
	if err != nil {
		return err
	}
	if err := app.Detach(ctx); err != nil {
		return err
	}
	return h.Snooze(ctx, h.TestSettings.AppClosureTimeout)
}

func (h *Hooks) onStepEnd(ctx context.Context, bc *bdd.Context) error {
	bc.UserData["step_name"] = bc.Data[bdd.DataText]
	return nil
}
