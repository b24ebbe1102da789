// Package suites maps suite names to their hook files.
package suites

import (
	"fmt"
	"sort"

	"github.com/cucumber/godog"
	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/steps"
	"github.com/tomatool/uitest/internal/suites/onboarding/passwordstrength"
)

// Default is used when the config names no suite
const Default = "onboarding/password_strength"

// Suite is a hook file with its co-located steps
type Suite interface {
	RegisterHooks(r *bdd.Registry)
	RegisterSteps(ctx *godog.ScenarioContext)
	Steps() steps.StepCategory
}

// Factory builds a suite over the shared step library
type Factory func(lib *steps.Library, apps steps.Applications, settings config.Settings) Suite

var factories = map[string]Factory{
	"onboarding/password_strength": func(lib *steps.Library, apps steps.Applications, settings config.Settings) Suite {
		return passwordstrength.New(lib, apps, settings)
	},
}

// Lookup returns the factory registered under name
func Lookup(name string) (Factory, error) {
	if name == "" {
		name = Default
	}
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (available: %v)", name, Names())
	}
	return f, nil
}

// Names returns the registered suite names, sorted
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
