package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	_ "github.com/tomatool/uitest/internal/formatter" // Register uitest formatter
	"github.com/tomatool/uitest/internal/steps"
	"github.com/tomatool/uitest/internal/suites"
)

// Options configures runner behavior
type Options struct {
	Format string    // Override output format (e.g., "uitest" for structured events)
	Output io.Writer // Defaults to stdout
}

// Runner executes the feature files of one suite
type Runner struct {
	config        *config.Config
	apps          Applications
	library       *steps.Library
	suite         suites.Suite
	hooks         *bdd.Registry
	binder        *bdd.Binder
	opts          Options
	scenarioRegex *regexp.Regexp
}

// New creates a new test runner over the application sessions in apps
func New(cfg *config.Config, apps Applications, opts Options) (*Runner, error) {
	factory, err := suites.Lookup(cfg.Features.Suite)
	if err != nil {
		return nil, err
	}

	library := steps.NewLibrary(apps)
	suite := factory(library, apps, cfg.Settings)

	hooks := bdd.NewRegistry()
	suite.RegisterHooks(hooks)

	r := &Runner{
		config:  cfg,
		apps:    apps,
		library: library,
		suite:   suite,
		hooks:   hooks,
		opts:    opts,
	}

	var binderOpts []bdd.BinderOption
	if cfg.Features.Scenario != "" {
		log.Debug().Str("pattern", cfg.Features.Scenario).Msg("compiling scenario filter regex")
		regex, err := regexp.Compile(cfg.Features.Scenario)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario filter regex: %w", err)
		}
		r.scenarioRegex = regex
		binderOpts = append(binderOpts, bdd.WithSkip(r.skipScenario))
		log.Info().Str("pattern", cfg.Features.Scenario).Msg("scenario filter active")
	}
	r.binder = bdd.NewBinder(hooks, binderOpts...)

	log.Debug().
		Str("suite", cfg.Features.Suite).
		Int("feature_start_hooks", hooks.Len(bdd.FeatureStart)).
		Int("feature_end_hooks", hooks.Len(bdd.FeatureEnd)).
		Int("step_end_hooks", hooks.Len(bdd.StepEnd)).
		Msg("hooks registered")

	return r, nil
}

// Run executes all features. Feature-end failures and leftover sessions are
// reported after godog finishes.
func (r *Runner) Run(ctx context.Context) error {
	if r.config.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Settings.Timeout)
		defer cancel()
	}

	format := r.config.Settings.Output
	if r.opts.Format != "" {
		format = r.opts.Format
	}

	opts := &godog.Options{
		Format:         format,
		Output:         r.opts.Output,
		Paths:          r.config.Features.Paths,
		Tags:           r.config.Features.Tags,
		StopOnFailure:  r.config.Settings.FailFast,
		Strict:         true,
		Concurrency:    1, // hooks rely on strict lifecycle order
		DefaultContext: ctx,
	}

	r.binder.SetRunContext(ctx)

	suite := godog.TestSuite{
		Name:                 "uitest",
		TestSuiteInitializer: r.binder.InitializeTestSuite,
		ScenarioInitializer:  r.initializeScenario,
		Options:              opts,
	}

	status := suite.Run()

	var errs []error
	if err := r.binder.Err(); err != nil {
		errs = append(errs, err)
	}
	if err := r.apps.DetachAll(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("failed to detach applications")
	}
	if status != 0 {
		errs = append(errs, fmt.Errorf("tests failed with status %d", status))
	}

	return errors.Join(errs...)
}

func (r *Runner) initializeScenario(ctx *godog.ScenarioContext) {
	r.binder.InitializeScenario(ctx)
	r.library.RegisterSteps(ctx)
	r.suite.RegisterSteps(ctx)
}

// skipScenario reports whether sc falls outside features.scenario. The binder
// checks it before feature setup, so a skipped scenario never attaches.
func (r *Runner) skipScenario(sc *godog.Scenario) bool {
	if r.scenarioRegex.MatchString(sc.Name) {
		return false
	}
	log.Info().Str("scenario", sc.Name).Msg("skipping scenario (doesn't match filter)")
	return true
}

// Steps lists the step categories available to the suite's features
func (r *Runner) Steps() []steps.StepCategory {
	return []steps.StepCategory{r.library.Steps(), r.suite.Steps()}
}
