package bdd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
)

// Binder fires the registry's phases from godog's suite, scenario and step
// hooks. godog has no feature hooks, so a feature starts when a scenario from
// a new feature file begins and ends when the next feature starts or the
// suite finishes. Scenarios must run sequentially.
type Binder struct {
	registry *Registry
	skip     func(*godog.Scenario) bool
	runCtx   context.Context

	mu       sync.Mutex
	uri      string
	current  *Context
	startErr error
	errs     []error
}

// BinderOption configures a Binder
type BinderOption func(*Binder)

// WithSkip skips every scenario for which skip returns true. Skipped
// scenarios neither start nor end a feature.
func WithSkip(skip func(*godog.Scenario) bool) BinderOption {
	return func(b *Binder) { b.skip = skip }
}

// NewBinder creates a binder firing the hooks of r
func NewBinder(r *Registry, opts ...BinderOption) *Binder {
	b := &Binder{registry: r, runCtx: context.Background()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetRunContext sets the context the last feature is ended with once the
// suite finishes. It should be the godog DefaultContext of the run.
func (b *Binder) SetRunContext(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runCtx = ctx
}

// InitializeTestSuite is a godog TestSuiteInitializer
func (b *Binder) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.AfterSuite(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.endFeature(b.runCtx)
	})
}

// InitializeScenario is a godog ScenarioInitializer
func (b *Binder) InitializeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(b.beforeScenario)
	ctx.StepContext().After(b.afterStep)
}

// Err returns the feature-end failures that could not be attached to a scenario
func (b *Binder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}

type skippedKey struct{}

func (b *Binder) beforeScenario(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	if b.skip != nil && b.skip(sc) {
		return context.WithValue(ctx, skippedKey{}, true), godog.ErrSkip
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil || sc.Uri != b.uri {
		b.endFeature(ctx)
		b.startFeature(ctx, sc.Uri)
	}

	ctx = WithContext(ctx, b.current)
	if b.startErr != nil {
		return ctx, b.startErr
	}
	return ctx, nil
}

func (b *Binder) afterStep(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
	if skipped, _ := ctx.Value(skippedKey{}).(bool); skipped {
		return ctx, nil
	}

	bc, ok := FromContext(ctx)
	if !ok {
		b.mu.Lock()
		bc = b.current
		b.mu.Unlock()
	}
	if bc == nil {
		return ctx, nil
	}

	bc.Data[DataText] = st.Text
	return ctx, b.registry.Fire(ctx, StepEnd, bc)
}

func (b *Binder) startFeature(ctx context.Context, uri string) {
	b.uri = uri
	b.current = NewContext()
	b.current.Data[DataURI] = uri

	log.Debug().Str("feature", uri).Msg("feature start")
	b.startErr = b.registry.Fire(ctx, FeatureStart, b.current)
	if b.startErr != nil {
		log.Error().Err(b.startErr).Str("feature", uri).Msg("feature start hooks failed")
	}
}

func (b *Binder) endFeature(ctx context.Context) {
	if b.current == nil {
		return
	}

	log.Debug().Str("feature", b.uri).Msg("feature end")
	if err := b.registry.Fire(ctx, FeatureEnd, b.current); err != nil {
		log.Error().Err(err).Str("feature", b.uri).Msg("feature end hooks failed")
		b.errs = append(b.errs, fmt.Errorf("%s %s: %w", FeatureEnd, b.uri, err))
	}

	b.current = nil
	b.uri = ""
	b.startErr = nil
}
