package bdd

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Phase is a lifecycle point at which hooks run
type Phase int

const (
	FeatureStart Phase = iota
	FeatureEnd
	StepEnd
)

func (p Phase) String() string {
	switch p {
	case FeatureStart:
		return "OnFeatureStart"
	case FeatureEnd:
		return "OnFeatureEnd"
	case StepEnd:
		return "OnStepEnd"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// HookFunc is a callback registered against a phase
type HookFunc func(ctx context.Context, bc *Context) error

// Registry maps lifecycle phases to their hooks
type Registry struct {
	hooks map[Phase][]HookFunc
	mu    sync.RWMutex
}

// NewRegistry creates an empty hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[Phase][]HookFunc),
	}
}

// On registers fn for phase. Hooks of one phase run in registration order.
func (r *Registry) On(phase Phase, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[phase] = append(r.hooks[phase], fn)
}

// OnFeatureStart registers fn to run before the first scenario of a feature
func (r *Registry) OnFeatureStart(fn HookFunc) { r.On(FeatureStart, fn) }

// OnFeatureEnd registers fn to run once a feature's last scenario is done
func (r *Registry) OnFeatureEnd(fn HookFunc) { r.On(FeatureEnd, fn) }

// OnStepEnd registers fn to run after every step
func (r *Registry) OnStepEnd(fn HookFunc) { r.On(StepEnd, fn) }

// Len returns the number of hooks registered for phase
func (r *Registry) Len(phase Phase) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[phase])
}

// Fire runs the hooks of phase with bc. The first error stops the run and is
// returned as is.
func (r *Registry) Fire(ctx context.Context, phase Phase, bc *Context) error {
	r.mu.RLock()
	hooks := append([]HookFunc(nil), r.hooks[phase]...)
	r.mu.RUnlock()

	for i, fn := range hooks {
		if err := fn(ctx, bc); err != nil {
			log.Debug().Err(err).Stringer("phase", phase).Int("hook", i).Msg("hook failed")
			return err
		}
	}
	return nil
}
