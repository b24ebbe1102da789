package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AttachFunc opens a session; Attach is the default
type AttachFunc func(ctx context.Context, name, url string, opts ...Option) (*Session, error)

// Applications tracks the application context the suite is currently
// attached to.
type Applications struct {
	name   string
	url    string
	opts   []Option
	attach AttachFunc

	current *Session
	mu      sync.RWMutex
}

// NewApplications creates a registry for the application called name,
// reachable through the automation server at url.
func NewApplications(name, url string, opts ...Option) *Applications {
	return &Applications{
		name:   name,
		url:    url,
		opts:   opts,
		attach: Attach,
	}
}

// Start attaches to the application unless an attached session already exists
func (a *Applications) Start(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && !a.current.Detached() {
		return a.current, nil
	}

	log.Debug().Str("application", a.name).Str("url", a.url).Msg("attaching to application")
	s, err := a.attach(ctx, a.name, a.url, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", a.name, err)
	}
	a.current = s
	return s, nil
}

// Current returns the active application context
func (a *Applications) Current() (*Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.current == nil || a.current.Detached() {
		return nil, ErrNoApplication
	}
	return a.current, nil
}

// DetachAll detaches the active session, if any
func (a *Applications) DetachAll(ctx context.Context) error {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Detach(ctx)
}

// Snooze pauses for d, returning early with the context's error if it is
// cancelled first.
func Snooze(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
