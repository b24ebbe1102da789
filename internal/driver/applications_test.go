package driver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/driver/drivertest"
)

func TestApplicationsLifecycle(t *testing.T) {
	srv := drivertest.NewServer(t)
	apps := driver.NewApplications("status-mobile", srv.URL)
	ctx := context.Background()

	_, err := apps.Current()
	assert.True(t, errors.Is(err, driver.ErrNoApplication))

	s, err := apps.Start(ctx)
	require.NoError(t, err)

	again, err := apps.Start(ctx)
	require.NoError(t, err)
	assert.Same(t, s, again, "start reuses the attached session")

	cur, err := apps.Current()
	require.NoError(t, err)
	assert.Same(t, s, cur)

	require.NoError(t, cur.Detach(ctx))
	_, err = apps.Current()
	assert.True(t, errors.Is(err, driver.ErrNoApplication), "detached session is not current")

	next, err := apps.Start(ctx)
	require.NoError(t, err)
	assert.NotSame(t, s, next)

	require.NoError(t, apps.DetachAll(ctx))
	require.NoError(t, apps.DetachAll(ctx))
	assert.True(t, next.Detached())
}

func TestApplicationsReattachAfterCallTimeout(t *testing.T) {
	srv := drivertest.NewServer(t)
	var slow atomic.Bool
	slow.Store(true)
	srv.Handle(driver.MethodTap, func(params map[string]any) (any, *driver.RemoteError) {
		if slow.Load() {
			time.Sleep(300 * time.Millisecond)
		}
		return nil, nil
	})

	apps := driver.NewApplications("status-mobile", srv.URL, driver.WithCallTimeout(100*time.Millisecond))
	ctx := context.Background()

	first, err := apps.Start(ctx)
	require.NoError(t, err)
	require.Error(t, first.Tap(ctx, "onboarding_next_button"))
	assert.True(t, first.Detached())

	_, err = apps.Current()
	assert.True(t, errors.Is(err, driver.ErrNoApplication))

	slow.Store(false)
	second, err := apps.Start(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second, "a broken session is replaced")
	require.NoError(t, second.Tap(ctx, "onboarding_next_button"))
	require.NoError(t, apps.DetachAll(ctx))

	attaches := 0
	for _, m := range srv.Methods() {
		if m == driver.MethodAttach {
			attaches++
		}
	}
	assert.Equal(t, 2, attaches)
}

func TestApplicationsStartFailure(t *testing.T) {
	apps := driver.NewApplications("status-mobile", "ws://127.0.0.1:1/automation", driver.WithHandshakeTimeout(time.Second))

	_, err := apps.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting status-mobile")
}

func TestSnooze(t *testing.T) {
	start := time.Now()
	require.NoError(t, driver.Snooze(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, driver.Snooze(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := driver.Snooze(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
