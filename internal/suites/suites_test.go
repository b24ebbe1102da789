package suites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/steps"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"", "onboarding/password_strength"} {
		f, err := Lookup(name)
		require.NoError(t, err)

		apps := driver.NewApplications("app", "ws://unused")
		s := f(steps.NewLibrary(apps), apps, config.Settings{})

		r := bdd.NewRegistry()
		s.RegisterHooks(r)
		assert.Equal(t, 1, r.Len(bdd.FeatureStart))
		assert.Equal(t, "Password strength", s.Steps().Name)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("onboarding/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown suite "onboarding/nope"`)
	assert.Contains(t, err.Error(), "onboarding/password_strength")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"onboarding/password_strength"}, Names())
}
