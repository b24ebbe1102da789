package steps

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/uitest/internal/bdd"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/driver/drivertest"
)

func newLibrary(t *testing.T) (*Library, *drivertest.Server, *driver.Applications) {
	t.Helper()
	srv := drivertest.NewServer(t)
	apps := driver.NewApplications("status-mobile", srv.URL)
	t.Cleanup(func() { apps.DetachAll(context.Background()) })
	return NewLibrary(apps), srv, apps
}

func TestContextInit(t *testing.T) {
	lib, srv, apps := newLibrary(t)
	bc := bdd.NewContext()
	settings := config.Settings{ObjectTimeout: 4 * time.Second, AppClosureTimeout: time.Second}

	require.NoError(t, lib.ContextInit(context.Background(), bc, settings))

	assert.Equal(t, settings, bc.UserData[KeySettings])
	assert.Equal(t, "status-mobile", bc.UserData[KeyApplication])

	_, err := apps.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{driver.MethodAttach}, srv.Methods())
}

func TestFirstTimeUserGeneratesNewKey(t *testing.T) {
	lib, srv, _ := newLibrary(t)
	ctx := context.Background()
	require.NoError(t, lib.ContextInit(ctx, bdd.NewContext(), config.Settings{}))

	require.NoError(t, lib.AFirstTimeUserLandsOnAndGeneratesNewKey(ctx, bdd.NewContext()))

	var objects []string
	for _, c := range srv.Calls()[1:] {
		objects = append(objects, c.Method+" "+c.Params["object"].(string))
	}
	assert.Equal(t, []string{
		"waitForObject " + WelcomeScreen,
		"tap " + GetStartedButton,
		"waitForObject " + KeysScreen,
		"tap " + GenerateKeysButton,
		"waitForObject " + UsernameInput,
	}, objects)
}

func TestFirstTimeUserStopsAtMissingScreen(t *testing.T) {
	lib, srv, _ := newLibrary(t)
	ctx := context.Background()
	require.NoError(t, lib.ContextInit(ctx, bdd.NewContext(), config.Settings{}))
	srv.Hide(KeysScreen)

	err := lib.AFirstTimeUserLandsOnAndGeneratesNewKey(ctx, bdd.NewContext())
	var remote *driver.RemoteError
	require.True(t, errors.As(err, &remote))
	// attach, welcome, get started, keys screen
	assert.Len(t, srv.Calls(), 4)
}

func TestTheUserInputsUsername(t *testing.T) {
	lib, srv, _ := newLibrary(t)
	ctx := context.Background()
	require.NoError(t, lib.ContextInit(ctx, bdd.NewContext(), config.Settings{}))

	require.NoError(t, lib.TheUserInputsUsername(ctx, "tester123"))
	assert.Equal(t, "tester123", srv.Text(UsernameInput))
	assert.Equal(t, []string{driver.MethodAttach, driver.MethodType, driver.MethodTap}, srv.Methods())
}

func TestStepsRequireApplication(t *testing.T) {
	lib, _, _ := newLibrary(t)
	ctx := context.Background()

	assert.True(t, errors.Is(lib.TheUserInputsUsername(ctx, "tester123"), driver.ErrNoApplication))
	assert.True(t, errors.Is(lib.AFirstTimeUserLandsOnAndGeneratesNewKey(ctx, bdd.NewContext()), driver.ErrNoApplication))
	assert.True(t, errors.Is(lib.tap(ctx, "x"), driver.ErrNoApplication))
}

func TestStepsMetadata(t *testing.T) {
	lib, _, _ := newLibrary(t)
	cat := lib.Steps()

	assert.Equal(t, "Onboarding", cat.Name)
	for _, step := range cat.Steps {
		assert.NotEmpty(t, step.Pattern)
		assert.NotEmpty(t, step.Description)
		assert.NotNil(t, step.Handler)
	}
}

const sharedStepsFeature = `Feature: shared steps
  Scenario: new user
    Given a first time user lands on the app and generates new key
    When the user inputs username "tester123"
    And the user navigates to the "profile" screen
    And the user taps "profile_done_button"
    Then the "profile_avatar" object is visible
`

func TestSharedStepsWithGodog(t *testing.T) {
	lib, srv, _ := newLibrary(t)

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
				bc := bdd.NewContext()
				return bdd.WithContext(ctx, bc), lib.ContextInit(ctx, bc, config.Settings{})
			})
			lib.RegisterSteps(sc)
		},
		Options: &godog.Options{
			Format:      "progress",
			Output:      io.Discard,
			Strict:      true,
			Concurrency: 1,
			FeatureContents: []godog.Feature{
				{Name: "shared.feature", Contents: []byte(sharedStepsFeature)},
			},
		},
	}

	require.Equal(t, 0, suite.Run())
	assert.Equal(t, "tester123", srv.Text(UsernameInput))
	assert.Contains(t, srv.Methods(), driver.MethodNavigate)
}
