package command

import (
	"github.com/rs/zerolog"
	"github.com/tomatool/uitest/internal/version"
	"github.com/urfave/cli/v2"
)

func Run(args []string) error {
	app := &cli.App{
		Name:    "uitest",
		Usage:   "Behavior-driven UI tests for mobile onboarding flows",
		Version: version.Info().Version,
		Description: `uitest runs Gherkin features against a mobile application through an
automation server. It attaches to the app, walks the onboarding flow,
and manages emulator containers when the config asks for them.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if c.Bool("debug") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand,
			runCommand,
			stepsCommand,
			validateCommand,
			versionCommand,
		},
	}

	return app.Run(args)
}
