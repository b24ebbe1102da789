package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/uitest/internal/apprunner"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/container"
	"github.com/tomatool/uitest/internal/driver"
	"github.com/tomatool/uitest/internal/runlog"
	"github.com/tomatool/uitest/internal/runner"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "uitest.yml"

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the feature files of a suite",
	ArgsUsage: "[config]",
	Description: `Loads the config (uitest.yml by default), starts the configured
containers and automation server, attaches to the application and runs
the features. Logs of the run are written under .uitest/runs/.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "output format (pretty, progress, cucumber, junit, uitest)",
		},
		&cli.StringFlag{
			Name:    "tags",
			Aliases: []string{"t"},
			Usage:   "only run scenarios matching the tag expression",
		},
		&cli.StringFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "only run scenarios whose name matches the regex",
		},
		&cli.StringFlag{
			Name:  "suite",
			Usage: "hook suite to install",
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "stop on the first failure",
		},
		&cli.BoolFlag{
			Name:  "server-logs",
			Usage: "echo automation server output",
		},
		&cli.StringFlag{
			Name:  "runs-dir",
			Value: runlog.DefaultDir,
			Usage: "directory for run logs",
		},
	},
	Action: runTests,
}

func runTests(c *cli.Context) error {
	configPath := c.Args().First()
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(c, cfg)

	rc, err := runlog.New(c.String("runs-dir"))
	if err != nil {
		return err
	}
	log.Info().Str("run", rc.ID).Str("dir", rc.Dir).Msg("run started")

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cm, err := container.NewManager(cfg.Containers)
	if err != nil {
		return err
	}
	defer cm.Cleanup()

	if cm.Len() > 0 {
		if err := container.CheckDockerAvailable(); err != nil {
			return err
		}
		cm.SetRunContext(rc)
		log.Info().Int("containers", cm.Len()).Msg("starting containers")
		if err := cm.StartAll(ctx); err != nil {
			return err
		}
	}

	appURL, err := resolveAppURL(ctx, cfg, cm)
	if err != nil {
		return err
	}

	if cfg.App.Server != nil {
		srv, err := apprunner.NewRunner(*cfg.App.Server, appURL, cm)
		if err != nil {
			return err
		}
		srv.SetRunContext(rc)
		srv.SetShowLogs(c.Bool("server-logs"))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop()
	}

	transcript := zerolog.Nop()
	if l, f, err := rc.Transcript("driver"); err != nil {
		log.Warn().Err(err).Msg("driver transcript disabled")
	} else {
		transcript = l
		defer f.Close()
	}

	apps := driver.NewApplications(cfg.App.Name, appURL,
		driver.WithHandshakeTimeout(cfg.App.HandshakeTimeout),
		driver.WithHeaders(cfg.App.Headers),
		driver.WithObjectTimeout(cfg.Settings.ObjectTimeout),
		driver.WithTranscript(transcript),
	)

	r, err := runner.New(cfg, apps, runner.Options{Format: c.String("format")})
	if err != nil {
		return err
	}

	start := time.Now()
	runErr := r.Run(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)

	status := "passed"
	if runErr != nil {
		status = "failed: " + runErr.Error()
	}
	summary := fmt.Sprintf("run %s\nconfig %s\nurl %s\nduration %s\nstatus %s\n", rc.ID, configPath, appURL, elapsed, status)
	if err := rc.WriteLog("summary", []byte(summary)); err != nil {
		log.Warn().Err(err).Msg("failed to write run summary")
	}

	if runErr != nil {
		fmt.Fprintln(c.App.ErrWriter, mutedStyle.Render("logs: "+rc.Dir))
		return runErr
	}

	fmt.Fprintln(c.App.Writer, successStyle.Render(fmt.Sprintf("✓ All features passed in %s", elapsed)))
	return nil
}

func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("tags") {
		cfg.Features.Tags = c.String("tags")
	}
	if c.IsSet("scenario") {
		cfg.Features.Scenario = c.String("scenario")
	}
	if c.IsSet("suite") {
		cfg.Features.Suite = c.String("suite")
	}
	if c.IsSet("fail-fast") {
		cfg.Settings.FailFast = c.Bool("fail-fast")
	}
}

// resolveAppURL returns the automation endpoint, asking the container manager
// for the mapped address when the app lives in a container.
func resolveAppURL(ctx context.Context, cfg *config.Config, cm *container.Manager) (string, error) {
	if !cfg.App.UsesContainer() {
		return cfg.App.URL, nil
	}
	url, err := cm.AutomationURL(ctx, cfg.App.Container, cfg.App.Port, cfg.App.Path)
	if err != nil {
		return "", fmt.Errorf("resolving automation url: %w", err)
	}
	log.Debug().Str("url", url).Msg("automation server resolved")
	return url, nil
}
