package apprunner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/runlog"
)

// PortResolver looks up the host port of a managed container
type PortResolver interface {
	GetPort(ctx context.Context, name, port string) (string, error)
}

// Runner launches the automation server as a local process and waits until
// it accepts connections.
type Runner struct {
	config  config.ServerConfig
	address string // host:port probed for readiness
	ports   PortResolver

	cmd *exec.Cmd

	// Log streaming
	showLogs     bool
	out          io.Writer
	logLines     []string
	logMu        sync.Mutex
	stopLogs     chan struct{}
	stopLogsOnce sync.Once

	// Run context for logging
	runCtx  *runlog.RunContext
	logFile *os.File
}

// NewRunner creates a runner for the server reachable at appURL
func NewRunner(cfg config.ServerConfig, appURL string, ports PortResolver) (*Runner, error) {
	address, err := probeAddress(appURL)
	if err != nil {
		return nil, err
	}

	return &Runner{
		config:   cfg,
		address:  address,
		ports:    ports,
		out:      os.Stdout,
		stopLogs: make(chan struct{}),
	}, nil
}

func probeAddress(appURL string) (string, error) {
	u, err := url.Parse(appURL)
	if err != nil {
		return "", fmt.Errorf("parsing app url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("app url %q has no host", appURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	switch u.Scheme {
	case "wss", "https":
		return net.JoinHostPort(u.Hostname(), "443"), nil
	default:
		return net.JoinHostPort(u.Hostname(), "80"), nil
	}
}

// Address returns the host:port the runner probes
func (r *Runner) Address() string {
	return r.address
}

// SetShowLogs enables or disables echoing server output
func (r *Runner) SetShowLogs(show bool) {
	r.showLogs = show
}

// SetRunContext sets the run context for logging
func (r *Runner) SetRunContext(ctx *runlog.RunContext) {
	r.runCtx = ctx
	if ctx != nil {
		f, err := ctx.CreateLogFile("server")
		if err != nil {
			log.Warn().Err(err).Msg("failed to create server log file")
		} else {
			r.logFile = f
		}
	}
}

// Start starts the server process and blocks until it is ready
func (r *Runner) Start(ctx context.Context) error {
	parts := strings.Fields(r.config.Command)
	if len(parts) == 0 {
		return fmt.Errorf("empty server command")
	}

	env, err := r.buildEnv(ctx)
	if err != nil {
		return err
	}

	r.cmd = exec.CommandContext(ctx, parts[0], parts[1:]...)
	if r.config.WorkDir != "" {
		r.cmd.Dir = r.config.WorkDir
	}
	r.cmd.Env = os.Environ()
	for k, v := range env {
		r.cmd.Env = append(r.cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := r.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	log.Debug().Str("command", r.config.Command).Msg("starting automation server")
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("starting automation server: %w", err)
	}

	go r.streamLogs(stdout, "stdout")
	go r.streamLogs(stderr, "stderr")

	if err := r.waitForReady(ctx); err != nil {
		r.Stop()
		return fmt.Errorf("automation server not ready: %w", err)
	}

	if r.config.Wait > 0 {
		time.Sleep(r.config.Wait)
	}

	log.Debug().
		Str("command", r.config.Command).
		Str("address", r.address).
		Msg("automation server ready")
	return nil
}

var templatePattern = regexp.MustCompile(`\{\{\s*\.(\w+)\.(host|port)(?:\.(\d+(?:/tcp)?))?\s*\}\}`)

// buildEnv resolves {{.container.host}} and {{.container.port.N}} against the
// managed containers.
func (r *Runner) buildEnv(ctx context.Context) (map[string]string, error) {
	env := make(map[string]string, len(r.config.Env))
	var resolveErr error

	for key, value := range r.config.Env {
		env[key] = templatePattern.ReplaceAllStringFunc(value, func(match string) string {
			m := templatePattern.FindStringSubmatch(match)
			name, kind, port := m[1], m[2], m[3]

			if kind == "host" {
				return "localhost"
			}
			if port == "" {
				return match
			}
			if !strings.Contains(port, "/") {
				port += "/tcp"
			}
			if r.ports == nil {
				resolveErr = fmt.Errorf("env %s: no containers to resolve %s", key, match)
				return match
			}
			mapped, err := r.ports.GetPort(ctx, name, port)
			if err != nil {
				resolveErr = fmt.Errorf("env %s: resolving %s: %w", key, match, err)
				return match
			}
			return mapped
		})
	}

	if resolveErr != nil {
		return nil, resolveErr
	}
	return env, nil
}

func (r *Runner) streamLogs(pipe io.Reader, source string) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		select {
		case <-r.stopLogs:
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		r.logMu.Lock()
		r.logLines = append(r.logLines, line)
		if len(r.logLines) > 100 {
			r.logLines = r.logLines[1:]
		}
		if r.logFile != nil {
			fmt.Fprintf(r.logFile, "[%s] %s\n", source, line)
		}
		r.logMu.Unlock()

		if r.showLogs {
			fmt.Fprintf(r.out, "    │ %s\n", line)
		}
	}
}

// waitForReady polls the server until the ready check passes
func (r *Runner) waitForReady(ctx context.Context) error {
	timeout := 30 * time.Second
	check := r.config.Ready
	if check != nil && check.Timeout > 0 {
		timeout = check.Timeout
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if r.probe(check) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("timeout waiting for %s", r.address)
}

func (r *Runner) probe(check *config.ReadyCheck) bool {
	if check != nil && check.Type == "http" {
		path := check.Path
		if path == "" {
			path = "/status"
		}
		status := check.Status
		if status == 0 {
			status = http.StatusOK
		}

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s%s", r.address, path))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == status
	}

	conn, err := net.DialTimeout("tcp", r.address, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Stop terminates the server process and closes its log file
func (r *Runner) Stop() error {
	r.stopLogsOnce.Do(func() {
		close(r.stopLogs)
	})

	r.logMu.Lock()
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
	r.logMu.Unlock()

	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}

	log.Debug().Int("pid", r.cmd.Process.Pid).Msg("stopping automation server")

	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Debug().Err(err).Msg("failed to send SIGTERM, trying SIGKILL")
		if err := r.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing automation server: %w", err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- r.cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.cmd.Process.Kill()
		<-done
	}

	r.cmd = nil
	return nil
}

// GetRecentLogs returns up to n of the most recent server output lines
func (r *Runner) GetRecentLogs(n int) []string {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	if n <= 0 || n > len(r.logLines) {
		n = len(r.logLines)
	}
	out := make([]string, n)
	copy(out, r.logLines[len(r.logLines)-n:])
	return out
}
