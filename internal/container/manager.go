package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tomatool/uitest/internal/config"
	"github.com/tomatool/uitest/internal/runlog"
)

// ErrDockerNotRunning is returned when the suite needs containers but Docker is unavailable
var ErrDockerNotRunning = fmt.Errorf("docker is not running; start it or point app.url at a running automation server")

// CheckDockerAvailable verifies that Docker daemon is running and accessible
func CheckDockerAvailable() error {
	if err := exec.Command("docker", "info").Run(); err != nil {
		return ErrDockerNotRunning
	}
	return nil
}

// Manager runs the emulator and automation-server containers of a test run
type Manager struct {
	configs     map[string]config.Container
	containers  map[string]testcontainers.Container
	order       []string // startup order based on dependencies
	mu          sync.RWMutex
	runCtx      *runlog.RunContext
	logFiles    map[string]*os.File
	network     *testcontainers.DockerNetwork
	networkName string
}

// NewManager creates a new container manager
func NewManager(configs map[string]config.Container) (*Manager, error) {
	m := &Manager{
		configs:     configs,
		containers:  make(map[string]testcontainers.Container),
		logFiles:    make(map[string]*os.File),
		networkName: fmt.Sprintf("uitest-%s", uuid.New().String()[:8]),
	}

	order, err := m.calculateStartOrder()
	if err != nil {
		return nil, fmt.Errorf("calculating start order: %w", err)
	}
	m.order = order

	return m, nil
}

// SetRunContext makes the manager capture container logs into the run directory
func (m *Manager) SetRunContext(ctx *runlog.RunContext) {
	m.runCtx = ctx
}

// Len returns the number of configured containers
func (m *Manager) Len() int {
	return len(m.configs)
}

// RegisterContainer adds an externally started container
func (m *Manager) RegisterContainer(name string, container testcontainers.Container) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[name] = container
}

// calculateStartOrder returns containers in dependency order using topological sort
func (m *Manager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for name := range m.configs {
		inDegree[name] = 0
	}
	for name, cfg := range m.configs {
		for _, dep := range cfg.DependsOn {
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(m.configs) {
		return nil, fmt.Errorf("circular dependency detected in container configuration")
	}

	return order, nil
}

// StartAll creates the shared network and starts all containers in dependency order
func (m *Manager) StartAll(ctx context.Context) error {
	if len(m.order) == 0 {
		return nil
	}

	if m.network == nil {
		net, err := network.New(ctx, network.WithDriver("bridge"))
		if err != nil {
			return fmt.Errorf("creating network: %w", err)
		}
		m.network = net
		m.networkName = net.Name
	}

	for _, name := range m.order {
		if err := m.Start(ctx, name); err != nil {
			return fmt.Errorf("starting container %s: %w", name, err)
		}
	}
	return nil
}

// Start starts a single container
func (m *Manager) Start(ctx context.Context, name string) error {
	cfg, ok := m.configs[name]
	if !ok {
		return fmt.Errorf("unknown container: %s", name)
	}

	log.Debug().Str("container", name).Str("image", cfg.Image).Msg("starting container")
	startTime := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		Env:          cfg.Env,
		ExposedPorts: cfg.Ports,
		WaitingFor:   buildWaitStrategy(cfg.WaitFor),
	}
	if m.network != nil {
		req.Networks = []string{m.networkName}
		req.NetworkAliases = map[string][]string{m.networkName: {name}}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("creating container: %w", err)
	}

	m.RegisterContainer(name, c)

	log.Debug().Str("container", name).Dur("duration", time.Since(startTime)).Msg("container ready")

	if m.runCtx != nil {
		m.captureLogs(ctx, name, c)
	}
	return nil
}

func (m *Manager) captureLogs(ctx context.Context, name string, c testcontainers.Container) {
	logFile, err := m.runCtx.CreateLogFile("container-" + name)
	if err != nil {
		log.Warn().Err(err).Str("container", name).Msg("failed to create container log file")
		return
	}

	m.mu.Lock()
	m.logFiles[name] = logFile
	m.mu.Unlock()

	logs, err := c.Logs(ctx)
	if err != nil {
		log.Warn().Err(err).Str("container", name).Msg("failed to get container logs")
		return
	}

	go func() {
		defer logs.Close()
		io.Copy(logFile, logs)
	}()
}

// buildWaitStrategy converts config wait strategy to testcontainers wait strategy
func buildWaitStrategy(ws config.WaitStrategy) wait.Strategy {
	timeout := ws.Timeout
	if timeout == 0 {
		// emulators boot slowly
		timeout = 3 * time.Minute
	}

	switch ws.Type {
	case "port":
		return wait.ForListeningPort(nat.Port(ws.Target)).WithStartupTimeout(timeout)
	case "log":
		return wait.ForLog(ws.Target).WithStartupTimeout(timeout)
	case "http":
		strategy := wait.ForHTTP(ws.Path).WithPort(nat.Port(ws.Target)).WithStartupTimeout(timeout)
		if ws.Method != "" {
			strategy = strategy.WithMethod(ws.Method)
		}
		return strategy
	case "exec":
		return wait.ForExec([]string{"sh", "-c", ws.Target}).WithStartupTimeout(timeout)
	default:
		return wait.ForLog("").WithStartupTimeout(timeout)
	}
}

// Get returns a running container by name
func (m *Manager) Get(name string) (testcontainers.Container, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.containers[name]
	if !ok {
		return nil, fmt.Errorf("container not found: %s", name)
	}
	return c, nil
}

// GetHost returns the host address for a container
func (m *Manager) GetHost(ctx context.Context, name string) (string, error) {
	c, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return c.Host(ctx)
}

// GetPort returns the mapped port for a container
func (m *Manager) GetPort(ctx context.Context, name, port string) (string, error) {
	c, err := m.Get(name)
	if err != nil {
		return "", err
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", err
	}
	return mapped.Port(), nil
}

// AutomationURL builds the WebSocket URL of an automation server running in
// container name.
func (m *Manager) AutomationURL(ctx context.Context, name, port, path string) (string, error) {
	host, err := m.GetHost(ctx, name)
	if err != nil {
		return "", fmt.Errorf("getting container host: %w", err)
	}
	mapped, err := m.GetPort(ctx, name, port)
	if err != nil {
		return "", fmt.Errorf("getting container port: %w", err)
	}
	return fmt.Sprintf("ws://%s:%s%s", host, mapped, path), nil
}

// Cleanup stops all containers in reverse start order and removes the network
func (m *Manager) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.logFiles {
		f.Close()
	}
	m.logFiles = make(map[string]*os.File)

	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if c, ok := m.containers[name]; ok {
			log.Debug().Str("container", name).Msg("stopping container")
			if err := c.Terminate(ctx); err != nil {
				log.Warn().Err(err).Str("container", name).Msg("failed to stop container")
			}
			delete(m.containers, name)
		}
	}

	if m.network != nil {
		if err := m.network.Remove(ctx); err != nil {
			log.Warn().Err(err).Str("network", m.networkName).Msg("failed to remove network")
		}
		m.network = nil
	}
}
