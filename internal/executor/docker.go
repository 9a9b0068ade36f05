// internal/executor/docker.go
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// Runtime describes how one language is run inside a container. The submitted source is
// passed in the SOURCE environment variable and Command is run through /bin/sh -c.
type Runtime struct {
	Image   string
	Command string
}

// DefaultRuntimes covers the languages offered for battles.
var DefaultRuntimes = map[string]Runtime{
	"python": {
		Image:   "python:3.12-alpine",
		Command: `printf '%s' "$SOURCE" > /tmp/main.py && exec python3 /tmp/main.py`,
	},
	"javascript": {
		Image:   "node:20-alpine",
		Command: `printf '%s' "$SOURCE" > /tmp/main.js && exec node /tmp/main.js`,
	},
	"c++": {
		Image:   "gcc:13",
		Command: `printf '%s' "$SOURCE" > /tmp/main.cpp && g++ -O2 -o /tmp/main /tmp/main.cpp && exec /tmp/main`,
	},
	"go": {
		Image:   "golang:1.24-alpine",
		Command: `mkdir -p /tmp/p && printf '%s' "$SOURCE" > /tmp/p/main.go && cd /tmp/p && exec go run main.go`,
	},
}

// DockerExecutor runs each request in a fresh, network-less container that is removed afterwards.
type DockerExecutor struct {
	cli      *client.Client
	runtimes map[string]Runtime
	memory   int64
	nanoCPUs int64
	pids     int64
	timeout  time.Duration
	logger   logrus.FieldLogger
}

type DockerOptions struct {
	// MemoryLimit is a human-readable size such as "256m".
	MemoryLimit string
	CPUs        float64
	PidsLimit   int64
	RunTimeout  time.Duration
	Runtimes    map[string]Runtime
}

// NewDockerExecutor connects to the daemon configured in the environment (DOCKER_HOST etc.).
func NewDockerExecutor(opts DockerOptions, logger logrus.FieldLogger) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	memory := int64(256 * units.MiB)
	if opts.MemoryLimit != "" {
		memory, err = units.RAMInBytes(opts.MemoryLimit)
		if err != nil {
			return nil, fmt.Errorf("parse memory limit %q: %w", opts.MemoryLimit, err)
		}
	}
	cpus := opts.CPUs
	if cpus <= 0 {
		cpus = 0.5
	}
	pids := opts.PidsLimit
	if pids <= 0 {
		pids = 64
	}
	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runtimes := opts.Runtimes
	if runtimes == nil {
		runtimes = DefaultRuntimes
	}

	return &DockerExecutor{
		cli:      cli,
		runtimes: runtimes,
		memory:   memory,
		nanoCPUs: int64(cpus * 1e9),
		pids:     pids,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (d *DockerExecutor) Close() error {
	return d.cli.Close()
}

func (d *DockerExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	rt, ok := d.runtimes[req.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	pids := d.pids
	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           rt.Image,
			Cmd:             []string{"/bin/sh", "-c", rt.Command},
			Env:             []string{"SOURCE=" + req.Source},
			OpenStdin:       true,
			StdinOnce:       true,
			Tty:             false,
			NetworkDisabled: true,
		},
		&container.HostConfig{
			Resources: container.Resources{
				Memory:     d.memory,
				MemorySwap: d.memory,
				NanoCPUs:   d.nanoCPUs,
				PidsLimit:  &pids,
			},
		}, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		// the request context may already be done; removal must still happen
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cli.ContainerRemove(rmCtx, created.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			d.logger.WithError(err).WithField("container", created.ID).Warn("failed to remove sandbox container")
		}
	}()

	conn, err := d.cli.ContainerAttach(ctx, created.ID,
		types.ContainerAttachOptions{Stream: true, Stdout: true, Stderr: true, Stdin: true})
	if err != nil {
		return Result{}, fmt.Errorf("attach container: %w", err)
	}
	defer conn.Close()

	if err := d.cli.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		return Result{}, fmt.Errorf("start container: %w", err)
	}

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, conn.Reader)
		copied <- err
	}()

	if _, err := conn.Conn.Write([]byte(req.Stdin)); err != nil {
		return Result{}, fmt.Errorf("write stdin: %w", err)
	}
	if err := conn.CloseWrite(); err != nil {
		return Result{}, fmt.Errorf("close stdin: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	statusCh, errCh := d.cli.ContainerWait(runCtx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{Stderr: "time limit exceeded"}, nil
		}
		return Result{}, fmt.Errorf("wait container: %w", err)
	case st := <-statusCh:
		if st.Error != nil {
			return Result{}, fmt.Errorf("container wait: %s", st.Error.Message)
		}
		exitCode = st.StatusCode
	}

	select {
	case <-copied:
	case <-time.After(2 * time.Second):
		return Result{}, fmt.Errorf("output stream of %s did not drain after exit", created.ID)
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitCode != 0 && res.Stderr == "" {
		res.Stderr = fmt.Sprintf("exit status %d", exitCode)
	}
	return res, nil
}
