package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// defaultPingTimeout is the maximum duration to wait for the Docker daemon
// to answer a Ping. Five seconds leaves room for Docker Desktop on macOS,
// which can be slow to respond right after the VM wakes up.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It handles automatic socket
// detection across platforms (Linux, macOS, Windows) and exposes only the
// operations roundtrip needs: a health check, a lookup of the fixed
// backup container name, and forced removal.
//
// The pipeline steps themselves (build, run, export, rm) go through the
// docker CLI, not this client, so their output can be captured verbatim.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()  // Always close to release the HTTP transport
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	// inner is the underlying Docker SDK client. It is wrapped rather than
	// embedded so the rest of roundtrip cannot reach the full SDK surface
	// and every API error is converted to a model.CLIError in one place.
	inner *client.Client
}

// NewClient creates a new Docker client with automatic socket detection.
//
// The detection strategy follows this priority order:
//  1. DOCKER_HOST environment variable (if set, used as-is)
//  2. Platform-specific default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine (Docker Named Pipe)
//
// The docker CLI invoked by the pipeline honours DOCKER_HOST the same way,
// so the preflight check and the steps talk to the same daemon.
//
// Returns a model.CLIError with ExitDockerNotRunning if no Docker socket
// is found or the client cannot be created.
func NewClient() (*Client, error) {
	// Step 1: Respect an explicit DOCKER_HOST unconditionally and let the
	// SDK parse the connection string (unix://, tcp://, ssh://, npipe://).
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	// Step 2: Probe the platform's default socket locations.
	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker socket not found",
			err,
		)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a Docker client connected to the given host.
// The host must be a Docker connection string such as
// "unix:///var/run/docker.sock" or "npipe:////./pipe/docker_engine".
func newClientWithHost(host string) (*Client, error) {
	// client.WithAPIVersionNegotiation lets the SDK settle on the highest
	// API version both sides support, so roundtrip works against older
	// daemons on CI runners without pinning a version here.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost determines the Docker socket path for the current
// platform by probing known locations and returning the first that exists.
//
// Only existence is checked here, which is fast and needs no running
// daemon. Ping is what verifies that the daemon actually answers.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		// Linux (including most CI runners) uses the standard socket path.
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// macOS has two possible socket locations:
		// 1. /var/run/docker.sock, a symlink Docker Desktop creates when it
		//    is allowed to (the "default Docker socket" setting).
		// 2. ~/.docker/run/docker.sock, the per-user socket newer Docker
		//    Desktop versions always create.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Without a home directory only the standard path can be tried.
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Windows talks to Docker through a named pipe at a fixed path.
		// os.Stat does not work on named pipes, so probe with a short dial.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			// The pipe is reachable; close the probe connection right away.
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket probes a list of Unix socket paths and returns the
// Docker host URI for the first one that exists on the filesystem.
//
// Paths are checked in order, so callers list them from most-preferred
// to least-preferred.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		// A successful Stat confirms the socket file exists. It does not
		// guarantee the daemon is listening on it; Ping checks that.
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf(
		"Docker socket not found at any of: %v (is Docker running?)",
		paths,
	)
}

// Ping verifies that the Docker daemon is reachable and responsive.
// It sends a lightweight ping request and waits up to defaultPingTimeout.
//
// roundtrip pings before the preflight name check so that a stopped
// daemon is reported as ExitDockerNotRunning up front, instead of
// surfacing later as a confusing image build failure.
//
// Returns a model.CLIError with ExitDockerNotRunning if the daemon
// does not respond or returns an error.
func (c *Client) Ping(ctx context.Context) error {
	// A child context with a timeout keeps a paused Docker Desktop from
	// hanging the run indefinitely.
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases all resources held by the Docker client.
// Call it when the client is no longer needed, typically via defer
// immediately after NewClient.
//
// Close is safe to call multiple times and on a zero Client.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
