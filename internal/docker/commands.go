package docker

import (
	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// DefaultBinary is the container engine CLI invoked for pipeline steps.
const DefaultBinary = "docker"

// Mount is a host path exposed inside a container.
type Mount struct {
	Host      string
	Container string
}

// String renders the mount in `-v host:container` form.
func (m Mount) String() string {
	return m.Host + ":" + m.Container
}

// Commands builds the argument vectors for every engine invocation the
// pipeline makes. It holds the explicit namespace rather than reading
// names from package state.
type Commands struct {
	// Binary is the engine CLI, DefaultBinary when empty.
	Binary string

	// Namespace supplies the image tag and the backup container name.
	Namespace model.Namespace
}

func (c Commands) binary() string {
	if c.Binary == "" {
		return DefaultBinary
	}
	return c.Binary
}

// Build returns `docker build -t <image> -f <dockerfile> <context>`.
func (c Commands) Build(dockerfile, contextDir string) []string {
	return []string{
		c.binary(), "build",
		"-t", c.Namespace.Image,
		"-f", dockerfile,
		contextDir,
	}
}

// RunBackup returns the argv that starts the named backup container:
//
//	docker run -v <host>:<mount> --name <container> [--label k=v ...] <image> <command...>
//
// The container is not auto-removed; its filesystem is exported next.
func (c Commands) RunBackup(backup Mount, labels map[string]string, command []string) []string {
	args := []string{
		c.binary(), "run",
		"-v", backup.String(),
		"--name", c.Namespace.Container,
	}
	args = append(args, LabelArgs(labels)...)
	args = append(args, c.Namespace.Image)
	return append(args, command...)
}

// Export returns `docker export <container>`. The archive is the
// process's stdout.
func (c Commands) Export() []string {
	return []string{c.binary(), "export", c.Namespace.Container}
}

// Remove returns `docker rm <container>`.
func (c Commands) Remove() []string {
	return []string{c.binary(), "rm", c.Namespace.Container}
}

// RunRestore returns the argv for the disposable restore container:
//
//	docker run -v <m1> -v <m2> ... --rm <image> <command...>
func (c Commands) RunRestore(mounts []Mount, command []string) []string {
	args := []string{c.binary(), "run"}
	for _, m := range mounts {
		args = append(args, "-v", m.String())
	}
	args = append(args, "--rm", c.Namespace.Image)
	return append(args, command...)
}
