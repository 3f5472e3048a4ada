package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// ContainerInfo is the subset of container state roundtrip inspects.
type ContainerInfo struct {
	// ID is the full container ID.
	ID string `json:"id"`

	// Name is the container name without the API's leading "/".
	Name string `json:"name"`

	// State is the short state string ("running", "exited", "created").
	State string `json:"state"`

	// Labels holds every label on the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// ShortID returns the 12-character ID prefix used by the docker CLI.
func (ci ContainerInfo) ShortID() string {
	if len(ci.ID) > 12 {
		return ci.ID[:12]
	}
	return ci.ID
}

// Managed reports whether the container was created by roundtrip.
func (ci ContainerInfo) Managed() bool {
	return IsManaged(ci.Labels)
}

// FindContainerByName returns the container with exactly the given name,
// including stopped ones, or nil if there is none.
func (c *Client) FindContainerByName(ctx context.Context, name string) (*ContainerInfo, error) {
	// The daemon's name filter is a substring/regex match, so anchor it
	// and re-check the exact name below.
	filterArgs := filters.NewArgs(
		filters.Arg("name", "^/"+name+"$"),
	)

	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	for _, s := range containers {
		info := containerToInfo(s)
		if info.Name == name {
			return &info, nil
		}
	}
	return nil, nil
}

// RemoveContainer force-removes a container by ID. Force kills it first if
// it is still running.
func (c *Client) RemoveContainer(ctx context.Context, containerID string) error {
	err := c.inner.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: true,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// containerToInfo maps an API summary to ContainerInfo.
func containerToInfo(s container.Summary) ContainerInfo {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	return ContainerInfo{
		ID:     s.ID,
		Name:   name,
		State:  string(s.State),
		Labels: s.Labels,
	}
}
