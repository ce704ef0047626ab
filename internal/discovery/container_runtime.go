package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ContainerRuntimeBackend lists labelled containers on a local Docker socket
// and resolves each to a base URL built from the container's first published
// port, per spec.md §4.5. Selected by ENVIRONMENT=standalone (§6), for
// running the focusing manager on a developer workstation without a
// Kubernetes cluster.
type ContainerRuntimeBackend struct {
	cli *client.Client
}

// NewContainerRuntimeBackend connects to the Docker daemon using the
// standard DOCKER_HOST/DOCKER_* environment variables.
func NewContainerRuntimeBackend() (*ContainerRuntimeBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("discovery: connecting to docker: %w", err)
	}
	return &ContainerRuntimeBackend{cli: cli}, nil
}

// ListByLabel parses labelSelector as a comma-separated list of "key=value"
// (or bare "key") label filters and returns the base URL of every matching
// running container's first published port, in API list order.
func (c *ContainerRuntimeBackend) ListByLabel(ctx context.Context, labelSelector string) ([]string, error) {
	args := filters.NewArgs()
	for _, label := range splitLabelSelector(labelSelector) {
		args.Add("label", label)
	}
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("discovery: listing containers with selector %q: %w", labelSelector, err)
	}
	urls := make([]string, 0, len(containers))
	for _, ctr := range containers {
		if url, ok := containerBaseURL(ctr); ok {
			urls = append(urls, url)
		}
	}
	return urls, nil
}

func splitLabelSelector(sel string) []string {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil
	}
	parts := strings.Split(sel, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containerBaseURL(ctr types.Container) (string, bool) {
	for _, p := range ctr.Ports {
		if p.PublicPort == 0 {
			continue
		}
		host := p.IP
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		return fmt.Sprintf("http://%s:%d", host, p.PublicPort), true
	}
	return "", false
}
