// Package discovery implements the two cluster-discovery back-ends behind
// the Service Registry (C5): a Kubernetes-backed "orchestrator" back-end and
// a Docker-backed "container-runtime" back-end, chosen by ENVIRONMENT per
// spec.md §4.5/§6. Both satisfy the same narrow contract so the registry
// never branches on which one it was given.
package discovery

import "context"

// Backend discovers base URLs for services carrying a given label selector.
// The returned order is preserved by the registry as "discovered" order,
// ahead of any statically-configured external endpoints.
type Backend interface {
	ListByLabel(ctx context.Context, labelSelector string) ([]string, error)
}
