package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// OrchestratorBackend lists labelled Kubernetes Services and resolves each
// to its cluster-local DNS name, per spec.md §4.5's "orchestrator" discovery
// mode. It is the default discovery back-end; ENVIRONMENT=standalone selects
// ContainerRuntimeBackend instead.
type OrchestratorBackend struct {
	clientset kubernetes.Interface
	namespace string
}

// NewOrchestratorBackend builds a backend from in-cluster config, falling
// back to $KUBECONFIG (or ~/.kube/config) for local development against a
// reachable cluster, matching how cluster tooling in the retrieved pack
// (kubernetes-test-infra's gencred) resolves a client outside the cluster.
func NewOrchestratorBackend(namespace string) (*OrchestratorBackend, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			if home, herr := os.UserHomeDir(); herr == nil {
				kubeconfig = filepath.Join(home, ".kube", "config")
			}
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("discovery: no in-cluster config and no usable kubeconfig: %w", err)
		}
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: building clientset: %w", err)
	}
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &OrchestratorBackend{clientset: clientset, namespace: namespace}, nil
}

// ListByLabel lists Services matching labelSelector and returns their
// cluster-local base URLs (http://<name>.<namespace>.svc.cluster.local:<port>),
// in API list order.
func (o *OrchestratorBackend) ListByLabel(ctx context.Context, labelSelector string) ([]string, error) {
	list, err := o.clientset.CoreV1().Services(o.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: listing services with selector %q: %w", labelSelector, err)
	}
	urls := make([]string, 0, len(list.Items))
	for _, svc := range list.Items {
		urls = append(urls, serviceBaseURL(svc, o.namespace))
	}
	return urls, nil
}

func serviceBaseURL(svc corev1.Service, namespace string) string {
	port := 80
	for _, p := range svc.Spec.Ports {
		if p.Port != 0 {
			port = int(p.Port)
			break
		}
	}
	return fmt.Sprintf("http://%s.%s.svc.cluster.local:%d", svc.Name, namespace, port)
}
