package discovery

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/require"
)

func TestOrchestratorBackend_ListByLabel(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "interactions",
			Namespace: "gravitate",
			Labels:    map[string]string{"app": "preprocessor"},
		},
		Spec: corev1.ServiceSpec{Ports: []corev1.ServicePort{{Port: 8080}}},
	}
	backend := &OrchestratorBackend{clientset: fake.NewSimpleClientset(svc), namespace: "gravitate"}

	urls, err := backend.ListByLabel(context.Background(), "app=preprocessor")
	require.NoError(t, err)
	require.Equal(t, []string{"http://interactions.gravitate.svc.cluster.local:8080"}, urls)
}

func TestOrchestratorBackend_ListByLabel_NoMatches(t *testing.T) {
	backend := &OrchestratorBackend{clientset: fake.NewSimpleClientset(), namespace: "gravitate"}

	urls, err := backend.ListByLabel(context.Background(), "app=preprocessor")
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestServiceBaseURL_DefaultsPort80WhenUnset(t *testing.T) {
	svc := corev1.Service{ObjectMeta: metav1.ObjectMeta{Name: "svc"}}
	require.Equal(t, "http://svc.ns.svc.cluster.local:80", serviceBaseURL(svc, "ns"))
}
