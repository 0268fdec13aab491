package state

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/client-go/kubernetes"

	"github.com/jacobbrewer1/cloudflare-failover/k8s"
)

// configMapKey is the data key holding the encoded state.
const configMapKey = "state.json"

// ConfigMapMedium stores the encoded state in a Kubernetes ConfigMap so that
// replicas taking over leadership see the same state.
type ConfigMapMedium struct {
	kubeClient kubernetes.Interface
	namespace  string
	name       string
}

// NewConfigMapMedium returns a medium backed by the ConfigMap namespace/name.
func NewConfigMapMedium(kubeClient kubernetes.Interface, namespace, name string) *ConfigMapMedium {
	return &ConfigMapMedium{
		kubeClient: kubeClient,
		namespace:  namespace,
		name:       name,
	}
}

func (m *ConfigMapMedium) String() string {
	return "configmap:" + m.namespace + "/" + m.name
}

func (m *ConfigMapMedium) Read(ctx context.Context) ([]byte, error) {
	data, err := k8s.ReadConfigMapKey(ctx, m.kubeClient, m.namespace, m.name, configMapKey)
	if errors.Is(err, k8s.ErrKeyNotFound) {
		return nil, ErrNoState
	} else if err != nil {
		return nil, fmt.Errorf("failed to read state configmap: %w", err)
	}
	return data, nil
}

func (m *ConfigMapMedium) Write(ctx context.Context, data []byte) error {
	if err := k8s.WriteConfigMapKey(ctx, m.kubeClient, m.namespace, m.name, configMapKey, data); err != nil {
		return fmt.Errorf("failed to write state configmap: %w", err)
	}
	return nil
}
