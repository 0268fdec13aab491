package k8s

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrKeyNotFound is returned when a ConfigMap or its data key does not exist.
var ErrKeyNotFound = errors.New("configmap key not found")

// upserter is the subset of a typed client needed to create or update an object.
type upserter[T metav1.Object] interface {
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
}

// ReadConfigMapKey returns the binary or string payload stored under key in
// the named ConfigMap.
func ReadConfigMapKey(ctx context.Context, kubeClient kubernetes.Interface, namespace, name, key string) ([]byte, error) {
	cm, err := kubeClient.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	switch {
	case k8serrors.IsNotFound(err):
		return nil, ErrKeyNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", namespace, name, err)
	}

	if data, ok := cm.BinaryData[key]; ok {
		return data, nil
	}
	if data, ok := cm.Data[key]; ok {
		return []byte(data), nil
	}
	return nil, ErrKeyNotFound
}

// WriteConfigMapKey stores value under key in the named ConfigMap, creating
// the ConfigMap when it does not exist. Other keys are preserved.
func WriteConfigMapKey(ctx context.Context, kubeClient kubernetes.Interface, namespace, name, key string, value []byte) error {
	cms := kubeClient.CoreV1().ConfigMaps(namespace)

	cm, err := cms.Get(ctx, name, metav1.GetOptions{})
	switch {
	case k8serrors.IsNotFound(err):
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: namespace,
			},
		}
	case err != nil:
		return fmt.Errorf("failed to get configmap %s/%s: %w", namespace, name, err)
	}

	if cm.Data == nil {
		cm.Data = make(map[string]string)
	}
	cm.Data[key] = string(value)

	return upsert(ctx, cms, cm)
}

// upsert updates obj when it already exists and creates it otherwise.
func upsert[T metav1.Object](ctx context.Context, client upserter[T], obj T) error {
	_, err := client.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		if !k8serrors.IsNotFound(err) {
			return fmt.Errorf("failed to get %T: %w", obj, err)
		}

		obj.SetResourceVersion("")
		if _, err := client.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create %T: %w", obj, err)
		}
		return nil
	}

	if _, err := client.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update %T: %w", obj, err)
	}
	return nil
}
