package k8s

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stest "k8s.io/client-go/testing"
)

func TestConfigMapKey_RoundTrip(t *testing.T) {
	t.Parallel()

	kubeClient := fake.NewClientset()
	ctx := t.Context()

	_, err := ReadConfigMapKey(ctx, kubeClient, "default", "failover-state", "state.json")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, WriteConfigMapKey(ctx, kubeClient, "default", "failover-state", "state.json", []byte(`{"version":1}`)))
	require.NoError(t, WriteConfigMapKey(ctx, kubeClient, "default", "failover-state", "state.json", []byte(`{"version":2}`)))

	got, err := ReadConfigMapKey(ctx, kubeClient, "default", "failover-state", "state.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"version":2}`, string(got))
}

func TestWriteConfigMapKey_PreservesOtherKeys(t *testing.T) {
	t.Parallel()

	kubeClient := fake.NewClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "failover-state", Namespace: "ops"},
		Data:       map[string]string{"notes": "keep me"},
	})

	require.NoError(t, WriteConfigMapKey(t.Context(), kubeClient, "ops", "failover-state", "state.json", []byte("{}")))

	cm, err := kubeClient.CoreV1().ConfigMaps("ops").Get(t.Context(), "failover-state", metav1.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "keep me", cm.Data["notes"])
	require.Equal(t, "{}", cm.Data["state.json"])
}

func TestReadConfigMapKey_MissingKey(t *testing.T) {
	t.Parallel()

	kubeClient := fake.NewClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "failover-state", Namespace: "default"},
		Data:       map[string]string{"other": "x"},
	})

	_, err := ReadConfigMapKey(t.Context(), kubeClient, "default", "failover-state", "state.json")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestWriteConfigMapKey_UpdateError(t *testing.T) {
	t.Parallel()

	kubeClient := fake.NewClientset(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "failover-state", Namespace: "default"},
	})
	kubeClient.PrependReactor("update", "configmaps", func(k8stest.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("etcd unavailable")
	})

	err := WriteConfigMapKey(t.Context(), kubeClient, "default", "failover-state", "state.json", []byte("{}"))
	require.ErrorContains(t, err, "etcd unavailable")
}
