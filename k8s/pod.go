package k8s

import (
	"os"
	"strings"
	"sync"
)

const (
	serviceAccountPath = "/var/run/secrets/kubernetes.io/serviceaccount"
	namespacePath      = serviceAccountPath + "/namespace"

	envHostname           = "HOSTNAME"
	envServiceAccountName = "SERVICE_ACCOUNT_NAME"
)

var (
	// PodName returns the name of the pod, which Kubernetes sets as the hostname.
	// It is used as the leader election identity.
	PodName = sync.OnceValue(func() string {
		if hostname, err := os.Hostname(); err == nil && hostname != "" {
			return hostname
		}
		return os.Getenv(envHostname)
	})

	// DeployedNamespace returns the namespace of the service account mounted
	// into the pod, or "default" outside a cluster.
	DeployedNamespace = sync.OnceValue(func() string {
		got, err := os.ReadFile(namespacePath)
		if err != nil {
			return "default"
		}
		return strings.TrimSpace(string(got))
	})

	// IsInCluster reports whether a service account namespace is mounted.
	IsInCluster = sync.OnceValue(func() bool {
		_, err := os.Stat(namespacePath)
		return err == nil
	})

	// ServiceAccountName returns the service account used for Vault kubernetes
	// auth. SERVICE_ACCOUNT_NAME is expected to be set through the downward API.
	ServiceAccountName = sync.OnceValue(func() string {
		if name := os.Getenv(envServiceAccountName); name != "" {
			return name
		}
		return "default"
	})
)
