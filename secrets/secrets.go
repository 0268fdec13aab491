// Package secrets resolves the Cloudflare API token from the configured source.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacobbrewer1/cloudflare-failover/config"
	"github.com/jacobbrewer1/cloudflare-failover/vault"
)

// ErrNoToken is returned when a source holds no API token.
var ErrNoToken = errors.New("no cloudflare api token")

// Source resolves the Cloudflare API token.
type Source interface {
	APIToken(ctx context.Context) (string, error)
}

// Static returns a fixed token, usually read from the environment.
type Static string

// APIToken returns the token.
func (s Static) APIToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Vault reads the token from a KV v2 secret.
type Vault struct {
	repo vault.SecretRepository
	key  string
}

// NewVault reads the token stored under key in the secret at path.
func NewVault(vc vault.Client, path, key string) *Vault {
	return &Vault{
		repo: vc.Path(path),
		key:  key,
	}
}

// APIToken reads the token from Vault.
func (v *Vault) APIToken(ctx context.Context) (string, error) {
	token, err := v.repo.GetString(ctx, v.key)
	if err != nil {
		return "", fmt.Errorf("failed to read api token from vault: %w", err)
	}
	if token == "" || config.IsPlaceholder(token) {
		return "", ErrNoToken
	}
	return token, nil
}
