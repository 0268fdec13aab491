package vault

import (
	"context"
	"fmt"

	hashivault "github.com/hashicorp/vault/api"
)

type (
	// SecretRepository reads a single secret.
	SecretRepository interface {
		// GetKvSecretV2 returns the secret from the KV v2 mount.
		GetKvSecretV2(ctx context.Context) (*hashivault.KVSecret, error)

		// GetString returns one string field of the KV v2 secret.
		GetString(ctx context.Context, key string) (string, error)
	}

	// PathOption configures a SecretPath.
	PathOption func(p *SecretPath)

	// SecretPath represents a path to a secret in Vault.
	SecretPath struct {
		client  Client
		mount   string
		prefix  string
		name    string
		version uint
	}
)

// WithPrefix places the secret under prefix.
func WithPrefix(prefix string) PathOption {
	return func(p *SecretPath) {
		p.prefix = prefix
	}
}

// WithMount reads the secret from mount instead of the client's default.
func WithMount(mount string) PathOption {
	return func(p *SecretPath) {
		p.mount = mount
	}
}

// WithVersion pins the secret version. Zero reads the latest.
func WithVersion(version uint) PathOption {
	return func(p *SecretPath) {
		p.version = version
	}
}

func (c *SecretPath) path() string {
	if c.prefix != "" {
		return fmt.Sprintf("%s/%s", c.prefix, c.name)
	}
	return c.name
}

// GetKvSecretV2 retrieves a versioned secret from the path.
func (c *SecretPath) GetKvSecretV2(ctx context.Context) (*hashivault.KVSecret, error) {
	version, err := uintToInt(c.version)
	if err != nil {
		return nil, fmt.Errorf("incompatible version: %w", err)
	}

	kv := c.client.Client().KVv2(c.mount)

	var secret *hashivault.KVSecret
	if version == 0 {
		secret, err = kv.Get(ctx, c.path())
	} else {
		secret, err = kv.GetVersion(ctx, c.path(), version)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read secret %s: %w", c.path(), err)
	} else if secret == nil {
		return nil, ErrSecretNotFound
	}
	return secret, nil
}

// GetString retrieves the string stored under key.
func (c *SecretPath) GetString(ctx context.Context, key string) (string, error) {
	secret, err := c.GetKvSecretV2(ctx)
	if err != nil {
		return "", err
	}

	raw, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrKeyNotFound, key, c.path())
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("key %s in %s is a %T, not a string", key, c.path(), raw)
	}
	return value, nil
}

func uintToInt(u uint) (int, error) {
	if u > uint(^uint(0)>>1) {
		return 0, fmt.Errorf("uint value %d overflows int", u)
	}
	return int(u), nil
}
