// Package vault reads secrets from HashiCorp Vault and keeps the client's
// login alive for the life of the process.
package vault

import (
	"context"
	"errors"
	"log/slog"

	hashivault "github.com/hashicorp/vault/api"
)

var (
	// ErrSecretNotFound is returned when a secret is not found.
	ErrSecretNotFound = hashivault.ErrSecretNotFound

	// ErrKeyNotFound is returned when a secret exists but lacks the requested key.
	ErrKeyNotFound = errors.New("key not found in secret")

	// ErrInvalidAuth is returned when no auth method was configured.
	ErrInvalidAuth = errors.New("no vault auth method configured")
)

type (
	// ClientGetter exposes the underlying Vault API client.
	ClientGetter interface {
		Client() *hashivault.Client
	}

	// Client provides access to secrets stored in Vault.
	Client interface {
		ClientGetter

		// Path returns the secret stored under name.
		Path(name string, opts ...PathOption) SecretRepository
	}

	// LoginFunc logs in to Vault and returns the auth secret.
	LoginFunc = func(ctx context.Context, v *hashivault.Client) (*hashivault.Secret, error)
)

type client struct {
	ctx       context.Context
	l         *slog.Logger
	kvv2Mount string
	loginFunc LoginFunc
	config    *hashivault.Config

	// renew is false for static tokens, which cannot be renewed by login.
	renew bool

	v               *hashivault.Client
	authCredentials *hashivault.Secret
}

// NewClient creates a logged in Vault client. When the auth method supports
// it, the login is renewed in the background until the context passed with
// WithContext is done.
func NewClient(opts ...ClientOption) (Client, error) {
	c := &client{
		ctx:       context.Background(),
		l:         slog.Default(),
		kvv2Mount: "secret",
		config:    hashivault.DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.loginFunc == nil {
		return nil, ErrInvalidAuth
	}

	v, err := hashivault.NewClient(c.config)
	if err != nil {
		return nil, err
	}
	c.v = v

	authCreds, err := c.loginFunc(c.ctx, c.v)
	if err != nil {
		return nil, err
	}
	c.authCredentials = authCreds

	if c.renew && authCreds != nil && authCreds.Auth != nil && authCreds.Auth.Renewable {
		go c.renewAuthInfo()
	}

	return c, nil
}

// Client returns the Vault API client.
func (c *client) Client() *hashivault.Client {
	return c.v
}

// Path returns the secret path for the given name in the configured KV v2 mount.
func (c *client) Path(name string, opts ...PathOption) SecretRepository {
	p := &SecretPath{
		client: c,
		mount:  c.kvv2Mount,
		name:   name,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
