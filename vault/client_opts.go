package vault

import (
	"context"
	"errors"
	"log/slog"

	hashivault "github.com/hashicorp/vault/api"
	approleauth "github.com/hashicorp/vault/api/auth/approle"
	kubernetesauth "github.com/hashicorp/vault/api/auth/kubernetes"
)

// kubernetesServiceAccountTokenPath is where Kubernetes mounts the pod's service account token.
const kubernetesServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token" // nolint:gosec // This is detected as a secret

// ClientOption is a function that configures the client.
type ClientOption func(c *client) error

// WithContext sets the context bounding logins and background renewal.
func WithContext(ctx context.Context) ClientOption {
	return func(c *client) error {
		c.ctx = ctx
		return nil
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *client) error {
		c.l = l
		return nil
	}
}

// WithAddr sets the address of the Vault server.
func WithAddr(addr string) ClientOption {
	return func(c *client) error {
		if addr == "" {
			return errors.New("vault address is empty")
		}
		c.config.Address = addr
		return nil
	}
}

// WithConfig replaces the Vault API config.
func WithConfig(config *hashivault.Config) ClientOption {
	return func(c *client) error {
		c.config = config
		return nil
	}
}

// WithKvv2Mount sets the KV v2 mount secrets are read from.
func WithKvv2Mount(mount string) ClientOption {
	return func(c *client) error {
		if mount != "" {
			c.kvv2Mount = mount
		}
		return nil
	}
}

// WithTokenAuth authenticates with a static token.
func WithTokenAuth(token string) ClientOption {
	return func(c *client) error {
		if token == "" {
			return errors.New("token is empty")
		}

		c.renew = false
		c.loginFunc = func(_ context.Context, v *hashivault.Client) (*hashivault.Secret, error) {
			v.SetToken(token)
			return nil, nil
		}
		return nil
	}
}

// WithAppRoleAuth authenticates with an AppRole role and secret ID.
func WithAppRoleAuth(roleID, secretID string) ClientOption {
	return func(c *client) error {
		if roleID == "" {
			return errors.New("role id is empty")
		} else if secretID == "" {
			return errors.New("secret id is empty")
		}

		c.renew = true
		c.loginFunc = func(ctx context.Context, v *hashivault.Client) (*hashivault.Secret, error) {
			auth, err := approleauth.NewAppRoleAuth(roleID, &approleauth.SecretID{FromString: secretID})
			if err != nil {
				return nil, err
			}
			return login(ctx, v, "approle", auth)
		}
		return nil
	}
}

// WithKubernetesServiceAccountAuth authenticates with the pod's service account token.
func WithKubernetesServiceAccountAuth(roleName string) ClientOption {
	return func(c *client) error {
		if roleName == "" {
			return errors.New("role name is empty")
		}

		c.renew = true
		c.loginFunc = func(ctx context.Context, v *hashivault.Client) (*hashivault.Secret, error) {
			auth, err := kubernetesauth.NewKubernetesAuth(
				roleName,
				kubernetesauth.WithServiceAccountTokenPath(kubernetesServiceAccountTokenPath),
			)
			if err != nil {
				return nil, err
			}
			return login(ctx, v, "kubernetes", auth)
		}
		return nil
	}
}
