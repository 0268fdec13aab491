package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	hashivault "github.com/hashicorp/vault/api"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// loginTimeout bounds a single login request.
const loginTimeout = 5 * time.Second

// login authenticates with method and sets the resulting token on the client.
func login(ctx context.Context, client *hashivault.Client, name string, method hashivault.AuthMethod) (*hashivault.Secret, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	authInfo, err := client.Auth().Login(ctx, method)
	if err != nil {
		return nil, fmt.Errorf("unable to login with %s auth method: %w", name, err)
	}
	if authInfo == nil || authInfo.Auth == nil {
		return nil, errors.New("no auth info was returned after login")
	}

	return authInfo, nil
}

func (c *client) renewAuthInfo() {
	err := RenewLease(c.ctx, c.l, c, "auth", c.authCredentials, func() (*hashivault.Secret, error) {
		authInfo, err := c.loginFunc(c.ctx, c.v)
		if err != nil {
			return nil, fmt.Errorf("unable to renew auth info: %w", err)
		}

		c.authCredentials = authInfo
		return authInfo, nil
	})
	if err != nil {
		c.l.Error("unable to renew auth info", slog.Any(logging.KeyError, err))
	}
}
