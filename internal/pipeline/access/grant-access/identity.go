package grantaccess

import (
	"context"

	"purchase-fulfillment/internal/common/auth"
)

// KeycloakIdentities provisions member logins in Keycloak. An existing realm
// user for the email is reused.
type KeycloakIdentities struct {
	client *auth.KeycloakClient
}

func NewKeycloakIdentities(client *auth.KeycloakClient) *KeycloakIdentities {
	return &KeycloakIdentities{client: client}
}

func (k *KeycloakIdentities) EnsureIdentity(ctx context.Context, email, fullName string) (string, error) {
	user, _, err := k.client.EnsureUser(ctx, email, fullName)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
