// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"purchase-fulfillment/internal/common/errors"
	httpclient "purchase-fulfillment/internal/common/http"
)

// KeycloakClient provisions member login identities in a Keycloak realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	http         *httpclient.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpclient.NewClient("keycloak", 30*time.Second),
	}
}

// token returns a cached client-credentials token, refreshing it 30s before expiry.
func (k *KeycloakClient) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(30*time.Second).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	var tokenResp TokenResponse
	if _, err := k.http.PostForm(ctx, tokenURL, nil, data, &tokenResp); err != nil {
		return "", err
	}
	if tokenResp.AccessToken == "" {
		return "", errors.NewAuthenticationError("keycloak token response carried no access_token")
	}

	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

func (k *KeycloakClient) bearer(ctx context.Context) (map[string]string, error) {
	token, err := k.token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// CreateUser creates a user. An existing user with the same email or username
// yields a RESOURCE_CONFLICT error.
func (k *KeycloakClient) CreateUser(ctx context.Context, user *User) (*User, error) {
	headers, err := k.bearer(ctx)
	if err != nil {
		return nil, err
	}

	if user.Username == "" {
		user.Username = user.Email
	}

	userURL := fmt.Sprintf("%s/admin/realms/%s/users", k.baseURL, k.realm)
	resp, err := k.http.DoJSON(ctx, http.MethodPost, userURL, headers, user, nil)
	if err != nil {
		if stdErr, ok := errors.AsStandardError(err); ok {
			return nil, stdErr.WithMetadata("email", user.Email)
		}
		return nil, err
	}

	// 201 carries an empty body; the id is the last segment of Location.
	if location := resp.Header.Get("Location"); location != "" {
		parts := strings.Split(location, "/")
		user.ID = parts[len(parts)-1]
	}

	return user, nil
}

// GetUserByEmail looks a user up by exact email.
func (k *KeycloakClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	headers, err := k.bearer(ctx)
	if err != nil {
		return nil, err
	}

	searchURL := fmt.Sprintf("%s/admin/realms/%s/users?email=%s&exact=true", k.baseURL, k.realm, url.QueryEscape(email))

	var users []User
	if _, err := k.http.DoJSON(ctx, http.MethodGet, searchURL, headers, nil, &users); err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, errors.NewResourceNotFoundError("keycloak", fmt.Sprintf("no user with email %s", email))
	}

	return &users[0], nil
}

// EnsureUser creates the user or, when the realm already has one for the
// email, returns the existing user. created reports which happened.
func (k *KeycloakClient) EnsureUser(ctx context.Context, email, fullName string) (user *User, created bool, err error) {
	first, last := SplitName(fullName)
	user, err = k.CreateUser(ctx, &User{
		Email:         email,
		Username:      email,
		FirstName:     first,
		LastName:      last,
		Enabled:       true,
		EmailVerified: true,
	})
	if err == nil {
		return user, true, nil
	}
	if !errors.HasCode(err, errors.ErrCodeConflict) {
		return nil, false, err
	}

	existing, lookupErr := k.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		return nil, false, lookupErr
	}
	return existing, false, nil
}

// SplitName splits a display name into first and last parts on the first space.
func SplitName(fullName string) (first, last string) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "", ""
	}
	parts := strings.SplitN(fullName, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
