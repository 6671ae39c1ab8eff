package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
)

type fakeRealm struct {
	tokenStatus  int
	createStatus int
	existing     []User
	tokenCalls   int32
	createCalls  int32
}

func (f *fakeRealm) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/members/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok", ExpiresIn: 300})
	})
	mux.HandleFunc("/admin/realms/members/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPost:
			atomic.AddInt32(&f.createCalls, 1)
			var u User
			require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
			if f.createStatus == http.StatusCreated {
				w.Header().Set("Location", "http://kc/admin/realms/members/users/kc-123")
			}
			w.WriteHeader(f.createStatus)
		case http.MethodGet:
			assert.Equal(t, "true", r.URL.Query().Get("exact"))
			_ = json.NewEncoder(w).Encode(f.existing)
		}
	})
	return mux
}

func TestKeycloakClient_EnsureUser(t *testing.T) {
	t.Run("creates new user", func(t *testing.T) {
		realm := &fakeRealm{createStatus: http.StatusCreated}
		server := httptest.NewServer(realm.handler(t))
		defer server.Close()

		client := NewKeycloakClient(server.URL, "members", "svc", "secret")
		user, created, err := client.EnsureUser(context.Background(), "buyer@example.com", "Ada Lovelace")

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "kc-123", user.ID)
		assert.Equal(t, "Ada", user.FirstName)
		assert.Equal(t, "Lovelace", user.LastName)
	})

	t.Run("conflict resolves existing user", func(t *testing.T) {
		realm := &fakeRealm{
			createStatus: http.StatusConflict,
			existing:     []User{{ID: "kc-existing", Email: "buyer@example.com"}},
		}
		server := httptest.NewServer(realm.handler(t))
		defer server.Close()

		client := NewKeycloakClient(server.URL, "members", "svc", "secret")
		user, created, err := client.EnsureUser(context.Background(), "buyer@example.com", "")

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "kc-existing", user.ID)
		assert.Equal(t, int32(1), atomic.LoadInt32(&realm.tokenCalls), "token is cached across calls")
	})

	t.Run("server error is retryable external error", func(t *testing.T) {
		realm := &fakeRealm{createStatus: http.StatusBadGateway}
		server := httptest.NewServer(realm.handler(t))
		defer server.Close()

		client := NewKeycloakClient(server.URL, "members", "svc", "secret")
		_, _, err := client.EnsureUser(context.Background(), "buyer@example.com", "")

		require.Error(t, err)
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
		assert.True(t, stdErr.Retryable)
		assert.Equal(t, http.StatusBadGateway, stdErr.Metadata["statusCode"])
		assert.Equal(t, "buyer@example.com", stdErr.Metadata["email"])
	})

	t.Run("rejected client credentials is an authentication error", func(t *testing.T) {
		realm := &fakeRealm{tokenStatus: http.StatusUnauthorized, createStatus: http.StatusCreated}
		server := httptest.NewServer(realm.handler(t))
		defer server.Close()

		client := NewKeycloakClient(server.URL, "members", "svc", "secret")
		_, _, err := client.EnsureUser(context.Background(), "buyer@example.com", "")

		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeAuthentication), "got %v", err)
		assert.Equal(t, int32(0), atomic.LoadInt32(&realm.createCalls))
	})

	t.Run("conflict with no matching user is not found", func(t *testing.T) {
		realm := &fakeRealm{createStatus: http.StatusConflict}
		server := httptest.NewServer(realm.handler(t))
		defer server.Close()

		client := NewKeycloakClient(server.URL, "members", "svc", "secret")
		_, _, err := client.EnsureUser(context.Background(), "buyer@example.com", "")

		assert.True(t, errors.HasCode(err, errors.ErrCodeResourceNotFound), "got %v", err)
	})
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"  Ada   Lovelace ", "Ada", "Lovelace"},
		{"Jean Luc Picard", "Jean", "Luc Picard"},
	}
	for _, tt := range tests {
		first, last := SplitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
