package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
)

func TestDoJSON(t *testing.T) {
	t.Run("round trips json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			w.Header().Set("Location", "/things/7")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
		}))
		defer server.Close()

		var out map[string]string
		resp, err := NewClient("vendor", time.Second).DoJSON(context.Background(), http.MethodPost, server.URL,
			map[string]string{"Authorization": "Bearer tok"}, map[string]string{"name": "ada"}, &out)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "/things/7", resp.Header.Get("Location"))
		assert.Equal(t, "ada", out["echo"])
	})

	t.Run("undecodable body is a non-retryable external error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer server.Close()

		var out map[string]string
		_, err := NewClient("vendor", time.Second).DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, &out)

		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})
}

func TestDoJSON_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      errors.ErrorCode
		retryable bool
	}{
		{"conflict", http.StatusConflict, errors.ErrCodeConflict, false},
		{"not found", http.StatusNotFound, errors.ErrCodeResourceNotFound, false},
		{"unauthorized", http.StatusUnauthorized, errors.ErrCodeAuthentication, false},
		{"forbidden", http.StatusForbidden, errors.ErrCodeAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, errors.ErrCodeExternalService, true},
		{"unavailable", http.StatusServiceUnavailable, errors.ErrCodeExternalService, true},
		{"bad gateway", http.StatusBadGateway, errors.ErrCodeExternalService, true},
		{"unprocessable", http.StatusUnprocessableEntity, errors.ErrCodeExternalService, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream says no"))
			}))
			defer server.Close()

			resp, err := NewClient("vendor", time.Second).DoJSON(context.Background(), http.MethodGet, server.URL+"/things", nil, nil, nil)

			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, tt.status, stdErr.Metadata["statusCode"])
			assert.Contains(t, stdErr.Details, "upstream says no")
			assert.Contains(t, stdErr.Details, "/things")
		})
	}
}

func TestDoJSON_TransportFailures(t *testing.T) {
	t.Run("client timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		_, err := NewClient("vendor", 20*time.Millisecond).DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeTimeout), "got %v", err)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := NewClient("vendor", time.Second).DoJSON(context.Background(), http.MethodGet, addr, nil, nil, nil)

		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeExternalService, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		_ = json.NewEncoder(w).Encode(map[string]string{"grant": r.Form.Get("grant_type")})
	}))
	defer server.Close()

	var out map[string]string
	_, err := NewClient("idp", time.Second).PostForm(context.Background(), server.URL, nil,
		url.Values{"grant_type": {"client_credentials"}}, &out)

	require.NoError(t, err)
	assert.Equal(t, "client_credentials", out["grant"])
}
