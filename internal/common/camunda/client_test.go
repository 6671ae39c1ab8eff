package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED", true},
		{"rpc error: code = AlreadyExists desc = message already exists", false},
		{"rpc error: code = InvalidArgument", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)), tt.msg)
	}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"message with id 'x' already exists", errors.ErrCodeConflict},
		{"context deadline exceeded", errors.ErrCodeTimeout},
		{"rpc error: code = PermissionDenied desc = permission denied", errors.ErrCodeAuthentication},
		{"something else", errors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		err := mapZeebeError(stderrors.New(tt.msg), "publish-message:account-created", 1)
		assert.True(t, errors.HasCode(err, tt.code), tt.msg)
	}
}

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}}

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		res, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, stderrors.New("unavailable")
			}
			return "ok", nil
		}, "op")

		require.NoError(t, err)
		assert.Equal(t, "ok", res)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		calls := 0
		_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("invalid argument")
		}, "op")

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
