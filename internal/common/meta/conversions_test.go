package meta

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionsClient_Send(t *testing.T) {
	t.Run("posts events to the pixel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v19.0/px-1/events", r.URL.Path)
			assert.Equal(t, "tok", r.URL.Query().Get("access_token"))

			var body struct {
				Data          []Event `json:"data"`
				TestEventCode string  `json:"test_event_code"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Data, 1)
			assert.Equal(t, "Purchase", body.Data[0].EventName)
			assert.Equal(t, "TEST1", body.TestEventCode)

			_ = json.NewEncoder(w).Encode(map[string]interface{}{"events_received": 1})
		}))
		defer server.Close()

		client := NewConversionsClient(server.URL, "v19.0", "px-1", "tok", "TEST1", time.Second)
		err := client.Send(context.Background(), Event{EventName: "Purchase", ActionSource: "website"})
		assert.NoError(t, err)
	})

	t.Run("partial receipt is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"events_received": 0, "fbtrace_id": "abc"})
		}))
		defer server.Close()

		client := NewConversionsClient(server.URL, "v19.0", "px-1", "tok", "", time.Second)
		err := client.Send(context.Background(), Event{EventName: "Purchase"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "abc")
	})

	t.Run("unconfigured client fails fast", func(t *testing.T) {
		client := NewConversionsClient("http://127.0.0.1:1", "v19.0", "", "", "", time.Second)
		assert.Error(t, client.Send(context.Background(), Event{}))
	})
}

func TestHashIdentifier(t *testing.T) {
	// sha256("buyer@example.com")
	want := "6a6c26195c3682faa816966af789717c3bfa834eee6c599d667d2b3429c27cfd"

	assert.Equal(t, want, HashIdentifier("  Buyer@Example.com "))
	assert.Empty(t, HashIdentifier("   "))
}
