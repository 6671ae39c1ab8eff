// Package meta sends server-side conversion events to the Meta Conversions API.
package meta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "purchase-fulfillment/internal/common/http"
)

type ConversionsClient struct {
	baseURL       string
	apiVersion    string
	pixelID       string
	accessToken   string
	testEventCode string
	http          *httpclient.Client
}

type Event struct {
	EventName    string     `json:"event_name"`
	EventTime    int64      `json:"event_time"`
	EventID      string     `json:"event_id,omitempty"`
	ActionSource string     `json:"action_source"`
	UserData     UserData   `json:"user_data"`
	CustomData   CustomData `json:"custom_data"`
}

// UserData identifiers must already be hashed with HashIdentifier, except the
// click ids, IP and user agent which Meta expects in the clear.
type UserData struct {
	Email           []string `json:"em,omitempty"`
	FirstName       []string `json:"fn,omitempty"`
	LastName        []string `json:"ln,omitempty"`
	ExternalID      []string `json:"external_id,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
	FBC             string   `json:"fbc,omitempty"`
	FBP             string   `json:"fbp,omitempty"`
}

type CustomData struct {
	Currency    string   `json:"currency"`
	Value       float64  `json:"value"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	OrderID     string   `json:"order_id,omitempty"`
	NumItems    int      `json:"num_items,omitempty"`
}

type eventsResponse struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
}

func NewConversionsClient(baseURL, apiVersion, pixelID, accessToken, testEventCode string, timeout time.Duration) *ConversionsClient {
	return &ConversionsClient{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		apiVersion:    apiVersion,
		pixelID:       pixelID,
		accessToken:   accessToken,
		testEventCode: testEventCode,
		http:          httpclient.NewClient("meta", timeout),
	}
}

// Send posts events and checks that Meta acknowledged all of them.
func (c *ConversionsClient) Send(ctx context.Context, events ...Event) error {
	if c.pixelID == "" || c.accessToken == "" {
		return fmt.Errorf("meta conversions client is not configured")
	}

	payload := map[string]interface{}{"data": events}
	if c.testEventCode != "" {
		payload["test_event_code"] = c.testEventCode
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.baseURL, c.apiVersion, url.PathEscape(c.pixelID), url.QueryEscape(c.accessToken))

	var resp eventsResponse
	if _, err := c.http.DoJSON(ctx, http.MethodPost, endpoint, nil, payload, &resp); err != nil {
		return fmt.Errorf("failed to send conversion events: %w", err)
	}
	if resp.EventsReceived != len(events) {
		return fmt.Errorf("meta received %d of %d events (trace %s)", resp.EventsReceived, len(events), resp.FBTraceID)
	}
	return nil
}

// HashIdentifier normalizes and SHA-256 hashes a customer identifier.
func HashIdentifier(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
