package zoho

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "purchase-fulfillment/internal/common/http"
)

// CRMClient talks to the Zoho CRM v3 REST API.
type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *httpclient.Client
}

type Contact struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"Email"`
	FirstName string `json:"First_Name,omitempty"`
	LastName  string `json:"Last_Name"`
	Source    string `json:"Lead_Source,omitempty"`
}

// Deal records a closed purchase against a contact.
type Deal struct {
	Name        string  `json:"Deal_Name"`
	Amount      float64 `json:"Amount"`
	Currency    string  `json:"Currency,omitempty"`
	Stage       string  `json:"Stage"`
	ClosingDate string  `json:"Closing_Date"`
	Description string  `json:"Description,omitempty"`
	Contact     *Lookup `json:"Contact_Name,omitempty"`
}

type Lookup struct {
	ID string `json:"id"`
}

type recordResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Action  string `json:"action,omitempty"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func (r recordResponse) firstID(op string) (string, error) {
	if len(r.Data) == 0 {
		return "", fmt.Errorf("%s: no data in response", op)
	}
	if r.Data[0].Status != "success" {
		return "", fmt.Errorf("%s failed: %s (%s)", op, r.Data[0].Message, r.Data[0].Code)
	}
	return r.Data[0].Details.ID, nil
}

func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		http:       httpclient.NewClient("zoho", timeout),
	}
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

// UpsertContact inserts or updates a contact keyed by email and returns its id.
func (c *CRMClient) UpsertContact(ctx context.Context, contact *Contact) (string, error) {
	if contact.LastName == "" {
		// Last_Name is mandatory in Zoho; fall back to the mailbox name.
		contact.LastName = strings.SplitN(contact.Email, "@", 2)[0]
	}

	payload := map[string]interface{}{
		"data":                   []Contact{*contact},
		"duplicate_check_fields": []string{"Email"},
	}

	var resp recordResponse
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/Contacts/upsert", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("failed to upsert contact: %w", err)
	}
	return resp.firstID("contact upsert")
}

// AddTags attaches tags (our segments) to a contact. Existing tags are kept.
func (c *CRMClient) AddTags(ctx context.Context, contactID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	named := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		named = append(named, map[string]string{"name": t})
	}
	payload := map[string]interface{}{
		"tags": named,
		"ids":  []string{contactID},
	}

	var resp recordResponse
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/Contacts/actions/add_tags", c.headers(), payload, &resp); err != nil {
		return fmt.Errorf("failed to tag contact %s: %w", contactID, err)
	}
	_, err := resp.firstID("add tags")
	return err
}

// CreateDeal records a closed-won deal for a contact.
func (c *CRMClient) CreateDeal(ctx context.Context, deal *Deal) (string, error) {
	if deal.Stage == "" {
		deal.Stage = "Closed Won"
	}
	if deal.ClosingDate == "" {
		deal.ClosingDate = time.Now().UTC().Format("2006-01-02")
	}

	payload := map[string]interface{}{"data": []Deal{*deal}}

	var resp recordResponse
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/Deals", c.headers(), payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create deal: %w", err)
	}
	return resp.firstID("deal create")
}
