// Package shopify is a thin client for the Shopify Admin REST API.
package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "purchase-fulfillment/internal/common/http"
)

type AdminClient struct {
	baseURL     string
	apiVersion  string
	accessToken string
	http        *httpclient.Client
}

type Customer struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Tags      string `json:"tags,omitempty"`
}

type LineItem struct {
	Title    string `json:"title"`
	SKU      string `json:"sku,omitempty"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Order struct {
	ID              int64           `json:"id,omitempty"`
	Name            string          `json:"name,omitempty"`
	Email           string          `json:"email"`
	Currency        string          `json:"currency,omitempty"`
	FinancialStatus string          `json:"financial_status,omitempty"`
	Tags            string          `json:"tags,omitempty"`
	SourceName      string          `json:"source_name,omitempty"`
	Customer        *Customer       `json:"customer,omitempty"`
	LineItems       []LineItem      `json:"line_items"`
	NoteAttributes  []NoteAttribute `json:"note_attributes,omitempty"`
	SendReceipt     bool            `json:"send_receipt"`
}

func NewAdminClient(baseURL, apiVersion, accessToken string, timeout time.Duration) *AdminClient {
	return &AdminClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiVersion:  apiVersion,
		accessToken: accessToken,
		http:        httpclient.NewClient("shopify", timeout),
	}
}

func (c *AdminClient) endpoint(resource string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.apiVersion, resource)
}

func (c *AdminClient) headers() map[string]string {
	return map[string]string{"X-Shopify-Access-Token": c.accessToken}
}

// FindCustomerByEmail returns nil without error when no customer matches.
func (c *AdminClient) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var result struct {
		Customers []Customer `json:"customers"`
	}
	query := url.QueryEscape("email:" + email)
	if _, err := c.http.DoJSON(ctx, http.MethodGet, c.endpoint("customers/search.json?query="+query), c.headers(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	for i := range result.Customers {
		if strings.EqualFold(result.Customers[i].Email, email) {
			return &result.Customers[i], nil
		}
	}
	return nil, nil
}

func (c *AdminClient) CreateCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	var result struct {
		Customer Customer `json:"customer"`
	}
	payload := map[string]interface{}{"customer": customer}
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint("customers.json"), c.headers(), payload, &result); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &result.Customer, nil
}

// FindOrCreateCustomer reuses the store customer for the email when one exists.
func (c *AdminClient) FindOrCreateCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	existing, err := c.FindCustomerByEmail(ctx, customer.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return c.CreateCustomer(ctx, customer)
}

func (c *AdminClient) CreateOrder(ctx context.Context, order *Order) (*Order, error) {
	var result struct {
		Order Order `json:"order"`
	}
	payload := map[string]interface{}{"order": order}
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.endpoint("orders.json"), c.headers(), payload, &result); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &result.Order, nil
}

// FormatPrice renders minor units as a price string with exponent decimal
// places.
func FormatPrice(minorUnits int64, exponent int) string {
	sign := ""
	if minorUnits < 0 {
		sign = "-"
		minorUnits = -minorUnits
	}
	if exponent <= 0 {
		return fmt.Sprintf("%s%d", sign, minorUnits)
	}
	scale := int64(1)
	for i := 0; i < exponent; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%s%d.%0*d", sign, minorUnits/scale, exponent, minorUnits%scale)
}
