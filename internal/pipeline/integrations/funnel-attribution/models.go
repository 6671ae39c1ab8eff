package funnelattribution

import "time"

// PurchaseDocument is the attribution record indexed per purchase reference.
type PurchaseDocument struct {
	ReferenceID        string    `json:"referenceId"`
	PaymentReferenceID string    `json:"paymentReferenceId,omitempty"`
	FunnelSessionID    string    `json:"funnelSessionId,omitempty"`
	EventType          string    `json:"eventType"`
	AmountMinorUnits   int64     `json:"amountMinorUnits"`
	Currency           string    `json:"currency"`
	HasOrderBump       bool      `json:"hasOrderBump"`
	Source             string    `json:"source"`
	UTMSource          string    `json:"utmSource,omitempty"`
	UTMCampaign        string    `json:"utmCampaign,omitempty"`
	RecordedAt         time.Time `json:"recordedAt"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "referenceId":        { "type": "keyword" },
      "paymentReferenceId": { "type": "keyword" },
      "funnelSessionId":    { "type": "keyword" },
      "eventType":          { "type": "keyword" },
      "amountMinorUnits":   { "type": "long" },
      "currency":           { "type": "keyword" },
      "hasOrderBump":       { "type": "boolean" },
      "source":             { "type": "keyword" },
      "utmSource":          { "type": "keyword" },
      "utmCampaign":        { "type": "keyword" },
      "recordedAt":         { "type": "date" }
    }
  }
}`
