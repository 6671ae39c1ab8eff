package routeevent

import "purchase-fulfillment/internal/models"

type Decision string

const (
	DecisionProcess            Decision = "process"
	DecisionIgnoreUnrecognized Decision = "ignored_unrecognized"
	DecisionIgnoreFiltered     Decision = "ignored_filtered"
)

// Result is the router's verdict on one verified event.
type Result struct {
	Decision Decision
	Metadata models.PurchaseMetadata
	// Reason is set for ignored events.
	Reason error
	// Warnings lists metadata fields that failed validation and were dropped.
	Warnings []string
}

func (r *Result) Process() bool {
	return r.Decision == DecisionProcess
}

const metadataSchema = `{
  "type": "object",
  "properties": {
    "customerEmail":    { "type": "string", "maxLength": 320 },
    "customerName":     { "type": "string", "maxLength": 200 },
    "includeOrderBump": { "type": "string", "enum": ["true", "false", "TRUE", "FALSE", "True", "False", ""] },
    "source":           { "type": "string", "enum": ["funnel", "portal", ""] },
    "funnelSessionId":  { "type": "string", "maxLength": 128 },
    "clientIp":         { "type": "string", "maxLength": 64 },
    "userAgent":        { "type": "string", "maxLength": 512 }
  },
  "additionalProperties": { "type": "string" }
}`
