package routeevent

import (
	"fmt"
	"strings"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/validation"
	"purchase-fulfillment/internal/models"
)

const StepName = "route-event"

var schema = validation.MustCompile(metadataSchema)

type Router struct {
	config *Config
}

func NewRouter(config *Config) (*Router, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	return &Router{config: config}, nil
}

// Route decides whether a verified event should be fulfilled.
//
// Checkout sessions are always processed. Payment intents are processed only
// when metadata.product equals the configured discriminator, so the shared
// gateway account's unrelated traffic is acknowledged and dropped.
func (r *Router) Route(event *models.PurchaseEvent) *Result {
	switch event.SourceEventType {
	case models.CheckoutCompleted:
	case models.PaymentSucceeded:
		if event.Metadata[models.MetaProduct] != r.config.ProductDiscriminator {
			return &Result{
				Decision: DecisionIgnoreFiltered,
				Reason:   errors.NewFilteredEventTypeError(event.RawEventType, event.Metadata[models.MetaProduct]),
			}
		}
	default:
		return &Result{
			Decision: DecisionIgnoreUnrecognized,
			Reason:   errors.NewUnrecognizedEventTypeError(event.RawEventType),
		}
	}

	metadata, warnings := r.parseMetadata(event.Metadata)

	return &Result{
		Decision: DecisionProcess,
		Metadata: metadata,
		Warnings: warnings,
	}
}

// parseMetadata builds the typed metadata view. Fields that fail the schema
// are treated as absent.
func (r *Router) parseMetadata(raw map[string]string) (models.PurchaseMetadata, []string) {
	clean := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		clean[k] = strings.TrimSpace(v)
	}

	var warnings []string
	result, err := schema.Validate(clean)
	if err != nil {
		warnings = append(warnings, err.Error())
	} else if !result.Valid {
		for _, e := range result.Errors {
			field := strings.TrimPrefix(e.Field, "(root).")
			warnings = append(warnings, fmt.Sprintf("%s: %s", field, e.Message))
			delete(clean, field)
		}
	}

	get := func(key string) string {
		s, _ := clean[key].(string)
		return s
	}

	meta := models.PurchaseMetadata{
		Product:          get(models.MetaProduct),
		CustomerEmail:    get(models.MetaCustomerEmail),
		CustomerName:     get(models.MetaCustomerName),
		IncludeOrderBump: strings.EqualFold(get(models.MetaIncludeOrderBump), "true"),
		FunnelSessionID:  get(models.MetaFunnelSessionID),
		Source:           models.PurchaseSource(get(models.MetaSource)),
		ClientIP:         get(models.MetaClientIP),
		UserAgent:        get(models.MetaUserAgent),
		FBC:              get(models.MetaFBC),
		FBP:              get(models.MetaFBP),
		UTMSource:        get(models.MetaUTMSource),
		UTMCampaign:      get(models.MetaUTMCampaign),
	}
	if meta.Source == "" {
		meta.Source = r.config.DefaultSource
	}

	return meta, warnings
}
