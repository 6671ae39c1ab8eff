package funnelattribution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

// Tracker records purchases against their funnel session for the dashboard.
// Documents are keyed by reference id, so a redelivery overwrites the same
// document instead of double counting.
type Tracker struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(client *elasticsearch.Client, config *Config, log logger.Logger) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Tracker{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"integration": models.IntegrationAttribution}),
		now:    time.Now,
	}
}

func (t *Tracker) Name() string {
	return models.IntegrationAttribution
}

// EnsureIndex creates the attribution index with its mapping when missing.
func (t *Tracker) EnsureIndex(ctx context.Context) error {
	req := esapi.IndicesCreateRequest{
		Index: t.config.Index,
		Body:  strings.NewReader(indexMapping),
	}
	res, err := req.Do(ctx, t.client)
	if err != nil {
		return errors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if res.StatusCode == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return errors.NewExternalServiceError("elasticsearch", fmt.Errorf("create index %s: %s: %s", t.config.Index, res.Status(), body))
	}
	return nil
}

// RecordPurchase indexes the purchase. It only needs the reference, amount
// and bump flag; the rest is dashboard context.
func (t *Tracker) RecordPurchase(ctx context.Context, p *models.Purchase) error {
	doc := PurchaseDocument{
		ReferenceID:        p.Event.ExternalReferenceID,
		PaymentReferenceID: p.Event.PaymentReferenceID,
		FunnelSessionID:    p.Metadata.FunnelSessionID,
		EventType:          string(p.Event.SourceEventType),
		AmountMinorUnits:   p.Event.AmountMinorUnits,
		Currency:           p.Event.Currency,
		HasOrderBump:       p.Metadata.IncludeOrderBump,
		Source:             string(p.Metadata.Source),
		UTMSource:          p.Metadata.UTMSource,
		UTMCampaign:        p.Metadata.UTMCampaign,
		RecordedAt:         t.now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewIntegrationError(t.Name(), fmt.Errorf("encode document: %w", err))
	}

	req := esapi.IndexRequest{
		Index:      t.config.Index,
		DocumentID: doc.ReferenceID,
		Body:       bytes.NewReader(body),
		Refresh:    t.config.Refresh,
	}
	res, err := req.Do(ctx, t.client)
	if err != nil {
		return errors.NewIntegrationError(t.Name(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return errors.NewIntegrationError(t.Name(), fmt.Errorf("index %s: %s: %s", doc.ReferenceID, res.Status(), msg))
	}

	t.logger.Debug("Attribution recorded", map[string]interface{}{
		"referenceId":     doc.ReferenceID,
		"funnelSessionId": doc.FunnelSessionID,
		"hasOrderBump":    doc.HasOrderBump,
	})
	return nil
}
