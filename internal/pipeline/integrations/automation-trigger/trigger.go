package automationtrigger

import (
	"context"
	"fmt"

	"purchase-fulfillment/internal/common/dispatch"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/metrics"
	"purchase-fulfillment/internal/models"
)

type Submitter interface {
	Submit(t dispatch.Task) bool
}

// Trigger hands the grant's automation signals to the background dispatcher.
// Sync returns as soon as the signals are queued; delivery outcomes are only
// logged and counted.
type Trigger struct {
	engine    Engine
	submitter Submitter
	logger    logger.Logger
}

func NewTrigger(engine Engine, submitter Submitter, log logger.Logger) *Trigger {
	return &Trigger{
		engine:    engine,
		submitter: submitter,
		logger:    log.WithFields(map[string]interface{}{"integration": models.IntegrationAutomation}),
	}
}

func (t *Trigger) Name() string {
	return models.IntegrationAutomation
}

// Sync queues one task per signal. A purchase without a grant, or whose grant
// emitted no signals, is skipped.
func (t *Trigger) Sync(_ context.Context, p *models.Purchase) error {
	if p.Grant == nil || len(p.Grant.Signals) == 0 {
		return models.ErrNothingToSync
	}

	var dropped []string
	for _, signal := range p.Grant.Signals {
		accepted := t.submitter.Submit(dispatch.Task{
			Name: fmt.Sprintf("%s:%s", models.IntegrationAutomation, signal.DedupKey()),
			Run: func(ctx context.Context) error {
				return t.deliver(ctx, signal)
			},
		})
		if !accepted {
			metrics.AutomationSignals.WithLabelValues(string(signal.Type), metrics.StatusDropped).Inc()
			dropped = append(dropped, string(signal.Type))
		}
	}

	if len(dropped) > 0 {
		return errors.NewAutomationTriggerError(fmt.Sprint(dropped), fmt.Errorf("dispatcher rejected %d signal(s)", len(dropped)))
	}
	return nil
}

func (t *Trigger) deliver(ctx context.Context, signal models.AutomationSignal) error {
	var err error
	switch signal.Type {
	case models.SignalNewAccount:
		err = t.engine.OnNewAccount(ctx, signal.AccountID)
	case models.SignalPurchase:
		err = t.engine.OnPurchase(ctx, signal.AccountID, signal.ProductID, signal.ProductName)
	default:
		err = fmt.Errorf("unknown signal type %q", signal.Type)
	}

	if err != nil {
		metrics.AutomationSignals.WithLabelValues(string(signal.Type), metrics.StatusFailure).Inc()
		return errors.NewAutomationTriggerError(string(signal.Type), err)
	}

	metrics.AutomationSignals.WithLabelValues(string(signal.Type), metrics.StatusSuccess).Inc()
	t.logger.Debug("Automation signal delivered", map[string]interface{}{
		"signal":    signal.Type,
		"accountId": signal.AccountID,
	})
	return nil
}
