package worker

// alert_worker.go
// Processes variance alert jobs from QueueAlerts: stock variances past the
// configured threshold, justified cash variances and flagged delivery
// compartments all end up here as supervision emails.

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/briceletutour/AlcomV4-sub002/internal/infra"
)

// Alert kinds.
const (
	AlertStockVariance    = "stock_variance"
	AlertCashVariance     = "cash_variance"
	AlertDeliveryVariance = "delivery_variance"
)

// AlertPayload is the job envelope sent to QueueAlerts.
type AlertPayload struct {
	Kind      string `json:"kind"`
	StationID string `json:"station_id"`
	ShiftID   string `json:"shift_id,omitempty"`
	Delivery  string `json:"delivery_id,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// AlertWorker sends variance alerts to the supervision mailbox through the
// SMTP circuit breaker. A returned error re-enqueues the job.
type AlertWorker struct {
	mailer    *infra.Mailer
	cb        *infra.CircuitBreaker
	recipient string
}

func NewAlertWorker(mailer *infra.Mailer, cb *infra.CircuitBreaker, recipient string) *AlertWorker {
	return &AlertWorker{mailer: mailer, cb: cb, recipient: recipient}
}

func (w *AlertWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload AlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return nil // malformed payloads never succeed — don't retry
	}
	if w.recipient == "" {
		log.Warn().Str("kind", payload.Kind).Msg("alert_worker: no recipient configured — skipping")
		return nil
	}

	err := w.cb.Execute(func() error {
		return w.mailer.SendAlert(w.recipient, payload.Subject, payload.Body)
	})
	if err != nil {
		log.Error().Err(err).Str("kind", payload.Kind).Msg("alert_worker: failed to send alert")
		return err
	}

	log.Info().
		Str("kind", payload.Kind).
		Str("station_id", payload.StationID).
		Msg("alert_worker: alert sent")
	return nil
}
