// Package monitoring tracks import batch outcomes and raises webhook alerts
// when failure rates cross configured thresholds.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBatchFailureRate AlertType = "batch_failure_rate"
	AlertItemErrorRate    AlertType = "item_error_rate"
)

const (
	minBatches = 5
	minItems   = 10
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its alert.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.FailureRateThreshold > 0 && snap.BatchTotal >= minBatches && snap.BatchFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertBatchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Import batch failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d batches in last %dh)",
				snap.BatchFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.BatchFailed, snap.BatchTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.BatchFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.BatchFailed,
				"batches":      snap.BatchTotal,
			},
			Timestamp: now,
		})
	}

	items := snap.ItemsImported + snap.ItemErrors
	if a.cfg.ItemErrorRateThreshold > 0 && items >= minItems && snap.ItemErrorRate > a.cfg.ItemErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertItemErrorRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Market area error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d items in last %dh)",
				snap.ItemErrorRate*100, a.cfg.ItemErrorRateThreshold*100,
				snap.ItemErrors, items, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate":     snap.ItemErrorRate,
				"threshold":      a.cfg.ItemErrorRateThreshold,
				"errors_by_kind": snap.ErrorsByKind,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
