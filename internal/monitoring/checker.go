package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/config"
)

// Checker periodically evaluates recent import batches and raises alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting import alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and sends any alerts it triggers. It returns
// the number of alerts sent. A window without batches is not evaluated.
func (c *Checker) Check(ctx context.Context) int {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect batch metrics", zap.Error(err))
		return 0
	}

	log.Debug("monitoring: import batches in window",
		zap.Int("batches", snap.BatchTotal),
		zap.Int("succeeded", snap.BatchSucceeded),
		zap.Int("partial", snap.BatchPartial),
		zap.Int("failed", snap.BatchFailed),
		zap.Int("items_imported", snap.ItemsImported),
		zap.Int("item_errors", snap.ItemErrors),
		zap.Any("errors_by_kind", snap.ErrorsByKind),
	)
	if snap.BatchTotal == 0 {
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: import alerts raised",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.Float64("batch_fail_rate", snap.BatchFailRate),
		zap.Float64("item_error_rate", snap.ItemErrorRate),
	)
	return sent
}
