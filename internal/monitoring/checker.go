package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker collects run metrics and raises alerts, either once or on a ticker.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates an alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Report is the outcome of one check.
type Report struct {
	Snapshot *MetricsSnapshot `json:"snapshot"`
	Alerts   []Alert          `json:"alerts"`
	Sent     int              `json:"sent"`
}

// Check collects a snapshot over the configured lookback window, evaluates
// it, and delivers any alerts to the webhook.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	snap, err := c.collector.Collect(ctx, c.lookbackHours())
	if err != nil {
		return nil, err
	}
	alerts := c.alerter.Evaluate(snap)
	return &Report{
		Snapshot: snap,
		Alerts:   alerts,
		Sent:     c.alerter.SendAlerts(ctx, alerts),
	}, nil
}

// Run checks on every tick until ctx is canceled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.lookbackHours()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			report, err := c.Check(ctx)
			if err != nil {
				log.Error("monitoring: check failed", zap.Error(err))
				continue
			}
			if len(report.Alerts) == 0 {
				log.Debug("monitoring: no alerts triggered",
					zap.Int("runs", report.Snapshot.RunsTotal),
				)
				continue
			}
			log.Info("monitoring: alert check complete",
				zap.Int("alerts_triggered", len(report.Alerts)),
				zap.Int("alerts_sent", report.Sent),
			)
		}
	}
}

func (c *Checker) lookbackHours() int {
	if c.cfg.LookbackWindowHours <= 0 {
		return 24
	}
	return c.cfg.LookbackWindowHours
}
