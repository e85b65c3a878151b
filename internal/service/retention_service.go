package service

import (
	"context"
	"fmt"
	"time"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/metrics"

	"github.com/sirupsen/logrus"
)

type RetentionService struct {
	history  postgres.HistoryRepository
	settings postgres.ConfigRepository
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

func NewRetentionService(history postgres.HistoryRepository, settings postgres.ConfigRepository, m *metrics.Metrics, logger *logrus.Logger) *RetentionService {
	return &RetentionService{
		history:  history,
		settings: settings,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// RemoveOldHistory deletes samples older than retention_days. A retention of
// zero keeps everything.
func (r *RetentionService) RemoveOldHistory(ctx context.Context) (int64, error) {
	days, err := r.settings.GetInt(ctx, postgres.KeyRetentionDays, DefaultRetentionDays)
	if err != nil {
		return 0, fmt.Errorf("read retention days: %w", err)
	}
	if days <= 0 {
		r.logger.Debug("History retention disabled, nothing to prune")
		return 0, nil
	}

	cutoff := r.now().UTC().AddDate(0, 0, -days)
	deleted, err := r.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	r.metrics.HistoryRowsPruned.Add(float64(deleted))
	r.logger.WithFields(logrus.Fields{
		"retention_days": days,
		"cutoff":         cutoff.Format(time.RFC3339),
		"deleted":        deleted,
	}).Info("Pruned rate history")

	return deleted, nil
}
