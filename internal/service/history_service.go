package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/entity"
	"autocurrency/internal/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	rateScale = 10

	// column widths of autocurrency_history
	maxProjectNameLen = 64
	maxSourceLen      = 255
)

type HistoryRecord struct {
	ProjectID    string
	ProjectName  string
	BaseCurrency string
	CurrencyName string
	Rate         float64
	CurrencyID   int64
	Source       string
}

// HistoryService appends rate samples. Storage keeps second precision, so
// at most one sample per project, currency and second is written.
type HistoryService struct {
	repo    postgres.HistoryRepository
	metrics *metrics.Metrics
	logger  *logrus.Logger
	now     func() time.Time
}

func NewHistoryService(repo postgres.HistoryRepository, m *metrics.Metrics, logger *logrus.Logger) *HistoryService {
	return &HistoryService{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WriteHistory never fails the caller: storage errors are logged.
func (h *HistoryService) WriteHistory(ctx context.Context, rec HistoryRecord) {
	now := h.now().UTC().Truncate(time.Second)
	log := h.logger.WithFields(logrus.Fields{
		"project_id": rec.ProjectID,
		"base":       rec.BaseCurrency,
		"currency":   rec.CurrencyName,
	})

	existing, err := h.repo.FindByProjectAndBase(ctx, entity.HistoryQuery{
		ProjectID:    rec.ProjectID,
		BaseCurrency: rec.BaseCurrency,
		CurrencyName: rec.CurrencyName,
		From:         &now,
		To:           &now,
		Limit:        1,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to probe history, attempting insert anyway")
	} else if len(existing) > 0 {
		log.Debug("History sample already recorded for this timestamp")
		h.metrics.HistoryDuplicates.Inc()
		return
	}

	sample := entity.RateHistory{
		ProjectID:    rec.ProjectID,
		ProjectName:  truncateRunes(rec.ProjectName, maxProjectNameLen),
		CurrencyName: rec.CurrencyName,
		BaseCurrency: rec.BaseCurrency,
		Rate:         FormatRate(rec.Rate),
		FetchedAt:    now,
	}
	if rec.Source != "" {
		source := truncateRunes(rec.Source, maxSourceLen)
		sample.Source = &source
	}
	if rec.CurrencyID != 0 {
		id := rec.CurrencyID
		sample.CurrencyID = &id
	}

	if err := h.repo.Insert(ctx, sample); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			log.Debug("History sample inserted concurrently, skipping")
			h.metrics.HistoryDuplicates.Inc()
			return
		}
		log.WithError(err).Warn("Failed to write history sample")
		return
	}

	h.metrics.HistoryInserted.Inc()
	log.WithField("rate", sample.Rate).Debug("History sample recorded")
}

// FormatRate renders a rate with exactly ten fractional digits.
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate).StringFixed(rateScale)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
