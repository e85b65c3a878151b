package postgres

import (
	"context"
	"fmt"
	"time"

	"autocurrency/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

var historyColumns = []string{
	"id",
	"project_id",
	"project_name",
	"currency_name",
	"base_currency",
	"CAST(rate AS TEXT) AS rate",
	"fetched_at",
	"COALESCE(source, '') AS source",
	"COALESCE(currency_id, 0) AS currency_id",
}

type HistoryRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewHistoryRepo(pool Pool, logger *logrus.Logger) *HistoryRepo {
	return &HistoryRepo{
		pool:   pool,
		logger: logger,
	}
}

func buildHistorySelect(q entity.HistoryQuery) sq.SelectBuilder {
	builder := psql.
		Select(historyColumns...).
		From(historyTable).
		Where(sq.Eq{"project_id": q.ProjectID, "base_currency": q.BaseCurrency})

	if q.CurrencyName != "" {
		builder = builder.Where(sq.Eq{"currency_name": q.CurrencyName})
	}
	if q.From != nil {
		builder = builder.Where(sq.GtOrEq{"fetched_at": *q.From})
	}
	if q.To != nil {
		builder = builder.Where(sq.LtOrEq{"fetched_at": *q.To})
	}

	order := entity.SortAsc
	if q.Order == entity.SortDesc {
		order = entity.SortDesc
	}
	builder = builder.OrderBy("fetched_at " + string(order))

	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	if q.Offset > 0 {
		builder = builder.Offset(q.Offset)
	}

	return builder
}

func (r *HistoryRepo) FindByProjectAndBase(ctx context.Context, q entity.HistoryQuery) ([]entity.RateHistory, error) {
	query, args, err := buildHistorySelect(q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"project_id":    q.ProjectID,
			"base_currency": q.BaseCurrency,
		}).Error("Failed to query history")
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var samples []entity.RateHistory
	for rows.Next() {
		var h entity.RateHistory
		var source string
		var currencyID int64
		if err := rows.Scan(
			&h.ID,
			&h.ProjectID,
			&h.ProjectName,
			&h.CurrencyName,
			&h.BaseCurrency,
			&h.Rate,
			&h.FetchedAt,
			&source,
			&currencyID,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Source = nullIfEmpty(source)
		if currencyID != 0 {
			h.CurrencyID = &currencyID
		}
		samples = append(samples, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return samples, nil
}

// Insert returns ErrDuplicate when a sample for the same project, currency
// and timestamp already exists.
func (r *HistoryRepo) Insert(ctx context.Context, sample entity.RateHistory) error {
	query, args, err := psql.
		Insert(historyTable).
		Columns(
			"project_id",
			"project_name",
			"currency_name",
			"base_currency",
			"rate",
			"fetched_at",
			"source",
			"currency_id",
		).
		Values(
			sample.ProjectID,
			sample.ProjectName,
			sample.CurrencyName,
			sample.BaseCurrency,
			sample.Rate,
			sample.FetchedAt,
			sample.Source,
			sample.CurrencyID,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert history: %w", err)
	}

	return nil
}

func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.
		Delete(historyTable).
		Where(sq.Lt{"fetched_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("cutoff", cutoff.Format(time.RFC3339)).Error("Failed to delete old history")
		return 0, fmt.Errorf("delete history: %w", err)
	}

	return tag.RowsAffected(), nil
}
