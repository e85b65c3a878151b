package postgres

import (
	"context"
	"fmt"

	"autocurrency/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
)

type CurrencyRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewCurrencyRepo(pool Pool, logger *logrus.Logger) *CurrencyRepo {
	return &CurrencyRepo{
		pool:   pool,
		logger: logger,
	}
}

func (r *CurrencyRepo) FindAll(ctx context.Context, projectID string) ([]entity.Currency, error) {
	query, args, err := psql.
		Select("id", "name", "COALESCE(CAST(exchange_rate AS TEXT), '') AS exchange_rate", "projectid").
		From(currenciesTable).
		Where(sq.Eq{"projectid": projectID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Error("Failed to query currencies")
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []entity.Currency
	for rows.Next() {
		var c entity.Currency
		if err := rows.Scan(&c.ID, &c.Name, &c.ExchangeRate, &c.ProjectID); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currencies: %w", err)
	}

	return currencies, nil
}

func (r *CurrencyRepo) Update(ctx context.Context, currency entity.Currency) error {
	query, args, err := psql.
		Update(currenciesTable).
		Set("name", currency.Name).
		Set("exchange_rate", currency.ExchangeRate).
		Where(sq.Eq{"id": currency.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("currency_id", currency.ID).Error("Failed to update currency")
		return fmt.Errorf("update currency %d: %w", currency.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"currency_id":   currency.ID,
		"name":          currency.Name,
		"exchange_rate": currency.ExchangeRate,
	}).Debug("Updated currency rate")
	return nil
}
