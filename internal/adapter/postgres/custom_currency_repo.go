package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autocurrency/internal/entity"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var customColumns = []string{
	"id",
	"code",
	"COALESCE(symbol, '') AS symbol",
	"api_endpoint",
	"COALESCE(api_key, '') AS api_key",
	"json_path",
}

type CustomCurrencyRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewCustomCurrencyRepo(pool Pool, logger *logrus.Logger) *CustomCurrencyRepo {
	return &CustomCurrencyRepo{
		pool:   pool,
		logger: logger,
	}
}

func (r *CustomCurrencyRepo) FindAll(ctx context.Context) ([]entity.CustomCurrency, error) {
	query, args, err := psql.
		Select(customColumns...).
		From(customTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query custom currencies")
		return nil, fmt.Errorf("query custom currencies: %w", err)
	}
	defer rows.Close()

	var result []entity.CustomCurrency
	for rows.Next() {
		var c entity.CustomCurrency
		if err := rows.Scan(&c.ID, &c.Code, &c.Symbol, &c.APIEndpoint, &c.APIKey, &c.JSONPath); err != nil {
			return nil, fmt.Errorf("scan custom currency: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custom currencies: %w", err)
	}

	return result, nil
}

func (r *CustomCurrencyRepo) Find(ctx context.Context, id int64) (*entity.CustomCurrency, error) {
	query, args, err := psql.
		Select(customColumns...).
		From(customTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var c entity.CustomCurrency
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.Code, &c.Symbol, &c.APIEndpoint, &c.APIKey, &c.JSONPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.WithError(err).WithField("custom_currency_id", id).Error("Failed to query custom currency")
		return nil, fmt.Errorf("query custom currency: %w", err)
	}

	return &c, nil
}

func (r *CustomCurrencyRepo) Insert(ctx context.Context, currency *entity.CustomCurrency) error {
	query, args, err := psql.
		Insert(customTable).
		Columns("code", "symbol", "api_endpoint", "api_key", "json_path").
		Values(
			strings.ToUpper(currency.Code),
			nullIfEmpty(currency.Symbol),
			currency.APIEndpoint,
			nullIfEmpty(currency.APIKey),
			currency.JSONPath,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&currency.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.logger.WithError(err).WithField("code", currency.Code).Error("Failed to insert custom currency")
		return fmt.Errorf("insert custom currency: %w", err)
	}
	currency.Code = strings.ToUpper(currency.Code)

	r.logger.WithFields(logrus.Fields{
		"custom_currency_id": currency.ID,
		"code":               currency.Code,
	}).Info("Created custom currency")
	return nil
}

func (r *CustomCurrencyRepo) Update(ctx context.Context, currency entity.CustomCurrency) error {
	query, args, err := psql.
		Update(customTable).
		Set("code", strings.ToUpper(currency.Code)).
		Set("symbol", nullIfEmpty(currency.Symbol)).
		Set("api_endpoint", currency.APIEndpoint).
		Set("api_key", nullIfEmpty(currency.APIKey)).
		Set("json_path", currency.JSONPath).
		Where(sq.Eq{"id": currency.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.logger.WithError(err).WithField("custom_currency_id", currency.ID).Error("Failed to update custom currency")
		return fmt.Errorf("update custom currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *CustomCurrencyRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.
		Delete(customTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("custom_currency_id", id).Error("Failed to delete custom currency")
		return fmt.Errorf("delete custom currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.WithField("custom_currency_id", id).Info("Deleted custom currency")
	return nil
}
