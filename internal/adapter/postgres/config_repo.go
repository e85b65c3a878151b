package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const AppID = "autocurrency"

const (
	KeyCronInterval  = "cron_interval"
	KeyRetentionDays = "retention_days"
	KeyLastUpdate    = "last_update"
)

const upsertConfigSuffix = "ON CONFLICT (app_id, config_key) DO UPDATE SET config_value = EXCLUDED.config_value"

// ConfigRepo stores runtime settings as string values namespaced by AppID.
type ConfigRepo struct {
	pool   Pool
	logger *logrus.Logger
}

func NewConfigRepo(pool Pool, logger *logrus.Logger) *ConfigRepo {
	return &ConfigRepo{
		pool:   pool,
		logger: logger,
	}
}

func (r *ConfigRepo) GetString(ctx context.Context, key, def string) (string, error) {
	query, args, err := psql.
		Select("config_value").
		From(configTable).
		Where(sq.Eq{"app_id": AppID, "config_key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return def, fmt.Errorf("build select: %w", err)
	}

	var value string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return def, nil
		}
		r.logger.WithError(err).WithField("key", key).Error("Failed to read config value")
		return def, fmt.Errorf("read config %s: %w", key, err)
	}

	return value, nil
}

func (r *ConfigRepo) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := r.GetString(ctx, key, "")
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		r.logger.WithField("key", key).Warnf("Config value %q is not an integer, using default %d", raw, def)
		return def, nil
	}
	return n, nil
}

func upsertConfig(key, value string) (string, []any, error) {
	return psql.
		Insert(configTable).
		Columns("app_id", "config_key", "config_value").
		Values(AppID, key, value).
		Suffix(upsertConfigSuffix).
		ToSql()
}

func (r *ConfigRepo) SetString(ctx context.Context, key, value string) error {
	query, args, err := upsertConfig(key, value)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("Failed to write config value")
		return fmt.Errorf("write config %s: %w", key, err)
	}
	return nil
}

func (r *ConfigRepo) SetInt(ctx context.Context, key string, value int) error {
	return r.SetString(ctx, key, strconv.Itoa(value))
}

// SetMany writes all values in one transaction; keys are applied in sorted order.
func (r *ConfigRepo) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.WithError(err).Error("Failed to begin transaction")
		return fmt.Errorf("begin tx: %w", err)
	}

	batch := &pgx.Batch{}
	for _, k := range keys {
		query, args, err := upsertConfig(k, values[k])
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("build upsert for %s: %w", k, err)
		}
		batch.Queue(query, args...)
	}

	br := tx.SendBatch(ctx, batch)

	var batchErrs error
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			batchErrs = multierr.Append(batchErrs, err)
			r.logger.WithError(err).Errorf("Failed batch exec for config key %s", keys[i])
		}
	}

	if err := br.Close(); err != nil {
		batchErrs = multierr.Append(batchErrs, err)
		r.logger.WithError(err).Error("Failed to close batch results")
	}

	if batchErrs != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.WithError(rbErr).Error("Failed to rollback tx after batch errors")
		}
		return fmt.Errorf("batch exec/close errors: %w", batchErrs)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithError(err).Error("Failed to commit tx")
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
