package postgres

import (
	"context"
	"fmt"
	"time"

	"autocurrency/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const maxRetries = 5

func InitDBPool(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for i := 0; i < maxRetries; i++ {
		logger.Infof("DB connection attempt #%d", i+1)

		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err = pgxpool.NewWithConfig(attemptCtx, poolConfig)
		if err != nil {
			logger.Warnf("failed to create DB pool on attempt #%d: %v", i+1, err)
		} else {
			err = pool.Ping(attemptCtx)
			if err == nil {
				cancel()
				logger.Infof("successfully connected to DB on attempt #%d", i+1)
				return pool, nil
			}
			logger.Warnf("failed to ping DB on attempt #%d: %v", i+1, err)
			pool.Close()
		}
		cancel()

		if i < maxRetries-1 {
			wait := time.Second * time.Duration(i+1)
			logger.Infof("waiting %s before next attempt", wait)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("connect to DB: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	logger.Errorf("Failed to create and ping DB pool after %d attempts: %v", maxRetries, err)
	return nil, fmt.Errorf("failed to create and ping DB pool after %d retries: %w", maxRetries, err)
}
