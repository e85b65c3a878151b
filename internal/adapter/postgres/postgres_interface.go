package postgres

import (
	"context"
	"time"

	"autocurrency/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ProjectRepository interface {
	FindAll(ctx context.Context) ([]entity.Project, error)
	FindAllByUser(ctx context.Context, userID string) ([]entity.Project, error)
	Find(ctx context.Context, id string) (*entity.Project, error)
}

type CurrencyRepository interface {
	FindAll(ctx context.Context, projectID string) ([]entity.Currency, error)
	Update(ctx context.Context, currency entity.Currency) error
}

type CustomCurrencyRepository interface {
	FindAll(ctx context.Context) ([]entity.CustomCurrency, error)
	Find(ctx context.Context, id int64) (*entity.CustomCurrency, error)
	Insert(ctx context.Context, currency *entity.CustomCurrency) error
	Update(ctx context.Context, currency entity.CustomCurrency) error
	Delete(ctx context.Context, id int64) error
}

type HistoryRepository interface {
	FindByProjectAndBase(ctx context.Context, q entity.HistoryQuery) ([]entity.RateHistory, error)
	Insert(ctx context.Context, sample entity.RateHistory) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type ConfigRepository interface {
	GetString(ctx context.Context, key, def string) (string, error)
	SetString(ctx context.Context, key, value string) error
	GetInt(ctx context.Context, key string, def int) (int, error)
	SetInt(ctx context.Context, key string, value int) error
	SetMany(ctx context.Context, values map[string]string) error
}

type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}
