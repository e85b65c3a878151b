package usecase

import (
	"context"

	"autocurrency/internal/entity"
)

type AutoCurrencyUsecase interface {
	RunFetch(ctx context.Context) error
	RemoveOldHistory(ctx context.Context) (int64, error)
	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, update SettingsUpdate) (*Settings, error)
	SupportedCurrencies(ctx context.Context) ([]SupportedCurrency, error)
	ListProjects(ctx context.Context, userID string) ([]ProjectSummary, error)
	GetHistory(ctx context.Context, filter HistoryFilter) (*HistoryResponse, error)
	ListCustomCurrencies(ctx context.Context) ([]entity.CustomCurrency, error)
	CreateCustomCurrency(ctx context.Context, input CustomCurrencyInput) (*entity.CustomCurrency, error)
	UpdateCustomCurrency(ctx context.Context, id int64, patch CustomCurrencyPatch) (*entity.CustomCurrency, error)
	DeleteCustomCurrency(ctx context.Context, id int64) error
	Resolve(text string) (string, bool)
}

// Rescheduler is implemented by the background scheduler.
type Rescheduler interface {
	Reschedule(hours int) error
}
