package service

import (
	"context"

	"autocurrency/internal/entity"
)

type CurrencyService interface {
	FetchCurrencyRates(ctx context.Context) error
	GetCurrencyName(text string) (string, bool)
	FindAllCurrencies(ctx context.Context, projectID string) ([]entity.Currency, error)
}

type HistoryRecorder interface {
	WriteHistory(ctx context.Context, rec HistoryRecord)
}

type HistoryPruner interface {
	RemoveOldHistory(ctx context.Context) (int64, error)
}
