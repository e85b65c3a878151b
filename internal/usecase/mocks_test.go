package usecase

import (
	"context"
	"testing"
	"time"

	"autocurrency/internal/entity"
	"autocurrency/internal/resolver"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCurrencyService struct {
	mock.Mock
}

func (m *mockCurrencyService) FetchCurrencyRates(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCurrencyService) GetCurrencyName(text string) (string, bool) {
	args := m.Called(text)
	return args.String(0), args.Bool(1)
}

func (m *mockCurrencyService) FindAllCurrencies(ctx context.Context, projectID string) ([]entity.Currency, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) RemoveOldHistory(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockProjectRepo struct {
	mock.Mock
}

func (m *mockProjectRepo) FindAll(ctx context.Context) ([]entity.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Project), args.Error(1)
}

func (m *mockProjectRepo) FindAllByUser(ctx context.Context, userID string) ([]entity.Project, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Project), args.Error(1)
}

func (m *mockProjectRepo) Find(ctx context.Context, id string) (*entity.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Project), args.Error(1)
}

type mockCustomRepo struct {
	mock.Mock
}

func (m *mockCustomRepo) FindAll(ctx context.Context) ([]entity.CustomCurrency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.CustomCurrency), args.Error(1)
}

func (m *mockCustomRepo) Find(ctx context.Context, id int64) (*entity.CustomCurrency, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CustomCurrency), args.Error(1)
}

func (m *mockCustomRepo) Insert(ctx context.Context, currency *entity.CustomCurrency) error {
	return m.Called(ctx, currency).Error(0)
}

func (m *mockCustomRepo) Update(ctx context.Context, currency entity.CustomCurrency) error {
	return m.Called(ctx, currency).Error(0)
}

func (m *mockCustomRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockHistoryRepo struct {
	mock.Mock
}

func (m *mockHistoryRepo) FindByProjectAndBase(ctx context.Context, q entity.HistoryQuery) ([]entity.RateHistory, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RateHistory), args.Error(1)
}

func (m *mockHistoryRepo) Insert(ctx context.Context, sample entity.RateHistory) error {
	return m.Called(ctx, sample).Error(0)
}

func (m *mockHistoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockConfigRepo struct {
	mock.Mock
}

func (m *mockConfigRepo) GetString(ctx context.Context, key, def string) (string, error) {
	args := m.Called(ctx, key, def)
	return args.String(0), args.Error(1)
}

func (m *mockConfigRepo) SetString(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockConfigRepo) GetInt(ctx context.Context, key string, def int) (int, error) {
	args := m.Called(ctx, key, def)
	return args.Int(0), args.Error(1)
}

func (m *mockConfigRepo) SetInt(ctx context.Context, key string, value int) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockConfigRepo) SetMany(ctx context.Context, values map[string]string) error {
	return m.Called(ctx, values).Error(0)
}

type mockRescheduler struct {
	mock.Mock
}

func (m *mockRescheduler) Reschedule(hours int) error {
	return m.Called(hours).Error(0)
}

type testDeps struct {
	rates     *mockCurrencyService
	pruner    *mockPruner
	projects  *mockProjectRepo
	customs   *mockCustomRepo
	history   *mockHistoryRepo
	settings  *mockConfigRepo
	scheduler *mockRescheduler
	hook      *test.Hook
}

func setupTestUsecase(t *testing.T) (*CurrencyUsecase, *testDeps) {
	table, err := resolver.NewSymbolTable([]entity.SymbolEntry{
		{Code: "EUR", Symbol: "€", Name: "Euro"},
		{Code: "USD", Symbol: "$", Name: "US Dollar"},
	})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	d := &testDeps{
		rates:     new(mockCurrencyService),
		pruner:    new(mockPruner),
		projects:  new(mockProjectRepo),
		customs:   new(mockCustomRepo),
		history:   new(mockHistoryRepo),
		settings:  new(mockConfigRepo),
		scheduler: new(mockRescheduler),
		hook:      hook,
	}

	uc := NewCurrencyUsecase(Dependencies{
		Rates:     d.rates,
		Pruner:    d.pruner,
		Projects:  d.projects,
		Customs:   d.customs,
		History:   d.history,
		Settings:  d.settings,
		Symbols:   table,
		Scheduler: d.scheduler,
	}, logger)
	return uc, d
}
