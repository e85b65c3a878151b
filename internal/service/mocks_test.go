package service

import (
	"context"
	"io"
	"testing"
	"time"

	"autocurrency/internal/entity"
	"autocurrency/internal/metrics"
	"autocurrency/internal/resolver"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRatesClient struct {
	mock.Mock
}

func (m *mockRatesClient) FetchJSON(ctx context.Context, url, apiKey string) (any, error) {
	args := m.Called(ctx, url, apiKey)
	return args.Get(0), args.Error(1)
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

type mockCurrencyRepo struct {
	mock.Mock
}

func (m *mockCurrencyRepo) FindAll(ctx context.Context, projectID string) ([]entity.Currency, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func (m *mockCurrencyRepo) Update(ctx context.Context, currency entity.Currency) error {
	args := m.Called(ctx, currency)
	return args.Error(0)
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

type mockHistoryRecorder struct {
	mock.Mock
}

func (m *mockHistoryRecorder) WriteHistory(ctx context.Context, rec HistoryRecord) {
	m.Called(ctx, rec)
}

const testExchangeURL = "https://rates.test/currencies/{base}.json"

type testDeps struct {
	client     *mockRatesClient
	projects   *mockProjectRepo
	currencies *mockCurrencyRepo
	customs    *mockCustomRepo
	config     *mockConfigRepo
	history    *mockHistoryRecorder
	hook       *test.Hook
}

func testResolver(t *testing.T) *resolver.Resolver {
	table, err := resolver.NewSymbolTable([]entity.SymbolEntry{
		{Code: "BTC", Symbol: "₿", Name: "Bitcoin"},
		{Code: "EUR", Symbol: "€", Name: "Euro"},
		{Code: "GBP", Symbol: "£", Name: "British Pound"},
		{Code: "USD", Symbol: "$", Name: "US Dollar"},
	})
	require.NoError(t, err)
	return resolver.New(table, nil)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func setupRateService(t *testing.T) (*RateService, *testDeps) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	d := &testDeps{
		client:     new(mockRatesClient),
		projects:   new(mockProjectRepo),
		currencies: new(mockCurrencyRepo),
		customs:    new(mockCustomRepo),
		config:     new(mockConfigRepo),
		history:    new(mockHistoryRecorder),
		hook:       hook,
	}

	svc := NewRateService(
		d.client,
		Repositories{
			Projects:   d.projects,
			Currencies: d.currencies,
			Customs:    d.customs,
			Config:     d.config,
		},
		d.history,
		testResolver(t),
		testExchangeURL,
		testMetrics(),
		logger,
	)
	return svc, d
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
