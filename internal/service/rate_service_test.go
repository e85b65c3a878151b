package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func standardURL(base string) string {
	return ReplaceTokens(testExchangeURL, base)
}

func TestFetchStandardRate_InvertsUpstreamQuote(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.client.On("FetchJSON", mock.Anything, standardURL("eur"), "").
		Return(map[string]any{"date": "2025-08-02", "eur": map[string]any{"usd": json.Number("0.85")}}, nil).
		Once()

	cyc := svc.newCycle()
	rate, err := svc.fetchStandardRate(ctx, cyc, "eur", "usd")
	require.NoError(t, err)
	assert.InDelta(t, 1/0.85, rate, 1e-12)

	// second lookup against the same base is served from the cycle cache
	_, err = svc.fetchStandardRate(ctx, cyc, "eur", "gbp")
	assert.ErrorIs(t, err, ErrRateNotFound)

	d.client.AssertExpectations(t)
}

func TestFetchStandardRate_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		payload any
		err     error
		wantErr error
	}{
		{name: "upstream error", err: errors.New("timeout"), wantErr: ErrUpstream},
		{name: "base key missing", payload: map[string]any{"date": "2025-08-02"}, wantErr: ErrRateNotFound},
		{name: "not an object", payload: []any{1, 2}, wantErr: ErrUpstream},
		{name: "target missing", payload: map[string]any{"eur": map[string]any{"gbp": 0.8}}, wantErr: ErrRateNotFound},
		{name: "zero rate", payload: map[string]any{"eur": map[string]any{"usd": json.Number("0")}}, wantErr: ErrInvalidRate},
		{name: "non numeric", payload: map[string]any{"eur": map[string]any{"usd": "n/a"}}, wantErr: ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := setupRateService(t)
			d.client.On("FetchJSON", mock.Anything, standardURL("eur"), "").Return(tt.payload, tt.err)

			_, err := svc.fetchStandardRate(ctx, svc.newCycle(), "eur", "usd")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchStandardRates_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.client.On("FetchJSON", mock.Anything, standardURL("usd"), "").Return(nil, errors.New("boom")).Once()
	d.client.On("FetchJSON", mock.Anything, standardURL("usd"), "").
		Return(map[string]any{"usd": map[string]any{"eur": 0.9}}, nil).Once()

	cyc := svc.newCycle()
	_, err := svc.fetchStandardRates(ctx, cyc, "usd")
	require.Error(t, err)

	table, err := svc.fetchStandardRates(ctx, cyc, "usd")
	require.NoError(t, err)
	assert.Equal(t, 0.9, table["eur"])
	d.client.AssertExpectations(t)
}

func TestFetchCustomCurrencyRate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		custom   entity.CustomCurrency
		base     string
		seed     map[string]any
		expected float64
	}{
		{
			name:     "base token in endpoint skips bridge",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc/{base}", JSONPath: "$.rate"},
			base:     "eur",
			seed:     map[string]any{"https://api.example.com/btc/eur": map[string]any{"rate": 45000}},
			expected: 45000,
		},
		{
			name:     "base token in path skips bridge",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.{base}"},
			base:     "eur",
			seed:     map[string]any{"https://api.example.com/btc": map[string]any{"eur": 45000, "usd": 50000}},
			expected: 45000,
		},
		{
			name:   "usd quote bridged to base",
			custom: entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
			base:   "eur",
			seed: map[string]any{
				"https://api.example.com/btc": map[string]any{"price": 50000},
				standardURL("usd"):            map[string]any{"usd": map[string]any{"eur": 0.85}},
			},
			expected: 50000 * 0.85,
		},
		{
			name:     "usd base needs no bridge",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
			base:     "usd",
			seed:     map[string]any{"https://api.example.com/btc": map[string]any{"price": 50000}},
			expected: 50000,
		},
		{
			name:     "nested path with token",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/rates", JSONPath: "data.rates.{base}.btc"},
			base:     "EUR",
			seed:     map[string]any{"https://api.example.com/rates": map[string]any{"data": map[string]any{"rates": map[string]any{"eur": map[string]any{"btc": 45000}}}}},
			expected: 45000,
		},
		{
			name:     "numeric string",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
			base:     "usd",
			seed:     map[string]any{"https://api.example.com/btc": map[string]any{"price": "50000.5"}},
			expected: 50000.5,
		},
		{
			name:     "scientific notation",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
			base:     "usd",
			seed:     map[string]any{"https://api.example.com/btc": map[string]any{"price": json.Number("5e4")}},
			expected: 50000,
		},
		{
			name:     "negative value is kept",
			custom:   entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
			base:     "usd",
			seed:     map[string]any{"https://api.example.com/btc": map[string]any{"price": "-100.5"}},
			expected: -100.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := setupRateService(t)
			cyc := svc.newCycle()
			for k, v := range tt.seed {
				cyc.cache.set(k, v)
			}

			res, err := svc.fetchCustomCurrencyRate(ctx, cyc, tt.custom, tt.base)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, res.Rate, 1e-9)
			assert.Equal(t, ReplaceTokens(tt.custom.APIEndpoint, tt.base), res.Source)
			d.client.AssertNotCalled(t, "FetchJSON", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestFetchCustomCurrencyRate_NoValue(t *testing.T) {
	ctx := context.Background()
	custom := entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.rate"}

	tests := map[string]map[string]any{
		"missing path": {"price": 1},
		"null value":   {"rate": nil},
		"empty object": {},
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			svc, _ := setupRateService(t)
			cyc := svc.newCycle()
			cyc.cache.set(custom.APIEndpoint, payload)

			_, err := svc.fetchCustomCurrencyRate(ctx, cyc, custom, "usd")
			assert.ErrorIs(t, err, ErrPathNotFound)
		})
	}
}

func TestFetchCustomCurrencyRate_BridgeFallback(t *testing.T) {
	ctx := context.Background()
	custom := entity.CustomCurrency{Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"}

	t.Run("bridge rate missing", func(t *testing.T) {
		svc, d := setupRateService(t)
		cyc := svc.newCycle()
		cyc.cache.set(custom.APIEndpoint, map[string]any{"price": 50000})
		cyc.cache.set(standardURL("usd"), map[string]any{"usd": map[string]any{"gbp": 0.75}})

		res, err := svc.fetchCustomCurrencyRate(ctx, cyc, custom, "eur")
		require.NoError(t, err)
		assert.Equal(t, float64(50000), res.Rate)
		assert.Equal(t, logrus.WarnLevel, d.hook.LastEntry().Level)
	})

	t.Run("bridge rate zero", func(t *testing.T) {
		svc, _ := setupRateService(t)
		cyc := svc.newCycle()
		cyc.cache.set(custom.APIEndpoint, map[string]any{"price": 50000})
		cyc.cache.set(standardURL("usd"), map[string]any{"usd": map[string]any{"eur": 0}})

		res, err := svc.fetchCustomCurrencyRate(ctx, cyc, custom, "eur")
		require.NoError(t, err)
		assert.Equal(t, float64(50000), res.Rate)
	})

	t.Run("bridge fetch fails", func(t *testing.T) {
		svc, d := setupRateService(t)
		d.client.On("FetchJSON", mock.Anything, standardURL("usd"), "").Return(nil, errors.New("down"))
		cyc := svc.newCycle()
		cyc.cache.set(custom.APIEndpoint, map[string]any{"price": 50000})

		res, err := svc.fetchCustomCurrencyRate(ctx, cyc, custom, "eur")
		require.NoError(t, err)
		assert.Equal(t, float64(50000), res.Rate)
	})
}

func TestFetchCustomCurrencyRate_CacheIsolatedByAPIKey(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	endpoint := "https://api.example.com/btc"
	d.client.On("FetchJSON", mock.Anything, endpoint, "key-a").Return(map[string]any{"price": 50000}, nil).Once()
	d.client.On("FetchJSON", mock.Anything, endpoint, "key-b").Return(map[string]any{"price": 51000}, nil).Once()

	cyc := svc.newCycle()
	a := entity.CustomCurrency{Code: "BTC", APIEndpoint: endpoint, APIKey: "key-a", JSONPath: "$.price"}
	b := entity.CustomCurrency{Code: "XBT", APIEndpoint: endpoint, APIKey: "key-b", JSONPath: "$.price"}

	resA, err := svc.fetchCustomCurrencyRate(ctx, cyc, a, "usd")
	require.NoError(t, err)
	resB, err := svc.fetchCustomCurrencyRate(ctx, cyc, b, "usd")
	require.NoError(t, err)
	resA2, err := svc.fetchCustomCurrencyRate(ctx, cyc, a, "usd")
	require.NoError(t, err)

	assert.Equal(t, float64(50000), resA.Rate)
	assert.Equal(t, float64(51000), resB.Rate)
	assert.Equal(t, float64(50000), resA2.Rate)
	d.client.AssertExpectations(t)
}

func TestFetchCurrencyRates_EndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	project := entity.Project{ID: "p1", Name: "Trip", CurrencyName: "US Dollar (USD)"}
	euro := entity.Currency{ID: 7, Name: "€ Euro", ExchangeRate: "1", ProjectID: "p1"}

	d.projects.On("FindAll", mock.Anything).Return([]entity.Project{project}, nil)
	d.currencies.On("FindAll", mock.Anything, "p1").Return([]entity.Currency{euro}, nil)
	d.customs.On("FindAll", mock.Anything).Return([]entity.CustomCurrency{}, nil)
	d.client.On("FetchJSON", mock.Anything, standardURL("usd"), "").
		Return(map[string]any{"usd": map[string]any{"eur": json.Number("0.9")}}, nil).Once()

	var updated entity.Currency
	d.currencies.On("Update", mock.Anything, mock.AnythingOfType("entity.Currency")).
		Run(func(args mock.Arguments) { updated = args.Get(1).(entity.Currency) }).
		Return(nil)

	var recorded HistoryRecord
	d.history.On("WriteHistory", mock.Anything, mock.AnythingOfType("service.HistoryRecord")).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(HistoryRecord) })

	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.AnythingOfType("string")).Return(nil)

	require.NoError(t, svc.FetchCurrencyRates(ctx))

	assert.Equal(t, int64(7), updated.ID)
	assert.Equal(t, "1.1111111111", FormatRate(mustParse(t, updated.ExchangeRate)))

	assert.Equal(t, "p1", recorded.ProjectID)
	assert.Equal(t, "Trip", recorded.ProjectName)
	assert.Equal(t, "usd", recorded.BaseCurrency)
	assert.Equal(t, "eur", recorded.CurrencyName)
	assert.Equal(t, int64(7), recorded.CurrencyID)
	assert.Equal(t, standardURL("usd"), recorded.Source)
	assert.Equal(t, "1.1111111111", FormatRate(recorded.Rate))

	d.client.AssertExpectations(t)
	d.config.AssertExpectations(t)
}

func TestFetchCurrencyRates_SkipsUnresolvable(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.projects.On("FindAll", mock.Anything).Return([]entity.Project{
		{ID: "empty", CurrencyName: ""},
		{ID: "unknown", CurrencyName: "Monopoly money"},
		{ID: "p1", Name: "Trip", CurrencyName: "€"},
	}, nil)
	d.currencies.On("FindAll", mock.Anything, "p1").Return([]entity.Currency{
		{ID: 1, Name: "Doubloons", ProjectID: "p1"},
		{ID: 2, Name: "£", ProjectID: "p1"},
	}, nil)
	d.customs.On("FindAll", mock.Anything).Return(nil, nil)
	d.client.On("FetchJSON", mock.Anything, standardURL("eur"), "").
		Return(map[string]any{"eur": map[string]any{"gbp": 0.8}}, nil)
	d.currencies.On("Update", mock.Anything, mock.MatchedBy(func(c entity.Currency) bool { return c.ID == 2 })).Return(nil)
	d.history.On("WriteHistory", mock.Anything, mock.Anything)
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(nil)

	require.NoError(t, svc.FetchCurrencyRates(ctx))

	d.currencies.AssertNotCalled(t, "FindAll", mock.Anything, "empty")
	d.currencies.AssertNotCalled(t, "FindAll", mock.Anything, "unknown")
	d.currencies.AssertNumberOfCalls(t, "Update", 1)
	d.history.AssertNumberOfCalls(t, "WriteHistory", 1)
}

func TestFetchCurrencyRates_CustomFallsBackToStandard(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.projects.On("FindAll", mock.Anything).Return([]entity.Project{{ID: "p1", CurrencyName: "USD"}}, nil)
	d.currencies.On("FindAll", mock.Anything, "p1").Return([]entity.Currency{{ID: 3, Name: "BTC", ProjectID: "p1"}}, nil)
	d.customs.On("FindAll", mock.Anything).Return([]entity.CustomCurrency{
		{ID: 1, Code: "BTC", APIEndpoint: "https://api.example.com/btc", JSONPath: "$.price"},
	}, nil).Once()
	d.client.On("FetchJSON", mock.Anything, "https://api.example.com/btc", "").Return(nil, errors.New("503"))
	d.client.On("FetchJSON", mock.Anything, standardURL("usd"), "").
		Return(map[string]any{"usd": map[string]any{"btc": 0.00002}}, nil)

	var recorded HistoryRecord
	d.currencies.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.history.On("WriteHistory", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(HistoryRecord) })
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(nil)

	require.NoError(t, svc.FetchCurrencyRates(ctx))

	assert.Equal(t, "btc", recorded.CurrencyName)
	assert.InDelta(t, 50000, recorded.Rate, 1e-6)
	assert.Equal(t, standardURL("usd"), recorded.Source)
	d.customs.AssertExpectations(t)
}

func TestFetchCurrencyRates_CustomSuccess(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.projects.On("FindAll", mock.Anything).Return([]entity.Project{{ID: "p1", CurrencyName: "EUR"}}, nil)
	d.currencies.On("FindAll", mock.Anything, "p1").Return([]entity.Currency{{ID: 3, Name: "btc", ProjectID: "p1"}}, nil)
	d.customs.On("FindAll", mock.Anything).Return([]entity.CustomCurrency{
		{ID: 1, Code: "BTC", APIEndpoint: "https://api.example.com/btc/{base}", APIKey: "k", JSONPath: "$.rate"},
	}, nil)
	d.client.On("FetchJSON", mock.Anything, "https://api.example.com/btc/eur", "k").
		Return(map[string]any{"rate": json.Number("45000")}, nil)
	d.currencies.On("Update", mock.Anything, mock.MatchedBy(func(c entity.Currency) bool {
		return c.ExchangeRate == "45000"
	})).Return(nil)
	d.history.On("WriteHistory", mock.Anything, mock.MatchedBy(func(rec HistoryRecord) bool {
		return rec.Source == "https://api.example.com/btc/eur" && rec.Rate == 45000 && rec.BaseCurrency == "eur"
	}))
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(nil)

	require.NoError(t, svc.FetchCurrencyRates(ctx))
	d.currencies.AssertExpectations(t)
	d.history.AssertExpectations(t)
}

func TestFetchCurrencyRates_ProjectLoadFailure(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.projects.On("FindAll", mock.Anything).Return(nil, errors.New("db down"))

	err := svc.FetchCurrencyRates(ctx)
	assert.ErrorContains(t, err, "db down")
	d.config.AssertNotCalled(t, "SetString", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchCurrencyRates_LastUpdateFailureReported(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	d.projects.On("FindAll", mock.Anything).Return([]entity.Project{}, nil)
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(errors.New("readonly"))

	err := svc.FetchCurrencyRates(ctx)
	assert.ErrorContains(t, err, "persist last update")
}

func TestFetchCurrencyRates_SharesInFlightCycle(t *testing.T) {
	ctx := context.Background()
	svc, d := setupRateService(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	d.projects.On("FindAll", mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]entity.Project{}, nil).Once()
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(nil).Once()

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = svc.FetchCurrencyRates(ctx)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = svc.FetchCurrencyRates(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	d.projects.AssertNumberOfCalls(t, "FindAll", 1)
}

func TestFetchCurrencyRates_CallerCancelDoesNotAbortSharedCycle(t *testing.T) {
	svc, d := setupRateService(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var cycleCtx context.Context
	d.projects.On("FindAll", mock.Anything).
		Run(func(args mock.Arguments) {
			cycleCtx = args.Get(0).(context.Context)
			close(entered)
			<-release
		}).
		Return([]entity.Project{{ID: "trip", Name: "Trip", CurrencyName: "US Dollar (USD)"}}, nil).Once()
	d.currencies.On("FindAll", mock.Anything, "trip").Return([]entity.Currency{}, nil).Once()
	d.config.On("SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything).Return(nil).Once()

	manualCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manualErr := make(chan error, 1)
	go func() {
		manualErr <- svc.FetchCurrencyRates(manualCtx)
	}()
	<-entered

	scheduledErr := make(chan error, 1)
	go func() {
		scheduledErr <- svc.FetchCurrencyRates(context.Background())
	}()
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-manualErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting for the cycle")
	}
	assert.NoError(t, cycleCtx.Err())

	close(release)
	select {
	case err := <-scheduledErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
	}

	d.projects.AssertNumberOfCalls(t, "FindAll", 1)
	d.currencies.AssertNumberOfCalls(t, "FindAll", 1)
	d.config.AssertCalled(t, "SetString", mock.Anything, postgres.KeyLastUpdate, mock.Anything)
}

func TestGetCurrencyName(t *testing.T) {
	svc, _ := setupRateService(t)

	code, ok := svc.GetCurrencyName("US Dollar (USD)")
	assert.True(t, ok)
	assert.Equal(t, "usd", code)

	_, ok = svc.GetCurrencyName("Monopoly money")
	assert.False(t, ok)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in      any
		want    float64
		wantErr bool
	}{
		{json.Number("1.5"), 1.5, false},
		{float64(2), 2, false},
		{int(3), 3, false},
		{int64(4), 4, false},
		{" 5.25 ", 5.25, false},
		{"1e3", 1000, false},
		{"abc", 0, true},
		{"NaN", 0, true},
		{true, 0, true},
		{map[string]any{}, 0, true},
	}

	for _, tt := range tests {
		got, err := toFloat(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRate, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func mustParse(t *testing.T, s string) float64 {
	f, err := toFloat(s)
	require.NoError(t, err)
	return f
}
