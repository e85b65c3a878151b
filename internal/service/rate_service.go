package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/adapter/rates"
	"autocurrency/internal/entity"
	"autocurrency/internal/jsonpath"
	"autocurrency/internal/metrics"
	"autocurrency/internal/resolver"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

const (
	usd           = "usd"
	fetchCycleKey = "fetch-cycle"
)

type Repositories struct {
	Projects   postgres.ProjectRepository
	Currencies postgres.CurrencyRepository
	Customs    postgres.CustomCurrencyRepository
	Config     postgres.ConfigRepository
}

type RateService struct {
	client      rates.RatesClient
	repos       Repositories
	history     HistoryRecorder
	resolver    *resolver.Resolver
	exchangeURL string
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	group       singleflight.Group
	now         func() time.Time
}

func NewRateService(
	client rates.RatesClient,
	repos Repositories,
	history HistoryRecorder,
	res *resolver.Resolver,
	exchangeURL string,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *RateService {
	return &RateService{
		client:      client,
		repos:       repos,
		history:     history,
		resolver:    res,
		exchangeURL: exchangeURL,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// fetchCycle carries the state of one FetchCurrencyRates run.
type fetchCycle struct {
	id      string
	cache   *responseCache
	customs *customRegistry
	log     *logrus.Entry
}

func (s *RateService) newCycle() *fetchCycle {
	id := uuid.NewString()
	log := s.logger.WithField("run_id", id)
	return &fetchCycle{
		id:      id,
		cache:   newResponseCache(),
		customs: newCustomRegistry(s.repos.Customs, log),
		log:     log,
	}
}

type customRate struct {
	Rate   float64
	Source string
}

func (s *RateService) GetCurrencyName(text string) (string, bool) {
	return s.resolver.Resolve(text)
}

func (s *RateService) FindAllCurrencies(ctx context.Context, projectID string) ([]entity.Currency, error) {
	currencies, err := s.repos.Currencies.FindAll(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("find currencies: %w", err)
	}
	return currencies, nil
}

// FetchCurrencyRates refreshes the exchange rate of every quoted currency of
// every project. Concurrent callers share a single in-flight cycle, which
// ignores caller cancellation: a caller whose ctx ends only stops waiting.
// Per-project and per-currency failures are logged and skipped.
func (s *RateService) FetchCurrencyRates(ctx context.Context) error {
	cycleCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fetchCycleKey, func() (any, error) {
		return nil, s.runCycle(cycleCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined an in-flight fetch cycle")
		}
		return res.Err
	case <-ctx.Done():
		s.logger.WithError(ctx.Err()).Warn("Stopped waiting for fetch cycle")
		return fmt.Errorf("fetch cycle: %w", ctx.Err())
	}
}

func (s *RateService) runCycle(ctx context.Context) error {
	start := s.now()
	cyc := s.newCycle()
	cyc.log.Info("Starting currency rate fetch")

	projects, err := s.repos.Projects.FindAll(ctx)
	if err != nil {
		cyc.log.WithError(err).Error("Failed to load projects")
		return fmt.Errorf("load projects: %w", err)
	}

	for _, p := range projects {
		s.processProject(ctx, cyc, p)
	}

	var cycleErr error
	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.repos.Config.SetString(ctx, postgres.KeyLastUpdate, stamp); err != nil {
		cyc.log.WithError(err).Error("Failed to persist last update time")
		cycleErr = multierr.Append(cycleErr, fmt.Errorf("persist last update: %w", err))
	}

	elapsed := s.now().Sub(start)
	s.metrics.CycleDuration.Observe(elapsed.Seconds())
	cyc.log.WithFields(logrus.Fields{
		"projects": len(projects),
		"elapsed":  elapsed.String(),
	}).Info("Currency rate fetch finished")

	return cycleErr
}

func (s *RateService) processProject(ctx context.Context, cyc *fetchCycle, p entity.Project) {
	log := cyc.log.WithFields(logrus.Fields{
		"project_id":   p.ID,
		"project_name": p.DisplayName(),
	})

	if strings.TrimSpace(p.CurrencyName) == "" {
		log.Warn("Project has no main currency, skipping")
		return
	}

	base, ok := s.resolver.Resolve(p.CurrencyName)
	if !ok {
		log.Warnf("Could not resolve main currency %q, skipping project", p.CurrencyName)
		s.metrics.FetchFailures.WithLabelValues(metrics.StageResolve).Inc()
		return
	}

	currencies, err := s.repos.Currencies.FindAll(ctx, p.ID)
	if err != nil {
		log.WithError(err).Error("Failed to load project currencies")
		s.metrics.FetchFailures.WithLabelValues(metrics.StagePersist).Inc()
		return
	}

	log.WithField("base", base).Debugf("Processing %d currencies", len(currencies))
	for _, c := range currencies {
		s.processCurrency(ctx, cyc, log, p, base, c)
	}
}

func (s *RateService) processCurrency(ctx context.Context, cyc *fetchCycle, log *logrus.Entry, p entity.Project, base string, c entity.Currency) {
	log = log.WithFields(logrus.Fields{"currency_id": c.ID, "currency": c.Name})

	var (
		target string
		rate   float64
		source string
		label  = metrics.SourceStandard
		err    error
	)

	code := strings.ToLower(strings.TrimSpace(c.Name))
	if custom, ok := cyc.customs.Find(ctx, code); ok {
		target = code
		res, cerr := s.fetchCustomCurrencyRate(ctx, cyc, custom, base)
		if cerr == nil {
			rate, source, label = res.Rate, res.Source, metrics.SourceCustom
		} else {
			log.WithError(cerr).Warn("Custom currency fetch failed, falling back to standard rates")
			s.metrics.FetchFailures.WithLabelValues(metrics.StageCustom).Inc()
			rate, err = s.fetchStandardRate(ctx, cyc, base, target)
			source = ReplaceTokens(s.exchangeURL, base)
		}
	} else {
		resolved, ok := s.resolver.Resolve(c.Name)
		if !ok {
			log.Error("Could not resolve currency name")
			s.metrics.FetchFailures.WithLabelValues(metrics.StageResolve).Inc()
			return
		}
		target = resolved
		rate, err = s.fetchStandardRate(ctx, cyc, base, target)
		source = ReplaceTokens(s.exchangeURL, base)
	}

	if err != nil {
		log.WithError(err).Errorf("No rate for %s against %s", target, base)
		s.metrics.FetchFailures.WithLabelValues(metrics.StageStandard).Inc()
		return
	}

	c.ExchangeRate = decimal.NewFromFloat(rate).String()
	if err := s.repos.Currencies.Update(ctx, c); err != nil {
		log.WithError(err).Error("Failed to store exchange rate")
		s.metrics.FetchFailures.WithLabelValues(metrics.StagePersist).Inc()
	} else {
		s.metrics.RatesUpdated.WithLabelValues(label).Inc()
		log.WithFields(logrus.Fields{"rate": c.ExchangeRate, "source": label}).Info("Updated exchange rate")
	}

	s.history.WriteHistory(ctx, HistoryRecord{
		ProjectID:    p.ID,
		ProjectName:  p.DisplayName(),
		BaseCurrency: base,
		CurrencyName: target,
		Rate:         rate,
		CurrencyID:   c.ID,
		Source:       source,
	})
}

// fetchStandardRate returns how many units of base one unit of target is
// worth. The upstream table is quoted the other way round.
func (s *RateService) fetchStandardRate(ctx context.Context, cyc *fetchCycle, base, target string) (float64, error) {
	table, err := s.fetchStandardRates(ctx, cyc, base)
	if err != nil {
		return 0, err
	}

	raw, ok := table[target]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s in %s table", ErrRateNotFound, target, base)
	}

	value, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("%s in %s table: %w", target, base, err)
	}
	if value == 0 {
		return 0, fmt.Errorf("%w: zero %s in %s table", ErrInvalidRate, target, base)
	}

	return 1 / value, nil
}

func (s *RateService) fetchStandardRates(ctx context.Context, cyc *fetchCycle, base string) (map[string]any, error) {
	url := ReplaceTokens(s.exchangeURL, base)

	payload, err := s.fetchAPIResponse(ctx, cyc, url, "")
	if err != nil {
		return nil, err
	}

	doc, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrUpstream, url)
	}
	table, ok := doc[strings.ToLower(base)].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s table missing from %s", ErrRateNotFound, base, url)
	}

	return table, nil
}

func (s *RateService) fetchCustomCurrencyRate(ctx context.Context, cyc *fetchCycle, cc entity.CustomCurrency, base string) (customRate, error) {
	withBase := hasBaseToken(cc.APIEndpoint, cc.JSONPath)
	endpoint := ReplaceTokens(cc.APIEndpoint, base)
	path := ReplaceTokens(cc.JSONPath, base)

	payload, err := s.fetchAPIResponse(ctx, cyc, endpoint, cc.APIKey)
	if err != nil {
		return customRate{}, err
	}

	raw := jsonpath.Extract(payload, path)
	if raw == nil {
		return customRate{}, fmt.Errorf("%w: %s in %s", ErrPathNotFound, path, endpoint)
	}

	rate, err := toFloat(raw)
	if err != nil {
		return customRate{}, fmt.Errorf("%s in %s: %w", path, endpoint, err)
	}

	if !withBase && strings.ToLower(base) != usd {
		rate = s.convertFromUSD(ctx, cyc, rate, base)
	}

	return customRate{Rate: rate, Source: endpoint}, nil
}

// convertFromUSD turns a USD-quoted rate into a base-quoted one. When the
// bridge rate cannot be obtained the USD rate is returned unchanged.
func (s *RateService) convertFromUSD(ctx context.Context, cyc *fetchCycle, rate float64, base string) float64 {
	bridge, err := s.usdBridge(ctx, cyc, base)
	if err != nil {
		cyc.log.WithError(err).Warnf("Using USD rate for %s without conversion", base)
		s.metrics.FetchFailures.WithLabelValues(metrics.StageBridge).Inc()
		return rate
	}
	return rate * bridge
}

func (s *RateService) usdBridge(ctx context.Context, cyc *fetchCycle, base string) (float64, error) {
	table, err := s.fetchStandardRates(ctx, cyc, usd)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBridgeUnavailable, err)
	}

	raw, ok := table[strings.ToLower(base)]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: no usd/%s rate", ErrBridgeUnavailable, base)
	}
	bridge, err := toFloat(raw)
	if err != nil || bridge == 0 {
		return 0, fmt.Errorf("%w: unusable usd/%s rate %v", ErrBridgeUnavailable, base, raw)
	}
	return bridge, nil
}

func (s *RateService) fetchAPIResponse(ctx context.Context, cyc *fetchCycle, url, apiKey string) (any, error) {
	key := cacheKey(url, apiKey)
	if payload, ok := cyc.cache.get(key); ok {
		return payload, nil
	}

	payload, err := s.client.FetchJSON(ctx, url, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	cyc.cache.set(key, payload)
	return payload, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRate, n.String())
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRate, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidRate, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, f)
	}
	return f, nil
}
