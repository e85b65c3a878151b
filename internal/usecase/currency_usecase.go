package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/entity"
	"autocurrency/internal/resolver"
	"autocurrency/internal/service"

	"github.com/sirupsen/logrus"
)

type Dependencies struct {
	Rates     service.CurrencyService
	Pruner    service.HistoryPruner
	Projects  postgres.ProjectRepository
	Customs   postgres.CustomCurrencyRepository
	History   postgres.HistoryRepository
	Settings  postgres.ConfigRepository
	Symbols   *resolver.SymbolTable
	Scheduler Rescheduler
}

type CurrencyUsecase struct {
	rates     service.CurrencyService
	pruner    service.HistoryPruner
	projects  postgres.ProjectRepository
	customs   postgres.CustomCurrencyRepository
	history   postgres.HistoryRepository
	settings  postgres.ConfigRepository
	symbols   *resolver.SymbolTable
	scheduler Rescheduler
	logger    *logrus.Logger
}

func NewCurrencyUsecase(deps Dependencies, logger *logrus.Logger) *CurrencyUsecase {
	return &CurrencyUsecase{
		rates:     deps.Rates,
		pruner:    deps.Pruner,
		projects:  deps.Projects,
		customs:   deps.Customs,
		history:   deps.History,
		settings:  deps.Settings,
		symbols:   deps.Symbols,
		scheduler: deps.Scheduler,
		logger:    logger,
	}
}

const (
	maxCodeLength   = 10
	maxSymbolLength = 10
)

func (uc *CurrencyUsecase) RunFetch(ctx context.Context) error {
	uc.logger.Info("Running currency rate fetch on demand")
	return uc.rates.FetchCurrencyRates(ctx)
}

func (uc *CurrencyUsecase) RemoveOldHistory(ctx context.Context) (int64, error) {
	return uc.pruner.RemoveOldHistory(ctx)
}

func (uc *CurrencyUsecase) Resolve(text string) (string, bool) {
	return uc.rates.GetCurrencyName(text)
}

func (uc *CurrencyUsecase) GetSettings(ctx context.Context) (*Settings, error) {
	lastUpdate, err := uc.settings.GetString(ctx, postgres.KeyLastUpdate, "")
	if err != nil {
		return nil, fmt.Errorf("read last update: %w", err)
	}
	interval, err := uc.settings.GetInt(ctx, postgres.KeyCronInterval, service.DefaultCronIntervalHours)
	if err != nil {
		return nil, fmt.Errorf("read cron interval: %w", err)
	}
	retention, err := uc.settings.GetInt(ctx, postgres.KeyRetentionDays, service.DefaultRetentionDays)
	if err != nil {
		return nil, fmt.Errorf("read retention days: %w", err)
	}

	s := &Settings{Interval: interval, RetentionDays: retention}
	if lastUpdate != "" {
		s.LastUpdate = &lastUpdate
	}
	return s, nil
}

// UpdateSettings stores the fetch interval and, when given, the retention.
// A negative retention is stored as 0, which disables pruning.
func (uc *CurrencyUsecase) UpdateSettings(ctx context.Context, update SettingsUpdate) (*Settings, error) {
	if update.Interval < 1 {
		return nil, fmt.Errorf("%w: interval must be at least 1 hour", ErrInvalidInput)
	}

	values := map[string]string{
		postgres.KeyCronInterval: strconv.Itoa(update.Interval),
	}
	if update.RetentionDays != nil {
		days := max(*update.RetentionDays, 0)
		values[postgres.KeyRetentionDays] = strconv.Itoa(days)
	}

	if err := uc.settings.SetMany(ctx, values); err != nil {
		uc.logger.WithError(err).Error("Failed to store settings")
		return nil, fmt.Errorf("store settings: %w", err)
	}

	if uc.scheduler != nil {
		if err := uc.scheduler.Reschedule(update.Interval); err != nil {
			uc.logger.WithError(err).Error("Failed to reschedule fetch job")
			return nil, fmt.Errorf("reschedule fetch job: %w", err)
		}
	}

	uc.logger.WithFields(logrus.Fields{
		"interval":       update.Interval,
		"retention_days": values[postgres.KeyRetentionDays],
	}).Info("Settings updated")

	return uc.GetSettings(ctx)
}

// SupportedCurrencies lists the symbol table followed by custom currencies.
func (uc *CurrencyUsecase) SupportedCurrencies(ctx context.Context) ([]SupportedCurrency, error) {
	entries := uc.symbols.Entries()
	list := make([]SupportedCurrency, 0, len(entries))
	for _, e := range entries {
		list = append(list, SupportedCurrency{Code: e.Code, Symbol: e.Symbol, Name: e.Name})
	}

	customs, err := uc.customs.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom currencies: %w", err)
	}
	for _, cc := range customs {
		symbol := cc.Symbol
		if symbol == "" {
			symbol = cc.Code
		}
		list = append(list, SupportedCurrency{Code: cc.Code, Symbol: symbol, Name: cc.Code})
	}

	return list, nil
}

func (uc *CurrencyUsecase) ListProjects(ctx context.Context, userID string) ([]ProjectSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	projects, err := uc.projects.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	customs, err := uc.customs.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom currencies: %w", err)
	}
	customCodes := make(map[string]struct{}, len(customs))
	for _, cc := range customs {
		customCodes[strings.ToLower(cc.Code)] = struct{}{}
	}

	list := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		currencies, err := uc.rates.FindAllCurrencies(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}

		names := make([]string, 0, len(currencies))
		for _, c := range currencies {
			names = append(names, uc.currencyCode(c.Name, customCodes))
		}

		list = append(list, ProjectSummary{
			ID:           p.ID,
			Name:         p.DisplayName(),
			BaseCurrency: p.CurrencyName,
			Currencies:   names,
		})
	}

	return list, nil
}

func (uc *CurrencyUsecase) currencyCode(name string, customCodes map[string]struct{}) string {
	code := strings.ToLower(name)
	if _, ok := customCodes[code]; ok {
		return code
	}
	if resolved, ok := uc.rates.GetCurrencyName(name); ok {
		return resolved
	}
	return code
}

// GetHistory returns samples of one project against its resolved base
// currency in ascending time order.
func (uc *CurrencyUsecase) GetHistory(ctx context.Context, filter HistoryFilter) (*HistoryResponse, error) {
	if strings.TrimSpace(filter.ProjectID) == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}

	project, err := uc.projects.Find(ctx, filter.ProjectID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, fmt.Errorf("project %s: %w", filter.ProjectID, ErrNotFound)
		}
		return nil, fmt.Errorf("find project: %w", err)
	}

	base, _ := uc.rates.GetCurrencyName(project.CurrencyName)
	q := entity.HistoryQuery{
		ProjectID:    filter.ProjectID,
		BaseCurrency: base,
		CurrencyName: strings.ToLower(strings.TrimSpace(filter.Currency)),
		From:         parseBound(filter.From, false),
		To:           parseBound(filter.To, true),
		Limit:        filter.Limit,
		Offset:       filter.Offset,
		Order:        entity.SortAsc,
	}

	uc.logger.WithFields(logrus.Fields{
		"project_id": q.ProjectID,
		"base":       base,
		"from":       formatBound(q.From),
		"to":         formatBound(q.To),
	}).Debug("Fetching rate history")

	rows, err := uc.history.FindByProjectAndBase(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	points := make([]HistoryPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, HistoryPoint{
			FetchedAt:    row.FetchedAt.Format(time.RFC3339),
			Rate:         row.Rate,
			CurrencyName: row.CurrencyName,
			Source:       row.Source,
		})
	}

	return &HistoryResponse{
		ProjectID:    filter.ProjectID,
		BaseCurrency: base,
		Points:       points,
	}, nil
}

var boundLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
}

// parseBound parses a history date bound. A date-only upper bound covers
// the whole day. Anything unparseable yields nil.
func parseBound(raw string, endOfDay bool) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			d = d.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
		return &d
	}

	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.Format(time.RFC3339)
}

func (uc *CurrencyUsecase) ListCustomCurrencies(ctx context.Context) ([]entity.CustomCurrency, error) {
	list, err := uc.customs.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list custom currencies: %w", err)
	}
	if list == nil {
		list = []entity.CustomCurrency{}
	}
	return list, nil
}

func (uc *CurrencyUsecase) CreateCustomCurrency(ctx context.Context, input CustomCurrencyInput) (*entity.CustomCurrency, error) {
	cc := &entity.CustomCurrency{
		Code:        strings.TrimSpace(input.Code),
		Symbol:      strings.TrimSpace(input.Symbol),
		APIEndpoint: strings.TrimSpace(input.APIEndpoint),
		APIKey:      strings.TrimSpace(input.APIKey),
		JSONPath:    strings.TrimSpace(input.JSONPath),
	}

	required := []struct{ field, value string }{
		{"code", cc.Code},
		{"api_endpoint", cc.APIEndpoint},
		{"json_path", cc.JSONPath},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%w: field '%s' is required", ErrInvalidInput, r.field)
		}
	}
	if err := validateCustom(*cc); err != nil {
		return nil, err
	}

	if err := uc.customs.Insert(ctx, cc); err != nil {
		uc.logger.WithError(err).Errorf("Failed to create custom currency %s", cc.Code)
		return nil, translateRepoErr(err, "create custom currency")
	}

	uc.logger.Infof("Custom currency %s created with id %d", cc.Code, cc.ID)
	return cc, nil
}

func (uc *CurrencyUsecase) UpdateCustomCurrency(ctx context.Context, id int64, patch CustomCurrencyPatch) (*entity.CustomCurrency, error) {
	cc, err := uc.customs.Find(ctx, id)
	if err != nil {
		return nil, translateRepoErr(err, "find custom currency")
	}

	if v := strings.TrimSpace(patch.Code); v != "" {
		cc.Code = v
	}
	if v := strings.TrimSpace(patch.Symbol); v != "" {
		cc.Symbol = v
	}
	if v := strings.TrimSpace(patch.APIEndpoint); v != "" {
		cc.APIEndpoint = v
	}
	if v := strings.TrimSpace(patch.JSONPath); v != "" {
		cc.JSONPath = v
	}
	if patch.SetAPIKey {
		cc.APIKey = ""
		if patch.APIKey != nil {
			cc.APIKey = strings.TrimSpace(*patch.APIKey)
		}
	}

	if err := validateCustom(*cc); err != nil {
		return nil, err
	}

	if err := uc.customs.Update(ctx, *cc); err != nil {
		uc.logger.WithError(err).Errorf("Failed to update custom currency %d", id)
		return nil, translateRepoErr(err, "update custom currency")
	}

	uc.logger.Infof("Custom currency %d updated", id)
	return cc, nil
}

func (uc *CurrencyUsecase) DeleteCustomCurrency(ctx context.Context, id int64) error {
	if err := uc.customs.Delete(ctx, id); err != nil {
		uc.logger.WithError(err).Errorf("Failed to delete custom currency %d", id)
		return translateRepoErr(err, "delete custom currency")
	}
	uc.logger.Infof("Custom currency %d deleted", id)
	return nil
}

func validateCustom(cc entity.CustomCurrency) error {
	if utf8.RuneCountInString(cc.Code) > maxCodeLength {
		return fmt.Errorf("%w: code is longer than %d characters", ErrInvalidInput, maxCodeLength)
	}
	if utf8.RuneCountInString(cc.Symbol) > maxSymbolLength {
		return fmt.Errorf("%w: symbol is longer than %d characters", ErrInvalidInput, maxSymbolLength)
	}

	u, err := url.Parse(service.ReplaceTokens(cc.APIEndpoint, "usd"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_endpoint must be an http(s) URL", ErrInvalidInput)
	}
	return nil
}

func translateRepoErr(err error, op string) error {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, postgres.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
