package app

import (
	"context"
	"fmt"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/adapter/rates"
	"autocurrency/internal/metrics"
	"autocurrency/internal/resolver"
	"autocurrency/internal/scheduler"
	"autocurrency/internal/service"
	"autocurrency/internal/usecase"
	"autocurrency/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// App holds the wired service graph shared by the API server and the CLI.
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Pool      *pgxpool.Pool
	Symbols   *resolver.SymbolTable
	Rates     *service.RateService
	Retention *service.RetentionService
	Settings  postgres.ConfigRepository
	Scheduler *scheduler.Scheduler
	Usecase   *usecase.CurrencyUsecase
}

// LoadSymbols returns the configured symbol table, or the embedded one when
// no file is configured.
func LoadSymbols(cfg *config.Config) (*resolver.SymbolTable, error) {
	if cfg.Exchange.SymbolsFile == "" {
		return resolver.DefaultSymbols()
	}
	return resolver.LoadSymbolsFile(cfg.Exchange.SymbolsFile)
}

func Migrate(cfg *config.Config, logger *logrus.Logger) error {
	return postgres.RunMigrations(postgres.BuildDSN(*cfg), cfg.Migrations.Path, logger)
}

func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*App, error) {
	symbols, err := LoadSymbols(cfg)
	if err != nil {
		return nil, fmt.Errorf("load currency symbols: %w", err)
	}
	res := resolver.New(symbols, resolver.DefaultPreferences)
	logger.Infof("Loaded %d currency symbols", symbols.Len())

	pool, err := postgres.InitDBPool(ctx, *cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized database pool")

	projects := postgres.NewProjectRepo(pool, logger)
	currencies := postgres.NewCurrencyRepo(pool, logger)
	customs := postgres.NewCustomCurrencyRepo(pool, logger)
	history := postgres.NewHistoryRepo(pool, logger)
	settings := postgres.NewConfigRepo(pool, logger)

	client := rates.NewClient(cfg.Exchange.HTTPTimeout, cfg.Exchange.UserAgent, logger)
	logger.Info("Initialized rates client")

	m := metrics.New(reg)

	historyService := service.NewHistoryService(history, m, logger)
	rateService := service.NewRateService(
		client,
		service.Repositories{
			Projects:   projects,
			Currencies: currencies,
			Customs:    customs,
			Config:     settings,
		},
		historyService,
		res,
		cfg.Exchange.URL,
		m,
		logger,
	)
	retention := service.NewRetentionService(history, settings, m, logger)
	logger.Info("Initialized service layer")

	sched := scheduler.New(rateService, retention, cfg.Scheduler.PruneSpec, logger)

	uc := usecase.NewCurrencyUsecase(usecase.Dependencies{
		Rates:     rateService,
		Pruner:    retention,
		Projects:  projects,
		Customs:   customs,
		History:   history,
		Settings:  settings,
		Symbols:   symbols,
		Scheduler: sched,
	}, logger)
	logger.Info("Initialized usecase layer")

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Symbols:   symbols,
		Rates:     rateService,
		Retention: retention,
		Settings:  settings,
		Scheduler: sched,
		Usecase:   uc,
	}, nil
}

// StartScheduler reads the fetch interval from the settings store and
// starts the background jobs.
func (a *App) StartScheduler(ctx context.Context) error {
	interval, err := a.Settings.GetInt(ctx, postgres.KeyCronInterval, service.DefaultCronIntervalHours)
	if err != nil {
		return fmt.Errorf("read cron interval: %w", err)
	}
	if interval < 1 {
		a.Logger.Warnf("Stored cron interval %d is invalid, using %d", interval, service.DefaultCronIntervalHours)
		interval = service.DefaultCronIntervalHours
	}
	return a.Scheduler.Start(interval)
}

func (a *App) Close() {
	a.Pool.Close()
	a.Logger.Info("Database pool closed")
}
