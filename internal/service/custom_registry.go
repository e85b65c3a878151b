package service

import (
	"context"
	"strings"

	"autocurrency/internal/adapter/postgres"
	"autocurrency/internal/entity"

	"github.com/sirupsen/logrus"
)

// customRegistry loads custom currency overrides once per cycle and looks
// them up by lowercase code.
type customRegistry struct {
	repo   postgres.CustomCurrencyRepository
	log    *logrus.Entry
	loaded bool
	byCode map[string]entity.CustomCurrency
}

func newCustomRegistry(repo postgres.CustomCurrencyRepository, log *logrus.Entry) *customRegistry {
	return &customRegistry{repo: repo, log: log}
}

func (r *customRegistry) Find(ctx context.Context, code string) (entity.CustomCurrency, bool) {
	if !r.loaded {
		r.load(ctx)
	}
	cc, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return cc, ok
}

func (r *customRegistry) load(ctx context.Context) {
	r.loaded = true
	r.byCode = make(map[string]entity.CustomCurrency)

	list, err := r.repo.FindAll(ctx)
	if err != nil {
		r.log.WithError(err).Warn("Failed to load custom currencies, continuing with standard rates only")
		return
	}

	for _, cc := range list {
		key := strings.ToLower(strings.TrimSpace(cc.Code))
		if key == "" {
			continue
		}
		if _, dup := r.byCode[key]; dup {
			r.log.Warnf("Duplicate custom currency %s, keeping the first one", cc.Code)
			continue
		}
		r.byCode[key] = cc
	}
	r.log.Debugf("Loaded %d custom currencies", len(r.byCode))
}
