package entity

import "strings"

type Project struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	UserID       string `db:"userid" json:"user_id,omitempty"`
	CurrencyName string `db:"currencyname" json:"currency_name"`
}

// DisplayName falls back to the project id when the project has no name.
func (p Project) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return p.ID
	}
	return p.Name
}

type Currency struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	ExchangeRate string `db:"exchange_rate" json:"exchange_rate"`
	ProjectID    string `db:"projectid" json:"project_id"`
}

type CustomCurrency struct {
	ID          int64  `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Symbol      string `db:"symbol" json:"symbol,omitempty"`
	APIEndpoint string `db:"api_endpoint" json:"api_endpoint"`
	APIKey      string `db:"api_key" json:"-"`
	JSONPath    string `db:"json_path" json:"json_path"`
}

// HasAPIKey reports whether requests to the endpoint carry a bearer token.
func (c CustomCurrency) HasAPIKey() bool {
	return c.APIKey != ""
}

type SymbolEntry struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
