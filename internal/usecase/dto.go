package usecase

type Settings struct {
	LastUpdate    *string `json:"last_update"`
	Interval      int     `json:"interval"`
	RetentionDays int     `json:"retention_days"`
}

type SettingsUpdate struct {
	Interval      int
	RetentionDays *int
}

type SupportedCurrency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type ProjectSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	BaseCurrency string   `json:"baseCurrency"`
	Currencies   []string `json:"currencies"`
}

// HistoryFilter carries raw query values. Unparseable dates mean no bound.
type HistoryFilter struct {
	ProjectID string
	Currency  string
	From      string
	To        string
	Limit     uint64
	Offset    uint64
}

type HistoryPoint struct {
	FetchedAt    string  `json:"fetchedAt"`
	Rate         string  `json:"rate"`
	CurrencyName string  `json:"currencyName"`
	Source       *string `json:"source"`
}

type HistoryResponse struct {
	ProjectID    string         `json:"projectId"`
	BaseCurrency string         `json:"baseCurrency"`
	Points       []HistoryPoint `json:"points"`
}

type CustomCurrencyInput struct {
	Code        string
	Symbol      string
	APIEndpoint string
	APIKey      string
	JSONPath    string
}

// CustomCurrencyPatch applies non-blank fields only. APIKey is replaced
// whenever SetAPIKey is true; a nil APIKey clears it.
type CustomCurrencyPatch struct {
	Code        string
	Symbol      string
	APIEndpoint string
	JSONPath    string
	SetAPIKey   bool
	APIKey      *string
}
