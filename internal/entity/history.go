package entity

import "time"

type RateHistory struct {
	ID           int64     `db:"id" json:"id,omitempty"`
	ProjectID    string    `db:"project_id" json:"project_id"`
	ProjectName  string    `db:"project_name" json:"project_name"`
	CurrencyName string    `db:"currency_name" json:"currency_name"`
	BaseCurrency string    `db:"base_currency" json:"base_currency"`
	Rate         string    `db:"rate" json:"rate"`
	FetchedAt    time.Time `db:"fetched_at" json:"fetched_at"`
	Source       *string   `db:"source" json:"source,omitempty"`
	CurrencyID   *int64    `db:"currency_id" json:"currency_id,omitempty"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// HistoryQuery filters history rows of one project and base currency.
// Nil bounds and an empty CurrencyName disable the matching filter.
type HistoryQuery struct {
	ProjectID    string
	BaseCurrency string
	CurrencyName string
	From         *time.Time
	To           *time.Time
	Limit        uint64
	Offset       uint64
	Order        SortOrder
}
