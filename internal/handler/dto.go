package handler

import (
	"encoding/json"

	"autocurrency/internal/entity"
)

type UpdateSettingsRequest struct {
	Interval      int  `json:"interval" binding:"required,min=1"`
	RetentionDays *int `json:"retention_days"`
}

type CreateCustomCurrencyRequest struct {
	Code        string `json:"code" binding:"required,max=10"`
	Symbol      string `json:"symbol" binding:"max=10"`
	APIEndpoint string `json:"api_endpoint" binding:"required,max=255"`
	APIKey      string `json:"api_key" binding:"max=255"`
	JSONPath    string `json:"json_path" binding:"required,max=255"`
}

type UpdateCustomCurrencyRequest struct {
	Code        string         `json:"code" binding:"max=10"`
	Symbol      string         `json:"symbol" binding:"max=10"`
	APIEndpoint string         `json:"api_endpoint" binding:"max=255"`
	APIKey      optionalString `json:"api_key"`
	JSONPath    string         `json:"json_path" binding:"max=255"`
}

// optionalString tells an absent field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// CustomCurrencyResponse never carries the API key itself.
type CustomCurrencyResponse struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Symbol      string `json:"symbol"`
	APIEndpoint string `json:"api_endpoint"`
	JSONPath    string `json:"json_path"`
	HasAPIKey   bool   `json:"has_api_key"`
}

func toCustomCurrencyResponse(cc entity.CustomCurrency) CustomCurrencyResponse {
	return CustomCurrencyResponse{
		ID:          cc.ID,
		Code:        cc.Code,
		Symbol:      cc.Symbol,
		APIEndpoint: cc.APIEndpoint,
		JSONPath:    cc.JSONPath,
		HasAPIKey:   cc.HasAPIKey(),
	}
}
