package handler

import (
	"errors"
	"net/http"
	"strconv"

	"autocurrency/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CurrencyHandler struct {
	usecase usecase.AutoCurrencyUsecase
	logger  *logrus.Logger
}

func NewCurrencyHandler(usecase usecase.AutoCurrencyUsecase, logger *logrus.Logger) *CurrencyHandler {
	return &CurrencyHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// respondError maps usecase errors to status codes. Unexpected errors are
// logged and answered with the generic message.
func (h *CurrencyHandler) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func (h *CurrencyHandler) GetSettings(c *gin.Context) {
	settings, err := h.usecase.GetSettings(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *CurrencyHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.usecase.UpdateSettings(c.Request.Context(), usecase.SettingsUpdate{
		Interval:      req.Interval,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *CurrencyHandler) GetUserSettings(c *gin.Context) {
	supported, err := h.usecase.SupportedCurrencies(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load supported currencies")
		return
	}
	c.JSON(http.StatusOK, gin.H{"supported_currencies": supported})
}

func (h *CurrencyHandler) RunCron(c *gin.Context) {
	if err := h.usecase.RunFetch(c.Request.Context()); err != nil {
		h.respondError(c, err, "Failed to fetch rates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *CurrencyHandler) GetProjects(c *gin.Context) {
	projects, err := h.usecase.ListProjects(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.respondError(c, err, "Failed to load projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *CurrencyHandler) GetHistory(c *gin.Context) {
	limit, ok := h.uintQuery(c, "limit")
	if !ok {
		return
	}
	offset, ok := h.uintQuery(c, "offset")
	if !ok {
		return
	}

	resp, err := h.usecase.GetHistory(c.Request.Context(), usecase.HistoryFilter{
		ProjectID: c.Query("projectId"),
		Currency:  c.Query("currency"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(c, err, "Failed to load history")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CurrencyHandler) uintQuery(c *gin.Context, name string) (uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid '" + name + "' parameter, must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

func (h *CurrencyHandler) Resolve(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'text'"})
		return
	}

	code, ok := h.usecase.Resolve(text)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "currency not recognised"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *CurrencyHandler) ListCustomCurrencies(c *gin.Context) {
	list, err := h.usecase.ListCustomCurrencies(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to load custom currencies")
		return
	}

	resp := make([]CustomCurrencyResponse, 0, len(list))
	for _, cc := range list {
		resp = append(resp, toCustomCurrencyResponse(cc))
	}
	c.JSON(http.StatusOK, gin.H{"currencies": resp})
}

func (h *CurrencyHandler) CreateCustomCurrency(c *gin.Context) {
	var req CreateCustomCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cc, err := h.usecase.CreateCustomCurrency(c.Request.Context(), usecase.CustomCurrencyInput{
		Code:        req.Code,
		Symbol:      req.Symbol,
		APIEndpoint: req.APIEndpoint,
		APIKey:      req.APIKey,
		JSONPath:    req.JSONPath,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create custom currency")
		return
	}
	c.JSON(http.StatusCreated, toCustomCurrencyResponse(*cc))
}

func (h *CurrencyHandler) UpdateCustomCurrency(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var req UpdateCustomCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cc, err := h.usecase.UpdateCustomCurrency(c.Request.Context(), id, usecase.CustomCurrencyPatch{
		Code:        req.Code,
		Symbol:      req.Symbol,
		APIEndpoint: req.APIEndpoint,
		JSONPath:    req.JSONPath,
		SetAPIKey:   req.APIKey.Set,
		APIKey:      req.APIKey.Value,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update custom currency")
		return
	}
	c.JSON(http.StatusOK, toCustomCurrencyResponse(*cc))
}

func (h *CurrencyHandler) DeleteCustomCurrency(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.usecase.DeleteCustomCurrency(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Failed to delete custom currency")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *CurrencyHandler) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid currency id"})
		return 0, false
	}
	return id, true
}
