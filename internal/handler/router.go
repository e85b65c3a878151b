package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the API under /api. metrics may be nil.
func NewRouter(h *CurrencyHandler, corsOrigins []string, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
		}))
	}

	api := r.Group("/api")
	{
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)
		api.GET("/user-settings", h.GetUserSettings)
		api.POST("/cron/run", h.RunCron)
		api.GET("/projects", h.GetProjects)
		api.GET("/history", h.GetHistory)
		api.GET("/resolve", h.Resolve)

		api.GET("/custom-currencies", h.ListCustomCurrencies)
		api.POST("/custom-currencies", h.CreateCustomCurrency)
		api.PUT("/custom-currencies/:id", h.UpdateCustomCurrency)
		api.DELETE("/custom-currencies/:id", h.DeleteCustomCurrency)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}
