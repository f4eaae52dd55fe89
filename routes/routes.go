package routes

import (
	"time"

	"pagoda/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterPageRoutes registers the hosted booking page endpoints.
func RegisterPageRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/pages")
	{
		api.POST("", hb.OpenPage)
		api.GET("/:pageID", hb.GetPage)
		api.GET("/:pageID/events", hb.StreamPage)
		api.PUT("/:pageID/form", hb.UpdateForm)
		api.POST("/:pageID/reservation", hb.SubmitBooking)
		api.POST("/:pageID/payment", hb.ConfirmPayment)
		api.DELETE("/:pageID", hb.ClosePage)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.Health)
}

// RegisterMetricsRoute exposes prometheus metrics.
func RegisterMetricsRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	if hb.Metrics != nil {
		r.GET("/metrics", hb.Metrics)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterMetricsRoute(r, hb)
	RegisterPageRoutes(r, hb)
}
