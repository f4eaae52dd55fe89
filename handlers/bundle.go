package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Booking page endpoints
	OpenPage       gin.HandlerFunc
	GetPage        gin.HandlerFunc
	StreamPage     gin.HandlerFunc
	UpdateForm     gin.HandlerFunc
	SubmitBooking  gin.HandlerFunc
	ConfirmPayment gin.HandlerFunc
	ClosePage      gin.HandlerFunc

	// Operational endpoints
	Health  gin.HandlerFunc
	Metrics gin.HandlerFunc
}

// NewHandlerBundle wires the page handler and the operational endpoints.
func NewHandlerBundle(pages *PageHandler, health, metrics gin.HandlerFunc) *HandlerBundle {
	return &HandlerBundle{
		OpenPage:       pages.OpenPage,
		GetPage:        pages.GetPage,
		StreamPage:     pages.StreamPage,
		UpdateForm:     pages.UpdateForm,
		SubmitBooking:  pages.SubmitBooking,
		ConfirmPayment: pages.ConfirmPayment,
		ClosePage:      pages.ClosePage,
		Health:         health,
		Metrics:        metrics,
	}
}
