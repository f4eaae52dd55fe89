package handlers

import (
	"net/http"

	"pagoda/utils"

	"github.com/gin-gonic/gin"
)

// Health reports the last dependency probe. Pages keep working without Redis or Mongo, so
// a degraded status still answers 200.
func Health(c *gin.Context) {
	status := utils.GetHealthStatus()
	state := "ok"
	if !status.Healthy() {
		state = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       state,
		"message":      "Hi, I'm Pagoda",
		"dependencies": status,
	})
}
