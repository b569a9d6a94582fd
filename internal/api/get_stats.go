package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerGetStats GET /stats
func (a *API) registerGetStats() {
	a.router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.counters.Snapshot())
	})
}
