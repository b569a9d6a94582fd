package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"pkg.mon.icu/rolebot/internal/storage"
)

// registerGetGuildGrants GET /guilds/:guild/grants
func (a *API) registerGetGuildGrants() {
	a.router.GET("/guilds/:guild/grants", func(c *gin.Context) {
		var param struct {
			Guild string `uri:"guild" binding:"required,numeric"`
		}

		if err := c.ShouldBindUri(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r, err := a.grants.Get(c.Request.Context(), param.Guild)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "guild has no delegations"})
		case err != nil:
			a.logger.Errorf("Failed to load delegations of guild %s: %s.", param.Guild, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, newGrantsModel(r))
		}
	})
}
