package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"pkg.mon.icu/rolebot/internal/storage"
)

// registerGetMessageRoles GET /messages/:message/roles
func (a *API) registerGetMessageRoles() {
	a.router.GET("/messages/:message/roles", func(c *gin.Context) {
		var param struct {
			Message string `uri:"message" binding:"required,numeric"`
		}

		if err := c.ShouldBindUri(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		m, err := a.roles.Get(c.Request.Context(), param.Message)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message has no reaction roles"})
		case err != nil:
			a.logger.Errorf("Failed to load reaction roles of message %s: %s.", param.Message, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, newMessageRolesModel(m))
		}
	})
}
