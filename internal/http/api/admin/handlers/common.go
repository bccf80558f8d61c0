package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/auth"
	"github.com/workdesk-hq/platform/internal/models"
)

// parseIDParam reads the :id path parameter, answering 400 when it is malformed.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// currentAdmin returns the operator loaded by the auth middleware.
func currentAdmin(c *gin.Context) *models.User {
	return auth.CurrentUser(c)
}

func queryUint(c *gin.Context, name string) (uint64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, false
	}
	v, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		return 0, false
	}
	return v, true
}
