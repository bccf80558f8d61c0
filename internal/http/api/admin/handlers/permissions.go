package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
)

// ListPermissions returns the staff permission catalogue grouped by module.
func ListPermissions(c *gin.Context) {
	defs := permissions.Definitions()
	groups := make(map[string][]permissions.Definition)
	order := make([]string, 0)
	for _, def := range defs {
		if _, ok := groups[def.Module]; !ok {
			order = append(order, def.Module)
		}
		groups[def.Module] = append(groups[def.Module], def)
	}
	out := make([]gin.H, 0, len(order))
	for _, module := range order {
		out = append(out, gin.H{"module": module, "permissions": groups[module]})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": defs, "groups": out})
}
