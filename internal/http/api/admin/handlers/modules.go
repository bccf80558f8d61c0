package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/modules"
)

// Flash cookie attributes used by redirecting endpoints.
const (
	FlashCookieName     = "flash"
	FlashSuccess        = "success"
	FlashError          = "error"
	DefaultModuleReturn = "/admin/modules"
)

// ModuleHandler toggles installable modules.
type ModuleHandler struct {
	resolver *modules.Resolver
}

// NewModuleHandler constructs a ModuleHandler.
func NewModuleHandler(resolver *modules.Resolver) *ModuleHandler {
	return &ModuleHandler{resolver: resolver}
}

// moduleToggleRequest is accepted as JSON or form data.
type moduleToggleRequest struct {
	Name     string `json:"name" form:"name"`
	Redirect string `json:"redirect" form:"redirect"`
}

// List returns the manifests found on disk with their install state.
func (h *ModuleHandler) List(c *gin.Context) {
	statuses, errList := h.resolver.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list modules failed"})
		return
	}
	out := make([]gin.H, 0, len(statuses))
	for _, status := range statuses {
		m := status.Manifest
		out = append(out, gin.H{
			"name":          m.Name,
			"alias":         m.DisplayName(),
			"package_name":  m.PackageName,
			"monthly_price": m.MonthlyPrice.StringFixed(2),
			"yearly_price":  m.YearlyPrice.StringFixed(2),
			"for_admin":     bool(m.ForAdmin),
			"priority":      m.Priority,
			"parent_module": m.Parents(),
			"child_module":  m.Children(),
			"installed":     status.Installed,
			"enabled":       status.Enabled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

// Enable installs and enables a module, then redirects with a flash message.
func (h *ModuleHandler) Enable(c *gin.Context) {
	var body moduleToggleRequest
	_ = c.ShouldBind(&body)
	target := RedirectTarget(body.Redirect, DefaultModuleReturn)
	name := strings.TrimSpace(body.Name)
	if name == "" {
		RedirectWithFlash(c, target, FlashError, "Module name is required.")
		return
	}

	addOn, errEnable := h.resolver.Enable(c.Request.Context(), name)
	if errEnable != nil {
		RedirectWithFlash(c, target, FlashError, moduleErrorMessage(name, errEnable))
		return
	}
	RedirectWithFlash(c, target, FlashSuccess, fmt.Sprintf("%s module enabled successfully.", addOn.Name))
}

// Disable disables a module and every active module depending on it, then redirects with a
// flash message.
func (h *ModuleHandler) Disable(c *gin.Context) {
	var body moduleToggleRequest
	_ = c.ShouldBind(&body)
	target := RedirectTarget(body.Redirect, DefaultModuleReturn)
	name := strings.TrimSpace(body.Name)
	if name == "" {
		RedirectWithFlash(c, target, FlashError, "Module name is required.")
		return
	}

	disabled, errDisable := h.resolver.Disable(c.Request.Context(), name)
	if errDisable != nil {
		RedirectWithFlash(c, target, FlashError, moduleErrorMessage(name, errDisable))
		return
	}
	msg := fmt.Sprintf("%s module disabled successfully.", name)
	cascaded := make([]string, 0, len(disabled))
	for _, module := range disabled {
		if module != name {
			cascaded = append(cascaded, module)
		}
	}
	if len(cascaded) > 0 {
		msg = fmt.Sprintf("%s Also disabled: %s.", msg, strings.Join(cascaded, ", "))
	}
	RedirectWithFlash(c, target, FlashSuccess, msg)
}

func moduleErrorMessage(name string, err error) string {
	var depErr *modules.DependencyError
	switch {
	case errors.As(err, &depErr):
		return depErr.Error()
	case errors.Is(err, modules.ErrManifestNotFound), errors.Is(err, modules.ErrInvalidModuleKey):
		return "Module not found."
	case errors.Is(err, modules.ErrModuleNotInstalled):
		return "Module is not installed."
	default:
		log.WithError(err).WithField("module", name).Error("module toggle failed")
		return "Something went wrong, please try again."
	}
}

// RedirectWithFlash stores a one-shot message in a cookie and answers 303 to target.
func RedirectWithFlash(c *gin.Context, target, kind, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookieName, url.QueryEscape(kind+":"+message), 60, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, target)
}

// RedirectTarget accepts only same-site absolute paths.
func RedirectTarget(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return fallback
	}
	return raw
}
