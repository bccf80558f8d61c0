package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/http/api/admin/permissions"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/quota"
	"github.com/workdesk-hq/platform/internal/storage"
	"gorm.io/gorm"
)

// MsgStorageLimit is answered when an upload batch does not fit the tenant quota.
const MsgStorageLimit = "Your storage limit is over, please upgrade your plan."

// MediaFrontHandler stores tenant uploads within the storage quota.
type MediaFrontHandler struct {
	db    *gorm.DB
	guard *quota.Guard
	store storage.Store
}

// NewMediaFrontHandler constructs a MediaFrontHandler.
func NewMediaFrontHandler(db *gorm.DB, guard *quota.Guard, store storage.Store) *MediaFrontHandler {
	if guard == nil {
		guard = quota.NewGuard(db, nil)
	}
	return &MediaFrontHandler{db: db, guard: guard, store: store}
}

// Upload accepts one or more "files" parts. The batch is rejected as a whole when it would exceed
// the quota.
func (h *MediaFrontHandler) Upload(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !authzCanUpload(user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not configured"})
		return
	}
	form, errForm := c.MultipartForm()
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files"})
		return
	}
	var batch int64
	for _, file := range files {
		batch += file.Size
	}

	ctx := c.Request.Context()
	tenantID := user.TenantID()
	if errLimit := h.guard.CheckStorageLimit(ctx, tenantID, batch); errLimit != nil {
		var limitErr *quota.LimitError
		if errors.As(errLimit, &limitErr) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":       MsgStorageLimit,
				"used_bytes":  limitErr.UsedBytes,
				"batch_bytes": limitErr.BatchBytes,
				"limit_bytes": limitErr.LimitBytes,
			})
			return
		}
		log.WithError(errLimit).WithField("tenant_id", tenantID).Error("storage quota check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(files))
	for _, file := range files {
		row, errStore := h.storeFile(c, user, file)
		if errStore != nil {
			if errors.Is(errStore, storage.ErrEmptyName) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name", "uploaded": out})
				return
			}
			log.WithError(errStore).WithField("tenant_id", tenantID).Error("store upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed", "uploaded": out})
			return
		}
		out = append(out, formatMedia(row))
	}
	c.JSON(http.StatusCreated, gin.H{"media": out})
}

func (h *MediaFrontHandler) storeFile(c *gin.Context, user *models.User, file *multipart.FileHeader) (*models.Media, error) {
	src, errOpen := file.Open()
	if errOpen != nil {
		return nil, errOpen
	}
	defer func() { _ = src.Close() }()

	obj, errPut := h.store.Put(c.Request.Context(), file.Filename, file.Size, src)
	if errPut != nil {
		return nil, errPut
	}
	row := models.Media{
		Name:      file.Filename,
		Path:      obj.Key,
		URL:       obj.URL,
		Size:      file.Size,
		UserID:    user.ID,
		CreatedBy: user.TenantID(),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		return nil, errCreate
	}
	return &row, nil
}

// List returns the uploads visible to the user.
func (h *MediaFrontHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	scope, errScope := permissions.MediaPolicy.Scope(user)
	if errScope != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	var rows []models.Media
	if errFind := h.db.WithContext(c.Request.Context()).
		Scopes(scope).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list media failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatMedia(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"media": out})
}

func authzCanUpload(user *models.User) bool {
	_, errScope := permissions.MediaPolicy.Scope(user)
	return errScope == nil
}

func formatMedia(m *models.Media) gin.H {
	return gin.H{
		"id":         m.ID,
		"name":       m.Name,
		"url":        m.URL,
		"size":       m.Size,
		"user_id":    m.UserID,
		"created_at": m.CreatedAt,
	}
}
