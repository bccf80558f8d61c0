// Package auth signs users in and guards routes with the issued bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/config"
	"github.com/workdesk-hq/platform/internal/models"
	"github.com/workdesk-hq/platform/internal/security"
	"gorm.io/gorm"
)

// ContextUserKey is the gin context key holding the authenticated *models.User.
const ContextUserKey = "authUser"

// TokenCookieName is read when no Authorization header is sent.
const TokenCookieName = "access_token"

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrAccountDisabled    = errors.New("auth: account disabled")
	ErrNotAllowed         = errors.New("auth: account type not allowed")
)

// Allow decides whether an authenticated user may use a route group.
type Allow func(u *models.User) bool

// SuperAdminOnly admits platform operators.
func SuperAdminOnly(u *models.User) bool { return u.IsSuperAdmin() }

// TenantMembers admits tenant owners and their staff.
func TenantMembers(u *models.User) bool {
	return u != nil && (u.Type == models.UserTypeCompany || u.Type == models.UserTypeStaff)
}

// Authenticator issues and verifies user tokens.
type Authenticator struct {
	db  *gorm.DB
	jwt config.JWTConfig
	now func() time.Time
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(db *gorm.DB, jwtCfg config.JWTConfig) *Authenticator {
	return &Authenticator{db: db, jwt: jwtCfg, now: time.Now}
}

// Login checks the credentials and returns a signed token for the user.
func (a *Authenticator) Login(ctx context.Context, email, password string, allow Allow) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}
	var user models.User
	if errFind := a.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("auth: load user: %w", errFind)
	}
	if !security.CheckPassword(user.Password, password) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrAccountDisabled
	}
	if allow != nil && !allow(&user) {
		return "", nil, ErrNotAllowed
	}
	token, errIssue := security.IssueUserToken(a.jwt.Secret, user.ID, string(user.Type), a.jwt.Expiry, a.now())
	if errIssue != nil {
		return "", nil, errIssue
	}
	return token, &user, nil
}

// loginRequest is accepted as JSON or form data.
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginHandler answers a login request with a bearer token.
func (a *Authenticator) LoginHandler(allow Allow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body loginRequest
		if errBind := c.ShouldBind(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		token, user, errLogin := a.Login(c.Request.Context(), body.Email, body.Password, allow)
		if errLogin != nil {
			switch {
			case errors.Is(errLogin, ErrInvalidCredentials), errors.Is(errLogin, ErrNotAllowed):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			case errors.Is(errLogin, ErrAccountDisabled):
				c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			default:
				log.WithError(errLogin).Error("login failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"type":  user.Type,
			},
		})
	}
}

// Middleware loads the token owner into the context. When loginPath is set failures redirect
// there instead of answering JSON.
func (a *Authenticator) Middleware(allow Allow, loginPath string) gin.HandlerFunc {
	fail := func(c *gin.Context, status int, msg string) {
		if loginPath != "" {
			c.Redirect(http.StatusSeeOther, loginPath)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
	}
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			fail(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, errJWT := security.ParseUserToken(a.jwt.Secret, token)
		if errJWT != nil {
			fail(c, http.StatusUnauthorized, "invalid token")
			return
		}

		var user models.User
		if errFind := a.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			fail(c, http.StatusUnauthorized, "user not found")
			return
		}
		if !user.IsActive {
			fail(c, http.StatusForbidden, "account disabled")
			return
		}
		if allow != nil && !allow(&user) {
			fail(c, http.StatusForbidden, "forbidden")
			return
		}

		c.Set(ContextUserKey, &user)
		c.Next()
	}
}

// TokenFromRequest reads a bearer token from the Authorization header or the token cookie.
func TokenFromRequest(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return ""
	}
	if cookie, errCookie := c.Cookie(TokenCookieName); errCookie == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// CurrentUser returns the user loaded by Middleware.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
