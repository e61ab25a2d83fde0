// Package middleware holds the gin gates that authenticate a caller and
// check role and ownership before a handler runs.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

const userKey = "user"

const (
	msgUnauthorized  = "Unauthorized access"
	msgAuthError     = "Authentication error"
	msgAdminRequired = "Admin access required"
	msgNotOwner      = "Access denied: You can only access your own resources"
)

// OwnerResolver returns the id of the user owning the requested resource.
type OwnerResolver func(c *gin.Context) string

// RequireAuth verifies the bearer token and attaches the caller, without
// password, to the request context.
func RequireAuth(tokens *auth.TokenService, db *repository.Database, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			logger.Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		var user *models.PublicUser
		err = db.View(c.Request.Context(), func(doc *models.Document) error {
			if u, _ := doc.FindUser(claims.UserID); u != nil {
				user = u.Public()
			}
			return nil
		})
		if err != nil {
			logger.Error("Failed to look up authenticated user", zap.String("user_id", claims.UserID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgAuthError})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgAdminRequired})
			return
		}
		c.Next()
	}
}

// RequireOwnership lets admins through and otherwise requires the caller to
// be the owner named by resolve. It must run after RequireAuth.
func RequireOwnership(resolve OwnerResolver) gin.HandlerFunc {
	if resolve == nil {
		resolve = OwnerFromRequest
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		if !CanAccess(user, resolve(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgNotOwner})
			return
		}
		c.Next()
	}
}

// OwnerFromRequest reads the :userId route parameter, falling back to a
// userId field in a JSON body. The body stays readable for handlers through
// ShouldBindBodyWith.
func OwnerFromRequest(c *gin.Context) string {
	if id := c.Param("userId"); id != "" {
		return id
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return ""
	}
	return body.UserID
}

// CanAccess reports whether user may act on resources owned by ownerID.
func CanAccess(user *models.PublicUser, ownerID string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return ownerID != "" && user.ID == ownerID
}

func CurrentUser(c *gin.Context) (*models.PublicUser, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.PublicUser)
	return user, ok && user != nil
}
