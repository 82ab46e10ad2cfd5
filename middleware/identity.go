package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// ResolveIdentity runs after EnsureValidToken. It resolves the profile
// behind the token via the identity service: ghost sessions (valid token,
// no profile row) are rejected with SESSION_INVALID so the client
// discards the token; lookup failures follow the fail-open policy inside
// the service. The resolved profile is what authorization decisions use
// downstream; the token's role claim is only a hint.
func ResolveIdentity(identity *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Could not extract user information",
				},
			})
			c.Abort()
			return
		}

		claims, err := GetCustomClaims(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Could not extract token claims",
				},
			})
			c.Abort()
			return
		}

		profile, err := identity.Resolve(services.TokenIdentity{
			UserID:        userID,
			Role:          claims.Role,
			EmailVerified: claims.EmailVerified,
		})
		if err != nil {
			if errors.Is(err, services.ErrGhostSession) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "SESSION_INVALID",
						"message": "Session is no longer valid. Please sign in again.",
					},
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "IDENTITY_ERROR",
						"message": "Failed to resolve user identity",
					},
				})
			}
			c.Abort()
			return
		}

		c.Set("profile", profile)
		c.Next()
	}
}

// GetProfile returns the resolved profile for the current request
func GetProfile(c *gin.Context) (*models.Profile, error) {
	value, exists := c.Get("profile")
	if !exists {
		return nil, &AuthError{Code: "MISSING_PROFILE", Message: "Profile not found in context"}
	}

	profile, ok := value.(*models.Profile)
	if !ok {
		return nil, &AuthError{Code: "INVALID_PROFILE", Message: "Profile is not in the expected format"}
	}

	return profile, nil
}

// RequireRole aborts with 403 unless the resolved profile has one of the
// given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := GetProfile(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Could not resolve user profile",
				},
			})
			c.Abort()
			return
		}

		for _, role := range roles {
			if profile.Role == models.NormalizeRole(role) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Insufficient permissions to access this resource",
			},
		})
		c.Abort()
	}
}
