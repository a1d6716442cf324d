package app

import (
	"net/http"
	"strings"

	"crolars/internal/util"

	"github.com/gin-gonic/gin"
)

// AuthHandler validates tokens issued by the identity service
type AuthHandler struct {
	jwtSecret string
}

func NewAuthHandler(jwtSecret string) *AuthHandler {
	return &AuthHandler{
		jwtSecret: jwtSecret,
	}
}

// AuthMiddleware validates JWT token. EventSource cannot send headers, so a
// token query parameter is accepted as well.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				util.Unauthorized(c, "Invalid authorization header format")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}

		if token == "" {
			util.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(token, h.jwtSecret)
		if err != nil {
			util.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("userType", claims.UserType)
		c.Next()
	}
}

// AdminMiddleware validates that the user is an owner
func (h *AuthHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// First check authentication
		if _, exists := c.Get("userID"); !exists {
			util.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}

		if !isOwner(c) {
			util.ErrorResponse(c, http.StatusForbidden, "Access denied: Owner role required", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetMe returns the identity carried by the token
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	util.SuccessResponse(c, http.StatusOK, "User retrieved successfully", gin.H{
		"id":        c.GetString("userID"),
		"email":     c.GetString("email"),
		"user_type": c.GetString("userType"),
	})
}

func isOwner(c *gin.Context) bool {
	return c.GetString("userType") == "owner"
}
