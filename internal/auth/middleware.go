package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the caller's identity
// in the gin context.
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := a.jwtHandler.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group on minimum role. Admin implies technician,
// technician implies operator. A request that never went through
// AuthMiddleware carries no role and is rejected.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerRole := c.GetString("role")
		if callerRole == "" || !roleAtLeast(callerRole, role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func roleAtLeast(have, want string) bool {
	rank := map[string]int{RoleOperator: 1, RoleTechnician: 2, RoleAdmin: 3}
	return rank[have] >= rank[want]
}

// IsAdmin reports whether the current request carries the admin role.
func IsAdmin(c *gin.Context) bool {
	role, ok := c.Get("role")
	return ok && role == RoleAdmin
}
