package middleware

import (
	"strings"

	apperrors "shortlink-core/internal/errors"
	auth "shortlink-core/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// 上下文中保存的用户信息
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware(jwtManager *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "缺少认证令牌")
			return
		}

		// 提取Bearer token
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			abortUnauthorized(c, "认证格式错误")
			return
		}

		claims, err := jwtManager.ValidateToken(strings.TrimSpace(tokenString))
		if err != nil {
			abortUnauthorized(c, "无效的认证令牌")
			return
		}

		// 将用户信息存入上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	status, body := apperrors.NewBody(apperrors.ErrUnauthorized, c.Request.URL.Path)
	body.Error = msg
	c.AbortWithStatusJSON(status, body)
}
