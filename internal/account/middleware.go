package account

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CookieName   = "account-id"
	CookieMaxAge = 365 * 24 * 60 * 60
	UUIDKey      = "accountUUID"
)

// EnsureAccountCookieMiddleware 确保客户端带有一个格式正确的account-id cookie。
// 如果没有或格式不正确，生成一个新的临时UUID并设置cookie。
func EnsureAccountCookieMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountUUID, err := c.Cookie(CookieName)

		if err != nil || !IsValidUUID(accountUUID) {
			if err != http.ErrNoCookie {
				fmt.Printf("检测到无效的账户Cookie: %s, err: %v\n", accountUUID, err)
			}
			provisionalUUID, err := CreateProvisionalAccount()
			if err != nil {
				fmt.Printf("创建临时账户UUID时发生错误: %v\n", err)
			} else {
				c.SetCookie(CookieName, provisionalUUID, CookieMaxAge, "/", "", false, true)
				accountUUID = provisionalUUID
			}
		}

		if accountUUID != "" {
			c.Set(UUIDKey, accountUUID)
		}
		c.Next()
	}
}

// RequireActivatedAccountMiddleware 确保请求者的账户已持久化。
// 首次请求时会自动完成激活（发放初始金币和初始分数）。
func RequireActivatedAccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountUUID, ok := UUIDFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
			return
		}

		if err := ActivateAccount(accountUUID); err != nil {
			fmt.Printf("激活账户 %s 失败: %v\n", accountUUID, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "账户服务暂时不可用"})
			return
		}

		c.Next()
	}
}

// UUIDFromContext 从Gin上下文中取出当前请求的账户UUID
func UUIDFromContext(c *gin.Context) (string, bool) {
	val, exists := c.Get(UUIDKey)
	if !exists {
		return "", false
	}
	uuidStr, ok := val.(string)
	return uuidStr, ok && uuidStr != ""
}
