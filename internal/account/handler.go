package account

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HandleGetProfile 返回当前账户的热数据
func HandleGetProfile(c *gin.Context) {
	accountUUID, ok := UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}

	stats, err := GetStats(accountUUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法读取账户数据: " + err.Error()})
		return
	}
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "账户不存在"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uuid":         accountUUID,
		"coins":        stats.Coins,
		"arena_tokens": stats.ArenaTokens,
		"wins":         stats.Wins,
		"losses":       stats.Losses,
		"draws":        stats.Draws,
		"rating":       stats.Rating,
	})
}

// HandleGetLeaderboard 返回ELO分数最高的账户列表，默认前10名
func HandleGetLeaderboard(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的limit参数"})
			return
		}
		limit = parsed
	}

	entries, err := GetLeaderboard(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法读取排行榜: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
