package battle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// ResultQueueKey 是一个Redis List，暂存已结算对战的结果事件。
// 下游推送服务从队尾消费。
const ResultQueueKey = "battle:results"

// resultQueueCap 限制队列长度，防止没有消费者时无限增长
const resultQueueCap = 10000

// ResultEvent 是推入结果队列的消息体
type ResultEvent struct {
	BattleID    uint      `json:"battle_id"`
	Category    Category  `json:"category"`
	WinnerUUID  *string   `json:"winner_uuid,omitempty"`
	WinnerPetID *uint     `json:"winner_pet_id,omitempty"`
	BetAmount   int       `json:"bet_amount"`
	SettledAt   time.Time `json:"settled_at"`
}

// pushResultEvent 把一场刚结算完的对战结果写入Redis结果队列。
// Redis不可用时静默丢弃，结算本身不应因通知失败而中断。
// 缓存重建后的结算重放不走这里，事件只在首次结算时发出一次。
func pushResultEvent(b *Battle) {
	if !database.IsRedisHealthy() {
		return
	}

	payload, err := json.Marshal(ResultEvent{
		BattleID:    b.ID,
		Category:    b.Category,
		WinnerUUID:  b.WinnerUUID,
		WinnerPetID: b.WinnerPetID,
		BetAmount:   b.BetAmount,
		SettledAt:   time.Now(),
	})
	if err != nil {
		return
	}

	pipe := database.RDB.Pipeline()
	pipe.LPush(database.Ctx, ResultQueueKey, payload)
	pipe.LTrim(database.Ctx, ResultQueueKey, 0, resultQueueCap-1)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		fmt.Printf("结算器警告: 推送对战结果事件失败: %v\n", err)
	}
}
