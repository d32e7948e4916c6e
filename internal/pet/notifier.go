package pet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// NotificationQueueKey 是一个Redis List，暂存待推送给主人的状态变化通知。
// 下游推送服务从队尾消费。
const NotificationQueueKey = "pet:notifications"

// notificationQueueCap 限制队列长度，防止没有消费者时无限增长
const notificationQueueCap = 10000

// Notification 是推入通知队列的消息体
type Notification struct {
	OwnerUUID string       `json:"owner_uuid"`
	PetID     uint         `json:"pet_id"`
	PetName   string       `json:"pet_name"`
	Change    StatusChange `json:"change"`
	At        time.Time    `json:"at"`
}

// notifiableChanges 定义了哪些变化事件值得打扰主人
var notifiableChanges = map[StatusChange]bool{
	ChangeCriticalHunger: true,
	ChangeDepressed:      true,
	ChangeSick:           true,
	ChangeRunaway:        true,
	ChangeDeceased:       true,
	ChangeEvolved:        true,
}

// PushNotifications 把一批状态变化写入Redis通知队列。
// Redis不可用时静默丢弃，照料逻辑不应因通知失败而中断。
func PushNotifications(p *Pet, changes []StatusChange) {
	if len(changes) == 0 || !database.IsRedisHealthy() {
		return
	}

	now := time.Now()
	pipe := database.RDB.Pipeline()
	queued := false
	for _, change := range changes {
		if !notifiableChanges[change] {
			continue
		}
		payload, err := json.Marshal(Notification{
			OwnerUUID: p.OwnerUUID,
			PetID:     p.ID,
			PetName:   p.Name,
			Change:    change,
			At:        now,
		})
		if err != nil {
			continue
		}
		pipe.LPush(database.Ctx, NotificationQueueKey, payload)
		queued = true
	}
	if !queued {
		return
	}
	pipe.LTrim(database.Ctx, NotificationQueueKey, 0, notificationQueueCap-1)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		fmt.Printf("警告: 推送宠物通知失败: %v\n", err)
	}
}
