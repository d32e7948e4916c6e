package battle

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// --- 单个会话的串行化锁 ---

// sessionLocks 为每个对战会话维护一把互斥锁。
// 同一会话同时只允许一次出招在处理中，不同会话互不影响。
var sessionLocks sync.Map // map[uint]*sync.Mutex

// LockSession 获取指定会话的互斥锁
func LockSession(battleID uint) {
	lock, _ := sessionLocks.LoadOrStore(battleID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
}

// UnlockSession 释放指定会话的互斥锁
func UnlockSession(battleID uint) {
	lock, ok := sessionLocks.Load(battleID)
	if !ok {
		return
	}
	lock.(*sync.Mutex).Unlock()
}

// --- SQLite 访问 ---

// GetBattleByID 按主键读取一场对战
func GetBattleByID(battleID uint) (*Battle, error) {
	var b Battle
	if err := database.DB.First(&b, battleID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetMovesByBattleID 按回合顺序读取一场对战的全部招式记录
func GetMovesByBattleID(battleID uint) ([]BattleMove, error) {
	var moves []BattleMove
	err := database.DB.Where("battle_id = ?", battleID).Order("id asc").Find(&moves).Error
	return moves, err
}

// ListBattlesByAccount 列出账户参与的全部对战，可按状态过滤
func ListBattlesByAccount(accountUUID string, status Status) ([]Battle, error) {
	query := database.DB.Where("player_one_uuid = ? OR player_two_uuid = ?", accountUUID, accountUUID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var battles []Battle
	err := query.Order("id desc").Limit(100).Find(&battles).Error
	return battles, err
}

// CreateBattle 持久化一场新对战
func CreateBattle(b *Battle) error {
	return database.DB.Create(b).Error
}

// SaveBattle 持久化对战的全部字段。SQLite短暂锁住时做有限重试。
func SaveBattle(b *Battle) error {
	var err error
	for i := 0; i < 3; i++ {
		err = database.DB.Save(b).Error
		if err == nil || !database.IsRetryableError(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

// SaveBattleWithMove 在一个事务中保存会话状态并追加一条招式记录，
// 保证会话变更和日志追加的原子性。
func SaveBattleWithMove(b *Battle, move *BattleMove) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		return tx.Create(move).Error
	})
}

// ListUnsettledFinishedIDs 列出已结束但尚未结算的对战ID。
// 巡逻器用它找回结算通道中丢失的任务。
func ListUnsettledFinishedIDs(limit int) ([]uint, error) {
	var ids []uint
	err := database.DB.Model(&Battle{}).
		Where("status = ? AND settled = ?", StatusFinished, false).
		Order("id asc").Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListStalePendingIDs 列出已超过挑战存活时间但仍处于pending的对战ID
func ListStalePendingIDs(ttl time.Duration, limit int) ([]uint, error) {
	cutoff := time.Now().Add(-ttl)
	var ids []uint
	err := database.DB.Model(&Battle{}).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("id asc").Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// MarkSettled 在一个事务中为对战分配下一个结算序号并落盘。
// 序号严格按结算完成的顺序递增，与对战ID的大小无关。
func MarkSettled(b *Battle) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var maxSeq uint
		if err := tx.Model(&Battle{}).
			Select("COALESCE(MAX(settlement_seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		b.Settled = true
		b.SettlementSeq = maxSeq + 1
		return tx.Save(b).Error
	})
}

// ListSettledAfterSeq 按结算顺序列出指定检查点之后已结算的对战。
// Redis缓存重建时用它把快照之后的结算结果重放回账户热数据。
// 以结算序号而不是对战ID作为覆盖范围，晚结算的低ID对战不会漏掉，
// 已被快照覆盖的对战也不会被重复重放。
func ListSettledAfterSeq(sinceSeq uint) ([]Battle, error) {
	var battles []Battle
	err := database.DB.
		Where("settled = ? AND settlement_seq > ?", true, sinceSeq).
		Order("settlement_seq asc").Find(&battles).Error
	return battles, err
}

// CountFinishedBattles 统计已结束的对战总数
func CountFinishedBattles() (int64, error) {
	var count int64
	err := database.DB.Model(&Battle{}).Where("status = ?", StatusFinished).Count(&count).Error
	return count, err
}
