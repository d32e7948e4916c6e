package account

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// --- Redis 键名常量 ---

const (
	// StatsKey 是一个 Redis Hash 的键，用于存储每个账户的热数据。
	// Field: 账户的UUID
	// Value: AccountStats 结构体的JSON序列化字符串
	StatsKey = "account:stats"

	// RankingKey 是一个 Redis Sorted Set 的键，用于按ELO分数实时排序账户。
	// Score: Rating
	// Member: 账户的UUID
	RankingKey = "account:ranking"

	// KnownAccountsKey 是一个 Redis Set 的键，缓存所有已激活账户的UUID。
	KnownAccountsKey = "account:known"

	// DirtySetKey 是一个 Redis Set 的键，用于存储自上次快照以来
	// 热数据发生变化的账户UUID。用于增量备份。
	DirtySetKey = "account:dirty"

	// ProcessingDirtySetKey 在快照期间暂存正在落盘的脏账户UUID。
	ProcessingDirtySetKey = "account:dirty:processing"
)

// AccountStats 定义了在 Redis 的 account:stats 哈希表中，
// 以JSON格式存储的账户热数据结构。
type AccountStats struct {
	Coins       int     `json:"coins"`
	ArenaTokens int     `json:"arena_tokens"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	Rating      float64 `json:"rating"`
}

// --- 并发控制 ---

// repoMutex 保护本模块管理的Redis键在读-改-写序列中的一致性。
var repoMutex sync.RWMutex

// LockRepository 获取模块全局写锁。
func LockRepository() {
	repoMutex.Lock()
}

// UnlockRepository 释放模块全局写锁。
func UnlockRepository() {
	repoMutex.Unlock()
}

// RLockRepository 获取模块全局读锁。
func RLockRepository() {
	repoMutex.RLock()
}

// RUnlockRepository 释放模块全局读锁。
func RUnlockRepository() {
	repoMutex.RUnlock()
}

// --- Redis 访问原语 ---

// GetStatsUnsafe 从Redis读取单个账户的热数据。
// 调用者必须至少持有读锁。
func GetStatsUnsafe(uuidStr string) (*AccountStats, error) {
	val, err := database.RDB.HGet(database.Ctx, StatsKey, uuidStr).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取账户 %s 的热数据: %w", uuidStr, err)
	}

	var stats AccountStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, fmt.Errorf("账户 %s 的热数据损坏: %w", uuidStr, err)
	}
	return &stats, nil
}

// WriteStatsUnsafe 把账户热数据写回Redis，同步更新排行榜和脏集合。
// 调用者必须持有写锁。
func WriteStatsUnsafe(uuidStr string, stats *AccountStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("无法序列化账户热数据: %w", err)
	}

	pipe := database.RDB.TxPipeline()
	pipe.HSet(database.Ctx, StatsKey, uuidStr, payload)
	pipe.ZAdd(database.Ctx, RankingKey, redis.Z{Score: stats.Rating, Member: uuidStr})
	pipe.SAdd(database.Ctx, DirtySetKey, uuidStr)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("无法写入账户 %s 的热数据: %w", uuidStr, err)
	}
	return nil
}

// MutateStats 在写锁内对单个账户执行读-改-写。
// mutate 返回错误时放弃写入并原样返回该错误。
func MutateStats(uuidStr string, mutate func(*AccountStats) error) (*AccountStats, error) {
	LockRepository()
	defer UnlockRepository()

	stats, err := GetStatsUnsafe(uuidStr)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, fmt.Errorf("账户 %s 不存在", uuidStr)
	}

	if err := mutate(stats); err != nil {
		return nil, err
	}
	if err := WriteStatsUnsafe(uuidStr, stats); err != nil {
		return nil, err
	}
	return stats, nil
}
