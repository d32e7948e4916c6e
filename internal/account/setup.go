package account

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// migrateDB 负责自动迁移账户表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Account{}); err != nil {
		return fmt.Errorf("无法迁移account表: %w", err)
	}
	fmt.Println("Account数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite加载所有账户，重建Redis中的热数据、排行榜和已知账户集合
func WarmupCache() error {
	var accounts []Account
	if err := database.DB.Find(&accounts).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取账户数据: %w", err)
	}

	LockRepository()
	defer UnlockRepository()

	// 先清空旧缓存，确保重建后的数据一致
	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, StatsKey, RankingKey, KnownAccountsKey, DirtySetKey, ProcessingDirtySetKey)

	if len(accounts) == 0 {
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("清理账户缓存失败: %w", err)
		}
		fmt.Println("无现有账户数据，无需预热账户缓存。")
		return nil
	}

	statsMap := make(map[string]interface{}, len(accounts))
	rankingMembers := make([]redis.Z, 0, len(accounts))
	knownUUIDs := make([]interface{}, 0, len(accounts))

	for _, a := range accounts {
		payload, err := json.Marshal(AccountStats{
			Coins:       a.Coins,
			ArenaTokens: a.ArenaTokens,
			Wins:        a.Wins,
			Losses:      a.Losses,
			Draws:       a.Draws,
			Rating:      a.Rating,
		})
		if err != nil {
			return fmt.Errorf("无法序列化账户 %s 的热数据: %w", a.UUID, err)
		}
		statsMap[a.UUID] = payload
		rankingMembers = append(rankingMembers, redis.Z{Score: a.Rating, Member: a.UUID})
		knownUUIDs = append(knownUUIDs, a.UUID)
	}

	pipe.HSet(database.Ctx, StatsKey, statsMap)
	pipe.ZAdd(database.Ctx, RankingKey, rankingMembers...)
	pipe.SAdd(database.Ctx, KnownAccountsKey, knownUUIDs...)

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热账户数据到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个账户到Redis。\n", len(accounts))
	return nil
}

// PrimeCachedDB 是account模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
