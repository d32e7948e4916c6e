package metadata

import (
	"fmt"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// PrimeDB 负责初始化metadata模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	fmt.Println("Metadata数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite中最近一次快照的检查点恢复Redis里的结算进度计数
func WarmupCache() error {
	lastSeq, err := GetLastSnapshotSettlementSeq(database.DB)
	if err != nil {
		return fmt.Errorf("无法读取快照检查点: %w", err)
	}
	totalBattles, err := GetSnapshotTotalBattles(database.DB)
	if err != nil {
		return fmt.Errorf("无法读取快照对战总数: %w", err)
	}

	pipe := database.RDB.Pipeline()
	pipe.Set(database.Ctx, RedisLastSettledSeqKey, lastSeq, 0)
	pipe.Set(database.Ctx, RedisTotalBattlesKey, totalBattles, 0)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("无法预热结算元数据到Redis: %w", err)
	}
	return nil
}

// PrimeCachedDB 是metadata模块的初始化总入口
func PrimeCachedDB() error {
	if err := PrimeDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
