package startup

import (
	"context"
	"fmt"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/battle"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/backup"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/metadata"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeCachedDB(); err != nil {
		return err
	}
	if err := account.PrimeCachedDB(); err != nil {
		return err
	}
	if err := pet.PrimeDB(); err != nil {
		return err
	}
	if err := battle.PrimeDB(); err != nil {
		return err
	}

	// 快照之后结算的对战还没有反映在刚预热的账户热数据里，补上
	lastSnapshotSeq, err := metadata.GetLastSnapshotSettlementSeq(database.DB)
	if err != nil {
		return err
	}
	if err := battle.ReplaySettledOutcomes(lastSnapshotSeq); err != nil {
		return err
	}

	if err := pet.InitializeModule(); err != nil {
		return err
	}
	battle.ExpireStalePending()

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数。
// Redis重启后，健康检查器用它把SQLite中的快照数据恢复到缓存，
// 并重放快照之后已结算对战的账户侧结果。
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := metadata.WarmupCache(); err != nil {
		return err
	}
	if err := account.WarmupCache(); err != nil {
		return err
	}

	lastSnapshotSeq, err := metadata.GetLastSnapshotSettlementSeq(database.DB)
	if err != nil {
		return err
	}
	if err := battle.ReplaySettledOutcomes(lastSnapshotSeq); err != nil {
		return err
	}

	// 宠物本体一直在SQLite中，重建只需要刷新内存匹配索引
	if err := pet.InitializeModule(); err != nil {
		return err
	}

	// 触发一次新的快照，让检查点立刻前进到重建完成的时刻
	fmt.Println("缓存热重建完成，正在触发一次新的数据快照...")
	if err := backup.CreateConsistentSnapshotInDB(context.Background()); err != nil {
		fmt.Printf("警告: 缓存热重建后的快照创建失败: %v\n", err)
	}

	return nil
}
