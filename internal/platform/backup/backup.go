package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/metadata"
	"github.com/MoyuArc/pet-arena-backend/pkg/lifecycle"
)

const backupInterval = 10 * time.Minute // 定时快照频率

var backupMutex sync.Mutex // 避免意外竞态

// StartBackupScheduler 启动一个后台Goroutine来定期把Redis中的账户热数据落盘
// 它接收一个lifecycle.Handle来管理其生命周期
func StartBackupScheduler(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("账户数据备份调度器已启动。")

	for {
		// 使用可中断的休眠来代替ticker。
		// 这使得整个循环可以在收到停机信号时立刻从休眠中唤醒并退出。
		if err := handle.Sleep(backupInterval); err != nil {
			fmt.Println("备份调度器: 休眠被中断，正在关闭...")
			return
		}

		if !database.IsRedisHealthy() {
			fmt.Println("备份调度器: 检测到Redis不可用，跳过本次备份。")
			continue
		}

		fmt.Println("备份调度器: 正在执行定时快照...")
		if err := CreateConsistentSnapshotInDB(handle.Ctx()); err != nil {
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("备份调度器错误: 执行快照备份失败: %v\n", err)
			}
		} else {
			fmt.Println("备份调度器: 快照备份成功。")
		}
	}
}

// CreateConsistentSnapshotInDB 执行一次原子的、一致的快照备份。
// 只把自上次快照以来热数据发生过变化的账户（脏集合）增量落到SQLite，
// 同时记录结算进度元数据。
func CreateConsistentSnapshotInDB(ctx context.Context) (err error) {
	backupMutex.Lock()
	defer backupMutex.Unlock()

	var dirtyUUIDs []string
	var statsPayloads []interface{}
	var lastSettledCmd, totalBattlesCmd *redis.StringCmd

	// account模块在两批Redis操作期间保持锁定，确保脏集合与对应热数据不撕裂
	err = func() error {
		account.LockRepository()
		defer account.UnlockRepository()

		// 把脏集合原子迁移到processing集合
		if err := database.RDB.Rename(ctx, account.DirtySetKey, account.ProcessingDirtySetKey).Err(); err != nil {
			if err == redis.Nil || err.Error() == "ERR no such key" {
				return nil // 没有脏数据
			}
			return fmt.Errorf("无法迁移脏集合: %w", err)
		}

		var err error
		dirtyUUIDs, err = database.RDB.SMembers(ctx, account.ProcessingDirtySetKey).Result()
		if err != nil {
			return fmt.Errorf("无法读取待落盘账户: %w", err)
		}
		if len(dirtyUUIDs) == 0 {
			return nil
		}

		pipe := database.RDB.Pipeline()
		statsCmd := pipe.HMGet(ctx, account.StatsKey, dirtyUUIDs...)
		lastSettledCmd = pipe.Get(ctx, metadata.RedisLastSettledSeqKey)
		totalBattlesCmd = pipe.Get(ctx, metadata.RedisTotalBattlesKey)
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return fmt.Errorf("无法批量读取账户热数据: %w", err)
		}
		statsPayloads = statsCmd.Val()
		return nil
	}()
	if err != nil {
		return err
	}
	if len(dirtyUUIDs) == 0 {
		return nil
	}

	// 组装待落盘的账户记录
	accounts := make([]account.Account, 0, len(dirtyUUIDs))
	for i, uuidStr := range dirtyUUIDs {
		raw, ok := statsPayloads[i].(string)
		if !ok {
			continue
		}
		var stats account.AccountStats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			fmt.Printf("备份警告: 账户 %s 的热数据损坏，跳过: %v\n", uuidStr, err)
			continue
		}
		accounts = append(accounts, account.Account{
			UUID:        uuidStr,
			Coins:       stats.Coins,
			ArenaTokens: stats.ArenaTokens,
			Wins:        stats.Wins,
			Losses:      stats.Losses,
			Draws:       stats.Draws,
			Rating:      stats.Rating,
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if len(accounts) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uuid"}},
				UpdateAll: true,
			}).Create(&accounts).Error; err != nil {
				return fmt.Errorf("无法落盘账户数据: %w", err)
			}
		}

		if lastSettledCmd != nil {
			if raw, err := lastSettledCmd.Result(); err == nil {
				if seq, err := strconv.ParseUint(raw, 10, 32); err == nil {
					if err := metadata.SetLastSnapshotSettlementSeq(tx, uint(seq)); err != nil {
						return err
					}
				}
			}
		}
		if totalBattlesCmd != nil {
			if raw, err := totalBattlesCmd.Result(); err == nil {
				if total, err := strconv.ParseInt(raw, 10, 64); err == nil {
					if err := metadata.SetSnapshotTotalBattles(tx, total); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})

	if err != nil {
		// 落盘失败，把这批账户放回脏集合等待下次重试
		if s := database.RDB.SUnionStore(ctx, account.DirtySetKey, account.DirtySetKey, account.ProcessingDirtySetKey); s.Err() != nil {
			fmt.Printf("严重: 无法恢复脏集合，%d 个账户的变更可能丢失: %v\n", len(dirtyUUIDs), s.Err())
		}
		database.RDB.Del(ctx, account.ProcessingDirtySetKey)
		return err
	}

	database.RDB.Del(ctx, account.ProcessingDirtySetKey)
	fmt.Printf("快照完成: %d 个账户已落盘。\n", len(accounts))
	return nil
}
