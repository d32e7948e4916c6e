package account

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// CreateProvisionalAccount 生成一个临时的、尚未持久化的新账户UUID。
// 这个UUID将被设置到cookie中，真正的激活发生在首次请求处理时。
func CreateProvisionalAccount() (string, error) {
	newUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return newUUID.String(), nil
}

// IsValidUUID 校验字符串是否为合法的UUID格式
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// IsAccountActivated 检查一个UUID是否已经被持久化。只查Redis缓存。
func IsAccountActivated(uuidStr string) (bool, error) {
	if uuidStr == "" {
		return false, nil
	}
	exists, err := database.RDB.SIsMember(database.Ctx, KnownAccountsKey, uuidStr).Result()
	if err != nil {
		return false, fmt.Errorf("检查Redis账户缓存时出错: %w", err)
	}
	return exists, nil
}

// ActivateAccount 将一个临时UUID正式持久化到数据库和缓存中，
// 并写入初始金币和初始分数。操作是幂等的。
func ActivateAccount(uuidStr string) error {
	activated, err := IsAccountActivated(uuidStr)
	if err != nil {
		return err
	}
	if activated {
		return nil
	}

	tx := database.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("无法开始数据库事务: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	newAccount := Account{
		UUID:   uuidStr,
		Coins:  InitialCoins,
		Rating: InitialRating,
	}
	if err := tx.Create(&newAccount).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("无法在SQLite中创建新账户: %w", err)
	}

	// 初始化Redis热数据。失败时回滚SQLite写入，保证两边一致。
	LockRepository()
	defer UnlockRepository()

	if err := WriteStatsUnsafe(uuidStr, &AccountStats{
		Coins:  InitialCoins,
		Rating: InitialRating,
	}); err != nil {
		tx.Rollback()
		return err
	}
	if err := database.RDB.SAdd(database.Ctx, KnownAccountsKey, uuidStr).Err(); err != nil {
		tx.Rollback()
		return fmt.Errorf("无法将新账户 %s 添加到Redis缓存: %w", uuidStr, err)
	}

	return tx.Commit().Error
}

// GetStats 读取单个账户的热数据
func GetStats(uuidStr string) (*AccountStats, error) {
	RLockRepository()
	defer RUnlockRepository()
	return GetStatsUnsafe(uuidStr)
}

// --- 货币操作 ---
// 对战模块用这两个函数实现赌注的托管和派发。

// DebitCoins 从账户扣除金币。余额不足时返回资源不足错误且不产生任何变化。
func DebitCoins(uuidStr string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("扣款金额不能为负数")
	}
	_, err := MutateStats(uuidStr, func(s *AccountStats) error {
		if s.Coins < amount {
			return gameerr.ErrInsufficientResource
		}
		s.Coins -= amount
		return nil
	})
	return err
}

// CreditCoins 向账户发放金币
func CreditCoins(uuidStr string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("发放金额不能为负数")
	}
	if amount == 0 {
		return nil
	}
	_, err := MutateStats(uuidStr, func(s *AccountStats) error {
		s.Coins += amount
		return nil
	})
	return err
}

// --- 战绩与排位 ---

// BattleOutcome 描述一次结算对某个账户战绩的影响
type BattleOutcome struct {
	Won        bool
	Lost       bool
	Draw       bool
	CoinPrize  int
	TokenPrize int      // 锦标赛和公会对战发放的竞技场代币
	NewRating  *float64 // 非排位对战不变更分数
}

// ApplyBattleOutcome 把一次对战结果落到账户热数据上
func ApplyBattleOutcome(uuidStr string, outcome BattleOutcome) error {
	_, err := MutateStats(uuidStr, func(s *AccountStats) error {
		switch {
		case outcome.Won:
			s.Wins++
		case outcome.Lost:
			s.Losses++
		case outcome.Draw:
			s.Draws++
		}
		s.Coins += outcome.CoinPrize
		s.ArenaTokens += outcome.TokenPrize
		if outcome.NewRating != nil {
			s.Rating = *outcome.NewRating
		}
		return nil
	})
	return err
}

// LeaderboardEntry 是排行榜的单行数据
type LeaderboardEntry struct {
	UUID   string  `json:"uuid"`
	Rating float64 `json:"rating"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Draws  int     `json:"draws"`
}

// GetLeaderboard 从Redis排行榜读取分数最高的前N个账户
func GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	RLockRepository()
	defer RUnlockRepository()

	members, err := database.RDB.ZRevRangeWithScores(database.Ctx, RankingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("无法读取排行榜: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		uuidStr, ok := m.Member.(string)
		if !ok {
			continue
		}
		entry := LeaderboardEntry{UUID: uuidStr, Rating: m.Score}
		if stats, err := GetStatsUnsafe(uuidStr); err == nil && stats != nil {
			entry.Wins = stats.Wins
			entry.Losses = stats.Losses
			entry.Draws = stats.Draws
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
