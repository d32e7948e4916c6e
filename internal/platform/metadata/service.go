package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- 通用访问器 ---

// GetValue 从metadata表中读取指定键的值，键不存在时返回空字符串。
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 在事务中创建或更新指定键的值。
func SetValue(db *gorm.DB, key, value string) error {
	// 使用GORM的OnConflict子句实现原子的upsert
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// --- 类型转换辅助函数 ---

// GetLastSnapshotSettlementSeq 读取并解析最近一次快照覆盖的结算序号。
func GetLastSnapshotSettlementSeq(db *gorm.DB) (uint, error) {
	valueStr, err := GetValue(db, LastSnapshotSettlementSeqKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastSnapshotSettlementSeqKey, err)
	}
	return uint(seq), nil
}

// SetLastSnapshotSettlementSeq 写入最近一次快照覆盖的结算序号。
func SetLastSnapshotSettlementSeq(db *gorm.DB, seq uint) error {
	valueStr := strconv.FormatUint(uint64(seq), 10)
	return SetValue(db, LastSnapshotSettlementSeqKey, valueStr)
}

// GetSnapshotTotalBattles 读取并解析快照时刻的对战总数。
func GetSnapshotTotalBattles(db *gorm.DB) (int64, error) {
	valueStr, err := GetValue(db, SnapshotTotalBattlesKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	count, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", SnapshotTotalBattlesKey, err)
	}
	return count, nil
}

// SetSnapshotTotalBattles 写入快照时刻的对战总数。
func SetSnapshotTotalBattles(db *gorm.DB, count int64) error {
	return SetValue(db, SnapshotTotalBattlesKey, strconv.FormatInt(count, 10))
}

// GetLastDecaySweepAt 读取最近一次衰减扫描完成的时间。
// 从未扫描过时返回零值时间。
func GetLastDecaySweepAt(db *gorm.DB) (time.Time, error) {
	valueStr, err := GetValue(db, LastDecaySweepAtKey)
	if err != nil {
		return time.Time{}, err
	}
	if valueStr == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastDecaySweepAtKey, err)
	}
	return t, nil
}

// SetLastDecaySweepAt 写入最近一次衰减扫描完成的时间。
func SetLastDecaySweepAt(db *gorm.DB, t time.Time) error {
	return SetValue(db, LastDecaySweepAtKey, t.UTC().Format(time.RFC3339))
}
