package account

import (
	"time"

	"gorm.io/gorm"
)

// Account 定义了账户在SQLite数据库中的持久化模型。
// 热数据（金币、战绩、分数）运行期间放在Redis，
// 这张表只存储作为快照基础的数据。
type Account struct {
	// UUID 是账户的主键，来自客户端Cookie。
	UUID string `gorm:"primarykey;type:varchar(36)"`

	// Coins 是可用于下注的软货币
	Coins int

	// ArenaTokens 是锦标赛和公会对战发放的竞技场代币
	ArenaTokens int

	// --- 对战战绩 ---

	Wins   int
	Losses int
	Draws  int

	// Rating 是排位对战的ELO分数
	Rating float64

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

const (
	// InitialCoins 是新账户的初始金币
	InitialCoins = 100
	// InitialRating 是新账户的初始ELO分数
	InitialRating = 1000.0
)
