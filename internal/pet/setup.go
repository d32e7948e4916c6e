package pet

import (
	"fmt"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/config"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
)

// tuning 保存从配置加载的衰减速率。
// 在ConfigureModule之前使用时为默认值，保证测试无需配置文件。
var tuning = config.PetConfig{
	MaxPerAccount:         10,
	HungerDecayPerHour:    5,
	HappinessDecayPerHour: 3,
	EnergyRecoveryPerHour: 10,
	DecayInterval:         time.Hour,
	DecayWorkers:          8,
}

// ConfigureModule 将配置注入宠物模块。必须在启动衰减调度器之前调用。
func ConfigureModule(cfg config.PetConfig) {
	tuning = cfg
}

// PrimeDB 确保宠物表的结构是最新的
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Pet{}); err != nil {
		return fmt.Errorf("无法迁移宠物表: %w", err)
	}
	return nil
}

// InitializeModule 从数据库重建内存中的匹配索引
func InitializeModule() error {
	pets, err := ListBattleReady()
	if err != nil {
		return fmt.Errorf("无法加载可参战宠物: %w", err)
	}
	RebuildMatchmakingIndex(pets)
	fmt.Printf("宠物匹配索引构建完成，共 %d 只可参战宠物\n", len(pets))
	return nil
}
