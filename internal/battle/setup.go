package battle

import (
	"fmt"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/config"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
)

// moduleCfg 保存从配置加载的对战参数。
// 在ConfigureModule之前使用时为默认值，保证测试无需配置文件。
var moduleCfg = config.BattleConfig{
	TurnTimeLimit: 30 * time.Second,
	ChallengeTTL:  24 * time.Hour,
}

// moduleRNG 是对战模块全局使用的随机源。
// 测试通过SetRandomSource注入可复现的种子源。
var moduleRNG random.Source = random.NewSecure()

// ConfigureModule 将配置注入对战模块。必须在注册路由之前调用。
func ConfigureModule(cfg config.BattleConfig) {
	moduleCfg = cfg
}

// SetRandomSource 替换对战模块的随机源
func SetRandomSource(rng random.Source) {
	moduleRNG = rng
}

// PrimeDB 确保对战相关表的结构是最新的
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Battle{}, &BattleMove{}); err != nil {
		return fmt.Errorf("无法迁移对战表: %w", err)
	}
	fmt.Println("Battle数据库表迁移成功。")
	return nil
}

// ExpireStalePending 把所有超过存活时间的pending挑战标记为过期。
// 启动时调用一次，之后由读路径的轮询兜底。
func ExpireStalePending() {
	ids, err := ListStalePendingIDs(moduleCfg.ChallengeTTL, 1000)
	if err != nil {
		fmt.Printf("警告: 无法巡查过期挑战: %v\n", err)
		return
	}
	for _, id := range ids {
		func() {
			LockSession(id)
			defer UnlockSession(id)
			b, err := loadBattle(id)
			if err != nil {
				return
			}
			expireIfStale(b)
		}()
	}
	if len(ids) > 0 {
		fmt.Printf("已处理 %d 场过期挑战。\n", len(ids))
	}
}
