package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// GameConfig 汇总了模拟与对战引擎的所有数值配置
type GameConfig struct {
	Pet    PetConfig    `mapstructure:"pet"`
	Battle BattleConfig `mapstructure:"battle"`
}

// PetConfig 定义了宠物生命周期引擎的数值配置
type PetConfig struct {
	// MaxPerAccount 是单个账号可拥有的宠物数量上限
	MaxPerAccount int `mapstructure:"maxPerAccount"`

	// 每小时的属性衰减/恢复速率
	HungerDecayPerHour    int `mapstructure:"hungerDecayPerHour"`
	HappinessDecayPerHour int `mapstructure:"happinessDecayPerHour"`
	EnergyRecoveryPerHour int `mapstructure:"energyRecoveryPerHour"`

	// DecayInterval 是衰减调度器的扫描周期
	DecayInterval time.Duration `mapstructure:"decayInterval"`
	// DecayWorkers 是单次扫描中并行处理宠物的worker数量
	DecayWorkers int `mapstructure:"decayWorkers"`
}

// BattleConfig 定义了对战引擎的数值配置
type BattleConfig struct {
	// TurnTimeLimit 是每回合的出招时限
	TurnTimeLimit time.Duration `mapstructure:"turnTimeLimit"`
	// ChallengeTTL 是pending状态的挑战在被标记为expired前的存活时间
	ChallengeTTL time.Duration `mapstructure:"challengeTTL"`
}

// setDefaults 注册所有配置项的默认值。
// 数值默认与最初的线上配置保持一致：饥饿5/小时、快乐3/小时、体力恢复10/小时。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.sqlite.path", "arena.db")

	v.SetDefault("game.pet.maxPerAccount", 10)
	v.SetDefault("game.pet.hungerDecayPerHour", 5)
	v.SetDefault("game.pet.happinessDecayPerHour", 3)
	v.SetDefault("game.pet.energyRecoveryPerHour", 10)
	v.SetDefault("game.pet.decayInterval", time.Hour)
	v.SetDefault("game.pet.decayWorkers", 8)

	v.SetDefault("game.battle.turnTimeLimit", 30*time.Second)
	v.SetDefault("game.battle.challengeTTL", 24*time.Hour)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件，找不到时使用全部默认值
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:8888
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件缺失不是致命错误，全部走默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg

	return Cfg, nil
}
