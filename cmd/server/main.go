package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MoyuArc/pet-arena-backend/api"
	"github.com/MoyuArc/pet-arena-backend/internal/battle"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/backup"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/config"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/health"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/shutdown"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/startup"
	"github.com/MoyuArc/pet-arena-backend/pkg/lifecycle"
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
	"github.com/MoyuArc/pet-arena-backend/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}

	token.GenerateSecretKey()
	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 把数值配置注入游戏模块
	pet.ConfigureModule(cfg.Game.Pet)
	battle.ConfigureModule(cfg.Game.Battle)

	// 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 异步启动后台的持续健康检查器
	go health.StartRedisHealthCheck()

	// --- 启动后台服务 ---
	gracefulManager := lifecycle.NewManager()
	forcefulManager := lifecycle.NewManager()

	decayHandle, err := gracefulManager.NewServiceHandle("衰减调度器")
	if err != nil {
		panic(fmt.Sprintf("无法创建衰减调度器句柄: %v", err))
	}
	go pet.StartDecayScheduler(decayHandle, random.NewSecure())

	settleGraceful, err := gracefulManager.NewServiceHandle("结算器")
	if err != nil {
		panic(fmt.Sprintf("无法创建结算器句柄: %v", err))
	}
	settleForceful, err := forcefulManager.NewServiceHandle("结算器(强制)")
	if err != nil {
		panic(fmt.Sprintf("无法创建结算器强制句柄: %v", err))
	}
	go battle.StartSettlementProcessor(settleGraceful, settleForceful)

	backupHandle, err := gracefulManager.NewServiceHandle("备份调度器")
	if err != nil {
		panic(fmt.Sprintf("无法创建备份调度器句柄: %v", err))
	}
	go backup.StartBackupScheduler(backupHandle)

	// --- HTTP服务器 ---
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("服务器启动失败: " + err.Error())
		}
	}()

	// 阻塞等待停机信号，执行两阶段优雅停机和最终快照
	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.ListenForSignalsAndShutdown(server)
}
