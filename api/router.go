package api

import (
	"github.com/gin-gonic/gin"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/battle"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(account.EnsureAccountCookieMiddleware(), account.RequireActivatedAccountMiddleware())
	{
		// 账户相关的路由
		api.GET("/me", account.HandleGetProfile)
		api.GET("/leaderboard", account.HandleGetLeaderboard)

		// 宠物相关的路由组
		petRoutes := api.Group("/pets")
		{
			petRoutes.POST("", pet.HandleAdoptPet)
			petRoutes.GET("", pet.HandleListPets)
			petRoutes.GET("/:id", pet.HandleGetPet)
			petRoutes.PATCH("/:id", pet.HandleUpdatePet)

			// 照料操作
			petRoutes.POST("/:id/feed", pet.HandleFeedPet)
			petRoutes.POST("/:id/play", pet.HandlePlayWithPet)
			petRoutes.POST("/:id/caress", pet.HandleCaressPet)
			petRoutes.POST("/:id/heal", pet.HandleHealPet)
			petRoutes.POST("/:id/sleep", pet.HandleSleepPet)
			petRoutes.POST("/:id/wake", pet.HandleWakePet)
		}

		// 对战相关的路由组
		battleRoutes := api.Group("/battles")
		{
			battleRoutes.POST("", battle.HandleCreateBattle)
			battleRoutes.GET("", battle.HandleListBattles)
			battleRoutes.GET("/:id", battle.HandleGetBattle)
			battleRoutes.POST("/:id/accept", battle.HandleAcceptBattle)
			battleRoutes.POST("/:id/move", battle.HandleSubmitMove)
			battleRoutes.POST("/:id/cancel", battle.HandleCancelBattle)
			battleRoutes.POST("/:id/forfeit", battle.HandleForfeitBattle)
		}
	}
}
