package routes

import (
	"github.com/gin-gonic/gin"

	"llmwars/controllers"
)

// SetupBattleRoutes registers the battle API under /api/battle.
func SetupBattleRoutes(router *gin.Engine, bc *controllers.BattleController) {
	battle := router.Group("/api/battle")
	{
		battle.POST("/", bc.CreateBattle)
		battle.GET("/", bc.ListBattles)
		// Registered before /:id so "surprise" is not read as an identifier.
		battle.GET("/surprise", bc.SurpriseBattle)
		battle.GET("/:id", bc.GetBattle)
		battle.GET("/:id/config", bc.GetBattleConfig)
		battle.POST("/:id/run", bc.RunBattle)
		battle.GET("/:id/stream", bc.StreamBattle)
		battle.POST("/:id/vote", bc.Vote)
		battle.GET("/:id/votes", bc.VoteCounts)
	}
}
