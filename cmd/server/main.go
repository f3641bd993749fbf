package main

import (
	"log"
	"strconv"

	"llmwars/config"
	"llmwars/controllers"
	"llmwars/db"
	"llmwars/routes"
	"llmwars/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig("./config/config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	warnMissingKey("OPENAI_API_KEY", cfg.Openai.ApiKey)
	warnMissingKey("ANTHROPIC_API_KEY", cfg.Anthropic.ApiKey)
	warnMissingKey("GROK_API_KEY", cfg.Grok.ApiKey)
	warnMissingKey("GEMINI_API_KEY", cfg.Gemini.ApiKey)

	// The database is optional: without a URL every battle lives in memory
	// only and votes are not recorded.
	store := db.Noop()
	if cfg.Database.URL != "" {
		pg, err := db.Postgres(cfg.Database.URL)
		if err != nil {
			log.Printf("Database connection failed, running without persistence: %v", err)
		} else {
			store = pg
			defer pg.Close()
			log.Println("Connected to database")
		}
	} else {
		log.Println("No DATABASE_URL configured, running without persistence")
	}

	llm := services.NewLLMService(cfg)
	battles := services.NewBattleService(llm, store)
	surprise := services.NewSurpriseService(cfg)
	controller := controllers.NewBattleController(battles, surprise)

	router := setupRouter(controller)
	port := strconv.Itoa(cfg.Server.Port)
	log.Printf("Server starting on port %s", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func warnMissingKey(name, value string) {
	if value == "" {
		log.Printf("Warning: %s not configured, that provider will fail at call time", name)
	}
}

func setupRouter(controller *controllers.BattleController) *gin.Engine {
	router := gin.Default()

	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4321", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "LLM Wars API", "status": "running"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	routes.SetupBattleRoutes(router, controller)
	return router
}
