package controllers

import (
	"errors"
	"io"
	"log"

	"github.com/gin-gonic/gin"

	"llmwars/models"
	"llmwars/services"
)

// BattleController exposes battle orchestration over HTTP.
type BattleController struct {
	battles  *services.BattleService
	surprise *services.SurpriseService
}

func NewBattleController(battles *services.BattleService, surprise *services.SurpriseService) *BattleController {
	return &BattleController{battles: battles, surprise: surprise}
}

type voteRequest struct {
	Provider models.Provider `json:"provider" binding:"required"`
}

// CreateBattle validates the payload and stores a fresh pending battle.
func (bc *BattleController) CreateBattle(c *gin.Context) {
	var req models.BattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	state, err := bc.battles.CreateBattle(&req)
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, bc.battles.Response(state))
}

// GetBattle returns the current state of a battle.
func (bc *BattleController) GetBattle(c *gin.Context) {
	state, err := bc.battles.GetBattle(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, bc.battles.Response(state))
}

// GetBattleConfig returns the configuration of a battle, for replays.
func (bc *BattleController) GetBattleConfig(c *gin.Context) {
	config, err := bc.battles.GetBattleConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, config)
}

// ListBattles returns every in-memory battle.
func (bc *BattleController) ListBattles(c *gin.Context) {
	c.JSON(200, bc.battles.AllBattles())
}

// RunBattle runs every round to completion and returns the final state.
// Provider failures surface in the returned state, not as an HTTP error.
func (bc *BattleController) RunBattle(c *gin.Context) {
	state, err := bc.battles.RunBattle(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, bc.battles.Response(state))
}

// StreamBattle runs the battle and streams each message over SSE as it is
// generated, terminated by a complete or error event. Closing the
// connection cancels the run.
func (bc *BattleController) StreamBattle(c *gin.Context) {
	messages, errs, err := bc.battles.RunBattleStream(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		msg, ok := <-messages
		if !ok {
			if err := <-errs; err != nil {
				c.SSEvent("message", gin.H{"type": "error", "message": err.Error()})
			} else {
				c.SSEvent("message", gin.H{"type": "complete"})
			}
			return false
		}
		c.SSEvent("message", msg)
		return true
	})
}

// SurpriseBattle generates a random battle configuration.
func (bc *BattleController) SurpriseBattle(c *gin.Context) {
	config, err := bc.surprise.Generate(c.Request.Context())
	if err != nil {
		log.Printf("Surprise generation failed: %v", err)
		c.JSON(502, gin.H{"error": "Failed to generate battle configuration"})
		return
	}
	c.JSON(200, config)
}

// Vote records a vote for a provider in a battle.
func (bc *BattleController) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	if err := bc.battles.RecordVote(c.Request.Context(), c.Param("id"), req.Provider); err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}

// VoteCounts returns the vote tally per provider for a battle.
func (bc *BattleController) VoteCounts(c *gin.Context) {
	counts, err := bc.battles.VoteCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"votes": counts})
}

func (bc *BattleController) writeError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrBattleNotFound):
		c.JSON(404, gin.H{"error": "Battle not found"})
	case errors.Is(err, services.ErrBattleBusy):
		c.JSON(409, gin.H{"error": "Battle is already running"})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}
