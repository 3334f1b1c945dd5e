package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/services"
)

type MatchHandler struct {
	engine *services.MatchEngine
}

func NewMatchHandler(engine *services.MatchEngine) *MatchHandler {
	return &MatchHandler{engine: engine}
}

type createMatchRequest struct {
	GameKey  string `json:"game_key" binding:"required"`
	EntryFee int64  `json:"entry_fee"`
	Seed     int64  `json:"seed"`
}

func (h *MatchHandler) CreateMatch(c *gin.Context) {
	userID := c.GetString("user_id")

	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	match, err := h.engine.Create(c.Request.Context(), req.GameKey, userID, req.EntryFee, req.Seed)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

func (h *MatchHandler) GetMatch(c *gin.Context) {
	match, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

func (h *MatchHandler) JoinMatch(c *gin.Context) {
	userID := c.GetString("user_id")

	match, err := h.engine.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

func (h *MatchHandler) StartMatch(c *gin.Context) {
	userID := c.GetString("user_id")

	match, err := h.engine.Start(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

type submitScoreRequest struct {
	Score  int64  `json:"score"`
	Reveal string `json:"reveal"`
}

func (h *MatchHandler) SubmitScore(c *gin.Context) {
	userID := c.GetString("user_id")

	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	match, err := h.engine.SubmitScore(c.Request.Context(), c.Param("id"), userID, req.Score, req.Reveal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

type tipRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *MatchHandler) TipMatch(c *gin.Context) {
	userID := c.GetString("user_id")

	var req tipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	match, err := h.engine.Tip(c.Request.Context(), c.Param("id"), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

func (h *MatchHandler) FinishMatch(c *gin.Context) {
	match, err := h.engine.Finish(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}

func (h *MatchHandler) CancelMatch(c *gin.Context) {
	userID := c.GetString("user_id")

	match, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": matchJSON(match)})
}
