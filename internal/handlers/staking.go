package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/services"
)

type StakingHandler struct {
	staking *services.StakingService
}

func NewStakingHandler(staking *services.StakingService) *StakingHandler {
	return &StakingHandler{staking: staking}
}

type stakeRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *StakingHandler) Stake(c *gin.Context) {
	userID := c.GetString("user_id")

	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	pool, err := h.staking.Stake(c.Request.Context(), userID, c.Param("pool_key"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pool": poolJSON(pool)})
}

func (h *StakingHandler) GetPool(c *gin.Context) {
	pool, err := h.staking.Pool(c.Request.Context(), c.Param("pool_key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pool": poolJSON(pool)})
}

func (h *StakingHandler) ListPools(c *gin.Context) {
	pools, err := h.staking.Pools(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(pools))
	for i := range pools {
		out = append(out, poolJSON(&pools[i]))
	}

	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func poolJSON(p *models.StakingPool) gin.H {
	return gin.H{
		"key":          p.Key,
		"name":         p.Name,
		"total_staked": p.TotalStaked,
		"participants": p.Participants,
		"updated_at":   p.UpdatedAt,
	}
}
