package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
	accounts    *services.AccountService
}

func NewLeaderboardHandler(leaderboard *services.LeaderboardService, accounts *services.AccountService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		accounts:    accounts,
	}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	entries, err := h.leaderboard.Query(c.Request.Context(), c.Param("game_key"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	// Names resolve per row so renames show up without rewriting entries.
	names := map[string]string{}
	out := make([]gin.H, 0, len(entries))
	for i, entry := range entries {
		name := entry.DisplayName
		if name == "" {
			cached, ok := names[entry.UserID]
			if !ok {
				cached = h.accounts.ResolveDisplayName(c.Request.Context(), entry.UserID)
				names[entry.UserID] = cached
			}
			name = cached
		}
		out = append(out, gin.H{
			"rank":         i + 1,
			"user_id":      entry.UserID,
			"display_name": name,
			"score":        entry.Score,
			"created_at":   entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"game_key": c.Param("game_key"),
		"entries":  out,
	})
}

type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

func (h *CatalogHandler) ListGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"games": models.Games()})
}

func (h *CatalogHandler) ListQuests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"quests": models.Quests()})
}
