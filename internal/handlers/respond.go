package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/models"
)

// respondError maps the domain error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500 with a generic body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// matchJSON builds the public view of a match. The server secret never
// leaves the engine; the reveal and final seed appear once set.
func matchJSON(m *models.Match) gin.H {
	out := gin.H{
		"id":          m.ID,
		"game_key":    m.GameKey,
		"creator_id":  m.CreatorID,
		"status":      m.Status,
		"players":     m.Players,
		"scores":      m.Scores,
		"winner_id":   m.WinnerID,
		"entry_fee":   m.EntryFee,
		"reward":      m.Reward,
		"tip_total":   m.TipTotal,
		"seed":        m.Seed,
		"commitment":  m.Commitment,
		"max_players": m.MaxPlayers,
		"created_at":  m.CreatedAt,
		"updated_at":  m.UpdatedAt,
	}
	if m.ClientReveal != "" {
		out["client_reveal"] = m.ClientReveal
		out["final_seed"] = m.FinalSeed
	}
	return out
}

// accountJSON builds the public view of an account. The session key is a
// credential and stays server side.
func accountJSON(a *models.Account) gin.H {
	return gin.H{
		"id":             a.ID,
		"username":       a.Username,
		"display_name":   a.DisplayName,
		"avatar_url":     a.AvatarURL,
		"wallet_address": a.WalletAddress,
		"balance":        a.Balance,
		"xp":             a.XP,
		"level":          a.Level,
		"referral_code":  a.ReferralCode,
		"streak_days":    a.StreakDays,
		"badges":         a.Badges,
		"created_at":     a.CreatedAt,
	}
}
