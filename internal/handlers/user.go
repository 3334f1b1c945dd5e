package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pupfi-arcade-backend/internal/services"
)

type UserHandler struct {
	accounts   *services.AccountService
	ledger     *services.Ledger
	jwtService *services.JWTService
}

func NewUserHandler(accounts *services.AccountService, ledger *services.Ledger, jwtService *services.JWTService) *UserHandler {
	return &UserHandler{
		accounts:   accounts,
		ledger:     ledger,
		jwtService: jwtService,
	}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	acct, err := h.accounts.Create(c.Request.Context(), req.Username, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.jwtService.GenerateToken(acct.ID, acct.SessionKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  accountJSON(acct),
		"token": token,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	acct, err := h.accounts.Login(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.jwtService.GenerateToken(acct.ID, acct.SessionKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  accountJSON(acct),
		"token": token,
	})
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString("user_id")

	acct, err := h.accounts.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	acct, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

type linkWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *UserHandler) LinkWallet(c *gin.Context) {
	userID := c.GetString("user_id")

	var req linkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	acct, err := h.accounts.LinkWallet(c.Request.Context(), userID, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

type mintBadgeRequest struct {
	Key   string `json:"key" binding:"required"`
	Title string `json:"title"`
}

func (h *UserHandler) MintBadge(c *gin.Context) {
	userID := c.GetString("user_id")

	var req mintBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	acct, err := h.accounts.MintBadge(c.Request.Context(), userID, req.Key, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

func (h *UserHandler) ClaimQuest(c *gin.Context) {
	userID := c.GetString("user_id")

	claim, err := h.accounts.ClaimQuest(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claim": gin.H{
			"id":         claim.ID,
			"quest_key":  claim.QuestKey,
			"reward":     claim.Reward,
			"created_at": claim.CreatedAt,
		},
	})
}

type amountRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (h *UserHandler) Earn(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual_earn"
	}

	acct, err := h.ledger.Credit(c.Request.Context(), c.Param("id"), req.Amount, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

func (h *UserHandler) Spend(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual_spend"
	}

	acct, err := h.ledger.Debit(c.Request.Context(), c.Param("id"), req.Amount, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

type transferRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
	Reason   string `json:"reason"`
}

func (h *UserHandler) Transfer(c *gin.Context) {
	userID := c.GetString("user_id")

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "transfer"
	}

	if err := h.ledger.Transfer(c.Request.Context(), userID, req.ToUserID, req.Amount, reason); err != nil {
		respondError(c, err)
		return
	}

	acct, err := h.accounts.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": accountJSON(acct)})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	txs, err := h.ledger.Transactions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(txs))
	for _, tx := range txs {
		out = append(out, gin.H{
			"id":         tx.ID,
			"amount":     tx.Amount,
			"kind":       tx.Kind,
			"reason":     tx.Reason,
			"created_at": tx.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": out})
}
