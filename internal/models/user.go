package models

import "time"

type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`

	// Off-chain placeholder for a linked on-chain address. Set once,
	// immutable once non-empty unless re-linking the same address.
	WalletAddress string `json:"wallet_address"`

	// Ephemeral login credential, rotated on every login. Tokens carry it
	// and die when it changes.
	SessionKey string `json:"session_key"`

	Balance int64 `json:"balance"`
	XP      int64 `json:"xp"`
	Level   int64 `json:"level"`

	ReferralCode string `json:"referral_code"`
	ReferredBy   string `json:"referred_by"`

	StreakDays  int64  `json:"streak_days"`
	LastClaimAt string `json:"last_claim_at"` // UTC date, YYYY-MM-DD

	Badges []string `json:"badges"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) HasBadge(key string) bool {
	for _, b := range a.Badges {
		if b == key {
			return true
		}
	}
	return false
}

// Badge is an immutable mint record. The account's badge set gains the key
// at most once even when the same badge is minted repeatedly.
type Badge struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Key    string `json:"key"`
	Title  string `json:"title"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claim records a quest claim; QuestKey carries the dedup suffix for
// daily quests ("daily-login:2026-08-26").
type Claim struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	QuestKey string `json:"quest_key"`
	Reward   int64  `json:"reward"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
