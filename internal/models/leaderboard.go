package models

import "time"

// LeaderboardEntry is an append-only record, one per match finish that has
// a winner. Entries are never mutated and a user may appear many times for
// the same game. DisplayName may be empty; resolution is the read side's
// concern.
type LeaderboardEntry struct {
	ID          string `json:"id"`
	GameKey     string `json:"game_key"`
	UserID      string `json:"user_id"`
	Score       int64  `json:"score"`
	DisplayName string `json:"display_name"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
