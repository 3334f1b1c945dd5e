package models

import "time"

type MatchStatus string

const (
	MatchWaiting   MatchStatus = "waiting"
	MatchActive    MatchStatus = "active"
	MatchFinished  MatchStatus = "finished"
	MatchCancelled MatchStatus = "cancelled"
)

type Match struct {
	ID        string      `json:"id"`
	GameKey   string      `json:"game_key"`
	CreatorID string      `json:"creator_id"`
	Status    MatchStatus `json:"status"`

	// Players in join order; the slice only grows while status is waiting.
	Players []string `json:"players"`
	// Best score seen so far per player id; monotonically non-decreasing.
	Scores map[string]int64 `json:"scores"`

	WinnerID string `json:"winner_id"`

	EntryFee int64 `json:"entry_fee"`
	Reward   int64 `json:"reward"`
	TipTotal int64 `json:"tip_total"`

	// Commit-reveal state. The server secret is generated at creation and
	// only the commitment (its hash) ever leaves the engine. ClientReveal
	// and FinalSeed are written once, on the first reveal.
	Seed         int64  `json:"seed"`
	ServerSecret string `json:"server_secret"`
	Commitment   string `json:"commitment"`
	ClientReveal string `json:"client_reveal"`
	FinalSeed    int64  `json:"final_seed"`

	MaxPlayers int64 `json:"max_players"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Match) HasPlayer(userID string) bool {
	for _, p := range m.Players {
		if p == userID {
			return true
		}
	}
	return false
}

func (m *Match) Terminal() bool {
	return m.Status == MatchFinished || m.Status == MatchCancelled
}

// RewardForFee fixes the pot at creation time: floor(fee * 1.8). A zero
// entry fee yields a zero reward.
func RewardForFee(entryFee int64) int64 {
	return entryFee * 18 / 10
}
