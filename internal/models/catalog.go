package models

// Static catalog data. Games and quests are in-process constants, not
// engine state; the match engine only consults MaxPlayersFor.

type Game struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxPlayers  int64  `json:"max_players"`
}

type Quest struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	Type        string `json:"type"` // daily, weekly, special
}

const DefaultMaxPlayers = 2

var games = []Game{
	{Key: "pup-run", Name: "Pup Run", Description: "Reflex mini-game: click at the right time to sprint", MaxPlayers: 2},
	{Key: "pup-pairs", Name: "Pup Pairs", Description: "Memory match against a friend", MaxPlayers: 2},
	{Key: "pup-drift", Name: "Pup Drift", Description: "Timing-based drift around corners", MaxPlayers: 4},
}

var quests = []Quest{
	{Key: "daily-login", Title: "Daily Login", Description: "Open the app", Reward: 5, Type: "daily"},
	{Key: "first-win", Title: "First Victory", Description: "Win a match", Reward: 25, Type: "special"},
}

func Games() []Game {
	out := make([]Game, len(games))
	copy(out, games)
	return out
}

func Quests() []Quest {
	out := make([]Quest, len(quests))
	copy(out, quests)
	return out
}

func QuestByKey(key string) (Quest, bool) {
	for _, q := range quests {
		if q.Key == key {
			return q, true
		}
	}
	return Quest{}, false
}

// MaxPlayersFor returns the capacity for a game key, defaulting for keys
// the catalog does not know.
func MaxPlayersFor(gameKey string) int64 {
	for _, g := range games {
		if g.Key == gameKey {
			return g.MaxPlayers
		}
	}
	return DefaultMaxPlayers
}
