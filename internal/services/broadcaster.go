package services

import "pupfi-arcade-backend/internal/models"

type Broadcaster interface {
	BroadcastMatchUpdate(matchID string, status models.MatchStatus, players []string)
	BroadcastMatchFinished(matchID, winnerID string, payout int64)
}
