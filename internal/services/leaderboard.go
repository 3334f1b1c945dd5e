package services

import (
	"context"
	"fmt"
	"sort"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

// LeaderboardService is the append-only projection over match outcomes.
type LeaderboardService struct {
	store store.Store
}

func NewLeaderboardService(st store.Store) *LeaderboardService {
	return &LeaderboardService{store: st}
}

// Record appends one entry. Entries are never deduplicated or mutated; a
// user appears once per won match. DisplayName may be empty, resolution
// happens on the read side.
func (s *LeaderboardService) Record(ctx context.Context, gameKey, userID string, score int64, displayName string) (*models.LeaderboardEntry, error) {
	entry := &models.LeaderboardEntry{
		GameKey:     gameKey,
		UserID:      userID,
		Score:       score,
		DisplayName: displayName,
	}

	id, err := s.store.Insert(ctx, store.Leaderboard, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to append leaderboard entry: %v", err)
	}

	var saved models.LeaderboardEntry
	if err := s.store.FindByID(ctx, store.Leaderboard, id, &saved); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard entry: %v", err)
	}
	return &saved, nil
}

// Query returns a game's entries sorted by score descending. The sort is
// stable, so ties keep insertion order.
func (s *LeaderboardService) Query(ctx context.Context, gameKey string, limit int64) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []models.LeaderboardEntry
	if err := s.store.FindMany(ctx, store.Leaderboard, store.Filter{"game_key": gameKey}, 0, &entries); err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %v", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
