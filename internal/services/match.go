package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

// casRetries bounds the optimistic-update loops. Contention on a single
// match is a handful of players at most.
const casRetries = 5

// MatchEngine drives a match from waiting through active to
// finished/cancelled, triggering ledger payouts and leaderboard entries
// on completion.
type MatchEngine struct {
	store       store.Store
	ledger      *Ledger
	leaderboard *LeaderboardService
	broadcaster Broadcaster
}

func NewMatchEngine(st store.Store, ledger *Ledger, leaderboard *LeaderboardService) *MatchEngine {
	return &MatchEngine{
		store:       st,
		ledger:      ledger,
		leaderboard: leaderboard,
	}
}

// SetBroadcaster attaches the live-update sink. Optional; the engine works
// without one.
func (e *MatchEngine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// Create opens a match in waiting state with the creator as its first
// player. A positive entry fee is debited up front; when that fails the
// match is never persisted. The reward pot and the commit-reveal pair are
// fixed at creation.
func (e *MatchEngine) Create(ctx context.Context, gameKey, creatorID string, entryFee, seed int64) (*models.Match, error) {
	if gameKey == "" {
		return nil, fmt.Errorf("%w: game key required", models.ErrInvalidArgument)
	}
	if entryFee < 0 {
		return nil, fmt.Errorf("%w: entry fee cannot be negative", models.ErrInvalidArgument)
	}

	if err := e.store.FindByID(ctx, store.Accounts, creatorID, nil); err != nil {
		if errors.Is(err, store.ErrNoDoc) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, creatorID)
		}
		return nil, fmt.Errorf("failed to load creator: %v", err)
	}

	if entryFee > 0 {
		if _, err := e.ledger.Debit(ctx, creatorID, entryFee, "match_entry"); err != nil {
			return nil, err
		}
	}

	commitment, err := NewSeedCommitment()
	if err != nil {
		e.refund(ctx, creatorID, entryFee)
		return nil, err
	}

	match := &models.Match{
		GameKey:      gameKey,
		CreatorID:    creatorID,
		Status:       models.MatchWaiting,
		Players:      []string{creatorID},
		Scores:       map[string]int64{},
		EntryFee:     entryFee,
		Reward:       models.RewardForFee(entryFee),
		Seed:         seed,
		ServerSecret: commitment.Secret,
		Commitment:   commitment.Commitment,
		MaxPlayers:   models.MaxPlayersFor(gameKey),
	}

	id, err := e.store.Insert(ctx, store.Matches, match)
	if err != nil {
		e.refund(ctx, creatorID, entryFee)
		return nil, fmt.Errorf("failed to create match: %v", err)
	}

	created, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	metricMatchesCreated.Inc()
	e.notifyUpdate(created)
	return created, nil
}

func (e *MatchEngine) Get(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	err := e.store.FindByID(ctx, store.Matches, matchID, &match)
	if errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("%w: match %s", models.ErrNotFound, matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %v", err)
	}
	return &match, nil
}

// Join appends a user to a waiting match. Joining a match the user is
// already in returns it unchanged; joining past capacity or after the
// match left waiting fails.
func (e *MatchEngine) Join(ctx context.Context, matchID, userID string) (*models.Match, error) {
	if err := e.store.FindByID(ctx, store.Accounts, userID, nil); err != nil {
		if errors.Is(err, store.ErrNoDoc) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load user: %v", err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		match, err := e.Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if match.Status != models.MatchWaiting {
			return nil, fmt.Errorf("%w: match already started", models.ErrInvalidState)
		}
		if match.HasPlayer(userID) {
			return match, nil
		}
		if int64(len(match.Players)) >= match.MaxPlayers {
			return nil, fmt.Errorf("%w: match is full", models.ErrInvalidState)
		}

		players := append(append([]string{}, match.Players...), userID)
		var updated models.Match
		err = e.store.UpdateAndReturn(ctx, store.Matches, matchID,
			store.Filter{"rev": match.Rev}, store.Patch{"players": players}, &updated)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to join match: %v", err)
		}

		e.notifyUpdate(&updated)
		return &updated, nil
	}

	return nil, fmt.Errorf("failed to join match: too much contention")
}

// Start moves a waiting match to active. Creator only, and at least two
// players must have joined.
func (e *MatchEngine) Start(ctx context.Context, matchID, userID string) (*models.Match, error) {
	match, err := e.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can start a match", models.ErrForbidden)
	}
	if match.Status != models.MatchWaiting {
		return nil, fmt.Errorf("%w: match is %s", models.ErrInvalidState, match.Status)
	}
	if len(match.Players) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players", models.ErrInvalidState)
	}

	var updated models.Match
	err = e.store.UpdateAndReturn(ctx, store.Matches, matchID,
		store.Filter{"status": string(models.MatchWaiting)},
		store.Patch{"status": models.MatchActive}, &updated)
	if errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("%w: match already started", models.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start match: %v", err)
	}

	e.notifyUpdate(&updated)
	return &updated, nil
}

// SubmitScore records a player's best score: max(existing, score), so a
// lower submission never overwrites a higher one. An optional reveal runs
// the commit-reveal step in the same operation; the first reveal wins and
// later ones are ignored.
func (e *MatchEngine) SubmitScore(ctx context.Context, matchID, userID string, score int64, reveal string) (*models.Match, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		match, err := e.Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if !match.HasPlayer(userID) {
			return nil, fmt.Errorf("%w: not in match", models.ErrForbidden)
		}

		scores := make(map[string]int64, len(match.Scores)+1)
		for k, v := range match.Scores {
			scores[k] = v
		}
		if score > scores[userID] {
			scores[userID] = score
		}

		patch := store.Patch{"scores": scores}
		if reveal != "" && match.ClientReveal == "" {
			patch["client_reveal"] = reveal
			patch["final_seed"] = DeriveFinalSeed(match.ServerSecret, reveal)
		}

		var updated models.Match
		err = e.store.UpdateAndReturn(ctx, store.Matches, matchID,
			store.Filter{"rev": match.Rev}, patch, &updated)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to submit score: %v", err)
		}

		e.notifyUpdate(&updated)
		return &updated, nil
	}

	return nil, fmt.Errorf("failed to submit score: too much contention")
}

// Tip debits the tipper and adds to the match tip pot, which is paid out
// with the reward at finish. The pot update is rev-guarded against the
// state read, so a finish landing in between wins the race and the tip is
// refunded instead of stranded on a settled match.
func (e *MatchEngine) Tip(ctx context.Context, matchID, userID string, amount int64) (*models.Match, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: tip amount must be positive", models.ErrInvalidArgument)
	}

	match, err := e.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Terminal() {
		return nil, fmt.Errorf("%w: match is %s", models.ErrInvalidState, match.Status)
	}

	if _, err := e.ledger.Debit(ctx, userID, amount, "tip:"+matchID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		if match.Terminal() {
			e.refund(ctx, userID, amount)
			return nil, fmt.Errorf("%w: match is %s", models.ErrInvalidState, match.Status)
		}

		var updated models.Match
		err = e.store.UpdateAndReturn(ctx, store.Matches, matchID,
			store.Filter{"rev": match.Rev}, store.Patch{"tip_total": match.TipTotal + amount}, &updated)
		if errors.Is(err, store.ErrConflict) {
			if match, err = e.Get(ctx, matchID); err != nil {
				e.refund(ctx, userID, amount)
				return nil, err
			}
			continue
		}
		if err != nil {
			e.refund(ctx, userID, amount)
			return nil, fmt.Errorf("failed to record tip: %v", err)
		}
		return &updated, nil
	}

	e.refund(ctx, userID, amount)
	return nil, fmt.Errorf("failed to record tip: too much contention")
}

// Finish closes a match and settles it. Finishing a finished match is a
// no-op returning the current state. With no scores the match finishes
// with no winner and no payout. Otherwise the winner is the player with
// the strictly highest score, ties going to the earliest joiner; the
// winner is credited reward plus tips and gets one leaderboard entry.
func (e *MatchEngine) Finish(ctx context.Context, matchID string) (*models.Match, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		match, err := e.Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if match.Status == models.MatchFinished {
			return match, nil
		}
		if match.Status == models.MatchCancelled {
			return nil, fmt.Errorf("%w: match is cancelled", models.ErrInvalidState)
		}

		winnerID, best := winner(match)

		patch := store.Patch{"status": models.MatchFinished}
		if winnerID != "" {
			patch["winner_id"] = winnerID
		}

		var updated models.Match
		err = e.store.UpdateAndReturn(ctx, store.Matches, matchID,
			store.Filter{"rev": match.Rev}, patch, &updated)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to finish match: %v", err)
		}

		metricMatchesFinished.Inc()

		if winnerID == "" {
			e.notifyFinished(&updated, 0)
			return &updated, nil
		}

		payout := updated.Reward + updated.TipTotal
		if payout > 0 {
			if _, err := e.ledger.Credit(ctx, winnerID, payout, "match_win"); err != nil {
				// Roll the transition back rather than leave a finished
				// match with an unpaid winner.
				e.store.UpdateAndReturn(ctx, store.Matches, matchID,
					store.Filter{"rev": updated.Rev},
					store.Patch{"status": match.Status, "winner_id": ""}, nil)
				return nil, fmt.Errorf("failed to pay out winner: %v", err)
			}
		}

		// The leaderboard is a derived projection; it may lag a payout but
		// must not undo one.
		if _, err := e.leaderboard.Record(ctx, updated.GameKey, winnerID, best, ""); err != nil {
			log.Printf("Failed to record leaderboard entry for match %s: %v", matchID, err)
		}

		e.notifyFinished(&updated, payout)
		return &updated, nil
	}

	return nil, fmt.Errorf("failed to finish match: too much contention")
}

// Cancel abandons a waiting match and refunds the creator's entry fee.
// Creator only; cancelling twice is a no-op.
func (e *MatchEngine) Cancel(ctx context.Context, matchID, userID string) (*models.Match, error) {
	match, err := e.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can cancel a match", models.ErrForbidden)
	}
	if match.Status == models.MatchCancelled {
		return match, nil
	}
	if match.Status != models.MatchWaiting {
		return nil, fmt.Errorf("%w: match already started", models.ErrInvalidState)
	}

	return e.cancel(ctx, match)
}

// CancelStale cancels waiting matches older than maxAge, refunding their
// creators. Returns how many were cancelled.
func (e *MatchEngine) CancelStale(ctx context.Context, maxAge time.Duration) (int, error) {
	var waiting []models.Match
	err := e.store.FindMany(ctx, store.Matches, store.Filter{"status": string(models.MatchWaiting)}, 0, &waiting)
	if err != nil {
		return 0, fmt.Errorf("failed to list waiting matches: %v", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	cancelled := 0
	for i := range waiting {
		if waiting[i].CreatedAt.After(cutoff) {
			continue
		}
		if _, err := e.cancel(ctx, &waiting[i]); err != nil {
			log.Printf("Failed to cancel stale match %s: %v", waiting[i].ID, err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (e *MatchEngine) cancel(ctx context.Context, match *models.Match) (*models.Match, error) {
	var updated models.Match
	err := e.store.UpdateAndReturn(ctx, store.Matches, match.ID,
		store.Filter{"status": string(models.MatchWaiting)},
		store.Patch{"status": models.MatchCancelled}, &updated)
	if errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("%w: match already started", models.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel match: %v", err)
	}

	if match.EntryFee > 0 {
		if _, err := e.ledger.Credit(ctx, match.CreatorID, match.EntryFee, "match_refund"); err != nil {
			log.Printf("Failed to refund entry fee for match %s: %v", match.ID, err)
		}
	}

	metricMatchesCancelled.Inc()
	e.notifyUpdate(&updated)
	return &updated, nil
}

// winner scans players in join order and returns the first one holding the
// highest recorded score, which makes the tie-break the earliest joiner.
func winner(match *models.Match) (string, int64) {
	var winnerID string
	var best int64
	for _, p := range match.Players {
		score, ok := match.Scores[p]
		if !ok {
			continue
		}
		if winnerID == "" || score > best {
			winnerID, best = p, score
		}
	}
	return winnerID, best
}

func (e *MatchEngine) refund(ctx context.Context, userID string, amount int64) {
	if amount <= 0 {
		return
	}
	if _, err := e.ledger.Credit(ctx, userID, amount, "match_refund"); err != nil {
		log.Printf("Failed to refund %d to %s: %v", amount, userID, err)
	}
}

func (e *MatchEngine) notifyUpdate(match *models.Match) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.BroadcastMatchUpdate(match.ID, match.Status, match.Players)
}

func (e *MatchEngine) notifyFinished(match *models.Match, payout int64) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.BroadcastMatchFinished(match.ID, match.WinnerID, payout)
}
