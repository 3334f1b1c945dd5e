package services

import (
	"context"
	"errors"
	"fmt"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

// StakingService aggregates token contributions into named pools. It never
// computes rewards or unstakes; multiplier policy lives outside the core.
type StakingService struct {
	store  store.Store
	ledger *Ledger
}

func NewStakingService(st store.Store, ledger *Ledger) *StakingService {
	return &StakingService{store: st, ledger: ledger}
}

// Stake debits the user and adds the amount to both the pool total and the
// user's cumulative contribution in one atomic increment, so the two can
// never diverge. A failure on the pool side refunds the debit.
func (s *StakingService) Stake(ctx context.Context, userID, poolKey string, amount int64) (*models.StakingPool, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: stake amount must be positive", models.ErrInvalidArgument)
	}
	if poolKey == "" {
		return nil, fmt.Errorf("%w: pool key required", models.ErrInvalidArgument)
	}

	pool, err := s.ensurePool(ctx, poolKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Debit(ctx, userID, amount, "stake:"+poolKey); err != nil {
		return nil, err
	}

	var updated models.StakingPool
	deltas := store.Deltas{"total_staked": amount, "participants." + userID: amount}
	err = s.store.IncrementAndReturn(ctx, store.Pools, pool.ID, deltas, nil, &updated)
	if err != nil {
		s.ledger.Credit(ctx, userID, amount, "stake_refund:"+poolKey)
		return nil, fmt.Errorf("failed to update pool: %v", err)
	}

	metricStakesPlaced.Inc()
	return &updated, nil
}

func (s *StakingService) Pool(ctx context.Context, poolKey string) (*models.StakingPool, error) {
	var pool models.StakingPool
	err := s.store.FindByID(ctx, store.Pools, poolKey, &pool)
	if errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("%w: pool %s", models.ErrNotFound, poolKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pool: %v", err)
	}
	return &pool, nil
}

func (s *StakingService) Pools(ctx context.Context) ([]models.StakingPool, error) {
	var pools []models.StakingPool
	if err := s.store.FindMany(ctx, store.Pools, nil, 0, &pools); err != nil {
		return nil, fmt.Errorf("failed to list pools: %v", err)
	}
	return pools, nil
}

// ensurePool creates the pool record lazily on first use of a key. The
// pool key doubles as the document id, so a concurrent first stake loses
// the insert race cleanly and reloads.
func (s *StakingService) ensurePool(ctx context.Context, poolKey string) (*models.StakingPool, error) {
	var pool models.StakingPool
	err := s.store.FindByID(ctx, store.Pools, poolKey, &pool)
	if err == nil {
		return &pool, nil
	}
	if !errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("failed to load pool: %v", err)
	}

	fresh := &models.StakingPool{
		ID:           poolKey,
		Key:          poolKey,
		Name:         poolKey,
		Participants: map[string]int64{},
	}
	if _, err := s.store.Insert(ctx, store.Pools, fresh); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("failed to create pool: %v", err)
	}

	if err := s.store.FindByID(ctx, store.Pools, poolKey, &pool); err != nil {
		return nil, fmt.Errorf("failed to load pool: %v", err)
	}
	return &pool, nil
}
