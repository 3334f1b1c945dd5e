package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

func TestStakeAggregatesContributions(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st)
	staking := NewStakingService(st, ledger)
	ctx := context.Background()

	alice := newTestAccount(t, st, ledger, "alice")
	bob := newTestAccount(t, st, ledger, "bob")
	_, err := ledger.Credit(ctx, alice.ID, 100, "seed")
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, bob.ID, 100, "seed")
	require.NoError(t, err)

	pool, err := staking.Stake(ctx, alice.ID, "pup-vault", 30)
	require.NoError(t, err)
	require.Equal(t, int64(30), pool.TotalStaked)
	require.Equal(t, int64(30), pool.Participants[alice.ID])

	pool, err = staking.Stake(ctx, bob.ID, "pup-vault", 50)
	require.NoError(t, err)
	require.Equal(t, int64(80), pool.TotalStaked)
	require.Equal(t, int64(50), pool.Participants[bob.ID])

	// Repeat stakes accumulate per participant.
	pool, err = staking.Stake(ctx, alice.ID, "pup-vault", 20)
	require.NoError(t, err)
	require.Equal(t, int64(100), pool.TotalStaked)
	require.Equal(t, int64(50), pool.Participants[alice.ID])

	var sum int64
	for _, v := range pool.Participants {
		sum += v
	}
	require.Equal(t, pool.TotalStaked, sum)

	accounts := NewAccountService(st, ledger)
	aliceAfter, err := accounts.Get(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50), aliceAfter.Balance)
}

func TestStakeValidation(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st)
	staking := NewStakingService(st, ledger)
	ctx := context.Background()

	poor := newTestAccount(t, st, ledger, "poor")
	_, err := ledger.Credit(ctx, poor.ID, 10, "seed")
	require.NoError(t, err)

	_, err = staking.Stake(ctx, poor.ID, "pup-vault", 0)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = staking.Stake(ctx, poor.ID, "", 5)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = staking.Stake(ctx, poor.ID, "pup-vault", 11)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	// The failed stake left no pool contribution behind.
	pool, err := staking.Pool(ctx, "pup-vault")
	require.NoError(t, err)
	require.Equal(t, int64(0), pool.TotalStaked)
	require.Empty(t, pool.Participants)
}

func TestStakeConcurrentKeepsTotalsConsistent(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st)
	staking := NewStakingService(st, ledger)
	ctx := context.Background()

	users := make([]string, 8)
	for i := range users {
		acct := newTestAccount(t, st, ledger, "staker"+string(rune('a'+i)))
		_, err := ledger.Credit(ctx, acct.ID, 100, "seed")
		require.NoError(t, err)
		users[i] = acct.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(users))
	for _, id := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := staking.Stake(ctx, userID, "pup-vault", 25)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pool, err := staking.Pool(ctx, "pup-vault")
	require.NoError(t, err)
	require.Equal(t, int64(200), pool.TotalStaked)
	require.Len(t, pool.Participants, 8)

	var sum int64
	for _, v := range pool.Participants {
		sum += v
	}
	require.Equal(t, pool.TotalStaked, sum)
}

func TestPoolReads(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewLedger(st)
	staking := NewStakingService(st, ledger)
	ctx := context.Background()

	_, err := staking.Pool(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	alice := newTestAccount(t, st, ledger, "alice")
	_, err = ledger.Credit(ctx, alice.ID, 100, "seed")
	require.NoError(t, err)
	_, err = staking.Stake(ctx, alice.ID, "vault-a", 10)
	require.NoError(t, err)
	_, err = staking.Stake(ctx, alice.ID, "vault-b", 20)
	require.NoError(t, err)

	pools, err := staking.Pools(ctx)
	require.NoError(t, err)
	require.Len(t, pools, 2)
}
