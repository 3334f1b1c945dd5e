package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

func newAccountService(t *testing.T) (*AccountService, *Ledger, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ledger := NewLedger(st)
	return NewAccountService(st, ledger), ledger, st
}

func TestAccountCreateIsIdempotentByUsername(t *testing.T) {
	accounts, _, _ := newAccountService(t)
	ctx := context.Background()

	first, err := accounts.Create(ctx, "pupmaster", "Pup Master")
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Level)
	require.NotEmpty(t, first.SessionKey)
	require.NotEmpty(t, first.ReferralCode)
	require.Empty(t, first.Badges)

	second, err := accounts.Create(ctx, "pupmaster", "Someone Else")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Pup Master", second.DisplayName)
}

func TestAccountCreateConcurrentSameUsername(t *testing.T) {
	accounts, _, st := newAccountService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 16)
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acct, err := accounts.Create(ctx, "same-name", "")
			if err != nil {
				errs <- err
				return
			}
			ids <- acct.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		require.Equal(t, first, id)
	}

	// Exactly one account exists for the username.
	var matching []models.Account
	require.NoError(t, st.FindMany(ctx, store.Accounts, store.Filter{"username": "same-name"}, 0, &matching))
	require.Len(t, matching, 1)
}

func TestAccountCreateValidatesUsername(t *testing.T) {
	accounts, _, _ := newAccountService(t)
	ctx := context.Background()

	_, err := accounts.Create(ctx, "ab", "")
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = accounts.Create(ctx, "this-username-is-way-too-long-ok", "")
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestLoginRotatesSessionKey(t *testing.T) {
	accounts, _, _ := newAccountService(t)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "rotator", "")
	require.NoError(t, err)

	rotated, err := accounts.Login(ctx, "rotator")
	require.NoError(t, err)
	require.Equal(t, acct.ID, rotated.ID)
	require.NotEqual(t, acct.SessionKey, rotated.SessionKey)

	_, err = accounts.Login(ctx, "nobody")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestLinkWalletIsSetOnce(t *testing.T) {
	accounts, _, _ := newAccountService(t)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "whale", "")
	require.NoError(t, err)

	linked, err := accounts.LinkWallet(ctx, acct.ID, "0xabc123")
	require.NoError(t, err)
	require.Equal(t, "0xabc123", linked.WalletAddress)

	// Re-linking the same address is a no-op.
	again, err := accounts.LinkWallet(ctx, acct.ID, "0xabc123")
	require.NoError(t, err)
	require.Equal(t, "0xabc123", again.WalletAddress)

	// A different address cannot replace a linked one.
	_, err = accounts.LinkWallet(ctx, acct.ID, "0xdef456")
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = accounts.LinkWallet(ctx, acct.ID, "")
	require.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestMintBadgeAddsKeyAtMostOnce(t *testing.T) {
	accounts, _, st := newAccountService(t)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "collector", "")
	require.NoError(t, err)

	minted, err := accounts.MintBadge(ctx, acct.ID, "early-pup", "Early Pup")
	require.NoError(t, err)
	require.Equal(t, []string{"early-pup"}, minted.Badges)

	minted, err = accounts.MintBadge(ctx, acct.ID, "early-pup", "Early Pup")
	require.NoError(t, err)
	require.Equal(t, []string{"early-pup"}, minted.Badges)

	// Every mint call leaves a record, even for a badge already held.
	var records []models.Badge
	require.NoError(t, st.FindMany(ctx, store.Badges, store.Filter{"user_id": acct.ID}, 0, &records))
	require.Len(t, records, 2)
}

func TestClaimQuestOncePerDay(t *testing.T) {
	accounts, ledger, _ := newAccountService(t)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "quester", "")
	require.NoError(t, err)

	claim, err := accounts.ClaimQuest(ctx, acct.ID, "daily-login")
	require.NoError(t, err)
	require.Equal(t, int64(5), claim.Reward)

	after, err := accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), after.Balance)
	require.Equal(t, int64(1), after.StreakDays)

	_, err = accounts.ClaimQuest(ctx, acct.ID, "daily-login")
	require.ErrorIs(t, err, models.ErrInvalidState)

	// A different quest is still claimable the same day.
	claim, err = accounts.ClaimQuest(ctx, acct.ID, "first-win")
	require.NoError(t, err)
	require.Equal(t, int64(25), claim.Reward)

	_, err = accounts.ClaimQuest(ctx, acct.ID, "no-such-quest")
	require.ErrorIs(t, err, models.ErrNotFound)

	txs, err := ledger.Transactions(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
}

func TestClaimQuestUnpaidClaimIsReleased(t *testing.T) {
	flaky := &flakyTxStore{MemoryStore: store.NewMemoryStore()}
	ledger := NewLedger(flaky)
	accounts := NewAccountService(flaky, ledger)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "retrier", "")
	require.NoError(t, err)

	// The credit fails after the claim record is written; the claim must
	// be released so the day is not burned without a reward.
	flaky.failTx = true
	_, err = accounts.ClaimQuest(ctx, acct.ID, "daily-login")
	require.Error(t, err)

	flaky.failTx = false
	claim, err := accounts.ClaimQuest(ctx, acct.ID, "daily-login")
	require.NoError(t, err)
	require.Equal(t, int64(5), claim.Reward)

	after, err := accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), after.Balance)
}

func TestClaimQuestExtendsStreak(t *testing.T) {
	accounts, _, st := newAccountService(t)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, "streaker", "")
	require.NoError(t, err)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	require.NoError(t, st.UpdateAndReturn(ctx, store.Accounts, acct.ID, nil,
		store.Patch{"streak_days": int64(3), "last_claim_at": yesterday}, nil))

	_, err = accounts.ClaimQuest(ctx, acct.ID, "daily-login")
	require.NoError(t, err)

	after, err := accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), after.StreakDays)
}

func TestResolveDisplayName(t *testing.T) {
	accounts, _, _ := newAccountService(t)
	ctx := context.Background()

	named, err := accounts.Create(ctx, "named", "Fancy Name")
	require.NoError(t, err)
	require.Equal(t, "Fancy Name", accounts.ResolveDisplayName(ctx, named.ID))

	plain, err := accounts.Create(ctx, "plain", "")
	require.NoError(t, err)
	require.Equal(t, "plain", accounts.ResolveDisplayName(ctx, plain.ID))

	require.Empty(t, accounts.ResolveDisplayName(ctx, "ghost"))
}
