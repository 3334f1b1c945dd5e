package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pupfi-arcade-backend/internal/models"
	"pupfi-arcade-backend/internal/store"
)

// AccountService owns identity: creation, sessions, wallet linking, badges
// and quest claims. Balance mutation stays with the Ledger.
type AccountService struct {
	store  store.Store
	ledger *Ledger
}

func NewAccountService(st store.Store, ledger *Ledger) *AccountService {
	return &AccountService{store: st, ledger: ledger}
}

// accountID derives the document id from the username, making the
// username the account's natural key. Uniqueness then rests on the
// store's create-only insert instead of a lookup that can race.
func accountID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("account:"+username)).String()
}

// Create registers a username, idempotently: requesting an existing
// username returns the existing account instead of erroring. Two
// concurrent creates of the same name collide on the insert itself;
// the loser reloads and returns the winner's account.
func (s *AccountService) Create(ctx context.Context, username, displayName string) (*models.Account, error) {
	if err := models.ValidateUsername(username); err != nil {
		return nil, err
	}

	id := accountID(username)

	var existing models.Account
	err := s.store.FindByID(ctx, store.Accounts, id, &existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("failed to look up username: %v", err)
	}

	sessionKey, err := models.GenerateSessionKey()
	if err != nil {
		return nil, err
	}
	referralCode, err := models.GenerateReferralCode()
	if err != nil {
		return nil, err
	}

	acct := &models.Account{
		ID:           id,
		Username:     username,
		DisplayName:  displayName,
		SessionKey:   sessionKey,
		Level:        1,
		ReferralCode: referralCode,
		Badges:       []string{},
	}

	if _, err := s.store.Insert(ctx, store.Accounts, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return s.Get(ctx, id)
		}
		return nil, fmt.Errorf("failed to create account: %v", err)
	}
	return s.Get(ctx, id)
}

func (s *AccountService) Get(ctx context.Context, userID string) (*models.Account, error) {
	var acct models.Account
	err := s.store.FindByID(ctx, store.Accounts, userID, &acct)
	if errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %v", err)
	}
	return &acct, nil
}

// Login rotates the session key, invalidating every previously issued
// token for the account.
func (s *AccountService) Login(ctx context.Context, username string) (*models.Account, error) {
	var acct models.Account
	err := s.store.FindOne(ctx, store.Accounts, store.Filter{"username": username}, &acct)
	if errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %v", err)
	}

	sessionKey, err := models.GenerateSessionKey()
	if err != nil {
		return nil, err
	}

	var updated models.Account
	err = s.store.UpdateAndReturn(ctx, store.Accounts, acct.ID, nil, store.Patch{"session_key": sessionKey}, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session key: %v", err)
	}
	return &updated, nil
}

// LinkWallet sets the account's wallet address once. Re-linking the same
// address is a no-op; a different address on an already linked account
// fails.
func (s *AccountService) LinkWallet(ctx context.Context, userID, address string) (*models.Account, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: wallet address required", models.ErrInvalidArgument)
	}

	acct, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct.WalletAddress == address {
		return acct, nil
	}
	if acct.WalletAddress != "" {
		return nil, fmt.Errorf("%w: wallet already linked", models.ErrInvalidState)
	}

	var updated models.Account
	err = s.store.UpdateAndReturn(ctx, store.Accounts, userID,
		store.Filter{"wallet_address": ""}, store.Patch{"wallet_address": address}, &updated)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with another link; same address is still fine.
		acct, err = s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if acct.WalletAddress == address {
			return acct, nil
		}
		return nil, fmt.Errorf("%w: wallet already linked", models.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to link wallet: %v", err)
	}
	return &updated, nil
}

// MintBadge writes an immutable mint record every call and adds the key to
// the account's badge set at most once.
func (s *AccountService) MintBadge(ctx context.Context, userID, key, title string) (*models.Account, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: badge key required", models.ErrInvalidArgument)
	}

	acct, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	badge := &models.Badge{UserID: userID, Key: key, Title: title}
	if _, err := s.store.Insert(ctx, store.Badges, badge); err != nil {
		return nil, fmt.Errorf("failed to mint badge: %v", err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		if acct.HasBadge(key) {
			return acct, nil
		}

		badges := append(append([]string{}, acct.Badges...), key)
		var updated models.Account
		err = s.store.UpdateAndReturn(ctx, store.Accounts, userID,
			store.Filter{"rev": acct.Rev}, store.Patch{"badges": badges}, &updated)
		if errors.Is(err, store.ErrConflict) {
			if acct, err = s.Get(ctx, userID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update badge set: %v", err)
		}
		return &updated, nil
	}

	return nil, fmt.Errorf("failed to update badge set: too much contention")
}

// ClaimQuest pays out a quest reward at most once per UTC day per quest.
// The daily-login quest also maintains the streak counter.
func (s *AccountService) ClaimQuest(ctx context.Context, userID, questKey string) (*models.Claim, error) {
	quest, ok := models.QuestByKey(questKey)
	if !ok {
		return nil, fmt.Errorf("%w: quest %s", models.ErrNotFound, questKey)
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	today := time.Now().UTC().Format("2006-01-02")
	dedupKey := questKey + ":" + today

	err := s.store.FindOne(ctx, store.Claims, store.Filter{"user_id": userID, "quest_key": dedupKey}, nil)
	if err == nil {
		return nil, fmt.Errorf("%w: already claimed today", models.ErrInvalidState)
	}
	if !errors.Is(err, store.ErrNoDoc) {
		return nil, fmt.Errorf("failed to check claims: %v", err)
	}

	claim := &models.Claim{UserID: userID, QuestKey: dedupKey, Reward: quest.Reward}
	id, err := s.store.Insert(ctx, store.Claims, claim)
	if err != nil {
		return nil, fmt.Errorf("failed to record claim: %v", err)
	}

	if _, err := s.ledger.Credit(ctx, userID, quest.Reward, "quest:"+questKey); err != nil {
		// Give the day's claim back; an unpaid claim must not burn it.
		if delErr := s.store.Delete(ctx, store.Claims, id); delErr != nil {
			log.Printf("Failed to release claim %s after credit failure: %v", id, delErr)
		}
		return nil, err
	}

	if questKey == "daily-login" {
		s.advanceStreak(ctx, userID, today)
	}

	var saved models.Claim
	if err := s.store.FindByID(ctx, store.Claims, id, &saved); err != nil {
		return nil, fmt.Errorf("failed to load claim: %v", err)
	}
	return &saved, nil
}

// advanceStreak bumps streak_days when the previous claim was yesterday
// and resets it otherwise. Best effort; a miss self-corrects on the next
// claim.
func (s *AccountService) advanceStreak(ctx context.Context, userID, today string) {
	acct, err := s.Get(ctx, userID)
	if err != nil {
		return
	}

	streak := int64(1)
	day, err := time.Parse("2006-01-02", today)
	if err == nil && acct.LastClaimAt == day.AddDate(0, 0, -1).Format("2006-01-02") {
		streak = acct.StreakDays + 1
	}

	s.store.UpdateAndReturn(ctx, store.Accounts, userID, nil,
		store.Patch{"streak_days": streak, "last_claim_at": today}, nil)
}

// ResolveDisplayName is the read-side collaborator for leaderboard rows;
// it falls back to the username when no display name is set.
func (s *AccountService) ResolveDisplayName(ctx context.Context, userID string) string {
	acct, err := s.Get(ctx, userID)
	if err != nil {
		return ""
	}
	if acct.DisplayName != "" {
		return acct.DisplayName
	}
	return acct.Username
}
