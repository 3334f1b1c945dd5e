package models_test

import (
	"testing"

	"pupfi-arcade-backend/internal/models"
)

func TestValidateUsername(t *testing.T) {
	if err := models.ValidateUsername("pup"); err != nil {
		t.Errorf("3-char username should be valid: %v", err)
	}
	if err := models.ValidateUsername("ab"); err == nil {
		t.Error("2-char username should be rejected")
	}
	if err := models.ValidateUsername("abcdefghijklmnopqrstuvwxy"); err == nil {
		t.Error("25-char username should be rejected")
	}
	// Length is counted in characters, not bytes.
	if err := models.ValidateUsername("ラブラドール犬です"); err != nil {
		t.Errorf("9-char multibyte username should be valid: %v", err)
	}
	if err := models.ValidateUsername("わんわんわんわんわんわんわんわんわんわんわんわんわ"); err == nil {
		t.Error("25-char multibyte username should be rejected")
	}
}

func TestRewardForFee(t *testing.T) {
	cases := map[int64]int64{
		0:   0,
		100: 180,
		5:   9,
		1:   1, // floor(1.8)
	}
	for fee, want := range cases {
		if got := models.RewardForFee(fee); got != want {
			t.Errorf("RewardForFee(%d) = %d, want %d", fee, got, want)
		}
	}
}

func TestMatchHelpers(t *testing.T) {
	m := &models.Match{
		Status:  models.MatchWaiting,
		Players: []string{"alice", "bob"},
	}

	if !m.HasPlayer("alice") {
		t.Error("alice should be a player")
	}
	if m.HasPlayer("carol") {
		t.Error("carol should not be a player")
	}
	if m.Terminal() {
		t.Error("waiting match should not be terminal")
	}

	m.Status = models.MatchFinished
	if !m.Terminal() {
		t.Error("finished match should be terminal")
	}
}

func TestGenerateSessionKey(t *testing.T) {
	key, err := models.GenerateSessionKey()
	if err != nil {
		t.Fatalf("failed to generate session key: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32 hex chars (128 bits), got %d", len(key))
	}

	other, _ := models.GenerateSessionKey()
	if key == other {
		t.Error("session keys should not repeat")
	}
}

func TestMaxPlayersFor(t *testing.T) {
	if got := models.MaxPlayersFor("pup-drift"); got != 4 {
		t.Errorf("pup-drift capacity = %d, want 4", got)
	}
	if got := models.MaxPlayersFor("unknown-game"); got != models.DefaultMaxPlayers {
		t.Errorf("unknown game capacity = %d, want default %d", got, models.DefaultMaxPlayers)
	}
}

func TestLevelForXP(t *testing.T) {
	if got := models.LevelForXP(0); got != 1 {
		t.Errorf("level at 0 xp = %d, want 1", got)
	}
	if got := models.LevelForXP(2500); got != 3 {
		t.Errorf("level at 2500 xp = %d, want 3", got)
	}
}
