package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 24
)

func ValidateUsername(username string) error {
	// Length counts characters, not bytes; multibyte names are fine.
	if n := utf8.RuneCountInString(username); n < UsernameMinLen || n > UsernameMaxLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidArgument, UsernameMinLen, UsernameMaxLen)
	}
	return nil
}

// GenerateSessionKey returns a fresh 128-bit session key.
func GenerateSessionKey() (string, error) {
	return randomHex(16)
}

// GenerateReferralCode returns a short shareable code.
func GenerateReferralCode() (string, error) {
	return randomHex(4)
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// LevelForXP is the progression curve: one level per 1000 xp, starting at 1.
func LevelForXP(xp int64) int64 {
	if xp < 0 {
		return 1
	}
	return 1 + xp/1000
}
