package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Commit-reveal protocol. The server commits to a secret before any
// outcome-affecting randomness is needed; a client later contributes a
// reveal value, and the final seed is derived from both, so neither side
// can bias it after seeing the other's contribution.

const (
	secretBytes = 16 // 128 bits of entropy
	seedModulus = 1_000_000_000
)

type SeedCommitment struct {
	Secret     string
	Commitment string
}

// NewSeedCommitment generates a fresh secret and its public commitment.
// Only the commitment may be exposed to clients.
func NewSeedCommitment() (*SeedCommitment, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate server secret: %v", err)
	}
	secret := hex.EncodeToString(buf)
	return &SeedCommitment{
		Secret:     secret,
		Commitment: CommitmentFor(secret),
	}, nil
}

func CommitmentFor(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DeriveFinalSeed combines the server secret with a client reveal:
// Integer(SHA-256(secret ++ reveal)) mod 10^9. Deterministic, so anyone
// holding the revealed secret can recompute it.
func DeriveFinalSeed(secret, reveal string) int64 {
	sum := sha256.Sum256([]byte(secret + reveal))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, big.NewInt(seedModulus)).Int64()
}

// VerifyCommitment lets clients check, after the secret is disclosed, that
// it matches the commitment published at match creation.
func VerifyCommitment(secret, commitment string) bool {
	want := CommitmentFor(secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(commitment)) == 1
}
