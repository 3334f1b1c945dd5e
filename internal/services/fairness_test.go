package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSeedCommitment(t *testing.T) {
	sc, err := NewSeedCommitment()
	require.NoError(t, err)

	require.Len(t, sc.Secret, 32) // 16 bytes hex encoded
	require.Len(t, sc.Commitment, 64)
	require.True(t, VerifyCommitment(sc.Secret, sc.Commitment))
	require.False(t, VerifyCommitment(sc.Secret+"00", sc.Commitment))

	other, err := NewSeedCommitment()
	require.NoError(t, err)
	require.NotEqual(t, sc.Secret, other.Secret)
}

func TestDeriveFinalSeed(t *testing.T) {
	seed := DeriveFinalSeed("secret", "reveal")

	require.Equal(t, seed, DeriveFinalSeed("secret", "reveal"))
	require.GreaterOrEqual(t, seed, int64(0))
	require.Less(t, seed, int64(seedModulus))

	require.NotEqual(t, seed, DeriveFinalSeed("secret", "other-reveal"))
	require.NotEqual(t, seed, DeriveFinalSeed("other-secret", "reveal"))
}
