package tls

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCookieSecret(t *testing.T) *dtlsCookieSecret {
	t.Helper()
	secret, err := newDTLSCookieSecret(func(b []byte) error {
		_, err := rand.Read(b)
		return err
	})
	require.NoError(t, err)
	return secret
}

// TestDTLSCookieSecret_VerifyAcceptsOwnCookie_001 checks the round
// trip: a cookie generated for a given (addr, random) pair verifies
// against that same pair.
func TestDTLSCookieSecret_VerifyAcceptsOwnCookie_001(t *testing.T) {
	// Arrange
	secret := sampleCookieSecret(t)
	var random [32]byte
	copy(random[:], "client-random-bytes-000000000000")

	// Act
	cookie := secret.generateCookie("client-conn-1", random)

	// Assert
	assert.True(t, secret.verifyCookie("client-conn-1", random, cookie))
}

// TestDTLSCookieSecret_VerifyRejectsMismatchedAddrOrRandom_002 checks
// that a cookie bound to one (addr, random) pair is rejected against
// another.
func TestDTLSCookieSecret_VerifyRejectsMismatchedAddrOrRandom_002(t *testing.T) {
	// Arrange
	secret := sampleCookieSecret(t)
	var random [32]byte
	copy(random[:], "client-random-bytes-000000000000")
	cookie := secret.generateCookie("client-conn-1", random)

	// Act & Assert
	assert.False(t, secret.verifyCookie("client-conn-2", random, cookie))
	var otherRandom [32]byte
	copy(otherRandom[:], "different-random-bytes-00000000")
	assert.False(t, secret.verifyCookie("client-conn-1", otherRandom, cookie))
}

// TestDTLSCookieSecret_VerifyRejectsForgedCookie_003 checks a cookie not
// produced by this secret at all fails closed.
func TestDTLSCookieSecret_VerifyRejectsForgedCookie_003(t *testing.T) {
	// Arrange
	secret := sampleCookieSecret(t)
	var random [32]byte

	// Act & Assert
	assert.False(t, secret.verifyCookie("client-conn-1", random, make([]byte, 32)))
}
