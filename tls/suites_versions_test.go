package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMutualVersion_PicksHighestRankedWithinRange_001 checks that
// mutualVersion does not simply pick the numerically largest wire
// value -- TLCP's 0x0101 sits below TLS 1.2's 0x0303 on the wire but
// above it in versionRank, and the reverse holds for DTLS.
func TestMutualVersion_PicksHighestRankedWithinRange_001(t *testing.T) {
	// Arrange
	offered := []uint16{VersionTLS12, VersionTLCP11}

	// Act
	got, ok := mutualVersion(VersionTLCP11, VersionTLS13, offered)

	// Assert
	require.True(t, ok)
	assert.Equal(t, VersionTLCP11, got)
}

// TestMutualVersion_ExcludesOutOfRangeOffers_002 checks the configured
// [min,max] bound is enforced even when a higher-ranked version is
// offered.
func TestMutualVersion_ExcludesOutOfRangeOffers_002(t *testing.T) {
	// Arrange
	offered := []uint16{VersionTLS13}

	// Act
	_, ok := mutualVersion(VersionTLS12, VersionTLS12, offered)

	// Assert
	assert.False(t, ok)
}

// TestVersionName_KnownAndUnknown_003 checks the human-readable names
// used in logging, including the unknown fallback.
func TestVersionName_KnownAndUnknown_003(t *testing.T) {
	assert.Equal(t, "TLS 1.3", versionName(VersionTLS13))
	assert.Equal(t, "DTLS 1.2", versionName(VersionDTLS12))
	assert.Equal(t, "TLCP 1.1", versionName(VersionTLCP11))
	assert.Equal(t, "unknown", versionName(0x9999))
}

// TestIsDTLS_IsTLS13_IsTLCP_004 checks the three version-family
// predicates against one representative value each.
func TestIsDTLS_IsTLS13_IsTLCP_004(t *testing.T) {
	assert.True(t, isDTLS(VersionDTLS12))
	assert.False(t, isDTLS(VersionTLS12))
	assert.True(t, isTLS13(VersionTLS13))
	assert.False(t, isTLS13(VersionTLS12))
	assert.True(t, isTLCP(VersionTLCP11))
	assert.False(t, isTLCP(VersionTLS12))
}

// TestMutualCipherSuite_PrefersFirstMatchInPreferredOrder_005 checks
// that mutualCipherSuite walks the preferred list in order and returns
// the first suite both sides share, not the first in the "have" list.
func TestMutualCipherSuite_PrefersFirstMatchInPreferredOrder_005(t *testing.T) {
	// Arrange
	preferred := []uint16{TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, TLS_RSA_WITH_AES_128_GCM_SHA256}
	have := []uint16{TLS_RSA_WITH_AES_128_GCM_SHA256, TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}

	// Act
	got := mutualCipherSuite(preferred, have)

	// Assert
	require.NotNil(t, got)
	assert.Equal(t, TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, got.ID)
}

// TestMutualCipherSuite_NoOverlap_ReturnsNil_006 checks the negative
// case returns nil rather than a zero-value suite.
func TestMutualCipherSuite_NoOverlap_ReturnsNil_006(t *testing.T) {
	// Arrange & Act
	got := mutualCipherSuite([]uint16{TLS_RSA_WITH_AES_128_GCM_SHA256}, []uint16{TLS_PSK_WITH_AES_128_GCM_SHA256})

	// Assert
	assert.Nil(t, got)
}

// TestMutualCipherSuiteTLS13_MatchesDisjointList_007 checks the TLS 1.3
// suite table is looked up independently of the <=1.2 table, using the
// same preferred-order-wins rule.
func TestMutualCipherSuiteTLS13_MatchesDisjointList_007(t *testing.T) {
	// Arrange
	preferred := []uint16{TLS_CHACHA20_POLY1305_SHA256, TLS_AES_128_GCM_SHA256}
	have := []uint16{TLS_AES_128_GCM_SHA256, TLS_CHACHA20_POLY1305_SHA256}

	// Act
	got := mutualCipherSuiteTLS13(preferred, have)

	// Assert
	require.NotNil(t, got)
	assert.Equal(t, TLS_CHACHA20_POLY1305_SHA256, got.ID)
}

// TestCipherSuiteByID_UnknownIDReturnsNil_008 checks the lookup miss
// path for both suite tables.
func TestCipherSuiteByID_UnknownIDReturnsNil_008(t *testing.T) {
	assert.Nil(t, cipherSuiteByID(0xFFFF))
	assert.Nil(t, cipherSuiteTLS13ByID(0xFFFF))
}
