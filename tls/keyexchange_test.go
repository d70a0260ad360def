package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPSKPremaster_EncodesLengthPrefixedConcatenation_001 checks RFC
// 4279/5489's premaster composition used by plain-PSK and the hybrid
// (EC)DHE_PSK/RSA_PSK modes.
func TestPSKPremaster_EncodesLengthPrefixedConcatenation_001(t *testing.T) {
	// Arrange
	other := []byte{0xAA, 0xAA}
	psk := []byte{0xBB, 0xBB, 0xBB}

	// Act
	got := pskPremaster(other, psk)

	// Assert
	want := []byte{0x00, 0x02, 0xAA, 0xAA, 0x00, 0x03, 0xBB, 0xBB, 0xBB}
	assert.Equal(t, want, got)
}

// TestMarshalUnmarshalECDHEServerKeyExchange_RoundTrips_002 checks that
// the RFC 4492 §5.4 ServerKeyExchange wire encoding this module builds
// parses back to the same group/public-key/signature triple.
func TestMarshalUnmarshalECDHEServerKeyExchange_RoundTrips_002(t *testing.T) {
	// Arrange
	group := GroupX25519
	pub := []byte{1, 2, 3, 4, 5}
	scheme := SigSchemeECDSAP256SHA256
	sig := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	// Act
	wire := marshalECDHEServerKeyExchange(group, pub, scheme, sig)
	got, err := unmarshalECDHEServerKeyExchange(wire)

	// Assert
	require.Nil(t, err)
	assert.Equal(t, group, got.group)
	assert.Equal(t, pub, got.publicKey)
	assert.True(t, got.signed)
	assert.Equal(t, scheme, got.scheme)
	assert.Equal(t, sig, got.signature)
}

// TestUnmarshalECDHEServerKeyExchange_UnsignedForm_003 checks the
// ECDH_anon shape (no trailing signature) still parses, with signed
// left false so the caller skips verification instead of failing on a
// missing signature.
func TestUnmarshalECDHEServerKeyExchange_UnsignedForm_003(t *testing.T) {
	// Arrange
	wire := marshalECDHEServerKeyExchange(GroupP256, []byte{9, 9}, 0, nil)

	// Act
	got, err := unmarshalECDHEServerKeyExchange(wire)

	// Assert
	require.Nil(t, err)
	assert.False(t, got.signed)
	assert.Equal(t, GroupP256, got.group)
}

// TestUnmarshalECDHEServerKeyExchange_RejectsExplicitCurve_004 checks
// that a curve_type other than named_curve (the only form this module
// emits/accepts) is rejected rather than silently misparsed.
func TestUnmarshalECDHEServerKeyExchange_RejectsExplicitCurve_004(t *testing.T) {
	// Arrange: curve_type=1 (explicit_prime), which this module never emits
	wire := []byte{0x01, 0x00, 0x17, 0x02, 0xAA, 0xBB}

	// Act
	_, err := unmarshalECDHEServerKeyExchange(wire)

	// Assert
	assert.NotNil(t, err)
}

// TestEcdheSignedMessage_ConcatenatesRandomsAndParams_005 checks the
// exact byte layout a <=1.2 ECDHE ServerKeyExchange signature covers:
// client_random || server_random || curve_params.
func TestEcdheSignedMessage_ConcatenatesRandomsAndParams_005(t *testing.T) {
	// Arrange
	var clientRandom, serverRandom [32]byte
	clientRandom[0] = 1
	serverRandom[0] = 2
	params := []byte{0x03, 0x00, 0x1D, 0x01, 0x05}

	// Act
	got := ecdheSignedMessage(clientRandom, serverRandom, params)

	// Assert
	require.Len(t, got, 64+len(params))
	assert.Equal(t, clientRandom[:], got[:32])
	assert.Equal(t, serverRandom[:], got[32:64])
	assert.Equal(t, params, got[64:])
}
