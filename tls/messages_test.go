package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
)

// unmarshal is the test-only counterpart to packMessage: strip the
// 1-byte type + 3-byte length header parseMessageHeader already covers
// and feed the body straight to unmarshalBody.
func unmarshal(t *testing.T, body []byte, m handshakeMessage) {
	t.Helper()
	s := cryptobyte.String(body)
	require.Nil(t, m.unmarshalBody(&s))
}

// TestPackMessage_HeaderEncodesTypeAndLength_001 checks the Message
// Codec's pack operation: 1-byte type + 3-byte big-endian length + body.
func TestPackMessage_HeaderEncodesTypeAndLength_001(t *testing.T) {
	// Arrange
	m := &keyUpdateMsg{requestUpdate: true}

	// Act
	wire := packMessage(m)

	// Assert
	require.Len(t, wire, 4+1)
	assert.Equal(t, typeKeyUpdate, wire[0])
	assert.Equal(t, []byte{0, 0, 1}, wire[1:4])
	assert.Equal(t, uint8(1), wire[4])
}

// TestParseMessageHeader_RejectsTrailingBytes_002 checks spec §4.1's
// rule that a handshake message's declared length must equal the
// consumed bytes -- trailing garbage after a well-formed header is
// rejected rather than silently ignored.
func TestParseMessageHeader_RejectsTrailingBytes_002(t *testing.T) {
	// Arrange
	wire := packMessage(&keyUpdateMsg{requestUpdate: false})
	wire = append(wire, 0xFF)

	// Act
	_, _, err := parseMessageHeader(wire)

	// Assert
	assert.Error(t, err)
}

// TestParseMessageHeader_RoundTripsTypeAndBody_003 checks the
// header/body split parseMessageHeader performs against packMessage's
// output.
func TestParseMessageHeader_RoundTripsTypeAndBody_003(t *testing.T) {
	// Arrange
	orig := &finishedMsg{verifyData: []byte{1, 2, 3, 4}}
	wire := packMessage(orig)

	// Act
	typ, body, err := parseMessageHeader(wire)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, typeFinished, typ)
	assert.Equal(t, orig.verifyData, body)
}

// TestClientHelloMsg_RoundTrips_NonPSKExtensions_004 checks that a
// ClientHello carrying a representative extension set (SNI, groups,
// point formats, sig algs, ALPN, EMS, renegotiation_info, supported
// versions, key_share, PSK modes) marshals and parses back unchanged.
func TestClientHelloMsg_RoundTrips_NonPSKExtensions_004(t *testing.T) {
	// Arrange
	orig := &clientHelloMsg{
		vers:                   VersionTLS12,
		sessionID:              []byte{1, 2, 3},
		cipherSuites:           []uint16{0x1301, 0xc02f},
		compressionMethods:     []uint8{0},
		serverName:             "example.test",
		supportedGroups:        []NamedGroup{GroupX25519, GroupP256},
		supportedPoints:        []uint8{0},
		signatureAlgorithms:    []SignatureScheme{SigSchemeECDSAP256SHA256},
		alpnProtocols:          []string{"h2", "http/1.1"},
		extendedMasterSecret:   true,
		renegotiationSupported: true,
		secureRenegotiation:    []byte{},
		supportedVersions:      []uint16{VersionTLS13, VersionTLS12},
		keyShares:              []keyShareEntry{{group: GroupX25519, data: []byte{9, 9, 9}}},
		pskModes:               []uint8{1},
	}
	orig.random[0] = 0xAB

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got clientHelloMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, orig.vers, got.vers)
	assert.Equal(t, orig.random, got.random)
	assert.Equal(t, orig.sessionID, got.sessionID)
	assert.Equal(t, orig.cipherSuites, got.cipherSuites)
	assert.Equal(t, orig.serverName, got.serverName)
	assert.Equal(t, orig.supportedGroups, got.supportedGroups)
	assert.Equal(t, orig.signatureAlgorithms, got.signatureAlgorithms)
	assert.Equal(t, orig.alpnProtocols, got.alpnProtocols)
	assert.True(t, got.extendedMasterSecret)
	assert.True(t, got.renegotiationSupported)
	assert.Equal(t, orig.supportedVersions, got.supportedVersions)
	require.Len(t, got.keyShares, 1)
	assert.Equal(t, orig.keyShares[0], got.keyShares[0])
	assert.Equal(t, orig.pskModes, got.pskModes)
}

// TestClientHelloMsg_ParseExtensions_RejectsPSKNotLast_005 checks spec
// §8's boundary rule: a pre_shared_key extension anywhere but last is
// illegal_parameter.
func TestClientHelloMsg_ParseExtensions_RejectsPSKNotLast_005(t *testing.T) {
	// Arrange: build raw extensions with pre_shared_key first, a
	// trailing post_handshake_auth extension after it.
	exts := []rawExtension{
		{typ: extPreSharedKey, body: []byte{0, 0, 0, 0, 0}},
		{typ: extPostHandshakeAuth, body: nil},
	}
	m := &clientHelloMsg{}

	// Act
	err := m.parseExtensions(exts, 0)

	// Assert
	assert.Error(t, err)
}

// TestServerHelloMsg_RoundTrips_006 checks a representative
// ServerHello (cipher suite, EMS, ALPN, supported_version, key_share)
// round-trips.
func TestServerHelloMsg_RoundTrips_006(t *testing.T) {
	// Arrange
	orig := &serverHelloMsg{
		vers:                 VersionTLS12,
		sessionID:            []byte{7, 7},
		cipherSuite:          0xc02f,
		compressionMethod:    0,
		alpnProtocol:         "h2",
		extendedMasterSecret: true,
		supportedVersion:     VersionTLS13,
		keyShare:             &keyShareEntry{group: GroupX25519, data: []byte{1, 2, 3}},
	}
	orig.random[1] = 0x55

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got serverHelloMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, orig.vers, got.vers)
	assert.Equal(t, orig.random, got.random)
	assert.Equal(t, orig.sessionID, got.sessionID)
	assert.Equal(t, orig.cipherSuite, got.cipherSuite)
	assert.Equal(t, orig.alpnProtocol, got.alpnProtocol)
	assert.True(t, got.extendedMasterSecret)
	assert.Equal(t, orig.supportedVersion, got.supportedVersion)
	require.NotNil(t, got.keyShare)
	assert.Equal(t, *orig.keyShare, *got.keyShare)
}

// TestServerHelloMsg_IsHRR_DetectsReservedRandom_007 checks the
// HelloRetryRequest detection via the fixed RFC 8446 §4.1.3 random.
func TestServerHelloMsg_IsHRR_DetectsReservedRandom_007(t *testing.T) {
	// Arrange
	hrr := &serverHelloMsg{random: hrrRandom}
	normal := &serverHelloMsg{}

	// Act & Assert
	assert.True(t, hrr.isHRR())
	assert.False(t, normal.isHRR())
}

// TestCertificateMsg_RoundTrips_MultipleCerts_008 checks a chain of
// more than one DER-encoded certificate round-trips with lengths
// preserved independently.
func TestCertificateMsg_RoundTrips_MultipleCerts_008(t *testing.T) {
	// Arrange
	orig := &certificateMsg{certificates: [][]byte{
		{1, 2, 3},
		{4, 5, 6, 7, 8},
	}}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got certificateMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, orig.certificates, got.certificates)
}

// TestCertificateRequestMsg_RoundTrips_009 checks the <=1.2
// CertificateRequest shape (types + sig algs + CA DNs).
func TestCertificateRequestMsg_RoundTrips_009(t *testing.T) {
	// Arrange
	orig := &certificateRequestMsg{
		certificateTypes:       []byte{1, 64},
		signatureAlgorithms:    []SignatureScheme{SigSchemeECDSAP256SHA256},
		certificateAuthorities: [][]byte{{0xAA, 0xBB}},
	}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got certificateRequestMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, orig.certificateTypes, got.certificateTypes)
	assert.Equal(t, orig.signatureAlgorithms, got.signatureAlgorithms)
	assert.Equal(t, orig.certificateAuthorities, got.certificateAuthorities)
}

// TestCertificateVerifyMsg_RoundTrips_010 checks the signature-scheme
// plus length-prefixed signature shape.
func TestCertificateVerifyMsg_RoundTrips_010(t *testing.T) {
	// Arrange
	orig := &certificateVerifyMsg{signatureAlgorithm: SigSchemeECDSAP256SHA256, signature: []byte{1, 2, 3, 4, 5}}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got certificateVerifyMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, *orig, got)
}

// TestNewSessionTicketMsg_RoundTrips_Classic_011 checks the <=1.2
// NewSessionTicket shape (lifetime + opaque ticket, no TLS 1.3 fields).
func TestNewSessionTicketMsg_RoundTrips_Classic_011(t *testing.T) {
	// Arrange
	orig := &newSessionTicketMsg{lifetimeHint: 7200, ticket: []byte{1, 2, 3, 4}}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	got := &newSessionTicketMsg{}
	unmarshal(t, body, got)

	// Assert
	assert.Equal(t, orig.lifetimeHint, got.lifetimeHint)
	assert.Equal(t, orig.ticket, got.ticket)
}

// TestNewSessionTicketMsg_RoundTrips_TLS13_012 checks the TLS 1.3 shape
// (age_add, nonce, ticket, early_data extension).
func TestNewSessionTicketMsg_RoundTrips_TLS13_012(t *testing.T) {
	// Arrange
	orig := &newSessionTicketMsg{
		lifetimeHint:     3600,
		ticket:           []byte{9, 9, 9},
		isTLS13:          true,
		ageAdd:           0xdeadbeef,
		nonce:            []byte{1},
		maxEarlyDataSize: 16384,
	}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	got := &newSessionTicketMsg{isTLS13: true}
	unmarshal(t, body, got)

	// Assert
	assert.Equal(t, orig.lifetimeHint, got.lifetimeHint)
	assert.Equal(t, orig.ageAdd, got.ageAdd)
	assert.Equal(t, orig.nonce, got.nonce)
	assert.Equal(t, orig.ticket, got.ticket)
	assert.Equal(t, orig.maxEarlyDataSize, got.maxEarlyDataSize)
}

// TestHelloVerifyRequestMsg_RoundTrips_013 checks the DTLS cookie
// exchange message (spec §8 scenario 6).
func TestHelloVerifyRequestMsg_RoundTrips_013(t *testing.T) {
	// Arrange
	orig := &helloVerifyRequestMsg{vers: VersionDTLS12, cookie: []byte{1, 2, 3, 4, 5, 6}}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got helloVerifyRequestMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Equal(t, *orig, got)
}

// TestKeyUpdateMsg_RoundTrips_BothRequestValues_014 checks both
// request_update wire values (0 and 1) survive round-trip.
func TestKeyUpdateMsg_RoundTrips_BothRequestValues_014(t *testing.T) {
	for _, want := range []bool{true, false} {
		// Arrange
		orig := &keyUpdateMsg{requestUpdate: want}

		// Act
		var b cryptobyte.Builder
		orig.marshalBody(&b)
		body, err := b.Bytes()
		require.NoError(t, err)
		var got keyUpdateMsg
		unmarshal(t, body, &got)

		// Assert
		assert.Equal(t, want, got.requestUpdate)
	}
}

// TestServerHelloDoneMsg_RoundTrips_EmptyBody_015 checks an empty-body
// message both marshals to zero bytes and parses a zero-length body.
func TestServerHelloDoneMsg_RoundTrips_EmptyBody_015(t *testing.T) {
	// Arrange
	orig := &serverHelloDoneMsg{}

	// Act
	var b cryptobyte.Builder
	orig.marshalBody(&b)
	body, err := b.Bytes()
	require.NoError(t, err)
	var got serverHelloDoneMsg
	unmarshal(t, body, &got)

	// Assert
	assert.Empty(t, body)
	assert.Equal(t, orig, &got)
}
