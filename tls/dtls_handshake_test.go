package tls

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopRecordLayer satisfies RecordLayer for tests that drive the state
// machine directly via next()/onClientHello rather than through a real
// transport.
type noopRecordLayer struct{}

func (noopRecordLayer) Send(uint8, []byte) error                 { return nil }
func (noopRecordLayer) Recv() (uint8, []byte, error)              { return 0, nil, nil }
func (noopRecordLayer) SetReadKey(*TrafficKeyInstall) error       { return nil }
func (noopRecordLayer) SetWriteKey(*TrafficKeyInstall) error      { return nil }
func (noopRecordLayer) ReadCCS() error                            { return nil }
func (noopRecordLayer) WriteCCS() error                           { return nil }
func (noopRecordLayer) SendAlert(AlertDescription, bool) error    { return nil }
func (noopRecordLayer) Flush() error                              { return nil }
func (noopRecordLayer) Close() error                              { return nil }

func dtlsConfig() *Config {
	return &Config{Rand: rand.Reader, CipherSuites: []uint16{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}}
}

// TestServerOnClientHello_DTLS_FirstHelloGetsHelloVerifyRequest_001
// checks a cookie-less DTLS ClientHello is answered with a
// HelloVerifyRequest and the server stays in SEND_CH2 rather than
// proceeding to negotiation.
func TestServerOnClientHello_DTLS_FirstHelloGetsHelloVerifyRequest_001(t *testing.T) {
	// Arrange
	conn := New(RoleServer, dtlsConfig(), noopRecordLayer{})
	ch := &clientHelloMsg{vers: VersionDTLS12, cipherSuites: []uint16{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, compressionMethods: []byte{0}}
	var random [32]byte
	copy(random[:], "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	ch.random = random
	wire := packMessage(ch)
	msgType, body, derr := parseMessageHeader(wire)
	require.Nil(t, derr)

	// Act
	actions, err := conn.server.next(event{kind: eventMessage, msgType: msgType, msgBody: body})

	// Assert
	require.Nil(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, actionSendMessage, actions[0].kind)
	respType, respBody, derr := parseMessageHeader(actions[0].message)
	require.Nil(t, derr)
	assert.Equal(t, uint8(typeHelloVerifyRequest), respType)
	hvr := &helloVerifyRequestMsg{}
	s := cryptobyteString(respBody)
	require.NoError(t, hvr.unmarshalBody(&s))
	assert.NotEmpty(t, hvr.cookie)
	assert.Equal(t, stateSendCH2, conn.server.state)
}

// TestServerOnClientHello_DTLS_RejectsForgedCookie_002 checks a second
// ClientHello presenting a cookie that doesn't verify against this
// server's secret is rejected rather than silently accepted.
func TestServerOnClientHello_DTLS_RejectsForgedCookie_002(t *testing.T) {
	// Arrange
	conn := New(RoleServer, dtlsConfig(), noopRecordLayer{})
	var random [32]byte
	copy(random[:], "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	first := &clientHelloMsg{vers: VersionDTLS12, cipherSuites: []uint16{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, compressionMethods: []byte{0}, random: random}
	mt, body, derr := parseMessageHeader(packMessage(first))
	require.Nil(t, derr)
	_, err := conn.server.next(event{kind: eventMessage, msgType: mt, msgBody: body})
	require.Nil(t, err)

	forged := &clientHelloMsg{
		vers: VersionDTLS12, cipherSuites: []uint16{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
		compressionMethods: []byte{0}, random: random, dtlsCookie: []byte("not-the-real-cookie-00000000000"),
	}
	mt2, body2, derr := parseMessageHeader(packMessage(forged))
	require.Nil(t, derr)

	// Act
	_, err = conn.server.next(event{kind: eventMessage, msgType: mt2, msgBody: body2})

	// Assert
	require.NotNil(t, err)
	assert.Equal(t, ErrKindHandshakeFailure, err.Kind)
}

// TestClientOnHelloVerifyRequest_RepliesWithCookieBearingClientHello_003
// checks the client replays the server's cookie in a fresh ClientHello
// and keeps waiting for ServerHello.
func TestClientOnHelloVerifyRequest_RepliesWithCookieBearingClientHello_003(t *testing.T) {
	// Arrange
	conn := New(RoleClient, &Config{Rand: rand.Reader, MaxVersion: VersionDTLS12, CipherSuites: []uint16{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}}, noopRecordLayer{})
	startErr := conn.Start()
	require.Nil(t, startErr)
	hvr := &helloVerifyRequestMsg{vers: VersionDTLS12, cookie: []byte("server-issued-cookie-0000000000")}
	mt, body, derr := parseMessageHeader(packMessage(hvr))
	require.Nil(t, derr)

	// Act
	actions, err := conn.client.next(event{kind: eventMessage, msgType: mt, msgBody: body})

	// Assert
	require.Nil(t, err)
	require.Len(t, actions, 2)
	respType, respBody, derr := parseMessageHeader(actions[0].message)
	require.Nil(t, derr)
	assert.Equal(t, uint8(typeClientHello), respType)
	ch2 := &clientHelloMsg{}
	s := cryptobyteString(respBody)
	require.NoError(t, ch2.unmarshalBody(&s))
	assert.Equal(t, hvr.cookie, ch2.dtlsCookie)
	assert.Equal(t, stateRecvSH, conn.client.state)
}
