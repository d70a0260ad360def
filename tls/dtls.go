package tls

import (
	"crypto/hmac"
	"crypto/sha256"
)

// dtlsCookieSecret is the server-side HMAC key behind the stateless
// cookie exchange (RFC 6347 §4.2.1): the cookie is derived from the
// Conn's identifier (see verifyDTLSCookie) and the first
// ClientHello.random, so the server need not
// retain any state between the first ClientHello and the client's
// cookie-bearing retry.
type dtlsCookieSecret struct {
	key []byte
}

func newDTLSCookieSecret(rnd func([]byte) error) (*dtlsCookieSecret, error) {
	key := make([]byte, 32)
	if err := rnd(key); err != nil {
		return nil, err
	}
	return &dtlsCookieSecret{key: key}, nil
}

// generateCookie computes HMAC-SHA256(secret, clientAddr || clientRandom);
// the full 32-byte tag is the cookie, within the 255-byte limit of the
// DTLS cookie field.
func (s *dtlsCookieSecret) generateCookie(clientAddr string, clientRandom [32]byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(clientAddr))
	mac.Write(clientRandom[:])
	return mac.Sum(nil)
}

func (s *dtlsCookieSecret) verifyCookie(clientAddr string, clientRandom [32]byte, cookie []byte) bool {
	expected := s.generateCookie(clientAddr, clientRandom)
	return constantTimeEqual(expected, cookie)
}

// The DTLS carve-out from spec §4.2 -- the first, cookie-less
// ClientHello and the server's HelloVerifyRequest never enter the
// running transcript, only the cookie-bearing second ClientHello does
// -- is implemented directly in the control flow of
// clientHandshakeState.sendClientHello/onHelloVerifyRequest and
// serverHandshakeState.verifyDTLSCookie/negotiateTLS13/negotiateClassic,
// rather than through a shared predicate: each site already knows which
// message it's building. The flight-buffering/retransmission side of
// DTLS (RFC 6347 §4.2.4) lives one layer down, in
// internal/recordlayer.PacketConn's pendingFlight, since resending a
// flight verbatim is a RecordLayer concern the state machine never
// needs to see.
