package tls

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// cryptobyteString wraps a raw handshake-message body (as the Record
// Layer/Message Codec hand it, already stripped of its type+length
// header) for use with the per-message unmarshalBody methods.
func cryptobyteString(body []byte) cryptobyte.String {
	return cryptobyte.String(body)
}

// fillRandom mirrors the teacher's `io.ReadFull(config.rand(), hello.random)`
// pattern for every handshake field that must be drawn from the configured
// random source (spec §4.1 "random": ClientHello.random, ServerHello.random,
// session IDs, DTLS cookies).
func fillRandom(rand io.Reader, buf []byte) error {
	if _, err := io.ReadFull(rand, buf); err != nil {
		return newError(ErrKindInternal, "", "random", err)
	}
	return nil
}

// constantTimeEqual wraps crypto/subtle for the constant-time comparisons
// spec §4.1/§8 require of Finished.verify_data, PSK binders, and ticket
// HMAC tags -- comparisons whose timing must not depend on where the first
// mismatching byte falls.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
