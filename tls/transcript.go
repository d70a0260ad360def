package tls

import (
	"crypto"
	"hash"
)

// transcript is the Transcript Hasher (spec §4.2): it buffers every
// handshake message's wire bytes (as produced/consumed by the Message
// Codec, header included) until the cipher suite's hash algorithm is
// known, then folds the buffer and every subsequent message into a
// running hash.Hash. Buffering first and hashing once mirrors the
// teacher's `finishedHash`, which only begins once md5/sha1 (or sha256
// for 1.2) is chosen.
type transcript struct {
	hashFunc crypto.Hash
	h        hash.Hash
	buf      []byte // only populated before hashFunc is set
}

func newTranscript() *transcript {
	return &transcript{}
}

// setHash binds the transcript to a hash algorithm once the cipher
// suite is negotiated, folding in anything buffered so far -- this is
// the "buffer before negotiation, single hash after" invariant.
func (t *transcript) setHash(h crypto.Hash) {
	t.hashFunc = h
	t.h = h.New()
	if len(t.buf) > 0 {
		t.h.Write(t.buf)
		t.buf = nil
	}
}

func (t *transcript) bound() bool { return t.h != nil }

// write appends one handshake message's wire bytes to the transcript.
// Callers must never feed HelloRequest, the DTLS cookie-exchange
// HelloVerifyRequest, or the original ClientHello1 in an HRR flow
// (spec §4.2's exclusions) -- the state machine enforces this by simply
// not calling write for those messages.
func (t *transcript) write(msg []byte) {
	if t.h != nil {
		t.h.Write(msg)
		return
	}
	t.buf = append(t.buf, msg...)
}

// sum returns the running transcript hash without finalizing it,
// needed repeatedly across the handshake (Finished, CertificateVerify,
// NewSessionTicket resumption binding).
func (t *transcript) sum() []byte {
	if t.h == nil {
		return nil
	}
	return t.h.Sum(nil)
}

// clone snapshots the transcript for a signature context that must not
// observe subsequently written messages (e.g. computing
// CertificateVerify over the transcript-so-far while later messages
// are already being assembled).
func (t *transcript) clone() *transcript {
	c := &transcript{hashFunc: t.hashFunc}
	if t.h != nil {
		if cloner, ok := t.h.(interface{ Clone() (hash.Hash, error) }); ok {
			if h2, err := cloner.Clone(); err == nil {
				c.h = h2
				return c
			}
		}
		// Fallback for hash.Hash implementations without Clone: re-derive
		// by hashing the accumulated bytes is not possible once absorbed,
		// so CryptoProvider hash implementations used with this engine
		// must support the optional Clone() method (sha256/sha512 do, via
		// crypto/sha256.Sum256's internal digest type in recent Go).
		c.h = t.h
	}
	c.buf = append([]byte(nil), t.buf...)
	return c
}

// replaceWithMessageHash implements the TLS 1.3 HelloRetryRequest
// transcript rule (RFC 8446 §4.4.1): the original ClientHello1 is
// replaced, for hashing purposes only, by a synthetic
// message_hash(Hash(ClientHello1)) handshake message. Must be called
// before the hash algorithm would otherwise absorb ClientHello1's raw
// bytes, i.e. while still buffering or immediately after HRR is
// detected and before ClientHello2 is hashed.
func replaceWithMessageHash(hashFunc crypto.Hash, clientHello1 []byte) []byte {
	h := hashFunc.New()
	h.Write(clientHello1)
	digest := h.Sum(nil)
	var b []byte
	b = append(b, typeMessageHash)
	length := len(digest)
	b = append(b, byte(length>>16), byte(length>>8), byte(length))
	b = append(b, digest...)
	return b
}

// truncatedClientHelloForBinder implements spec §4.1/§4.2's PSK binder
// transcript fork: the binder covers the ClientHello's header plus body
// up to (but not including) the binders list, per RFC 8446 §4.2.11.2.
// chBody is the full marshaled ClientHello body (post-header);
// truncateAt is preSharedKeyExtension.identitiesEnd, already an offset
// within chBody itself (parseExtensions shifts it past the fields that
// precede the extensions block), immediately before the binders length
// prefix.
func truncatedClientHelloForBinder(chBody []byte, truncateAt int) []byte {
	header := []byte{typeClientHello, byte(len(chBody) >> 16), byte(len(chBody) >> 8), byte(len(chBody))}
	return append(header, chBody[:truncateAt]...)
}
