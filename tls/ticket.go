package tls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/cryptobyte"
)

// ticketKeyNameLen matches spec §6.3's blob layout `[key_name:16]...`.
const ticketKeyNameLen = 16

// ticketMACLen is the HMAC-SHA256 tag length appended to every ticket,
// per spec §6.3 "Integrity-then-decrypt".
const ticketMACLen = sha256.Size

// ticketKey is one generation of ticket material: a name to select it
// on decrypt, an AES-256-GCM key, and a separate HMAC key for the
// integrity-then-decrypt envelope (spec §6.3).
type ticketKey struct {
	name    [ticketKeyNameLen]byte
	aeadKey [32]byte
	macKey  [32]byte
}

func newTicketKey(rnd io.Reader) (ticketKey, error) {
	var k ticketKey
	if err := fillRandom(rnd, k.name[:]); err != nil {
		return k, err
	}
	if err := fillRandom(rnd, k.aeadKey[:]); err != nil {
		return k, err
	}
	if err := fillRandom(rnd, k.macKey[:]); err != nil {
		return k, err
	}
	return k, nil
}

// ticketKeySet is the stateless half of the Session Store (spec §4.4):
// a current encryption key plus a small ring of keys still accepted for
// decryption, so in-flight tickets survive a rotation. Swaps are
// atomic under one lock (spec §5 "ticket key rotation swaps a key set
// atomically").
type ticketKeySet struct {
	mu      sync.RWMutex
	current ticketKey
	accept  []ticketKey // current first, then older generations
}

func newTicketKeySet(current ticketKey) *ticketKeySet {
	return &ticketKeySet{current: current, accept: []ticketKey{current}}
}

// rotate installs next as the encryption key, keeping up to keep older
// generations acceptable for decryption.
func (s *ticketKeySet) rotate(next ticketKey, keep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	accept := append([]ticketKey{next}, s.accept...)
	if len(accept) > keep+1 {
		accept = accept[:keep+1]
	}
	s.accept = accept
}

func (s *ticketKeySet) encryptionKey() ticketKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *ticketKeySet) findByName(name [ticketKeyNameLen]byte) (ticketKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.accept {
		if k.name == name {
			return k, true
		}
	}
	return ticketKey{}, false
}

func serializeSession(s *Session) []byte {
	var b cryptobyte.Builder
	b.AddUint16(s.Version)
	b.AddUint16(s.CipherSuite)
	b.AddUint16(s.CipherSuiteTLS13)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(s.MasterSecret) })
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(s.SessionID) })
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(s.SessionIDContext) })
	ems := uint8(0)
	if s.ExtendedMasterSecret {
		ems = 1
	}
	b.AddUint8(ems)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(s.ServerName)) })
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, c := range s.PeerCertificates {
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c) })
		}
	})
	b.AddUint32(s.LifetimeHint)
	b.AddUint64(uint64(s.CreatedAt.Unix()))
	b.AddUint32(s.TicketAgeAdd)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(s.AuthIdentityHash) })
	out, _ := b.Bytes()
	return out
}

func deserializeSession(raw []byte) (*Session, bool) {
	s := cryptobyte.String(raw)
	sess := &Session{}
	var masterSecret, sessionID, sidCtx, serverName, authHash cryptobyte.String
	var ems uint8
	var created uint64
	var certList cryptobyte.String
	if !s.ReadUint16(&sess.Version) ||
		!s.ReadUint16(&sess.CipherSuite) ||
		!s.ReadUint16(&sess.CipherSuiteTLS13) ||
		!s.ReadUint16LengthPrefixed(&masterSecret) ||
		!s.ReadUint8LengthPrefixed(&sessionID) ||
		!s.ReadUint8LengthPrefixed(&sidCtx) ||
		!s.ReadUint8(&ems) ||
		!s.ReadUint16LengthPrefixed(&serverName) ||
		!s.ReadUint24LengthPrefixed(&certList) ||
		!s.ReadUint32(&sess.LifetimeHint) ||
		!s.ReadUint64(&created) ||
		!s.ReadUint32(&sess.TicketAgeAdd) ||
		!s.ReadUint8LengthPrefixed(&authHash) ||
		!s.Empty() {
		return nil, false
	}
	sess.MasterSecret = []byte(masterSecret)
	sess.SessionID = []byte(sessionID)
	sess.SessionIDContext = []byte(sidCtx)
	sess.ExtendedMasterSecret = ems == 1
	sess.ServerName = string(serverName)
	sess.CreatedAt = time.Unix(int64(created), 0)
	sess.AuthIdentityHash = []byte(authHash)
	for !certList.Empty() {
		var c cryptobyte.String
		if !certList.ReadUint24LengthPrefixed(&c) {
			return nil, false
		}
		sess.PeerCertificates = append(sess.PeerCertificates, []byte(c))
	}
	return sess, true
}

// encryptTicket implements the Session Store's stateless half
// (spec §4.4, §6.3): `[key_name:16][iv:12][ciphertext][hmac:32]`, the
// ciphertext being AES-256-GCM over the serialised session and the
// HMAC covering key_name||iv||ciphertext (integrity-then-decrypt).
func encryptTicket(keys *ticketKeySet, session *Session) ([]byte, error) {
	k := keys.encryptionKey()
	block, err := aes.NewCipher(k.aeadKey[:])
	if err != nil {
		return nil, newError(ErrKindInternal, "", "ticket", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newError(ErrKindInternal, "", "ticket", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if err := fillRandom(rand.Reader, iv); err != nil {
		return nil, err
	}
	plaintext := serializeSession(session)
	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	mac := hmac.New(sha256.New, k.macKey[:])
	mac.Write(k.name[:])
	mac.Write(iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	out := make([]byte, 0, ticketKeyNameLen+len(iv)+len(ciphertext)+ticketMACLen)
	out = append(out, k.name[:]...)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// decryptTicket returns (session, needsRenew). needsRenew is true when
// the blob is well-formed and authentic but the inner session fails
// validity (spec §4.4 "decrypts but whose inner Session fails the
// validity check returns (none, true)"), or when the key name is
// unrecognised (expired via rotation, spec §4.4's "enforced ... by key
// rotation"). Any integrity or structural failure returns (nil, false)
// so the caller treats the ticket as simply absent.
func decryptTicket(keys *ticketKeySet, blob []byte) (*Session, bool) {
	if len(blob) < ticketKeyNameLen+ticketMACLen {
		return nil, false
	}
	var name [ticketKeyNameLen]byte
	copy(name[:], blob[:ticketKeyNameLen])
	k, ok := keys.findByName(name)
	if !ok {
		return nil, true // key rotated out: needs_renew
	}

	tag := blob[len(blob)-ticketMACLen:]
	body := blob[:len(blob)-ticketMACLen]
	mac := hmac.New(sha256.New, k.macKey[:])
	mac.Write(body)
	expected := mac.Sum(nil)
	if !constantTimeEqual(expected, tag) {
		return nil, false
	}

	block, err := aes.NewCipher(k.aeadKey[:])
	if err != nil {
		return nil, false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, false
	}
	ivAndCT := body[ticketKeyNameLen:]
	if len(ivAndCT) < gcm.NonceSize() {
		return nil, false
	}
	iv := ivAndCT[:gcm.NonceSize()]
	ciphertext := ivAndCT[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, false
	}
	session, ok := deserializeSession(plaintext)
	if !ok {
		return nil, false
	}
	if !session.valid(time.Now()) {
		return nil, true
	}
	return session, false
}
