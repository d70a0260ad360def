package tls

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(t *testing.T) *Session {
	t.Helper()
	return &Session{
		Version:              VersionTLS13,
		CipherSuiteTLS13:     TLS_AES_128_GCM_SHA256,
		MasterSecret:         []byte{1, 2, 3, 4, 5, 6, 7, 8},
		SessionID:            []byte{0xAA, 0xBB, 0xCC},
		ExtendedMasterSecret: true,
		ServerName:           "example.test",
		PeerCertificates:     [][]byte{{1, 2}, {3, 4, 5}},
		LifetimeHint:         7200,
		CreatedAt:            time.Unix(1700000000, 0),
		TicketAgeAdd:         0x11223344,
		AuthIdentityHash:     []byte{9, 9},
	}
}

// TestSessionValid_RespectsLifetimeHint_001 checks the expiry rule: a
// zero lifetime hint never expires, a nonzero one does once elapsed.
func TestSessionValid_RespectsLifetimeHint_001(t *testing.T) {
	// Arrange
	noExpiry := &Session{CreatedAt: time.Now().Add(-24 * time.Hour), LifetimeHint: 0}
	expired := &Session{CreatedAt: time.Now().Add(-2 * time.Hour), LifetimeHint: 60}
	fresh := &Session{CreatedAt: time.Now(), LifetimeHint: 3600}

	// Act & Assert
	assert.True(t, noExpiry.valid(time.Now()))
	assert.False(t, expired.valid(time.Now()))
	assert.True(t, fresh.valid(time.Now()))
	var nilSession *Session
	assert.False(t, nilSession.valid(time.Now()))
}

// TestSessionStore_InsertLookupDelete_RoundTrips_002 checks the basic
// insert/lookup/delete cycle of the stateful Session Store.
func TestSessionStore_InsertLookupDelete_RoundTrips_002(t *testing.T) {
	// Arrange
	store := newSessionStore(10, 0)
	session := sampleSession(t)

	// Act
	id := store.insert(session)
	got, ok := store.lookup([]byte(id))

	// Assert
	require.True(t, ok)
	assert.Same(t, session, got)

	// Act: delete
	store.delete([]byte(id))
	_, ok = store.lookup([]byte(id))
	assert.False(t, ok)
}

// TestSessionStore_EvictsLeastRecentlyUsedAtCapacity_003 checks the LRU
// eviction policy spec §4.4 requires once the size cap is exceeded.
func TestSessionStore_EvictsLeastRecentlyUsedAtCapacity_003(t *testing.T) {
	// Arrange
	store := newSessionStore(2, 0)
	first := store.insert(&Session{SessionID: []byte("a")})
	second := store.insert(&Session{SessionID: []byte("b")})
	// touch first so it becomes most recently used, leaving second as LRU
	_, _ = store.lookup([]byte(first))

	// Act: inserting a third entry should evict the least recently used
	store.insert(&Session{SessionID: []byte("c")})

	// Assert
	_, stillThere := store.lookup([]byte(first))
	_, evicted := store.lookup([]byte(second))
	assert.True(t, stillThere)
	assert.False(t, evicted)
}

// TestSessionStore_LookupExpiresEntriesPastTimeout_004 checks the
// absolute-timeout eviction path independent of LRU capacity pressure.
func TestSessionStore_LookupExpiresEntriesPastTimeout_004(t *testing.T) {
	// Arrange
	store := newSessionStore(10, time.Millisecond)
	id := store.insert(&Session{SessionID: []byte("x")})
	time.Sleep(5 * time.Millisecond)

	// Act
	_, ok := store.lookup([]byte(id))

	// Assert
	assert.False(t, ok)
}

// TestSerializeDeserializeSession_RoundTrips_005 checks the ticket
// codec's session serialization is bijective across every field.
func TestSerializeDeserializeSession_RoundTrips_005(t *testing.T) {
	// Arrange
	orig := sampleSession(t)

	// Act
	raw := serializeSession(orig)
	got, ok := deserializeSession(raw)

	// Assert
	require.True(t, ok)
	assert.Equal(t, orig.Version, got.Version)
	assert.Equal(t, orig.CipherSuiteTLS13, got.CipherSuiteTLS13)
	assert.Equal(t, orig.MasterSecret, got.MasterSecret)
	assert.Equal(t, orig.SessionID, got.SessionID)
	assert.True(t, got.ExtendedMasterSecret)
	assert.Equal(t, orig.ServerName, got.ServerName)
	assert.Equal(t, orig.PeerCertificates, got.PeerCertificates)
	assert.Equal(t, orig.LifetimeHint, got.LifetimeHint)
	assert.Equal(t, orig.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.Equal(t, orig.TicketAgeAdd, got.TicketAgeAdd)
	assert.Equal(t, orig.AuthIdentityHash, got.AuthIdentityHash)
}

// TestEncryptDecryptTicket_RoundTrips_006 checks the full
// integrity-then-decrypt envelope: a ticket encrypted under the current
// key decrypts back to an equivalent, still-valid session.
func TestEncryptDecryptTicket_RoundTrips_006(t *testing.T) {
	// Arrange
	key, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	keys := newTicketKeySet(key)
	orig := sampleSession(t)
	orig.CreatedAt = time.Now()

	// Act
	blob, err := encryptTicket(keys, orig)
	require.NoError(t, err)
	got, needsRenew := decryptTicket(keys, blob)

	// Assert
	require.NotNil(t, got)
	assert.False(t, needsRenew)
	assert.Equal(t, orig.SessionID, got.SessionID)
	assert.Equal(t, orig.MasterSecret, got.MasterSecret)
}

// TestDecryptTicket_TamperedTagFailsClosed_007 checks the
// integrity-then-decrypt ordering: flipping a tag byte is rejected as
// "absent" rather than attempted-then-failed decryption.
func TestDecryptTicket_TamperedTagFailsClosed_007(t *testing.T) {
	// Arrange
	key, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	keys := newTicketKeySet(key)
	blob, err := encryptTicket(keys, sampleSession(t))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF

	// Act
	got, needsRenew := decryptTicket(keys, blob)

	// Assert
	assert.Nil(t, got)
	assert.False(t, needsRenew)
}

// TestDecryptTicket_UnknownKeyNameNeedsRenew_008 checks spec §4.4's key-
// rotation expiry path: a ticket encrypted under a key no longer in the
// accept set surfaces as needs_renew, not as a hard failure.
func TestDecryptTicket_UnknownKeyNameNeedsRenew_008(t *testing.T) {
	// Arrange
	oldKey, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	oldKeys := newTicketKeySet(oldKey)
	blob, err := encryptTicket(oldKeys, sampleSession(t))
	require.NoError(t, err)

	newKey, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	newKeys := newTicketKeySet(newKey) // does not accept oldKey's name

	// Act
	got, needsRenew := decryptTicket(newKeys, blob)

	// Assert
	assert.Nil(t, got)
	assert.True(t, needsRenew)
}

// TestDecryptTicket_ExpiredInnerSessionNeedsRenew_009 checks that a
// structurally valid, authentic ticket whose inner session has expired
// returns needs_renew rather than being treated as a protocol error.
func TestDecryptTicket_ExpiredInnerSessionNeedsRenew_009(t *testing.T) {
	// Arrange
	key, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	keys := newTicketKeySet(key)
	expired := sampleSession(t)
	expired.CreatedAt = time.Now().Add(-24 * time.Hour)
	expired.LifetimeHint = 60
	blob, err := encryptTicket(keys, expired)
	require.NoError(t, err)

	// Act
	got, needsRenew := decryptTicket(keys, blob)

	// Assert
	assert.Nil(t, got)
	assert.True(t, needsRenew)
}

// TestTicketKeySet_RotateKeepsRecentGenerationsAcceptable_010 checks
// rotate's bounded accept ring: the newly rotated-in key becomes the
// encryption key, and up to `keep` older generations stay decryptable.
func TestTicketKeySet_RotateKeepsRecentGenerationsAcceptable_010(t *testing.T) {
	// Arrange
	k1, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	k2, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	k3, err := newTicketKey(rand.Reader)
	require.NoError(t, err)
	set := newTicketKeySet(k1)

	// Act
	set.rotate(k2, 1)
	set.rotate(k3, 1)

	// Assert
	assert.Equal(t, k3, set.encryptionKey())
	_, k2Accepted := set.findByName(k2.name)
	_, k1Accepted := set.findByName(k1.name)
	assert.True(t, k2Accepted)
	assert.False(t, k1Accepted)
}
