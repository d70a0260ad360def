package tls

import (
	"crypto"
	_ "crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTranscriptBufferThenHash_EqualsDirectHash_001 checks the "buffer
// before negotiation, single hash after" invariant: writing messages
// before setHash and after must produce the same digest as hashing
// everything in one pass.
func TestTranscriptBufferThenHash_EqualsDirectHash_001(t *testing.T) {
	// Arrange
	msg1 := []byte("client-hello-bytes")
	msg2 := []byte("server-hello-bytes")
	tr := newTranscript()

	// Act
	tr.write(msg1)
	require.False(t, tr.bound())
	tr.setHash(crypto.SHA256)
	tr.write(msg2)
	got := tr.sum()

	// Assert
	want := crypto.SHA256.New()
	want.Write(msg1)
	want.Write(msg2)
	assert.Equal(t, want.Sum(nil), got)
}

// TestTranscriptSum_DoesNotFinalize_002 checks that sum() can be called
// repeatedly without disturbing later writes, since Finished,
// CertificateVerify, and ticket binding all read the transcript at
// different points in the same handshake.
func TestTranscriptSum_DoesNotFinalize_002(t *testing.T) {
	// Arrange
	tr := newTranscript()
	tr.setHash(crypto.SHA256)
	tr.write([]byte("a"))

	// Act
	first := tr.sum()
	tr.write([]byte("b"))
	second := tr.sum()

	// Assert
	assert.NotEqual(t, first, second)
	want := crypto.SHA256.New()
	want.Write([]byte("a"))
	want.Write([]byte("b"))
	assert.Equal(t, want.Sum(nil), second)
}

// TestTranscriptClone_IsolatesSubsequentWrites_003 checks that a cloned
// transcript does not observe writes made to the original afterward,
// needed when a CertificateVerify signature must cover the
// transcript-so-far while later messages are already being assembled.
func TestTranscriptClone_IsolatesSubsequentWrites_003(t *testing.T) {
	// Arrange
	tr := newTranscript()
	tr.setHash(crypto.SHA256)
	tr.write([]byte("up-to-here"))

	// Act
	snapshot := tr.clone()
	tr.write([]byte("more-after-clone"))

	// Assert
	assert.NotEqual(t, tr.sum(), snapshot.sum())
	want := crypto.SHA256.New()
	want.Write([]byte("up-to-here"))
	assert.Equal(t, want.Sum(nil), snapshot.sum())
}

// TestReplaceWithMessageHash_WrapsDigestAsHandshakeMessage_004 checks
// RFC 8446 §4.4.1's message_hash synthetic-message framing: type byte,
// 24-bit length, then the raw digest.
func TestReplaceWithMessageHash_WrapsDigestAsHandshakeMessage_004(t *testing.T) {
	// Arrange
	ch1 := []byte("first-client-hello")

	// Act
	got := replaceWithMessageHash(crypto.SHA256, ch1)

	// Assert
	require.Len(t, got, 4+crypto.SHA256.Size())
	assert.Equal(t, byte(typeMessageHash), got[0])
	h := crypto.SHA256.New()
	h.Write(ch1)
	assert.Equal(t, h.Sum(nil), got[4:])
}

// TestTruncatedClientHelloForBinder_CutsBeforeBinders_005 checks that
// the binder transcript fork reproduces the ClientHello header plus the
// body truncated exactly at the caller-supplied offset, never including
// bytes beyond it.
func TestTruncatedClientHelloForBinder_CutsBeforeBinders_005(t *testing.T) {
	// Arrange
	body := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	truncateAt := 4

	// Act
	got := truncatedClientHelloForBinder(body, truncateAt)

	// Assert
	require.Len(t, got, 4+truncateAt)
	assert.Equal(t, byte(typeClientHello), got[0])
	length := int(got[1])<<16 | int(got[2])<<8 | int(got[3])
	assert.Equal(t, len(body), length)
	assert.Equal(t, body[:truncateAt], got[4:])
}
