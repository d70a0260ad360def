package tls

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// erroringReader always fails, to exercise fillRandom's error-wrapping
// path.
type erroringReader struct{}

func (erroringReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

// TestFillRandom_FillsBufferFromSource_001 checks the happy path reads
// exactly len(buf) bytes from the given source.
func TestFillRandom_FillsBufferFromSource_001(t *testing.T) {
	// Arrange
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6})
	buf := make([]byte, 4)

	// Act
	err := fillRandom(src, buf)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

// TestFillRandom_WrapsSourceError_002 checks a failing source surfaces
// as a tls.Error rather than the raw io error.
func TestFillRandom_WrapsSourceError_002(t *testing.T) {
	// Arrange
	buf := make([]byte, 4)

	// Act
	err := fillRandom(erroringReader{}, buf)

	// Assert
	assert.Error(t, err)
	var tlsErr *Error
	assert.ErrorAs(t, err, &tlsErr)
}

// TestConstantTimeEqual_ComparesByteSlices_003 checks equal, unequal,
// and mismatched-length inputs.
func TestConstantTimeEqual_ComparesByteSlices_003(t *testing.T) {
	assert.True(t, constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 3}))
	assert.False(t, constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 4}))
	assert.False(t, constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2}))
}

// TestAlertDescription_String_KnownAndUnknown_004 checks the wire-name
// lookup and its fallback.
func TestAlertDescription_String_KnownAndUnknown_004(t *testing.T) {
	assert.Equal(t, "handshake_failure", AlertHandshakeFailure.String())
	assert.Equal(t, "close_notify", AlertCloseNotify.String())
	assert.Equal(t, "unknown_alert", AlertDescription(200).String())
}

// TestAlertDescription_IsFatal_WarningLevelExceptions_005 checks the
// three non-fatal alerts this CORE ever emits/accepts, and that an
// arbitrary other alert defaults to fatal.
func TestAlertDescription_IsFatal_WarningLevelExceptions_005(t *testing.T) {
	assert.False(t, AlertCloseNotify.isFatal())
	assert.False(t, AlertUserCanceled.isFatal())
	assert.False(t, AlertNoRenegotiation.isFatal())
	assert.True(t, AlertHandshakeFailure.isFatal())
	assert.True(t, AlertBadRecordMAC.isFatal())
}
