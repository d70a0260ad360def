package certprovider

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlhc/openhitls/tls"
)

func selfSigned(t *testing.T, name string) (der []byte, priv *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{name},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err = x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	return der, priv
}

// TestParseCertificate_RoundTripsRawBytes_001 checks that ParseCertificate
// preserves the original DER bytes behind the tls.Certificate handle.
func TestParseCertificate_RoundTripsRawBytes_001(t *testing.T) {
	// Arrange
	d := New()
	der, _ := selfSigned(t, "example.test")

	// Act
	cert, err := d.ParseCertificate(der)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, der, cert.Raw())
}

// TestVerifyChain_SelfSignedMatchingRootSucceeds_002 checks that a
// self-signed leaf verifies when it is itself placed in the trusted
// root pool and the server name matches its DNSNames.
func TestVerifyChain_SelfSignedMatchingRootSucceeds_002(t *testing.T) {
	// Arrange
	der, _ := selfSigned(t, "example.test")
	x509Leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(x509Leaf)
	d := &Default{Roots: roots}
	cert, err := d.ParseCertificate(der)
	require.NoError(t, err)

	// Act
	verr := d.VerifyChain([]tls.Certificate{cert}, "example.test", time.Now())

	// Assert
	assert.NoError(t, verr)
}

// TestVerifyChain_WrongServerNameFails_003 checks that a name mismatch
// against the leaf's DNSNames is rejected even though the chain itself
// is trusted.
func TestVerifyChain_WrongServerNameFails_003(t *testing.T) {
	// Arrange
	der, _ := selfSigned(t, "example.test")
	x509Leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(x509Leaf)
	d := &Default{Roots: roots}
	cert, err := d.ParseCertificate(der)
	require.NoError(t, err)

	// Act
	verr := d.VerifyChain([]tls.Certificate{cert}, "not-example.test", time.Now())

	// Assert
	assert.Error(t, verr)
}

// TestVerifyChain_EmptyChainFails_004 checks the degenerate empty-chain
// case is rejected rather than trivially verifying.
func TestVerifyChain_EmptyChainFails_004(t *testing.T) {
	// Arrange
	d := New()

	// Act
	verr := d.VerifyChain(nil, "example.test", time.Now())

	// Assert
	assert.Error(t, verr)
}

// TestPublicKeyAndMatchesPrivateKey_ECDSA_005 checks that PublicKey
// extracts the leaf's key and MatchesPrivateKey confirms the
// corresponding private key, while rejecting an unrelated key.
func TestPublicKeyAndMatchesPrivateKey_ECDSA_005(t *testing.T) {
	// Arrange
	d := New()
	der, priv := selfSigned(t, "example.test")
	cert, err := d.ParseCertificate(der)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	// Act
	pub := d.PublicKey(cert)

	// Assert
	require.NotNil(t, pub)
	assert.True(t, d.MatchesPrivateKey(cert, priv))
	assert.False(t, d.MatchesPrivateKey(cert, other))
}
