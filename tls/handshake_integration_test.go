package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlhc/openhitls/internal/certprovider"
	"github.com/tlhc/openhitls/internal/cryptoprovider"
	"github.com/tlhc/openhitls/internal/recordlayer"
	"github.com/tlhc/openhitls/tls"
)

// selfSignedTestCert mirrors cmd/hitls-handshake-demo's certificate
// generation so the integration tests exercise the same trust shape a
// real deployment would: a self-signed leaf the client must be handed
// explicitly as a root, not validated against the system pool.
func selfSignedTestCert(t *testing.T, name string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{name},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, priv
}

// driveToCompletion pumps Step against whatever the peer sends until
// the connection reaches a terminal status, returning that status.
func driveToCompletion(conn *tls.Conn, rl interface{ Recv() (uint8, []byte, error) }) tls.StepStatus {
	for {
		msgType, body, err := rl.Recv()
		if err != nil {
			return tls.StatusError
		}
		switch status := conn.Step(msgType, body); status {
		case tls.StatusHandshakeComplete, tls.StatusError:
			return status
		}
	}
}

// TestHandshake_TLS13FullECDHEECDSA_BothSidesComplete_001 drives a full
// TLS 1.3 ECDHE/ECDSA handshake over an in-process pipe and checks both
// the client and server Conn reach StatusHandshakeComplete.
func TestHandshake_TLS13FullECDHEECDSA_BothSidesComplete_001(t *testing.T) {
	// Arrange
	const serverName = "handshake.test"
	cert, key := selfSignedTestCert(t, serverName)
	crypto := cryptoprovider.New()

	roots := x509.NewCertPool()
	roots.AddCert(cert)
	clientCerts := &certprovider.Default{Roots: roots}
	serverCerts := certprovider.New()

	clientPipe, serverPipe := net.Pipe()
	clientRL := recordlayer.NewStreamConn(clientPipe, crypto.NewAEAD)
	serverRL := recordlayer.NewStreamConn(serverPipe, crypto.NewAEAD)

	clientConfig := &tls.Config{
		ServerName:        serverName,
		CipherSuitesTLS13: []uint16{tls.TLS_AES_128_GCM_SHA256},
		SupportedGroups:   []tls.NamedGroup{tls.GroupX25519},
		SignatureSchemes:  []tls.SignatureScheme{tls.SigSchemeECDSAP256SHA256},
		Crypto:            crypto,
		CertProvider:      clientCerts,
		Rand:              rand.Reader,
	}
	serverConfig := &tls.Config{
		Certificates: []tls.CertKeyPair{{
			Chain:         [][]byte{cert.Raw},
			PrivateKey:    key,
			SupportedSigs: []tls.SignatureScheme{tls.SigSchemeECDSAP256SHA256},
		}},
		CipherSuitesTLS13: []uint16{tls.TLS_AES_128_GCM_SHA256},
		SupportedGroups:   []tls.NamedGroup{tls.GroupX25519},
		SignatureSchemes:  []tls.SignatureScheme{tls.SigSchemeECDSAP256SHA256},
		Crypto:            crypto,
		CertProvider:      serverCerts,
		Rand:              rand.Reader,
	}

	client := tls.New(tls.RoleClient, clientConfig, clientRL)
	server := tls.New(tls.RoleServer, serverConfig, serverRL)

	clientDone := make(chan tls.StepStatus, 1)
	serverDone := make(chan tls.StepStatus, 1)
	go func() { serverDone <- driveToCompletion(server, serverRL) }()
	go func() { clientDone <- driveToCompletion(client, clientRL) }()

	// Act
	startErr := client.Start()

	// Assert
	require.Nil(t, startErr)
	assert.Equal(t, tls.StatusHandshakeComplete, <-clientDone)
	assert.Equal(t, tls.StatusHandshakeComplete, <-serverDone)
}
