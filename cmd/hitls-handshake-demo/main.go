// Command hitls-handshake-demo drives one loopback TLS 1.3 handshake
// end to end over an in-process pipe, for manual smoke testing of the
// state machine -- not part of the handshake CORE itself.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tlhc/openhitls/internal/certprovider"
	"github.com/tlhc/openhitls/internal/cryptoprovider"
	"github.com/tlhc/openhitls/internal/recordlayer"
	"github.com/tlhc/openhitls/tls"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	serverName := flag.String("server-name", "demo.internal", "SNI value the client offers")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	if !*verbose {
		logger = zap.NewNop()
	}

	cert, key, err := selfSignedCert(*serverName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate certificate:", err)
		os.Exit(1)
	}

	crypto := cryptoprovider.New()

	// The demo's server certificate is self-signed, so the client trusts
	// it directly rather than through a CA: its own client-side
	// CertificateProvider gets a root pool containing exactly that leaf.
	roots := x509.NewCertPool()
	roots.AddCert(cert)
	clientCerts := &certprovider.Default{Roots: roots}
	serverCerts := certprovider.New()

	clientPipe, serverPipe := net.Pipe()

	clientRL := recordlayer.NewStreamConn(clientPipe, crypto.NewAEAD)
	serverRL := recordlayer.NewStreamConn(serverPipe, crypto.NewAEAD)

	clientConfig := &tls.Config{
		ServerName:        *serverName,
		CipherSuitesTLS13: []uint16{tls.TLS_AES_128_GCM_SHA256},
		SupportedGroups:   []tls.NamedGroup{tls.GroupX25519},
		SignatureSchemes:  []tls.SignatureScheme{tls.SigSchemeECDSAP256SHA256},
		Crypto:            crypto,
		CertProvider:      clientCerts,
		Logger:            logger,
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
		Logger:            logger,
		Rand:              rand.Reader,
	}

	client := tls.New(tls.RoleClient, clientConfig, clientRL)
	server := tls.New(tls.RoleServer, serverConfig, serverRL)

	done := make(chan error, 2)
	go func() { done <- driveLoop("server", server, serverRL) }()
	go func() { done <- driveLoop("client", client, clientRL) }()

	if err := client.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "client start:", err)
		os.Exit(1)
	}

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Println("handshake complete")
}

func driveLoop(role string, conn *tls.Conn, rl *recordlayer.StreamConn) error {
	for {
		msgType, body, err := rl.Recv()
		if err != nil {
			return fmt.Errorf("%s: recv: %w", role, err)
		}
		status := conn.Step(msgType, body)
		switch status {
		case tls.StatusHandshakeComplete:
			return nil
		case tls.StatusError:
			return fmt.Errorf("%s: handshake failed: %v", role, conn.LastError())
		}
	}
}

func selfSignedCert(name string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{name},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, priv, nil
}
