// Package certprovider is the default tls.CertificateProvider, wrapping
// stdlib crypto/x509 -- the X.509/PKI layer itself is out of scope for
// this module (spec Non-goals), so parsing and chain validation are
// delegated straight to the standard library rather than reimplemented.
package certprovider

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"time"

	"github.com/tlhc/openhitls/tls"
)

// Default is the crypto/x509-backed tls.CertificateProvider.
type Default struct {
	Roots *x509.CertPool
}

// New returns a Default that validates against the host's system root
// pool unless Roots is set explicitly afterward.
func New() *Default {
	return &Default{}
}

// x509Cert adapts *x509.Certificate to tls.Certificate.
type x509Cert struct{ cert *x509.Certificate }

func (c x509Cert) Raw() []byte { return c.cert.Raw }

func (d *Default) ParseCertificate(der []byte) (tls.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return x509Cert{cert}, nil
}

// VerifyChain mirrors the teacher's certificate-validation call shape:
// build an intermediate pool from everything but the leaf, then defer
// to x509.Certificate.Verify for path building, expiry, and name
// checking.
func (d *Default) VerifyChain(chain []tls.Certificate, serverName string, now time.Time) error {
	if len(chain) == 0 {
		return errors.New("certprovider: empty certificate chain")
	}
	leaf, ok := chain[0].(x509Cert)
	if !ok {
		return errors.New("certprovider: unrecognized certificate handle")
	}
	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		if xc, ok := c.(x509Cert); ok {
			intermediates.AddCert(xc.cert)
		}
	}
	opts := x509.VerifyOptions{
		DNSName:       serverName,
		Intermediates: intermediates,
		Roots:         d.Roots,
		CurrentTime:   now,
	}
	_, err := leaf.cert.Verify(opts)
	return err
}

func (d *Default) PublicKey(cert tls.Certificate) interface{} {
	xc, ok := cert.(x509Cert)
	if !ok {
		return nil
	}
	switch xc.cert.PublicKey.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return xc.cert.PublicKey
	}
	return nil
}

// MatchesPrivateKey confirms a configured identity's private key
// matches its leaf certificate, the same sanity check the teacher runs
// once at Config load time rather than per-handshake.
func (d *Default) MatchesPrivateKey(cert tls.Certificate, privKeyHandle interface{}) bool {
	pub := d.PublicKey(cert)
	switch priv := privKeyHandle.(type) {
	case *rsa.PrivateKey:
		rpub, ok := pub.(*rsa.PublicKey)
		return ok && priv.PublicKey.Equal(rpub)
	case *ecdsa.PrivateKey:
		epub, ok := pub.(*ecdsa.PublicKey)
		return ok && priv.PublicKey.Equal(epub)
	case ed25519.PrivateKey:
		edpub, ok := pub.(ed25519.PublicKey)
		return ok && priv.Public().(ed25519.PublicKey).Equal(edpub)
	}
	return false
}
