package tls

import (
	"crypto"
	"io"
	"time"

	"go.uber.org/zap"
)

// CryptoProvider is the Crypto Provider collaborator contract (spec
// §6.5): every cryptographic primitive the Key-Exchange Engine and
// Transcript Hasher need, kept behind an interface so the CORE never
// imports a concrete crypto backend directly. `internal/cryptoprovider`
// is the default implementation.
type CryptoProvider interface {
	// Rand returns the DRBG the engine draws all randomness from
	// (ClientHello.random, ephemeral keys, IVs, pre-master secrets).
	Rand() io.Reader

	// GenerateKeyShare creates an ephemeral keypair for group, returning
	// the wire-encoded public share and an opaque private handle to pass
	// back into ComputeSharedSecret.
	GenerateKeyShare(group NamedGroup) (public []byte, private []byte, err error)
	// ComputeSharedSecret derives the shared secret for group from a
	// private handle returned by GenerateKeyShare and the peer's
	// wire-encoded public share.
	ComputeSharedSecret(group NamedGroup, private, peerPublic []byte) ([]byte, error)

	// RSAEncryptPKCS1 / RSADecryptPKCS1 implement the RSA key-exchange
	// mode's premaster encryption under the peer certificate's public key
	// / the local private key (spec §4.3 RSA row).
	RSAEncryptPKCS1(pub []byte, premaster []byte) ([]byte, error)
	RSADecryptPKCS1(privKeyHandle interface{}, ciphertext []byte) ([]byte, error)

	// Sign / VerifySignature implement CertificateVerify / ServerKeyExchange
	// signing and verification for a given SignatureScheme.
	Sign(privKeyHandle interface{}, scheme SignatureScheme, message []byte) ([]byte, error)
	VerifySignature(pub interface{}, scheme SignatureScheme, message, sig []byte) error

	// HKDFExtract / HKDFExpandLabel implement the TLS 1.3 key schedule's
	// primitives (RFC 8446 §7.1), grounded on
	// keploy-keploy/pkg/proxy/integrations/tlsHandler/key_schedule.go.
	HKDFExtract(hash crypto.Hash, salt, ikm []byte) []byte
	HKDFExpandLabel(hash crypto.Hash, secret []byte, label string, context []byte, length int) []byte

	// NewAEAD builds the negotiated record AEAD (AES-GCM or
	// ChaCha20-Poly1305) for the Record Layer adapter.
	NewAEAD(suiteID uint16, key []byte) (AEAD, error)

	// TLCP primitives. Unavailable in the default adapter (DESIGN.md):
	// its SM2Encrypt and SM2Decrypt return ErrPrimitiveUnavailable and
	// its SM3 returns nil.
	SM2Encrypt(pub []byte, plaintext []byte) ([]byte, error)
	SM2Decrypt(privKeyHandle interface{}, ciphertext []byte) ([]byte, error)
	SM3(data []byte) []byte
}

// AEAD is the minimal record-protection contract the Record Layer
// adapter drives; it mirrors crypto/cipher.AEAD so stdlib and
// chacha20poly1305 implementations satisfy it directly.
type AEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// CertificateProvider is the Certificate Provider collaborator contract
// (spec §6.5): chain parsing/validation and key-usage checks, kept
// behind an interface so the CORE can run against stdlib crypto/x509 or
// a swapped-in PKI layer without changing the state machine.
type CertificateProvider interface {
	ParseCertificate(der []byte) (Certificate, error)
	VerifyChain(chain []Certificate, serverName string, now time.Time) error
	PublicKey(cert Certificate) interface{}
	MatchesPrivateKey(cert Certificate, privKeyHandle interface{}) bool
}

// Certificate is an opaque handle to a parsed certificate; the default
// CertificateProvider backs it with *x509.Certificate.
type Certificate interface {
	Raw() []byte
}

// CertKeyPair binds a certificate chain to the private key handle used
// to sign with it -- the Config's identity material (spec §3 "identity:
// certs+key, trust store").
type CertKeyPair struct {
	Chain         [][]byte // DER-encoded, leaf first
	PrivateKey    interface{}
	SupportedSigs []SignatureScheme
}

// Config is the Connection Context's static configuration surface
// (spec §3, §6.4). Mirrors the teacher's Config struct shape: plain
// fields, a handful of callback hooks, sane zero-value defaults.
type Config struct {
	MinVersion uint16
	MaxVersion uint16

	CipherSuites     []uint16 // <=1.2/TLCP preference order
	CipherSuitesTLS13 []uint16
	PreferServerCipherSuites bool

	Certificates []CertKeyPair
	ServerName   string

	SupportedGroups     []NamedGroup
	SignatureSchemes    []SignatureScheme
	ClientAuth          bool // request client certificates (server side)

	SessionCacheCapacity int
	SessionCacheTimeout  time.Duration
	TicketSupport        bool
	TicketKeys           *ticketKeySet

	SNICallback  SNICallback
	ALPNProtocols []string
	ALPNCallback ALPNCallback

	ExtendedMasterSecret bool
	RenegotiationAllowed bool

	ExternalPSKs map[string][]byte // identity label -> PSK bytes

	Crypto      CryptoProvider
	CertProvider CertificateProvider

	Logger *zap.Logger

	Rand io.Reader
}

func (c *Config) rand() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	if c.Crypto != nil {
		return c.Crypto.Rand()
	}
	return nil
}

func (c *Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Config) minVersion() uint16 {
	if c.MinVersion != 0 {
		return c.MinVersion
	}
	return VersionTLS12
}

func (c *Config) maxVersion() uint16 {
	if c.MaxVersion != 0 {
		return c.MaxVersion
	}
	return VersionTLS13
}
