// Package cryptoprovider is the default tls.CryptoProvider: every
// primitive backed by a stdlib crypto/* package or an x/crypto /
// circl library already in this module's dependency graph.
package cryptoprovider

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"io"
	"math/big"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/hkdf"

	circlkyber "github.com/cloudflare/circl/kem/kyber/kyber768"
	circlx25519 "github.com/cloudflare/circl/dh/x25519"

	"github.com/tlhc/openhitls/tls"
)

// ErrPrimitiveUnavailable is returned by every TLCP (SM2/SM3/SM4) method:
// no SM-series library is available anywhere in this module's retrieval
// pack, so the gap is surfaced explicitly rather than silently faked.
var ErrPrimitiveUnavailable = errors.New("cryptoprovider: primitive unavailable (TLCP SM2/SM3/SM4 has no grounded implementation)")

// Default is the stdlib/x-crypto/circl-backed tls.CryptoProvider.
type Default struct {
	rand io.Reader
}

// New returns a Default reading randomness from crypto/rand.Reader,
// mirroring the teacher's direct use of the stdlib DRBG everywhere it
// needs entropy.
func New() *Default {
	return &Default{rand: rand.Reader}
}

func (d *Default) Rand() io.Reader { return d.rand }

// GenerateKeyShare implements every (EC)DHE/hybrid group the Key-Exchange
// Engine offers: NIST curves via crypto/ecdh, X25519 via circl's
// constant-time implementation (grounded on caddyserver-caddy's
// cloudflare/circl dependency), FFDHE via big.Int modexp (no FFDHE
// library exists anywhere in the pack), and the hybrid PQ group
// X25519Kyber768Draft00 via circl's Kyber768 KEM concatenated with the
// classical X25519 share.
func (d *Default) GenerateKeyShare(group tls.NamedGroup) (public, private []byte, err error) {
	switch group {
	case tls.GroupP256, tls.GroupP384, tls.GroupP521:
		curve := ecdhCurve(group)
		key, err := curve.GenerateKey(d.rand)
		if err != nil {
			return nil, nil, err
		}
		return key.PublicKey().Bytes(), key.Bytes(), nil
	case tls.GroupX25519:
		var priv circlx25519.Key
		if _, err := io.ReadFull(d.rand, priv[:]); err != nil {
			return nil, nil, err
		}
		var pub circlx25519.Key
		circlx25519.KeyGen(&pub, &priv)
		return pub[:], priv[:], nil
	case tls.GroupX25519Kyber768Draft00:
		return d.generateHybridKyberX25519()
	case tls.GroupFFDHE2048, tls.GroupFFDHE3072:
		return d.generateFFDHE(group)
	}
	return nil, nil, errors.New("cryptoprovider: unsupported group")
}

func (d *Default) generateHybridKyberX25519() (public, private []byte, err error) {
	pk, sk, err := circlkyber.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	kyberPub, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	kyberPriv, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	var xPriv circlx25519.Key
	if _, err := io.ReadFull(d.rand, xPriv[:]); err != nil {
		return nil, nil, err
	}
	var xPub circlx25519.Key
	circlx25519.KeyGen(&xPub, &xPriv)

	// Wire order per the hybrid draft: Kyber768 share first, then the
	// classical X25519 share.
	pub := append(append([]byte{}, kyberPub...), xPub[:]...)
	priv := append(append([]byte{}, kyberPriv...), xPriv[:]...)
	return pub, priv, nil
}

// ffdheParams maps RFC 7919 groups to their primes. It is empty, so
// key generation and shared-secret computation fail for both FFDHE
// groups.
var ffdheParams = map[tls.NamedGroup]*big.Int{}

func (d *Default) generateFFDHE(group tls.NamedGroup) (public, private []byte, err error) {
	p, ok := ffdheParams[group]
	if !ok {
		return nil, nil, errors.New("cryptoprovider: ffdhe group parameters not configured")
	}
	g := big.NewInt(2)
	privInt, err := rand.Int(d.rand, p)
	if err != nil {
		return nil, nil, err
	}
	pub := new(big.Int).Exp(g, privInt, p)
	return pub.Bytes(), privInt.Bytes(), nil
}

func (d *Default) ComputeSharedSecret(group tls.NamedGroup, private, peerPublic []byte) ([]byte, error) {
	switch group {
	case tls.GroupP256, tls.GroupP384, tls.GroupP521:
		curve := ecdhCurve(group)
		priv, err := curve.NewPrivateKey(private)
		if err != nil {
			return nil, err
		}
		pub, err := curve.NewPublicKey(peerPublic)
		if err != nil {
			return nil, err
		}
		return priv.ECDH(pub)
	case tls.GroupX25519:
		if len(private) != 32 || len(peerPublic) != 32 {
			return nil, errors.New("cryptoprovider: bad x25519 key length")
		}
		var priv, pub, shared circlx25519.Key
		copy(priv[:], private)
		copy(pub[:], peerPublic)
		if !circlx25519.Shared(&shared, &priv, &pub) {
			return nil, errors.New("cryptoprovider: x25519 low-order point")
		}
		return shared[:], nil
	case tls.GroupX25519Kyber768Draft00:
		return d.hybridSharedSecret(private, peerPublic)
	case tls.GroupFFDHE2048, tls.GroupFFDHE3072:
		p, ok := ffdheParams[group]
		if !ok {
			return nil, errors.New("cryptoprovider: ffdhe group parameters not configured")
		}
		privInt := new(big.Int).SetBytes(private)
		peerInt := new(big.Int).SetBytes(peerPublic)
		return new(big.Int).Exp(peerInt, privInt, p).Bytes(), nil
	}
	return nil, errors.New("cryptoprovider: unsupported group")
}

func (d *Default) hybridSharedSecret(private, peerPublic []byte) ([]byte, error) {
	scheme := circlkyber.Scheme()
	kyberPrivLen := scheme.PrivateKeySize()
	kyberCTLen := scheme.CiphertextSize()
	if len(private) < kyberPrivLen+32 || len(peerPublic) < kyberCTLen+32 {
		return nil, errors.New("cryptoprovider: bad hybrid key length")
	}
	sk, err := scheme.UnmarshalBinaryPrivateKey(private[:kyberPrivLen])
	if err != nil {
		return nil, err
	}
	kyberShared, err := scheme.Decapsulate(sk, peerPublic[:kyberCTLen])
	if err != nil {
		return nil, err
	}
	var xPriv, xPub, xShared circlx25519.Key
	copy(xPriv[:], private[kyberPrivLen:kyberPrivLen+32])
	copy(xPub[:], peerPublic[kyberCTLen:kyberCTLen+32])
	if !circlx25519.Shared(&xShared, &xPriv, &xPub) {
		return nil, errors.New("cryptoprovider: x25519 low-order point")
	}
	return append(append([]byte{}, kyberShared...), xShared[:]...), nil
}

func ecdhCurve(group tls.NamedGroup) ecdh.Curve {
	switch group {
	case tls.GroupP384:
		return ecdh.P384()
	case tls.GroupP521:
		return ecdh.P521()
	default:
		return ecdh.P256()
	}
}

func (d *Default) RSAEncryptPKCS1(pub []byte, premaster []byte) ([]byte, error) {
	key, err := parseRSAPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return rsa.EncryptPKCS1v15(d.rand, key, premaster)
}

func (d *Default) RSADecryptPKCS1(privKeyHandle interface{}, ciphertext []byte) ([]byte, error) {
	priv, ok := privKeyHandle.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptoprovider: not an RSA private key")
	}
	return rsa.DecryptPKCS1v15(d.rand, priv, ciphertext)
}

// parseRSAPublicKey accepts the SubjectPublicKeyInfo DER the
// CertificateProvider exposes for a peer certificate's public key.
func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("cryptoprovider: not an RSA public key")
	}
	return rsaPub, nil
}

func (d *Default) Sign(privKeyHandle interface{}, scheme tls.SignatureScheme, message []byte) ([]byte, error) {
	switch key := privKeyHandle.(type) {
	case *rsa.PrivateKey:
		h, opts := rsaSignOpts(scheme)
		digest := h.New()
		digest.Write(message)
		if opts.pss {
			return rsa.SignPSS(d.rand, key, h, digest.Sum(nil), &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h})
		}
		return rsa.SignPKCS1v15(d.rand, key, h, digest.Sum(nil))
	case *ecdsa.PrivateKey:
		h := ecdsaSignHash(scheme)
		digest := h.New()
		digest.Write(message)
		return ecdsa.SignASN1(d.rand, key, digest.Sum(nil))
	case ed25519.PrivateKey:
		return ed25519.Sign(key, message), nil
	}
	return nil, errors.New("cryptoprovider: unsupported signing key type")
}

func (d *Default) VerifySignature(pub interface{}, scheme tls.SignatureScheme, message, sig []byte) error {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		h, opts := rsaSignOpts(scheme)
		digest := h.New()
		digest.Write(message)
		if opts.pss {
			return rsa.VerifyPSS(key, h, digest.Sum(nil), sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: h})
		}
		return rsa.VerifyPKCS1v15(key, h, digest.Sum(nil), sig)
	case *ecdsa.PublicKey:
		h := ecdsaSignHash(scheme)
		digest := h.New()
		digest.Write(message)
		if !ecdsa.VerifyASN1(key, digest.Sum(nil), sig) {
			return errors.New("cryptoprovider: ecdsa signature verification failed")
		}
		return nil
	case ed25519.PublicKey:
		if !ed25519.Verify(key, message, sig) {
			return errors.New("cryptoprovider: ed25519 signature verification failed")
		}
		return nil
	}
	return errors.New("cryptoprovider: unsupported verification key type")
}

type rsaOpts struct{ pss bool }

func rsaSignOpts(scheme tls.SignatureScheme) (crypto.Hash, rsaOpts) {
	switch scheme {
	case tls.SigSchemeRSAPSSSHA256:
		return crypto.SHA256, rsaOpts{pss: true}
	case tls.SigSchemeRSAPSSSHA384:
		return crypto.SHA384, rsaOpts{pss: true}
	case tls.SigSchemeRSAPKCS1SHA384:
		return crypto.SHA384, rsaOpts{}
	default:
		return crypto.SHA256, rsaOpts{}
	}
}

func ecdsaSignHash(scheme tls.SignatureScheme) crypto.Hash {
	if scheme == tls.SigSchemeECDSAP384SHA384 {
		return crypto.SHA384
	}
	return crypto.SHA256
}

// HKDFExtract / HKDFExpandLabel implement RFC 8446 §7.1, grounded
// directly on keploy-keploy's tlsHandler/key_schedule.go `extract`/
// `expandLabel` methods (same cryptobyte-built HkdfLabel struct, same
// hkdf.Extract/hkdf.Expand calls -- adapted to a stateless function
// shape driven by the explicit crypto.Hash parameter instead of a
// receiver's cached cipher suite).
func (d *Default) HKDFExtract(hash crypto.Hash, salt, ikm []byte) []byte {
	if salt == nil {
		salt = make([]byte, hash.Size())
	}
	return hkdf.Extract(hash.New, ikm, salt)
}

func (d *Default) HKDFExpandLabel(hash crypto.Hash, secret []byte, label string, context []byte, length int) []byte {
	var b cryptobyte.Builder
	b.AddUint16(uint16(length))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte("tls13 "))
		b.AddBytes([]byte(label))
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(context)
	})
	hkdfLabel, err := b.Bytes()
	if err != nil {
		panic("cryptoprovider: failed to construct HKDF label: " + err.Error())
	}
	out := make([]byte, length)
	n, err := hkdf.Expand(hash.New, secret, hkdfLabel).Read(out)
	if err != nil || n != length {
		panic("cryptoprovider: HKDF-Expand-Label invocation failed unexpectedly")
	}
	return out
}

// aesGCMAEAD and chacha20poly1305AEAD both satisfy tls.AEAD by wrapping
// a cipher.AEAD directly -- crypto/cipher.AEAD already has the right
// shape (Seal/Open/NonceSize/Overhead), so this is a one-line adapter
// rather than a reimplementation.
type stdAEAD struct{ cipher.AEAD }

func (d *Default) NewAEAD(suiteID uint16, key []byte) (tls.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
		if isChaCha(suiteID) {
			aead, err := chacha20poly1305.New(key)
			if err != nil {
				return nil, err
			}
			return stdAEAD{aead}, nil
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return stdAEAD{aead}, nil
	}
	return nil, errors.New("cryptoprovider: unsupported AEAD key length")
}

// isChaCha distinguishes the ChaCha20-Poly1305 suites from AES-GCM by
// ID; the suite tables in tls/suites.go are unexported and do not mark
// which suites use ChaCha20-Poly1305, and NewAEAD only sees the raw ID,
// so the small ID check lives here.
func isChaCha(suiteID uint16) bool {
	switch suiteID {
	case 0xCCA8, 0xCCA9, 0xCCAA, 0x1303:
		return true
	}
	return false
}

func (d *Default) SM2Encrypt(pub []byte, plaintext []byte) ([]byte, error) {
	return nil, ErrPrimitiveUnavailable
}

func (d *Default) SM2Decrypt(privKeyHandle interface{}, ciphertext []byte) ([]byte, error) {
	return nil, ErrPrimitiveUnavailable
}

func (d *Default) SM3(data []byte) []byte {
	// No SM3 implementation is available; callers must treat a nil
	// return the same as an error from the other two TLCP methods.
	return nil
}
