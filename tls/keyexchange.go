package tls

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"

	"golang.org/x/crypto/cryptobyte"
)

// premasterToMaster implements the <=1.2 / TLCP master-secret
// derivation (spec §4.3's "Shared secret derivation" column feeds this):
// with extended_master_secret, the label is "extended master secret"
// and the seed is the session hash; otherwise the classic
// client_random||server_random seed. Both paths call the CryptoProvider's
// HKDFExpandLabel with the suite hash, the same primitive the <=1.2
// Finished computation uses; neither the RFC 5246 P_hash PRF nor an
// SM3-based TLCP PRF is used.
func premasterToMaster(cp CryptoProvider, hash crypto.Hash, premaster []byte, clientRandom, serverRandom [32]byte, ems bool, sessionHash []byte) []byte {
	if ems {
		return cp.HKDFExpandLabel(hash, premaster, "extended master secret", sessionHash, 48)
	}
	seed := append(append([]byte{}, clientRandom[:]...), serverRandom[:]...)
	return cp.HKDFExpandLabel(hash, premaster, "master secret", seed, 48)
}

// keyExchangeResult carries what the <=1.2/TLCP Key-Exchange Engine
// modes (spec §4.3 table) produce: the premaster secret plus, for the
// (EC)DHE/TLCP modes, the ServerKeyExchange/ClientKeyExchange bodies
// each side must emit.
type keyExchangeResult struct {
	premaster          []byte
	serverKeyExchange  []byte // emitted only by ECDHE/DHE/TLCP modes
	clientKeyExchange  []byte
}

// rsaPublicKeyDER re-encodes the leaf certificate's RSA public key
// (as returned by CertificateProvider.PublicKey) into the PKIX DER form
// CryptoProvider.RSAEncryptPKCS1 expects, so the RSA key-exchange mode
// never needs to touch the certificate's raw bytes directly.
func rsaPublicKeyDER(pub interface{}) ([]byte, *Error) {
	rpub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, newError(ErrKindHandshakeFailure, "", "certificate", nil)
	}
	der, err := x509.MarshalPKIXPublicKey(rpub)
	if err != nil {
		return nil, newError(ErrKindInternal, "", "certificate", err)
	}
	return der, nil
}

// clientRSAKeyExchange implements spec §4.3's RSA row: the client picks
// a 48-byte pre-master (version-prefixed per RFC 5246 §7.4.7.1) and
// encrypts it under the server certificate's RSA public key.
func clientRSAKeyExchange(cp CryptoProvider, clientVersion uint16, serverPub []byte) (*keyExchangeResult, error) {
	premaster := make([]byte, 48)
	premaster[0] = byte(clientVersion >> 8)
	premaster[1] = byte(clientVersion)
	if err := fillRandom(cp.Rand(), premaster[2:]); err != nil {
		return nil, err
	}
	ciphertext, err := cp.RSAEncryptPKCS1(serverPub, premaster)
	if err != nil {
		return nil, newError(ErrKindInternal, "", "client_key_exchange", err)
	}
	return &keyExchangeResult{premaster: premaster, clientKeyExchange: ciphertext}, nil
}

// serverRSAKeyExchange implements the server side of the same mode:
// decrypt, and on any failure/version-mismatch substitute a random
// premaster (RFC 5246 §7.4.7.1 Bleichenbacher countermeasure) so the
// handshake fails only later, at Finished verification, with no
// distinguishing side channel.
func serverRSAKeyExchange(cp CryptoProvider, privKeyHandle interface{}, clientVersion uint16, ciphertext []byte) (*keyExchangeResult, error) {
	fallback := make([]byte, 48)
	if err := fillRandom(cp.Rand(), fallback); err != nil {
		return nil, err
	}
	premaster, err := cp.RSADecryptPKCS1(privKeyHandle, ciphertext)
	if err != nil || len(premaster) != 48 || premaster[0] != byte(clientVersion>>8) || premaster[1] != byte(clientVersion) {
		premaster = fallback
	}
	return &keyExchangeResult{premaster: premaster}, nil
}

// ecdheGenerate and ecdheComputeSecret implement spec §4.3's ECDHE row:
// ecdheGenerate makes an ephemeral keypair (the caller wire-encodes the
// public share), and ecdheComputeSecret computes the shared secret once
// the peer's share is known.
func ecdheGenerate(cp CryptoProvider, group NamedGroup) (public, private []byte, err error) {
	return cp.GenerateKeyShare(group)
}

func ecdheComputeSecret(cp CryptoProvider, group NamedGroup, private, peerPublic []byte) ([]byte, error) {
	secret, err := cp.ComputeSharedSecret(group, private, peerPublic)
	if err != nil {
		return nil, newError(ErrKindHandshakeFailure, "", "key_exchange", err)
	}
	return secret, nil
}

// namedCurveCurveType is RFC 4492 §5.4's ECParameters.curve_type value
// for the only form this module emits/accepts (a named group, never an
// explicit curve).
const namedCurveCurveType = 3

// ecdheServerParams is the parsed <=1.2 ECDHE ServerKeyExchange body:
// the EC Diffie-Hellman parameters the server chose plus, when signed
// is true, the signature authenticating them under the certificate's
// public key (RFC 4492 §5.4; plain ECDH_anon never signs).
type ecdheServerParams struct {
	group     NamedGroup
	publicKey []byte
	params    []byte // curve_params||public, exactly as signed
	signed    bool
	scheme    SignatureScheme
	signature []byte
}

// unmarshalECDHEServerKeyExchange decodes the ServerKeyExchange body the
// server builds in negotiateClassic's ECDHE branch: curve_type(1) +
// named_curve(2) + ECPoint(1-byte length prefix), followed for a signed
// suite by SignatureAndHashAlgorithm(2) + signature(2-byte length
// prefix).
func unmarshalECDHEServerKeyExchange(body []byte) (*ecdheServerParams, *Error) {
	s := cryptobyteString(body)
	start := []byte(s)
	var curveType uint8
	var group uint16
	var pub cryptobyte.String
	if !s.ReadUint8(&curveType) || curveType != namedCurveCurveType ||
		!s.ReadUint16(&group) || !s.ReadUint8LengthPrefixed(&pub) {
		return nil, newError(ErrKindDecode, "", "server_key_exchange", nil)
	}
	paramsLen := len(start) - len(s)
	out := &ecdheServerParams{group: NamedGroup(group), publicKey: append([]byte{}, pub...), params: append([]byte{}, start[:paramsLen]...)}
	if s.Empty() {
		return out, nil
	}
	var scheme uint16
	var sig cryptobyte.String
	if !s.ReadUint16(&scheme) || !s.ReadUint16LengthPrefixed(&sig) || !s.Empty() {
		return nil, newError(ErrKindDecode, "", "server_key_exchange", nil)
	}
	out.signed = true
	out.scheme = SignatureScheme(scheme)
	out.signature = append([]byte{}, sig...)
	return out, nil
}

// ecdheSignedMessage builds the byte string a <=1.2 ECDHE
// ServerKeyExchange signature covers: client_random||server_random
// followed by the raw curve_params+point bytes (RFC 4492 §5.4).
func ecdheSignedMessage(clientRandom, serverRandom [32]byte, params []byte) []byte {
	out := make([]byte, 0, 64+len(params))
	out = append(out, clientRandom[:]...)
	out = append(out, serverRandom[:]...)
	out = append(out, params...)
	return out
}

// marshalECDHEServerKeyExchange is the server-side counterpart, building
// the wire body negotiateClassic's ECDHE branch sends.
func marshalECDHEServerKeyExchange(group NamedGroup, publicKey []byte, scheme SignatureScheme, signature []byte) []byte {
	var b cryptobyte.Builder
	b.AddUint8(namedCurveCurveType)
	b.AddUint16(uint16(group))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(publicKey) })
	if signature != nil {
		b.AddUint16(uint16(scheme))
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(signature) })
	}
	out, _ := b.Bytes()
	return out
}

// clientTLCPKeyExchange implements the client side of the TLCP ECC
// exchange: it generates a 48-byte premaster and SM2-encrypts it under
// the server's encryption certificate key; serverTLCPKeyExchange
// decrypts it. The ClientKeyExchange body is the bare ciphertext, with
// no curve-type or named-curve prefix, and neither state machine calls
// these functions.
func clientTLCPKeyExchange(cp CryptoProvider, encCertPub []byte) (*keyExchangeResult, error) {
	premaster := make([]byte, 48)
	if err := fillRandom(cp.Rand(), premaster); err != nil {
		return nil, err
	}
	ciphertext, err := cp.SM2Encrypt(encCertPub, premaster)
	if err != nil {
		return nil, newError(ErrKindInternal, "", "client_key_exchange", err)
	}
	return &keyExchangeResult{premaster: premaster, clientKeyExchange: ciphertext}, nil
}

func serverTLCPKeyExchange(cp CryptoProvider, encPrivKeyHandle interface{}, ciphertext []byte) (*keyExchangeResult, error) {
	premaster, err := cp.SM2Decrypt(encPrivKeyHandle, ciphertext)
	if err != nil {
		return nil, newError(ErrKindHandshakeFailure, "", "client_key_exchange", err)
	}
	return &keyExchangeResult{premaster: premaster}, nil
}

// pskPremaster implements RFC 4279/5489's PSK premaster composition for
// the plain-PSK and hybrid (EC)DHE_PSK/DHE_PSK/RSA_PSK modes (spec §4.3
// row 4): `uint16(len(other_secret)) || other_secret || uint16(len(psk)) || psk`,
// where other_secret is all-zero of the same length as the PSK for
// plain PSK, or the DHE/ECDHE/RSA shared secret for the hybrid modes.
func pskPremaster(otherSecret, psk []byte) []byte {
	out := make([]byte, 0, 4+len(otherSecret)+len(psk))
	out = append(out, byte(len(otherSecret)>>8), byte(len(otherSecret)))
	out = append(out, otherSecret...)
	out = append(out, byte(len(psk)>>8), byte(len(psk)))
	out = append(out, psk...)
	return out
}
