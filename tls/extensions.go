package tls

import (
	"golang.org/x/crypto/cryptobyte"
)

// Extension type codes, IANA-assigned (spec §4.5, §6.1).
const (
	extServerName            uint16 = 0
	extStatusRequest         uint16 = 5
	extSupportedGroups       uint16 = 10
	extECPointFormats        uint16 = 11
	extSignatureAlgorithms   uint16 = 13
	extALPN                  uint16 = 16
	extEncryptThenMAC        uint16 = 22
	extExtendedMasterSecret  uint16 = 23
	extSessionTicket         uint16 = 35
	extPreSharedKey          uint16 = 41
	extEarlyData             uint16 = 42
	extSupportedVersions     uint16 = 43
	extCookie                uint16 = 44
	extPSKKeyExchangeModes   uint16 = 45
	extCertificateAuthorities uint16 = 47
	extKeyShare              uint16 = 51
	extPostHandshakeAuth     uint16 = 49
	extRenegotiationInfo     uint16 = 0xff01
)

// NamedGroup identifies an (EC)DHE group / TLS 1.3 key_share group
// (spec §4.3 table, "TLS 1.3 key_share group"). FFDHE groups and named
// curves share this type per spec §3 "Group list (named curves / FFDHE
// groups)".
type NamedGroup uint16

const (
	GroupP256   NamedGroup = 23
	GroupP384   NamedGroup = 24
	GroupP521   NamedGroup = 25
	GroupX25519 NamedGroup = 29
	// GroupX25519Kyber768Draft00 is a hybrid classical/post-quantum group,
	// backed by github.com/cloudflare/circl (grounded on its presence in
	// caddyserver-caddy/go.mod). Offered only when listed in
	// Config.SupportedGroups; the default adapter's GenerateKeyShare
	// handles it.
	GroupX25519Kyber768Draft00 NamedGroup = 0x6399
	GroupFFDHE2048             NamedGroup  = 256
	GroupFFDHE3072             NamedGroup  = 257
)

// pointFormatUncompressed is the only point format spec §4.5 accepts.
const pointFormatUncompressed uint8 = 0

// SignatureScheme identifies a signature algorithm, RFC 8446 §4.2.3.
type SignatureScheme uint16

const (
	SigSchemeRSAPKCS1SHA256 SignatureScheme = 0x0401
	SigSchemeRSAPKCS1SHA384 SignatureScheme = 0x0501
	SigSchemeRSAPSSSHA256   SignatureScheme = 0x0804
	SigSchemeRSAPSSSHA384   SignatureScheme = 0x0805
	SigSchemeECDSAP256SHA256 SignatureScheme = 0x0403
	SigSchemeECDSAP384SHA384 SignatureScheme = 0x0503
	SigSchemeEd25519         SignatureScheme = 0x0807
)

// rawExtension is a single (type, body) pair as produced by extensionIter.
// bodyEnd is the offset, within the slice originally passed to
// extensionIter (the full "2-byte total length + entries" block), of the
// byte immediately following this extension's body. It is what spec
// §4.1/§4.2's PSK-binder truncation point is computed from.
type rawExtension struct {
	typ     uint16
	body    []byte
	bodyEnd int
}

// extensionIter parses the 2-byte-length-prefixed extensions block of a
// handshake message body, enforcing uniqueness of extension type codes
// per spec §4.1 ("duplicate extension type (check duplicate) ⇒
// DecodeError").
func extensionIter(s *cryptobyte.String) ([]rawExtension, error) {
	total := len(*s)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) {
		return nil, newError(ErrKindDecode, "", "extensions", nil)
	}
	seen := make(map[uint16]bool)
	var out []rawExtension
	for !list.Empty() {
		var typ uint16
		var body cryptobyte.String
		if !list.ReadUint16(&typ) || !list.ReadUint16LengthPrefixed(&body) {
			return nil, newError(ErrKindDecode, "", "extension", nil)
		}
		if seen[typ] {
			return nil, newError(ErrKindDecode, "", "extension", nil)
		}
		seen[typ] = true
		consumed := total - len(list)
		out = append(out, rawExtension{typ: typ, body: []byte(body), bodyEnd: consumed})
	}
	return out, nil
}

func findExtension(exts []rawExtension, typ uint16) (rawExtension, bool) {
	for _, e := range exts {
		if e.typ == typ {
			return e, true
		}
	}
	return rawExtension{}, false
}

// extensionBuilder emits each (type, body) pair via add in a
// deterministic order (spec §4.1 "deterministic but not wire-mandated
// order; clients and servers must accept any order"); the caller supplies
// the order by the sequence of add() calls.
type extensionBuilder struct {
	b *cryptobyte.Builder
}

func newExtensionBuilder(b *cryptobyte.Builder) *extensionBuilder {
	return &extensionBuilder{b: b}
}

func (e *extensionBuilder) add(typ uint16, body func(*cryptobyte.Builder)) {
	e.b.AddUint16(typ)
	e.b.AddUint16LengthPrefixed(func(child *cryptobyte.Builder) {
		body(child)
	})
}

// keyShareEntry is a single TLS 1.3 key_share offer/selection (RFC 8446 §4.2.8).
type keyShareEntry struct {
	group NamedGroup
	data  []byte
}

func marshalKeyShares(b *cryptobyte.Builder, shares []keyShareEntry) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ks := range shares {
			b.AddUint16(uint16(ks.group))
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(ks.data)
			})
		}
	})
}

func parseKeyShares(body []byte) ([]keyShareEntry, bool) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return nil, false
	}
	var out []keyShareEntry
	for !list.Empty() {
		var group uint16
		var data cryptobyte.String
		if !list.ReadUint16(&group) || !list.ReadUint16LengthPrefixed(&data) {
			return nil, false
		}
		out = append(out, keyShareEntry{group: NamedGroup(group), data: []byte(data)})
	}
	return out, true
}

// pskIdentity is one entry of a TLS 1.3 pre_shared_key offer (RFC 8446 §4.2.11).
type pskIdentity struct {
	label               []byte
	obfuscatedTicketAge uint32
}

// preSharedKeyExtension is the parsed client-side pre_shared_key extension,
// split into identities and binders so the truncation point for binder
// verification (spec §4.2) is explicit.
type preSharedKeyExtension struct {
	identities []pskIdentity
	binders    [][]byte
	// identitiesEnd is the offset, within the ClientHello body the
	// extension was parsed from, of the byte immediately after the
	// identities list and immediately before the binders vector's
	// 2-byte length prefix. This is the truncation point spec §4.2
	// requires for PSK binder computation.
	identitiesEnd int
}

// bodyStartOffset is where e.body begins within the slice originally
// passed to extensionIter; identitiesEnd is reported relative to that
// same slice, matching rawExtension.bodyEnd's frame of reference.
func parsePreSharedKey(body []byte, bodyStartOffset int) (*preSharedKeyExtension, bool) {
	s := cryptobyte.String(body)
	var idList cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&idList) {
		return nil, false
	}
	var ids []pskIdentity
	for !idList.Empty() {
		var label cryptobyte.String
		var age uint32
		if !idList.ReadUint16LengthPrefixed(&label) || !idList.ReadUint32(&age) {
			return nil, false
		}
		ids = append(ids, pskIdentity{label: []byte(label), obfuscatedTicketAge: age})
	}
	identitiesConsumed := len(body) - len(s)
	var binderList cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&binderList) || !s.Empty() {
		return nil, false
	}
	var binders [][]byte
	for !binderList.Empty() {
		var bdr cryptobyte.String
		if !binderList.ReadUint8LengthPrefixed(&bdr) {
			return nil, false
		}
		binders = append(binders, []byte(bdr))
	}
	return &preSharedKeyExtension{
		identities:    ids,
		binders:       binders,
		identitiesEnd: bodyStartOffset + identitiesConsumed,
	}, true
}
