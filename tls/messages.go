package tls

import (
	"golang.org/x/crypto/cryptobyte"
)

// Handshake message type codes, RFC 5246 §7.4 / RFC 8446 §4.
const (
	typeHelloRequest        uint8 = 0
	typeClientHello         uint8 = 1
	typeServerHello         uint8 = 2
	typeHelloVerifyRequest  uint8 = 3 // DTLS
	typeNewSessionTicket    uint8 = 4
	typeEndOfEarlyData      uint8 = 5
	typeEncryptedExtensions uint8 = 8
	typeCertificate         uint8 = 11
	typeServerKeyExchange   uint8 = 12
	typeCertificateRequest  uint8 = 13
	typeServerHelloDone     uint8 = 14
	typeCertificateVerify   uint8 = 15
	typeClientKeyExchange   uint8 = 16
	typeFinished            uint8 = 20
	typeCertificateStatus   uint8 = 22
	typeKeyUpdate           uint8 = 24
	typeMessageHash         uint8 = 254 // synthetic, transcript-only (spec §4.2)
)

// handshakeMessage is the Message Codec's uniform contract (spec §4.1):
// pack/parse never produce a malformed record, and parse fails closed on
// truncation or malformed lengths.
type handshakeMessage interface {
	marshalBody(b *cryptobyte.Builder)
	unmarshalBody(s *cryptobyte.String) error
	msgType() uint8
}

// packMessage is the Message Codec's `pack` operation: wraps a message's
// body in its 1-byte type + 3-byte length header.
func packMessage(m handshakeMessage) []byte {
	var b cryptobyte.Builder
	b.AddUint8(m.msgType())
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		m.marshalBody(b)
	})
	out, err := b.Bytes()
	if err != nil {
		// cryptobyte.Builder only errors on a caller-supplied add
		// returning an error; our marshalBody implementations never do,
		// so this path is unreachable in practice. It returns nil rather
		// than panicking.
		return nil
	}
	return out
}

// parseMessageHeader splits a raw handshake-layer record into its type
// and body -- the Record Layer hands the CORE
// whole handshake messages, so this only validates the self-described
// length equals the provided length (spec §4.1 "every vector's declared
// length equals consumed bytes").
func parseMessageHeader(raw []byte) (typ uint8, body []byte, err error) {
	s := cryptobyte.String(raw)
	var t uint8
	var b cryptobyte.String
	if !s.ReadUint8(&t) || !s.ReadUint24LengthPrefixed(&b) || !s.Empty() {
		return 0, nil, newError(ErrKindDecode, "", "handshake_header", nil)
	}
	return t, []byte(b), nil
}

func decodeErr(state, msgType string) error {
	return newError(ErrKindDecode, state, msgType, nil)
}

// --- ClientHello ---

type clientHelloMsg struct {
	raw                []byte // exact bytes as received/sent, body only (post header)
	vers               uint16
	random             [32]byte
	sessionID          []byte
	cipherSuites       []uint16
	compressionMethods []uint8

	serverName            string
	supportedGroups       []NamedGroup
	supportedPoints       []uint8
	signatureAlgorithms   []SignatureScheme
	alpnProtocols         []string
	extendedMasterSecret  bool
	encryptThenMAC        bool
	sessionTicket         []byte
	secureRenegotiation   []byte
	renegotiationSupported bool
	supportedVersions     []uint16
	keyShares             []keyShareEntry
	cookie                []byte
	pskModes              []uint8
	postHandshakeAuth     bool
	preSharedKey          *preSharedKeyExtension

	// dtlsCookie is RFC 6347 §4.2.2's ClientHello.cookie: a direct
	// length-prefixed field between session_id and cipher_suites, present
	// only on DTLS ClientHellos -- distinct from the TLS 1.3 HRR cookie
	// extension above, which rides in the extensions block instead.
	dtlsCookie []byte
}

func (m *clientHelloMsg) msgType() uint8 { return typeClientHello }

func (m *clientHelloMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint16(m.vers)
	b.AddBytes(m.random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.sessionID) })
	if isDTLS(m.vers) {
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.dtlsCookie) })
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, s := range m.cipherSuites {
			b.AddUint16(s)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.compressionMethods) })

	eb := newExtensionBuilder(b)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		// re-enter as a plain extensions block; built via eb.add below by
		// temporarily rebinding eb's builder to this child.
		eb.b = b
		if m.serverName != "" {
			eb.add(extServerName, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddUint8(0)
					b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(m.serverName)) })
				})
			})
		}
		if len(m.supportedGroups) > 0 {
			eb.add(extSupportedGroups, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, g := range m.supportedGroups {
						b.AddUint16(uint16(g))
					}
				})
			})
		}
		if len(m.supportedPoints) > 0 {
			eb.add(extECPointFormats, func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.supportedPoints) })
			})
		}
		if len(m.signatureAlgorithms) > 0 {
			eb.add(extSignatureAlgorithms, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, s := range m.signatureAlgorithms {
						b.AddUint16(uint16(s))
					}
				})
			})
		}
		if len(m.alpnProtocols) > 0 {
			eb.add(extALPN, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, p := range m.alpnProtocols {
						b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(p)) })
					}
				})
			})
		}
		if m.extendedMasterSecret {
			eb.add(extExtendedMasterSecret, func(b *cryptobyte.Builder) {})
		}
		if m.encryptThenMAC {
			eb.add(extEncryptThenMAC, func(b *cryptobyte.Builder) {})
		}
		if m.renegotiationSupported || m.secureRenegotiation != nil {
			eb.add(extRenegotiationInfo, func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.secureRenegotiation) })
			})
		}
		if m.sessionTicket != nil {
			eb.add(extSessionTicket, func(b *cryptobyte.Builder) { b.AddBytes(m.sessionTicket) })
		}
		if len(m.supportedVersions) > 0 {
			eb.add(extSupportedVersions, func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, v := range m.supportedVersions {
						b.AddUint16(v)
					}
				})
			})
		}
		if len(m.keyShares) > 0 {
			eb.add(extKeyShare, func(b *cryptobyte.Builder) { marshalKeyShares(b, m.keyShares) })
		}
		if m.cookie != nil {
			eb.add(extCookie, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.cookie) })
			})
		}
		if len(m.pskModes) > 0 {
			eb.add(extPSKKeyExchangeModes, func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.pskModes) })
			})
		}
		if m.postHandshakeAuth {
			eb.add(extPostHandshakeAuth, func(b *cryptobyte.Builder) {})
		}
		// pre_shared_key MUST be last (spec §8 boundary behaviour).
		// marshalBody never writes it, even when m.preSharedKey is set,
		// and nothing in this package appends it afterwards, so an
		// outgoing ClientHello carries no pre_shared_key extension.
	})
}

func (m *clientHelloMsg) unmarshalBody(s *cryptobyte.String) error {
	m.raw = []byte(*s)
	if !s.ReadUint16(&m.vers) {
		return decodeErr("", "client_hello")
	}
	var random cryptobyte.String
	if !s.ReadBytes((*[]byte)(&random), 32) {
		return decodeErr("", "client_hello")
	}
	copy(m.random[:], random)
	var sid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sid) || len(sid) > 32 {
		return decodeErr("", "client_hello")
	}
	m.sessionID = []byte(sid)
	if isDTLS(m.vers) {
		var cookie cryptobyte.String
		if !s.ReadUint8LengthPrefixed(&cookie) || len(cookie) > 255 {
			return decodeErr("", "client_hello")
		}
		m.dtlsCookie = []byte(cookie)
	}
	var suites cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&suites) {
		return decodeErr("", "client_hello")
	}
	for !suites.Empty() {
		var id uint16
		if !suites.ReadUint16(&id) {
			return decodeErr("", "client_hello")
		}
		m.cipherSuites = append(m.cipherSuites, id)
	}
	var comp cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&comp) {
		return decodeErr("", "client_hello")
	}
	m.compressionMethods = []byte(comp)
	if s.Empty() {
		return nil // extensions are optional on the wire
	}
	extsBlock := []byte(*s)
	exts, err := extensionIter(s)
	if err != nil {
		return err
	}
	if !s.Empty() {
		return decodeErr("", "client_hello")
	}
	return m.parseExtensions(exts, len(m.raw)-len(extsBlock))
}

// parseExtensions processes the parsed extension list. prefixLen is the
// number of bytes of m.raw (vers through compression_methods) that precede
// the extensions block, so offsets recorded against the extensions-block
// frame (rawExtension.bodyEnd) can be translated into offsets against
// m.raw -- which is the frame truncatedClientHelloForBinder's caller needs,
// since it hashes m.raw directly rather than re-marshaling the message.
func (m *clientHelloMsg) parseExtensions(exts []rawExtension, prefixLen int) error {
	for i, e := range exts {
		isLast := i == len(exts)-1
		switch e.typ {
		case extServerName:
			name, ok := parseServerName(e.body)
			if !ok {
				return decodeErr("", "server_name")
			}
			m.serverName = name
		case extSupportedGroups:
			groups, ok := parseGroupList(e.body)
			if !ok {
				return decodeErr("", "supported_groups")
			}
			m.supportedGroups = groups
		case extECPointFormats:
			s := cryptobyte.String(e.body)
			var list cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&list) || !s.Empty() {
				return decodeErr("", "ec_point_formats")
			}
			m.supportedPoints = []byte(list)
		case extSignatureAlgorithms:
			algs, ok := parseSigAlgList(e.body)
			if !ok {
				return decodeErr("", "signature_algorithms")
			}
			m.signatureAlgorithms = algs
		case extALPN:
			protos, ok := parseALPNList(e.body)
			if !ok {
				return decodeErr("", "alpn")
			}
			m.alpnProtocols = protos
		case extExtendedMasterSecret:
			m.extendedMasterSecret = true
		case extEncryptThenMAC:
			m.encryptThenMAC = true
		case extRenegotiationInfo:
			s := cryptobyte.String(e.body)
			var v cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&v) || !s.Empty() {
				return decodeErr("", "renegotiation_info")
			}
			m.secureRenegotiation = []byte(v)
			m.renegotiationSupported = true
		case extSessionTicket:
			m.sessionTicket = e.body
		case extSupportedVersions:
			s := cryptobyte.String(e.body)
			var list cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&list) || !s.Empty() {
				return decodeErr("", "supported_versions")
			}
			for !list.Empty() {
				var v uint16
				if !list.ReadUint16(&v) {
					return decodeErr("", "supported_versions")
				}
				m.supportedVersions = append(m.supportedVersions, v)
			}
		case extKeyShare:
			shares, ok := parseKeyShares(e.body)
			if !ok {
				return decodeErr("", "key_share")
			}
			m.keyShares = shares
		case extCookie:
			s := cryptobyte.String(e.body)
			var v cryptobyte.String
			if !s.ReadUint16LengthPrefixed(&v) || !s.Empty() {
				return decodeErr("", "cookie")
			}
			m.cookie = []byte(v)
		case extPSKKeyExchangeModes:
			s := cryptobyte.String(e.body)
			var v cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&v) || !s.Empty() {
				return decodeErr("", "psk_key_exchange_modes")
			}
			m.pskModes = []byte(v)
		case extPostHandshakeAuth:
			m.postHandshakeAuth = true
		case extPreSharedKey:
			if !isLast {
				// spec §8: "pre_shared_key not last extension ⇒ illegal_parameter"
				return newError(ErrKindIllegalParameter, "", "pre_shared_key", nil)
			}
			// e.bodyEnd is relative to the extensions block (as passed to
			// extensionIter); prefixLen shifts that into m.raw's frame, the
			// one truncatedClientHelloForBinder actually truncates.
			psk, ok := parsePreSharedKey(e.body, prefixLen+e.bodyEnd-len(e.body))
			if !ok {
				return decodeErr("", "pre_shared_key")
			}
			m.preSharedKey = psk
		default:
			// unknown extensions are ignored by parse (spec §4.1 only
			// mandates erroring on unknown mandatory-but-absent fields,
			// not on unknown optional ones).
		}
	}
	return nil
}

func parseServerName(body []byte) (string, bool) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return "", false
	}
	for !list.Empty() {
		var nameType uint8
		var name cryptobyte.String
		if !list.ReadUint8(&nameType) || !list.ReadUint16LengthPrefixed(&name) {
			return "", false
		}
		if nameType == 0 {
			return string(name), true
		}
	}
	return "", true
}

func parseGroupList(body []byte) ([]NamedGroup, bool) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return nil, false
	}
	var out []NamedGroup
	for !list.Empty() {
		var g uint16
		if !list.ReadUint16(&g) {
			return nil, false
		}
		out = append(out, NamedGroup(g))
	}
	return out, true
}

func parseSigAlgList(body []byte) ([]SignatureScheme, bool) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return nil, false
	}
	var out []SignatureScheme
	for !list.Empty() {
		var v uint16
		if !list.ReadUint16(&v) {
			return nil, false
		}
		out = append(out, SignatureScheme(v))
	}
	return out, true
}

func parseALPNList(body []byte) ([]string, bool) {
	s := cryptobyte.String(body)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return nil, false
	}
	var out []string
	for !list.Empty() {
		var p cryptobyte.String
		if !list.ReadUint8LengthPrefixed(&p) {
			return nil, false
		}
		out = append(out, string(p))
	}
	return out, true
}

// --- ServerHello (and HelloRetryRequest, which is a ServerHello with the
// reserved random per spec §4.6 "TLS 1.3 server adds SEND_HRR") ---

type serverHelloMsg struct {
	raw                    []byte
	vers                   uint16
	random                 [32]byte
	sessionID              []byte
	cipherSuite            uint16
	compressionMethod      uint8
	secureRenegotiation    []byte
	alpnProtocol           string
	extendedMasterSecret   bool
	encryptThenMAC         bool
	sessionTicketSupported bool
	supportedVersion       uint16
	keyShare               *keyShareEntry
	selectedGroup          NamedGroup // HRR only
	cookie                 []byte     // HRR only
	selectedIdentity       *uint16    // TLS1.3 PSK selection
}

func (m *serverHelloMsg) msgType() uint8 { return typeServerHello }

func (m *serverHelloMsg) isHRR() bool { return m.random == hrrRandom }

func (m *serverHelloMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint16(m.vers)
	b.AddBytes(m.random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.sessionID) })
	b.AddUint16(m.cipherSuite)
	b.AddUint8(m.compressionMethod)
	eb := newExtensionBuilder(b)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		eb.b = b
		if m.secureRenegotiation != nil {
			eb.add(extRenegotiationInfo, func(b *cryptobyte.Builder) {
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.secureRenegotiation) })
			})
		}
		if m.alpnProtocol != "" {
			eb.add(extALPN, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(m.alpnProtocol)) })
				})
			})
		}
		if m.extendedMasterSecret {
			eb.add(extExtendedMasterSecret, func(b *cryptobyte.Builder) {})
		}
		if m.encryptThenMAC {
			eb.add(extEncryptThenMAC, func(b *cryptobyte.Builder) {})
		}
		if m.sessionTicketSupported {
			eb.add(extSessionTicket, func(b *cryptobyte.Builder) {})
		}
		if m.supportedVersion != 0 {
			eb.add(extSupportedVersions, func(b *cryptobyte.Builder) { b.AddUint16(m.supportedVersion) })
		}
		if m.keyShare != nil {
			eb.add(extKeyShare, func(b *cryptobyte.Builder) {
				b.AddUint16(uint16(m.keyShare.group))
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.keyShare.data) })
			})
		}
		if m.selectedGroup != 0 {
			eb.add(extKeyShare, func(b *cryptobyte.Builder) { b.AddUint16(uint16(m.selectedGroup)) })
		}
		if m.cookie != nil {
			eb.add(extCookie, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.cookie) })
			})
		}
		if m.selectedIdentity != nil {
			eb.add(extPreSharedKey, func(b *cryptobyte.Builder) { b.AddUint16(*m.selectedIdentity) })
		}
	})
}

func (m *serverHelloMsg) unmarshalBody(s *cryptobyte.String) error {
	if !s.ReadUint16(&m.vers) {
		return decodeErr("", "server_hello")
	}
	var random cryptobyte.String
	if !s.ReadBytes((*[]byte)(&random), 32) {
		return decodeErr("", "server_hello")
	}
	copy(m.random[:], random)
	var sid cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sid) || len(sid) > 32 {
		return decodeErr("", "server_hello")
	}
	m.sessionID = []byte(sid)
	if !s.ReadUint16(&m.cipherSuite) || !s.ReadUint8(&m.compressionMethod) {
		return decodeErr("", "server_hello")
	}
	if s.Empty() {
		return nil
	}
	exts, err := extensionIter(s)
	if err != nil {
		return err
	}
	if !s.Empty() {
		return decodeErr("", "server_hello")
	}
	for _, e := range exts {
		switch e.typ {
		case extRenegotiationInfo:
			s := cryptobyte.String(e.body)
			var v cryptobyte.String
			if !s.ReadUint8LengthPrefixed(&v) || !s.Empty() {
				return decodeErr("", "renegotiation_info")
			}
			m.secureRenegotiation = []byte(v)
		case extALPN:
			s := cryptobyte.String(e.body)
			var list, p cryptobyte.String
			if !s.ReadUint16LengthPrefixed(&list) || !list.ReadUint8LengthPrefixed(&p) || !s.Empty() {
				return decodeErr("", "alpn")
			}
			m.alpnProtocol = string(p)
		case extExtendedMasterSecret:
			m.extendedMasterSecret = true
		case extEncryptThenMAC:
			m.encryptThenMAC = true
		case extSessionTicket:
			m.sessionTicketSupported = true
		case extSupportedVersions:
			s := cryptobyte.String(e.body)
			if !s.ReadUint16(&m.supportedVersion) || !s.Empty() {
				return decodeErr("", "supported_versions")
			}
		case extKeyShare:
			s := cryptobyte.String(e.body)
			if len(e.body) == 2 {
				var g uint16
				if !s.ReadUint16(&g) {
					return decodeErr("", "key_share")
				}
				m.selectedGroup = NamedGroup(g)
			} else {
				var g uint16
				var data cryptobyte.String
				if !s.ReadUint16(&g) || !s.ReadUint16LengthPrefixed(&data) || !s.Empty() {
					return decodeErr("", "key_share")
				}
				m.keyShare = &keyShareEntry{group: NamedGroup(g), data: []byte(data)}
			}
		case extCookie:
			s := cryptobyte.String(e.body)
			var v cryptobyte.String
			if !s.ReadUint16LengthPrefixed(&v) || !s.Empty() {
				return decodeErr("", "cookie")
			}
			m.cookie = []byte(v)
		case extPreSharedKey:
			s := cryptobyte.String(e.body)
			var id uint16
			if !s.ReadUint16(&id) || !s.Empty() {
				return decodeErr("", "pre_shared_key")
			}
			m.selectedIdentity = &id
		}
	}
	return nil
}

// --- EncryptedExtensions (TLS 1.3) ---

type encryptedExtensionsMsg struct {
	alpnProtocol  string
	earlyDataOK   bool
}

func (m *encryptedExtensionsMsg) msgType() uint8 { return typeEncryptedExtensions }

func (m *encryptedExtensionsMsg) marshalBody(b *cryptobyte.Builder) {
	eb := newExtensionBuilder(b)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		eb.b = b
		if m.alpnProtocol != "" {
			eb.add(extALPN, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes([]byte(m.alpnProtocol)) })
				})
			})
		}
		if m.earlyDataOK {
			eb.add(extEarlyData, func(b *cryptobyte.Builder) {})
		}
	})
}

func (m *encryptedExtensionsMsg) unmarshalBody(s *cryptobyte.String) error {
	if s.Empty() {
		return nil
	}
	exts, err := extensionIter(s)
	if err != nil {
		return err
	}
	if !s.Empty() {
		return decodeErr("", "encrypted_extensions")
	}
	for _, e := range exts {
		switch e.typ {
		case extALPN:
			s := cryptobyte.String(e.body)
			var list, p cryptobyte.String
			if !s.ReadUint16LengthPrefixed(&list) || !list.ReadUint8LengthPrefixed(&p) {
				return decodeErr("", "alpn")
			}
			m.alpnProtocol = string(p)
		case extEarlyData:
			m.earlyDataOK = true
		}
	}
	return nil
}

// --- Certificate / CertificateRequest / CertificateVerify ---

type certificateMsg struct {
	certificates [][]byte
}

func (m *certificateMsg) msgType() uint8 { return typeCertificate }

func (m *certificateMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, c := range m.certificates {
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c) })
		}
	})
}

func (m *certificateMsg) unmarshalBody(s *cryptobyte.String) error {
	var list cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&list) || !s.Empty() {
		return decodeErr("", "certificate")
	}
	for !list.Empty() {
		var c cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&c) {
			return decodeErr("", "certificate")
		}
		m.certificates = append(m.certificates, []byte(c))
	}
	return nil
}

type certificateRequestMsg struct {
	certificateTypes       []byte
	signatureAlgorithms    []SignatureScheme
	certificateAuthorities [][]byte
}

func (m *certificateRequestMsg) msgType() uint8 { return typeCertificateRequest }

func (m *certificateRequestMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.certificateTypes) })
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, s := range m.signatureAlgorithms {
			b.AddUint16(uint16(s))
		}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ca := range m.certificateAuthorities {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(ca) })
		}
	})
}

func (m *certificateRequestMsg) unmarshalBody(s *cryptobyte.String) error {
	var types cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&types) {
		return decodeErr("", "certificate_request")
	}
	m.certificateTypes = []byte(types)
	var algs cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&algs) {
		return decodeErr("", "certificate_request")
	}
	for !algs.Empty() {
		var v uint16
		if !algs.ReadUint16(&v) {
			return decodeErr("", "certificate_request")
		}
		m.signatureAlgorithms = append(m.signatureAlgorithms, SignatureScheme(v))
	}
	var cas cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&cas) || !s.Empty() {
		return decodeErr("", "certificate_request")
	}
	for !cas.Empty() {
		var ca cryptobyte.String
		if !cas.ReadUint16LengthPrefixed(&ca) {
			return decodeErr("", "certificate_request")
		}
		m.certificateAuthorities = append(m.certificateAuthorities, []byte(ca))
	}
	return nil
}

type certificateVerifyMsg struct {
	signatureAlgorithm SignatureScheme
	signature          []byte
}

func (m *certificateVerifyMsg) msgType() uint8 { return typeCertificateVerify }

func (m *certificateVerifyMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint16(uint16(m.signatureAlgorithm))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.signature) })
}

func (m *certificateVerifyMsg) unmarshalBody(s *cryptobyte.String) error {
	var alg uint16
	var sig cryptobyte.String
	if !s.ReadUint16(&alg) || !s.ReadUint16LengthPrefixed(&sig) || !s.Empty() {
		return decodeErr("", "certificate_verify")
	}
	m.signatureAlgorithm = SignatureScheme(alg)
	m.signature = []byte(sig)
	return nil
}

// --- ServerKeyExchange / ClientKeyExchange: opaque, mode-specific bodies
// (the Key-Exchange Engine owns their internal structure per mode) ---

type serverKeyExchangeMsg struct{ body []byte }

func (m *serverKeyExchangeMsg) msgType() uint8                          { return typeServerKeyExchange }
func (m *serverKeyExchangeMsg) marshalBody(b *cryptobyte.Builder)        { b.AddBytes(m.body) }
func (m *serverKeyExchangeMsg) unmarshalBody(s *cryptobyte.String) error { m.body = []byte(*s); *s = nil; return nil }

type clientKeyExchangeMsg struct{ body []byte }

func (m *clientKeyExchangeMsg) msgType() uint8                          { return typeClientKeyExchange }
func (m *clientKeyExchangeMsg) marshalBody(b *cryptobyte.Builder)        { b.AddBytes(m.body) }
func (m *clientKeyExchangeMsg) unmarshalBody(s *cryptobyte.String) error { m.body = []byte(*s); *s = nil; return nil }

// --- ServerHelloDone / HelloRequest / EndOfEarlyData: empty bodies ---

type serverHelloDoneMsg struct{}

func (m *serverHelloDoneMsg) msgType() uint8                          { return typeServerHelloDone }
func (m *serverHelloDoneMsg) marshalBody(b *cryptobyte.Builder)        {}
func (m *serverHelloDoneMsg) unmarshalBody(s *cryptobyte.String) error { return nil }

type helloRequestMsg struct{}

func (m *helloRequestMsg) msgType() uint8                          { return typeHelloRequest }
func (m *helloRequestMsg) marshalBody(b *cryptobyte.Builder)        {}
func (m *helloRequestMsg) unmarshalBody(s *cryptobyte.String) error { return nil }

type endOfEarlyDataMsg struct{}

func (m *endOfEarlyDataMsg) msgType() uint8                          { return typeEndOfEarlyData }
func (m *endOfEarlyDataMsg) marshalBody(b *cryptobyte.Builder)        {}
func (m *endOfEarlyDataMsg) unmarshalBody(s *cryptobyte.String) error { return nil }

// --- Finished ---

type finishedMsg struct {
	verifyData []byte
}

func (m *finishedMsg) msgType() uint8 { return typeFinished }
func (m *finishedMsg) marshalBody(b *cryptobyte.Builder) { b.AddBytes(m.verifyData) }
func (m *finishedMsg) unmarshalBody(s *cryptobyte.String) error {
	m.verifyData = []byte(*s)
	*s = nil
	return nil
}

// --- NewSessionTicket (both <=1.2 and 1.3 shapes) ---

type newSessionTicketMsg struct {
	lifetimeHint uint32
	ticket       []byte

	// TLS 1.3-only fields (RFC 8446 §4.6.1)
	isTLS13   bool
	ageAdd    uint32
	nonce     []byte
	maxEarlyDataSize uint32
}

func (m *newSessionTicketMsg) msgType() uint8 { return typeNewSessionTicket }

func (m *newSessionTicketMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint32(m.lifetimeHint)
	if m.isTLS13 {
		b.AddUint32(m.ageAdd)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.nonce) })
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.ticket) })
		eb := newExtensionBuilder(b)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			eb.b = b
			if m.maxEarlyDataSize > 0 {
				eb.add(extEarlyData, func(b *cryptobyte.Builder) { b.AddUint32(m.maxEarlyDataSize) })
			}
		})
		return
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.ticket) })
}

func (m *newSessionTicketMsg) unmarshalBody(s *cryptobyte.String) error {
	if !s.ReadUint32(&m.lifetimeHint) {
		return decodeErr("", "new_session_ticket")
	}
	if m.isTLS13 {
		var nonce, ticket cryptobyte.String
		if !s.ReadUint32(&m.ageAdd) || !s.ReadUint8LengthPrefixed(&nonce) || !s.ReadUint16LengthPrefixed(&ticket) {
			return decodeErr("", "new_session_ticket")
		}
		m.nonce = []byte(nonce)
		m.ticket = []byte(ticket)
		if s.Empty() {
			return nil
		}
		exts, err := extensionIter(s)
		if err != nil {
			return err
		}
		for _, e := range exts {
			if e.typ == extEarlyData {
				cs := cryptobyte.String(e.body)
				cs.ReadUint32(&m.maxEarlyDataSize)
			}
		}
		return nil
	}
	var ticket cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&ticket) || !s.Empty() {
		return decodeErr("", "new_session_ticket")
	}
	m.ticket = []byte(ticket)
	return nil
}

// --- HelloVerifyRequest (DTLS cookie exchange, spec §8 scenario 6) ---

type helloVerifyRequestMsg struct {
	vers   uint16
	cookie []byte
}

func (m *helloVerifyRequestMsg) msgType() uint8 { return typeHelloVerifyRequest }

func (m *helloVerifyRequestMsg) marshalBody(b *cryptobyte.Builder) {
	b.AddUint16(m.vers)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.cookie) })
}

func (m *helloVerifyRequestMsg) unmarshalBody(s *cryptobyte.String) error {
	var cookie cryptobyte.String
	if !s.ReadUint16(&m.vers) || !s.ReadUint8LengthPrefixed(&cookie) || !s.Empty() {
		return decodeErr("", "hello_verify_request")
	}
	m.cookie = []byte(cookie)
	return nil
}

// --- KeyUpdate (spec §4.6 rekey, §6.5 key_update) ---

type keyUpdateMsg struct {
	requestUpdate bool
}

func (m *keyUpdateMsg) msgType() uint8 { return typeKeyUpdate }
func (m *keyUpdateMsg) marshalBody(b *cryptobyte.Builder) {
	v := uint8(0)
	if m.requestUpdate {
		v = 1
	}
	b.AddUint8(v)
}
func (m *keyUpdateMsg) unmarshalBody(s *cryptobyte.String) error {
	var v uint8
	if !s.ReadUint8(&v) || !s.Empty() {
		return decodeErr("", "key_update")
	}
	m.requestUpdate = v == 1
	return nil
}
