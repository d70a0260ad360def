package tls

import "crypto"

// Suite flags, mirroring the teacher's `suiteTLS12`/`suiteAnon`/`suiteNoCerts`
// bit-flag convention on cipherSuite.
const (
	suiteTLS12 = 1 << iota
	suiteAnon
	suiteNoCerts
	suitePSK
	suiteECDHE
	suiteDHE
	suiteRSA
	suiteTLCP
)

// kxMode identifies which Key-Exchange Engine mode (spec §4.3 table) a
// <=1.2/TLCP suite uses.
type kxMode uint8

const (
	kxRSA kxMode = iota
	kxECDHE
	kxDHE
	kxPSK
	kxECDHEPSK
	kxDHEPSK
	kxRSAPSK
	kxTLCPECC
)

// CipherSuite describes a <=1.2 or TLCP cipher suite: its key exchange
// mode and the record-layer bulk cipher/MAC parameters the Key-Exchange
// Engine hands to the Record Layer after establishKeys (spec §4.3, §4.6
// "install new read/write key").
type CipherSuite struct {
	ID       uint16
	Name     string
	KX       kxMode
	Hash     crypto.Hash
	KeyLen   int
	IVLen    int
	MACLen   int
	AEAD     bool
	Flags    int
}

// CipherSuite IDs, IANA-assigned (spec §6.1 "exactly the RFC-assigned type codes").
const (
	TLS_RSA_WITH_AES_128_GCM_SHA256        uint16 = 0x009c
	TLS_RSA_WITH_AES_256_GCM_SHA384        uint16 = 0x009d
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256  uint16 = 0xc02f
	TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384  uint16 = 0xc030
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256 uint16 = 0xc02b
	TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384 uint16 = 0xc02c
	TLS_DHE_RSA_WITH_AES_128_GCM_SHA256    uint16 = 0x009e
	TLS_PSK_WITH_AES_128_GCM_SHA256        uint16 = 0x00a8
	TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256  uint16 = 0xc037
	TLS_DHE_PSK_WITH_AES_128_GCM_SHA256    uint16 = 0x00aa
	TLS_RSA_PSK_WITH_AES_128_GCM_SHA256    uint16 = 0x00ac
	TLS_ECC_SM4_GCM_SM3                    uint16 = 0xe011 // TLCP
	TLS_ECC_SM4_CBC_SM3                    uint16 = 0xe013 // TLCP

	TLS_AES_128_GCM_SHA256       uint16 = 0x1301
	TLS_AES_256_GCM_SHA384       uint16 = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 uint16 = 0x1303

	TLS_FALLBACK_SCSV uint16 = 0x5600
)

var cipherSuites = []CipherSuite{
	{ID: TLS_RSA_WITH_AES_128_GCM_SHA256, Name: "TLS_RSA_WITH_AES_128_GCM_SHA256", KX: kxRSA, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteRSA},
	{ID: TLS_RSA_WITH_AES_256_GCM_SHA384, Name: "TLS_RSA_WITH_AES_256_GCM_SHA384", KX: kxRSA, Hash: crypto.SHA384, KeyLen: 32, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteRSA},
	{ID: TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, Name: "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", KX: kxECDHE, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteECDHE},
	{ID: TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, Name: "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384", KX: kxECDHE, Hash: crypto.SHA384, KeyLen: 32, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteECDHE},
	{ID: TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, Name: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256", KX: kxECDHE, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteECDHE},
	{ID: TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, Name: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384", KX: kxECDHE, Hash: crypto.SHA384, KeyLen: 32, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteECDHE},
	{ID: TLS_DHE_RSA_WITH_AES_128_GCM_SHA256, Name: "TLS_DHE_RSA_WITH_AES_128_GCM_SHA256", KX: kxDHE, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suiteDHE},
	{ID: TLS_PSK_WITH_AES_128_GCM_SHA256, Name: "TLS_PSK_WITH_AES_128_GCM_SHA256", KX: kxPSK, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suitePSK},
	{ID: TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256, Name: "TLS_ECDHE_PSK_WITH_AES_128_CBC_SHA256", KX: kxECDHEPSK, Hash: crypto.SHA256, KeyLen: 16, IVLen: 16, MACLen: 32, Flags: suiteTLS12 | suitePSK | suiteECDHE},
	{ID: TLS_DHE_PSK_WITH_AES_128_GCM_SHA256, Name: "TLS_DHE_PSK_WITH_AES_128_GCM_SHA256", KX: kxDHEPSK, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suitePSK | suiteDHE},
	{ID: TLS_RSA_PSK_WITH_AES_128_GCM_SHA256, Name: "TLS_RSA_PSK_WITH_AES_128_GCM_SHA256", KX: kxRSAPSK, Hash: crypto.SHA256, KeyLen: 16, IVLen: 4, AEAD: true, Flags: suiteTLS12 | suitePSK | suiteRSA},
	{ID: TLS_ECC_SM4_GCM_SM3, Name: "TLS_ECC_SM4_GCM_SM3", KX: kxTLCPECC, KeyLen: 16, IVLen: 12, AEAD: true, Flags: suiteTLCP},
	{ID: TLS_ECC_SM4_CBC_SM3, Name: "TLS_ECC_SM4_CBC_SM3", KX: kxTLCPECC, KeyLen: 16, IVLen: 16, MACLen: 32, Flags: suiteTLCP},
}

// CipherSuiteTLS13 is the disjoint TLS 1.3 suite list (spec §3
// "two disjoint lists with different semantics"): no key-exchange mode
// field, since 1.3 suites only select AEAD+hash for the key schedule.
type CipherSuiteTLS13 struct {
	ID     uint16
	Name   string
	Hash   crypto.Hash
	KeyLen int
}

var cipherSuitesTLS13 = []CipherSuiteTLS13{
	{ID: TLS_AES_128_GCM_SHA256, Name: "TLS_AES_128_GCM_SHA256", Hash: crypto.SHA256, KeyLen: 16},
	{ID: TLS_AES_256_GCM_SHA384, Name: "TLS_AES_256_GCM_SHA384", Hash: crypto.SHA384, KeyLen: 32},
	{ID: TLS_CHACHA20_POLY1305_SHA256, Name: "TLS_CHACHA20_POLY1305_SHA256", Hash: crypto.SHA256, KeyLen: 32},
}

func cipherSuiteByID(id uint16) *CipherSuite {
	for i := range cipherSuites {
		if cipherSuites[i].ID == id {
			return &cipherSuites[i]
		}
	}
	return nil
}

func cipherSuiteTLS13ByID(id uint16) *CipherSuiteTLS13 {
	for i := range cipherSuitesTLS13 {
		if cipherSuitesTLS13[i].ID == id {
			return &cipherSuitesTLS13[i]
		}
	}
	return nil
}

// mutualCipherSuite mirrors the teacher's `mutualCipherSuite`: walk the
// preference list (caller decides whose list goes first per
// PreferServerCipherSuites) and return the first suite both sides share
// and this provider implements.
func mutualCipherSuite(preferred, have []uint16) *CipherSuite {
	for _, id := range preferred {
		for _, other := range have {
			if id != other {
				continue
			}
			if s := cipherSuiteByID(id); s != nil {
				return s
			}
		}
	}
	return nil
}

func mutualCipherSuiteTLS13(preferred, have []uint16) *CipherSuiteTLS13 {
	for _, id := range preferred {
		for _, other := range have {
			if id != other {
				continue
			}
			if s := cipherSuiteTLS13ByID(id); s != nil {
				return s
			}
		}
	}
	return nil
}
