package tls

// Protocol version numbers, wire-exact per their RFCs (spec §6.1).
const (
	VersionTLS12  uint16 = 0x0303
	VersionTLS13  uint16 = 0x0304
	VersionDTLS12 uint16 = 0xfefd
	VersionTLCP11 uint16 = 0x0101
)

// hrrRandom is the ServerHello.random sentinel that marks a
// HelloRetryRequest (RFC 8446 §4.1.3).
var hrrRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

func isDTLS(v uint16) bool  { return v == VersionDTLS12 }
func isTLS13(v uint16) bool { return v == VersionTLS13 }
func isTLCP(v uint16) bool  { return v == VersionTLCP11 }

// versionName mirrors the teacher's human-readable version logging.
func versionName(v uint16) string {
	switch v {
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	case VersionDTLS12:
		return "DTLS 1.2"
	case VersionTLCP11:
		return "TLCP 1.1"
	default:
		return "unknown"
	}
}

// mutualVersion selects the highest mutually supported version, per
// spec §4.5: the server picks the highest version present in both its
// own [min,max] configured range and the peer's offered set.
func mutualVersion(min, max uint16, offered []uint16) (uint16, bool) {
	best := uint16(0)
	found := false
	for _, v := range offered {
		if v < min || v > max {
			continue
		}
		if !found || versionRank(v) > versionRank(best) {
			best = v
			found = true
		}
	}
	return best, found
}

// versionRank orders versions for "highest mutually supported", since the
// numeric encodings of TLS/DTLS/TLCP are not monotonic with preference.
func versionRank(v uint16) int {
	switch v {
	case VersionTLS13:
		return 4
	case VersionTLCP11:
		return 3
	case VersionTLS12:
		return 2
	case VersionDTLS12:
		return 1
	default:
		return 0
	}
}
