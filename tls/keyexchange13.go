package tls

import (
	"crypto"
	"crypto/hmac"
)

// TLS 1.3 key-schedule labels, RFC 8446 §7.1.
const (
	label13ExtBinderKey    = "ext binder"
	label13ResBinderKey    = "res binder"
	label13ClientEarlyTraffic = "c e traffic"
	label13EarlyExporter   = "e exp master"
	label13ClientHSTraffic = "c hs traffic"
	label13ServerHSTraffic = "s hs traffic"
	label13ClientAppTraffic = "c ap traffic"
	label13ServerAppTraffic = "s ap traffic"
	label13ExporterMaster = "exp master"
	label13ResumptionMaster = "res master"
	label13Derived = "derived"
	label13Finished = "finished"
	label13Key = "key"
	label13IV  = "iv"
)

// schedule13 holds the running TLS 1.3 key schedule secrets (RFC 8446
// §7.1's derivation chain) for one connection. Each Derive-Secret output
// is kept so CertificateVerify/Finished/KeyUpdate/exporter derivations
// can all reference the right stage without recomputing HKDF-Extract.
type schedule13 struct {
	hash crypto.Hash
	cp   CryptoProvider

	earlySecret      []byte
	binderKey        []byte // ext or res, whichever PSK type is in use
	clientEarlyTrafficSecret []byte
	earlyExporterSecret     []byte

	handshakeSecret        []byte
	clientHandshakeTraffic []byte
	serverHandshakeTraffic []byte

	masterSecret        []byte
	clientAppTraffic    []byte
	serverAppTraffic    []byte
	exporterSecret      []byte
	resumptionMasterSecret []byte
}

func newSchedule13(cp CryptoProvider, hash crypto.Hash) *schedule13 {
	return &schedule13{cp: cp, hash: hash}
}

func (s *schedule13) zeroes() []byte {
	return make([]byte, s.hash.Size())
}

// deriveSecret implements RFC 8446 §7.1's `Derive-Secret(Secret, Label,
// Messages)`: HKDF-Expand-Label keyed by Secret, with Messages being the
// running transcript hash (or the empty-string hash for "derived").
func (s *schedule13) deriveSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return s.cp.HKDFExpandLabel(s.hash, secret, label, transcriptHash, s.hash.Size())
}

// initEarlySecret computes Early Secret = HKDF-Extract(0, PSK) (PSK is
// all-zero when no PSK is in use, per RFC 8446 §7.1's key schedule
// diagram), and the binder key derived from it.
func (s *schedule13) initEarlySecret(psk []byte, externalPSK bool) {
	if psk == nil {
		psk = s.zeroes()
	}
	s.earlySecret = s.cp.HKDFExtract(s.hash, s.zeroes(), psk)
	label := label13ResBinderKey
	if externalPSK {
		label = label13ExtBinderKey
	}
	emptyHash := s.emptyTranscriptHash()
	s.binderKey = s.deriveSecret(s.earlySecret, label, emptyHash)
}

func (s *schedule13) emptyTranscriptHash() []byte {
	h := s.hash.New()
	return h.Sum(nil)
}

// computeBinder implements RFC 8446 §4.2.11.2: binder =
// HMAC(binder_key, transcript_hash(truncated ClientHello)).
func (s *schedule13) computeBinder(truncatedCHHash []byte) []byte {
	finishedKey := s.deriveSecret(s.binderKey, label13Finished, nil)
	return hmacSum(s.hash, finishedKey, truncatedCHHash)
}

// hmacSum is the RFC 8446 §4.4.4 Finished-style HMAC: HMAC(finished_key,
// transcript_hash), using the negotiated hash as the HMAC hash. A thin
// stdlib wrapper since crypto.Hash already provides the constructor
// crypto/hmac needs.
func hmacSum(hash crypto.Hash, key, message []byte) []byte {
	mac := hmac.New(hash.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// initHandshakeSecret computes Handshake Secret = HKDF-Extract(Derive-
// Secret(EarlySecret, "derived", ""), (EC)DHE) and the two handshake
// traffic secrets, keyed by the transcript hash through ServerHello.
func (s *schedule13) initHandshakeSecret(dheSecret []byte, transcriptThroughSH []byte) {
	salt := s.deriveSecret(s.earlySecret, label13Derived, s.emptyTranscriptHash())
	if dheSecret == nil {
		dheSecret = s.zeroes()
	}
	s.handshakeSecret = s.cp.HKDFExtract(s.hash, salt, dheSecret)
	s.clientHandshakeTraffic = s.deriveSecret(s.handshakeSecret, label13ClientHSTraffic, transcriptThroughSH)
	s.serverHandshakeTraffic = s.deriveSecret(s.handshakeSecret, label13ServerHSTraffic, transcriptThroughSH)
}

// initMasterSecret computes Master Secret = HKDF-Extract(Derive-
// Secret(HandshakeSecret, "derived", ""), 0) and the application traffic
// secrets plus the exporter secret, keyed by the transcript through
// server Finished.
func (s *schedule13) initMasterSecret(transcriptThroughServerFinished []byte) {
	salt := s.deriveSecret(s.handshakeSecret, label13Derived, s.emptyTranscriptHash())
	s.masterSecret = s.cp.HKDFExtract(s.hash, salt, s.zeroes())
	s.clientAppTraffic = s.deriveSecret(s.masterSecret, label13ClientAppTraffic, transcriptThroughServerFinished)
	s.serverAppTraffic = s.deriveSecret(s.masterSecret, label13ServerAppTraffic, transcriptThroughServerFinished)
	s.exporterSecret = s.deriveSecret(s.masterSecret, label13ExporterMaster, transcriptThroughServerFinished)
}

// resumptionSecret derives the resumption master secret once the client
// Finished has been processed, the basis for NewSessionTicket PSKs
// (RFC 8446 §4.6.1).
func (s *schedule13) resumptionSecret(transcriptThroughClientFinished []byte) []byte {
	s.resumptionMasterSecret = s.deriveSecret(s.masterSecret, label13ResumptionMaster, transcriptThroughClientFinished)
	return s.resumptionMasterSecret
}

// finishedKey and verifyData implement RFC 8446 §4.4.4: each side's
// Finished.verify_data is HMAC(finished_key, transcript_hash), where
// finished_key = HKDF-Expand-Label(BaseKey, "finished", "", Hash.length).
func (s *schedule13) verifyData(baseSecret []byte, transcriptHash []byte) []byte {
	finishedKey := s.deriveSecret(baseSecret, label13Finished, nil)
	return hmacSum(s.hash, finishedKey, transcriptHash)
}

// trafficKeys derives the record-protection key+iv pair for a traffic
// secret, RFC 8446 §7.3.
func (s *schedule13) trafficKeys(trafficSecret []byte, keyLen int) (key, iv []byte) {
	key = s.cp.HKDFExpandLabel(s.hash, trafficSecret, label13Key, nil, keyLen)
	iv = s.cp.HKDFExpandLabel(s.hash, trafficSecret, label13IV, nil, 12)
	return key, iv
}

// nextTrafficSecret implements RFC 8446 §7.2's KeyUpdate ratchet:
// application_traffic_secret_N+1 = HKDF-Expand-Label(secret_N,
// "traffic upd", "", Hash.length).
func (s *schedule13) nextTrafficSecret(secret []byte) []byte {
	return s.cp.HKDFExpandLabel(s.hash, secret, "traffic upd", nil, s.hash.Size())
}

// --- HelloRetryRequest key_share selection (spec §4.3 "HelloRetryRequest
// policy") ---

// selectHRRGroup implements the server-side HRR decision: if none of the
// client's offered key_share groups is in the server's preference list
// but supported_groups contains one the server does support, the server
// must retry with that group instead of failing outright.
func selectHRRGroup(serverPreferred []NamedGroup, clientKeyShareGroups, clientSupportedGroups []NamedGroup) (NamedGroup, bool) {
	offered := make(map[NamedGroup]bool, len(clientKeyShareGroups))
	for _, g := range clientKeyShareGroups {
		offered[g] = true
	}
	if len(offered) > 0 {
		for _, g := range serverPreferred {
			if offered[g] {
				return 0, false // already satisfiable without HRR
			}
		}
	}
	supported := make(map[NamedGroup]bool, len(clientSupportedGroups))
	for _, g := range clientSupportedGroups {
		supported[g] = true
	}
	for _, g := range serverPreferred {
		if supported[g] {
			return g, true
		}
	}
	return 0, false
}

// validateHRRKeyShare implements spec §4.3: after HRR, the second
// ClientHello MUST carry exactly one KeyShareEntry, for the selected
// group; any deviation is a fatal illegal_parameter.
func validateHRRKeyShare(shares []keyShareEntry, selectedGroup NamedGroup) error {
	if len(shares) != 1 || shares[0].group != selectedGroup {
		return newError(ErrKindIllegalParameter, "", "key_share", nil)
	}
	return nil
}

// --- PSK identity resolution (spec §4.3 "PSK binder check") ---

// pskSource distinguishes where a resolved PSK came from, since external
// and resumption PSKs use different binder-key labels (RFC 8446 §7.1).
type pskSource int

const (
	pskSourceExternal pskSource = iota
	pskSourceResumption
)

// resolvedPSK is what PSK identity resolution (external store, then
// ticket decrypt) yields for the first resolvable offered identity.
type resolvedPSK struct {
	index  int
	secret []byte
	source pskSource
	session *Session // non-nil for resumption PSKs
}

// resolvePSKIdentity implements spec §4.3's "for each offered identity in
// order, attempt resolution (external PSK store -> ticket decrypt). The
// first resolvable identity is chosen."
func resolvePSKIdentity(identities []pskIdentity, externalPSKs map[string][]byte, ticketKeys *ticketKeySet) *resolvedPSK {
	for i, id := range identities {
		if secret, ok := externalPSKs[string(id.label)]; ok {
			return &resolvedPSK{index: i, secret: secret, source: pskSourceExternal}
		}
		if ticketKeys != nil {
			if session, needsRenew := decryptTicket(ticketKeys, id.label); session != nil && !needsRenew {
				return &resolvedPSK{index: i, secret: session.MasterSecret, source: pskSourceResumption, session: session}
			}
		}
	}
	return nil
}

// verifyPSKBinder implements spec §4.3's binder verification: compute
// the expected binder for the resolved PSK's source over the truncated-
// ClientHello transcript hash, and compare in constant time. Mismatch is
// a fatal decrypt_error.
func verifyPSKBinder(sched *schedule13, psk *resolvedPSK, truncatedCHHash, receivedBinder []byte) error {
	sched.initEarlySecret(psk.secret, psk.source == pskSourceExternal)
	expected := sched.computeBinder(truncatedCHHash)
	if !constantTimeEqual(expected, receivedBinder) {
		return newError(ErrKindDecryptError, "", "pre_shared_key", nil)
	}
	return nil
}
