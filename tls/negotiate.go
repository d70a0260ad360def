package tls

import "strings"

// sniResult is an application SNI callback's verdict (spec §4.5 "callback
// returns ok, noack, or fatal(alert)").
type sniResult int

const (
	sniOK sniResult = iota
	sniNoAck
	sniFatal
)

// SNICallback is the type of Config.SNICallback: a server-name verdict
// returning ok and an AlertDescription. Neither handshake state machine
// calls it; the server always uses its first configured certificate
// regardless of the offered server name.
type SNICallback func(serverName string) (ok bool, alert AlertDescription)

// ALPNCallback lets the embedding application pick among the client's
// offered protocols; "" with ok==false means noack (leave unchanged).
type ALPNCallback func(offered []string) (selected string, ok bool)

// selectVersion implements spec §4.5's version-selection rule: prefer
// peer's supported_versions list when present, ignoring the record
// layer's legacy_version; otherwise fall back to the legacy field.
func selectVersion(min, max uint16, supportedVersions []uint16, legacyVersion uint16) (uint16, bool) {
	if len(supportedVersions) > 0 {
		return mutualVersion(min, max, supportedVersions)
	}
	return mutualVersion(min, max, []uint16{legacyVersion})
}

// groupsSubsetOfSupported enforces spec §4.5 "offered key_share groups
// MUST be a subset of supported_groups".
func groupsSubsetOfSupported(keyShares []keyShareEntry, supportedGroups []NamedGroup) bool {
	allowed := make(map[NamedGroup]bool, len(supportedGroups))
	for _, g := range supportedGroups {
		allowed[g] = true
	}
	for _, ks := range keyShares {
		if !allowed[ks.group] {
			return false
		}
	}
	return true
}

// selectSignatureScheme intersects the peer's offered schemes with the
// local list, respecting local preference order (spec §4.5 "respecting
// server preference if configured").
func selectSignatureScheme(localPreferred, peerOffered []SignatureScheme) (SignatureScheme, bool) {
	offered := make(map[SignatureScheme]bool, len(peerOffered))
	for _, s := range peerOffered {
		offered[s] = true
	}
	for _, s := range localPreferred {
		if offered[s] {
			return s, true
		}
	}
	return 0, false
}

// acceptablePointFormat implements spec §4.5 "only uncompressed is
// acceptable".
func acceptablePointFormat(formats []uint8) bool {
	for _, f := range formats {
		if f == pointFormatUncompressed {
			return true
		}
	}
	return len(formats) == 0 // absence defaults to uncompressed-only, RFC 4492 §5.2
}

// emsStickiness implements spec §4.5's extended-master-secret ratchet:
// a session or renegotiation that previously used EMS must continue to;
// it is never permitted to downgrade.
func emsStickiness(previouslyUsed, nowOffered bool) bool {
	if previouslyUsed && !nowOffered {
		return false
	}
	return true
}

// etmStickiness mirrors emsStickiness for encrypt-then-MAC (spec §4.5
// "renegotiation MUST NOT downgrade from EtM to MtE"); applies only to
// CBC suites, which the caller has already confirmed.
func etmStickiness(previouslyUsed, nowOffered bool) bool {
	return emsStickiness(previouslyUsed, nowOffered)
}

// secureRenegotiationCheck implements spec §4.5's renegotiation_info
// rule set. isInitial distinguishes the first handshake (peer's
// renegotiation_info must be empty) from a later renegotiation (it must
// equal storedVerifyData); scsvPresent flags a received
// TLS_FALLBACK_SCSV-style signal on a renegotiation, which is always
// fatal.
func secureRenegotiationCheck(isInitial bool, peerValue, storedVerifyData []byte, scsvPresentOnRenego bool) bool {
	if !isInitial && scsvPresentOnRenego {
		return false
	}
	if isInitial {
		return len(peerValue) == 0
	}
	return constantTimeEqual(peerValue, storedVerifyData)
}

// sniMatchesSession implements spec §4.5 "on resumption the current
// ClientHello's SNI MUST equal the session's stored SNI (case-insensitive
// ASCII compare) or handshake fails".
func sniMatchesSession(current, stored string) bool {
	return strings.EqualFold(current, stored)
}

// selectALPNProtocol applies the callback contract of spec §4.5: noack
// leaves negotiation unchanged (no protocol selected, no error); any
// other non-ok outcome is fatal no_application_protocol.
func selectALPNProtocol(cb ALPNCallback, offered []string) (protocol string, noAck bool, err error) {
	if cb == nil || len(offered) == 0 {
		return "", true, nil
	}
	selected, ok := cb(offered)
	if !ok {
		return "", true, nil
	}
	found := false
	for _, p := range offered {
		if p == selected {
			found = true
			break
		}
	}
	if !found {
		return "", false, newError(ErrKindHandshakeFailure, "", "alpn", nil)
	}
	return selected, false, nil
}

// pskModesRequireExtension implements spec §4.5: a client offering
// pre_shared_key MUST include psk_key_exchange_modes.
func pskModesRequireExtension(offeringPSK bool, modes []uint8) bool {
	if offeringPSK && len(modes) == 0 {
		return false
	}
	return true
}

// selectPSKMode intersects offered and locally configured PSK key
// exchange modes (spec §4.5 "server-chosen mode is the intersection").
func selectPSKMode(offered, configured []uint8) (uint8, bool) {
	have := make(map[uint8]bool, len(configured))
	for _, m := range configured {
		have[m] = true
	}
	for _, m := range offered {
		if have[m] {
			return m, true
		}
	}
	return 0, false
}

// tls13Eligible implements spec §4.5: "TLS 1.3 selection requires either
// a valid PSK or a usable certificate+key pair; otherwise fall back to
// <=1.2."
func tls13Eligible(hasValidPSK, hasUsableCertificate bool) bool {
	return hasValidPSK || hasUsableCertificate
}
