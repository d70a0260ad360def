package tls

import "time"

// serverHandshakeState is the server's Handshake Workspace (spec §3),
// mirroring clientHandshakeState.
type serverHandshakeState struct {
	config *Config
	conn   *Conn

	state handshakeState

	transcript *transcript
	schedule13 *schedule13

	clientHello      *clientHelloMsg
	clientHelloBytes []byte

	negotiatedVersion uint16
	suite             *CipherSuite
	suite13           *CipherSuiteTLS13
	selectedCert      *CertKeyPair

	ecdheGroup   NamedGroup
	ecdhePrivate []byte

	serverRandom [32]byte // <=1.2 ServerHello.random, needed again at the master-secret derivation

	clientAuthRequested bool
	clientCertChain     [][]byte
	clientPubKey        interface{}

	hrrGroup NamedGroup
	sentHRR  bool

	session      *Session
	resuming     bool
	masterSecret []byte

	clientVerifyData []byte
	serverVerifyData []byte

	storedClientVerifyData []byte // for secure renegotiation
	isRenegotiation         bool

	dtlsCookie *dtlsCookieSecret
}

func newServerHandshake(conn *Conn) *serverHandshakeState {
	return &serverHandshakeState{
		config:     conn.config,
		conn:       conn,
		state:      stateIdle,
		transcript: newTranscript(),
	}
}

func (s *serverHandshakeState) next(ev event) ([]action, *Error) {
	if s.state == stateSink {
		return nil, newError(ErrKindInternal, s.state.String(), "", nil)
	}
	switch ev.kind {
	case eventAppRequest:
		return s.handleAppRequest(ev)
	case eventTimerExpired:
		return nil, nil
	}

	switch s.state {
	case stateIdle, stateSendCH2:
		return s.onClientHello(ev)
	case stateRecvCert:
		return s.onClientCertificate(ev)
	case stateRecvCV:
		return s.onClientCertificateVerify(ev)
	case stateRecvCKE:
		return s.onClientKeyExchange(ev)
	case stateRecvFin:
		return s.onFinished(ev)
	case stateAppTraffic:
		return s.onPostHandshake(ev)
	}
	return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "", nil)
}

func (s *serverHandshakeState) onClientHello(ev event) ([]action, *Error) {
	if ev.msgType != typeClientHello {
		return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "client_hello", nil)
	}
	ch := &clientHelloMsg{}
	cbs := cryptobyteString(ev.msgBody)
	if err := ch.unmarshalBody(&cbs); err != nil {
		return nil, err.(*Error)
	}

	if isDTLS(ch.vers) {
		actions, err := s.verifyDTLSCookie(ch)
		if err != nil || actions != nil {
			return actions, err
		}
	}

	if s.isRenegotiation {
		if !secureRenegotiationCheck(false, ch.secureRenegotiation, s.storedClientVerifyData, false) {
			return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
		}
	} else if ch.renegotiationSupported && len(ch.secureRenegotiation) != 0 {
		return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
	}

	s.clientHello = ch
	wire := packMessage(ch)
	s.clientHelloBytes = wire

	version, ok := selectVersion(s.config.minVersion(), s.config.maxVersion(), ch.supportedVersions, ch.vers)
	if !ok {
		return nil, newError(ErrKindProtocolVersion, s.state.String(), "client_hello", nil)
	}

	if version == VersionTLS13 {
		hasPSK := ch.preSharedKey != nil
		hasCert := len(s.config.Certificates) > 0
		if !tls13Eligible(hasPSK, hasCert) {
			version, ok = mutualVersion(s.config.minVersion(), s.config.maxVersion(), []uint16{VersionTLS12})
			if !ok {
				return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
			}
		}
	}
	s.negotiatedVersion = version

	if version == VersionTLS13 {
		return s.negotiateTLS13(ch, wire)
	}
	return s.negotiateClassic(ch, wire)
}

// verifyDTLSCookie implements the RFC 6347 §4.2.1 stateless cookie
// exchange: a ClientHello with no cookie gets a HelloVerifyRequest back
// (and stays unprocessed past that point -- spec §4.2's transcript
// carve-out excludes both messages); a ClientHello presenting a cookie
// is checked against it before any further negotiation proceeds. Both
// outputs are nil when the presented cookie verifies, and the caller
// then goes on with normal negotiation. Callers only call this once
// isDTLS(ch.vers) holds.
//
// The cookie binds to this Conn's identifier rather than a transport
// peer address: the per-packet-source demultiplexing that RFC 6347's
// anti-amplification design assumes already happened one layer down, in
// internal/recordlayer.PacketConn, which is constructed per peer before
// any Conn exists. Binding to conn.id still proves the second
// ClientHello was issued in response to this server's own
// HelloVerifyRequest, which is what the handshake-layer exchange here
// is responsible for.
func (s *serverHandshakeState) verifyDTLSCookie(ch *clientHelloMsg) ([]action, *Error) {
	if s.dtlsCookie == nil {
		rnd := s.config.rand()
		secret, err := newDTLSCookieSecret(func(b []byte) error { return fillRandom(rnd, b) })
		if err != nil {
			return nil, newError(ErrKindInternal, s.state.String(), "client_hello", err)
		}
		s.dtlsCookie = secret
	}
	connID := s.conn.id.String()
	if len(ch.dtlsCookie) == 0 {
		cookie := s.dtlsCookie.generateCookie(connID, ch.random)
		hvr := &helloVerifyRequestMsg{vers: ch.vers, cookie: cookie}
		s.state = stateSendCH2
		return []action{{kind: actionSendMessage, message: packMessage(hvr)}}, nil
	}
	if !s.dtlsCookie.verifyCookie(connID, ch.random, ch.dtlsCookie) {
		return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
	}
	return nil, nil
}

func (s *serverHandshakeState) negotiateTLS13(ch *clientHelloMsg, wire []byte) ([]action, *Error) {
	suite := mutualCipherSuiteTLS13(s.config.CipherSuitesTLS13, ch.cipherSuites)
	if suite == nil {
		return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
	}
	s.suite13 = suite

	if !s.sentHRR {
		s.transcript.setHash(suite.Hash)
	}
	s.transcript.write(wire)

	if !groupsSubsetOfSupported(ch.keyShares, ch.supportedGroups) {
		return nil, newError(ErrKindIllegalParameter, s.state.String(), "key_share", nil)
	}

	serverGroups := s.config.SupportedGroups
	var myShare *keyShareEntry
	for i := range ch.keyShares {
		for _, g := range serverGroups {
			if ch.keyShares[i].group == g {
				myShare = &ch.keyShares[i]
				break
			}
		}
		if myShare != nil {
			break
		}
	}

	if myShare == nil && !s.sentHRR {
		group, needHRR := selectHRRGroup(serverGroups, keyShareGroups(ch.keyShares), ch.supportedGroups)
		if !needHRR {
			return nil, newError(ErrKindHandshakeFailure, s.state.String(), "key_share", nil)
		}
		s.hrrGroup = group
		s.sentHRR = true
		hrr := &serverHelloMsg{vers: VersionTLS12, random: hrrRandom, cipherSuite: suite.ID, supportedVersion: VersionTLS13, selectedGroup: group}
		hrrWire := packMessage(hrr)
		// Restart the transcript with ClientHello1 in its message_hash form.
		s.transcript = newTranscript()
		s.transcript.setHash(suite.Hash)
		s.transcript.write(replaceWithMessageHash(suite.Hash, wire))
		s.transcript.write(hrrWire)
		s.state = stateSendCH2
		return []action{
			{kind: actionSendMessage, message: hrrWire},
			{kind: actionUpdateTranscript},
		}, nil
	}
	if s.sentHRR {
		if err := validateHRRKeyShare(ch.keyShares, s.hrrGroup); err != nil {
			return nil, err.(*Error)
		}
		myShare = &ch.keyShares[0]
	}

	s.schedule13 = newSchedule13(s.config.Crypto, suite.Hash)

	var pskSecret []byte
	external := false
	var selectedIdentity *uint16
	if ch.preSharedKey != nil {
		resolved := resolvePSKIdentity(ch.preSharedKey.identities, s.config.ExternalPSKs, s.config.TicketKeys)
		if resolved != nil {
			truncated := truncatedClientHelloForBinder(ch.raw, ch.preSharedKey.identitiesEnd)
			h := suite.Hash.New()
			h.Write(truncated)
			if err := verifyPSKBinder(s.schedule13, resolved, h.Sum(nil), ch.preSharedKey.binders[resolved.index]); err != nil {
				return nil, err.(*Error)
			}
			pskSecret = resolved.secret
			external = resolved.source == pskSourceExternal
			idx := uint16(resolved.index)
			selectedIdentity = &idx
			if resolved.session != nil {
				s.session = resolved.session
				s.resuming = true
			}
		}
	}
	s.schedule13.initEarlySecret(pskSecret, external)

	pub, priv, err := s.config.Crypto.GenerateKeyShare(myShare.group)
	if err != nil {
		return nil, newError(ErrKindInternal, s.state.String(), "server_hello", err)
	}
	s.ecdheGroup = myShare.group
	s.ecdhePrivate = priv

	sh := &serverHelloMsg{
		vers: VersionTLS12, cipherSuite: suite.ID, supportedVersion: VersionTLS13,
		keyShare: &keyShareEntry{group: myShare.group, data: pub}, selectedIdentity: selectedIdentity,
	}
	if pskSecret != nil && selectedIdentity == nil {
		sh.keyShare = nil
	}
	var random [32]byte
	fillRandom(s.config.rand(), random[:])
	sh.random = random
	shWire := packMessage(sh)
	s.transcript.write(shWire)

	dheSecret, err := ecdheComputeSecret(s.config.Crypto, myShare.group, priv, myShare.data)
	if err != nil {
		return nil, err.(*Error)
	}
	s.schedule13.initHandshakeSecret(dheSecret, s.transcript.sum())

	clientKey, clientIV := s.schedule13.trafficKeys(s.schedule13.clientHandshakeTraffic, suite.KeyLen)
	serverKey, serverIV := s.schedule13.trafficKeys(s.schedule13.serverHandshakeTraffic, suite.KeyLen)

	var actions []action
	actions = append(actions,
		action{kind: actionSendMessage, message: shWire},
		action{kind: actionUpdateTranscript},
		action{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{SuiteID: suite.ID, Key: clientKey, IV: clientIV, IsAEAD: true}},
		action{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{SuiteID: suite.ID, Key: serverKey, IV: serverIV, IsAEAD: true}},
	)

	ee := &encryptedExtensionsMsg{}
	if len(ch.alpnProtocols) > 0 {
		proto, _, aerr := selectALPNProtocol(s.config.ALPNCallback, ch.alpnProtocols)
		if aerr != nil {
			ferr := newError(ErrKindHandshakeFailure, s.state.String(), "alpn", aerr)
			ferr.Alert = AlertNoApplicationProtocol
			return nil, ferr
		}
		ee.alpnProtocol = proto
	}
	eeWire := packMessage(ee)
	s.transcript.write(eeWire)
	actions = append(actions,
		action{kind: actionSendMessage, message: eeWire},
		action{kind: actionUpdateTranscript},
	)

	if pskSecret == nil {
		cert := s.pickCertificate(ch.serverName)
		s.selectedCert = cert
		certMsg := &certificateMsg{certificates: cert.Chain}
		certWire := packMessage(certMsg)
		s.transcript.write(certWire)
		scheme, ok := selectSignatureScheme(cert.SupportedSigs, ch.signatureAlgorithms)
		if !ok {
			return nil, newError(ErrKindHandshakeFailure, s.state.String(), "certificate", nil)
		}
		sig, serr := s.config.Crypto.Sign(cert.PrivateKey, scheme, s.transcript.sum())
		if serr != nil {
			return nil, newError(ErrKindInternal, s.state.String(), "certificate_verify", serr)
		}
		cv := &certificateVerifyMsg{signatureAlgorithm: scheme, signature: sig}
		cvWire := packMessage(cv)
		s.transcript.write(cvWire)
		actions = append(actions,
			action{kind: actionSendMessage, message: certWire},
			action{kind: actionUpdateTranscript},
			action{kind: actionSendMessage, message: cvWire},
			action{kind: actionUpdateTranscript},
		)
	}

	serverFinished := &finishedMsg{verifyData: s.schedule13.verifyData(s.schedule13.serverHandshakeTraffic, s.transcript.sum())}
	finWire := packMessage(serverFinished)
	s.transcript.write(finWire)
	s.serverVerifyData = serverFinished.verifyData
	s.schedule13.initMasterSecret(s.transcript.sum())
	actions = append(actions,
		action{kind: actionSendMessage, message: finWire},
		action{kind: actionUpdateTranscript},
	)

	s.state = stateRecvFin
	return actions, nil
}

func (s *serverHandshakeState) negotiateClassic(ch *clientHelloMsg, wire []byte) ([]action, *Error) {
	suite := mutualCipherSuite(s.config.CipherSuites, ch.cipherSuites)
	if suite == nil {
		return nil, newError(ErrKindHandshakeFailure, s.state.String(), "client_hello", nil)
	}
	s.suite = suite
	s.transcript.setHash(suite.Hash)
	s.transcript.write(wire)

	if s.config.TicketSupport && len(ch.sessionTicket) > 0 && s.config.TicketKeys != nil {
		if sess, needsRenew := decryptTicket(s.config.TicketKeys, ch.sessionTicket); sess != nil && !needsRenew {
			if sniMatchesSession(ch.serverName, sess.ServerName) {
				s.session = sess
				s.resuming = true
				s.masterSecret = sess.MasterSecret
			}
		}
	}

	var random [32]byte
	fillRandom(s.config.rand(), random[:])
	s.serverRandom = random
	sh := &serverHelloMsg{vers: VersionTLS12, random: random, cipherSuite: suite.ID, extendedMasterSecret: ch.extendedMasterSecret}
	if s.resuming {
		sh.sessionID = s.session.SessionID
	} else {
		sh.sessionID = make([]byte, 32)
		fillRandom(s.config.rand(), sh.sessionID)
	}
	if ch.renegotiationSupported {
		sh.secureRenegotiation = append(append([]byte{}, s.clientVerifyData...), s.serverVerifyData...)
	}
	shWire := packMessage(sh)
	s.transcript.write(shWire)

	actions := []action{
		{kind: actionSendMessage, message: shWire},
		{kind: actionUpdateTranscript},
	}

	if s.resuming {
		serverFinished := s.buildClassicFinished(false)
		actions = append(actions,
			action{kind: actionSendCCS, message: []byte{1}},
			action{kind: actionInstallWriteKey},
			action{kind: actionSendMessage, message: serverFinished},
			action{kind: actionUpdateTranscript},
		)
		s.state = stateRecvFin
		return actions, nil
	}

	cert := s.pickCertificate(ch.serverName)
	s.selectedCert = cert
	certMsg := &certificateMsg{certificates: cert.Chain}
	certWire := packMessage(certMsg)
	s.transcript.write(certWire)
	actions = append(actions, action{kind: actionSendMessage, message: certWire}, action{kind: actionUpdateTranscript})

	if suite.KX == kxECDHE || suite.KX == kxDHE {
		group := GroupX25519
		if len(s.config.SupportedGroups) > 0 {
			group = s.config.SupportedGroups[0]
		}
		pub, priv, err := s.config.Crypto.GenerateKeyShare(group)
		if err != nil {
			return nil, newError(ErrKindInternal, s.state.String(), "server_key_exchange", err)
		}
		s.ecdheGroup = group
		s.ecdhePrivate = priv
		scheme, ok := selectSignatureScheme(cert.SupportedSigs, ch.signatureAlgorithms)
		if !ok {
			return nil, newError(ErrKindHandshakeFailure, s.state.String(), "server_key_exchange", nil)
		}
		params := marshalECDHEServerKeyExchange(group, pub, 0, nil)
		sig, serr := s.config.Crypto.Sign(cert.PrivateKey, scheme, ecdheSignedMessage(ch.random, sh.random, params))
		if serr != nil {
			return nil, newError(ErrKindInternal, s.state.String(), "server_key_exchange", serr)
		}
		ske := &serverKeyExchangeMsg{body: marshalECDHEServerKeyExchange(group, pub, scheme, sig)}
		skeWire := packMessage(ske)
		s.transcript.write(skeWire)
		actions = append(actions, action{kind: actionSendMessage, message: skeWire}, action{kind: actionUpdateTranscript})
	}

	if s.config.ClientAuth {
		cr := &certificateRequestMsg{certificateTypes: []byte{1}, signatureAlgorithms: s.config.SignatureSchemes}
		crWire := packMessage(cr)
		s.transcript.write(crWire)
		actions = append(actions, action{kind: actionSendMessage, message: crWire}, action{kind: actionUpdateTranscript})
		s.clientAuthRequested = true
	}

	done := &serverHelloDoneMsg{}
	doneWire := packMessage(done)
	s.transcript.write(doneWire)
	actions = append(actions, action{kind: actionSendMessage, message: doneWire}, action{kind: actionUpdateTranscript})

	if s.clientAuthRequested {
		s.state = stateRecvCert
	} else {
		s.state = stateRecvCKE
	}
	return actions, nil
}

func (s *serverHandshakeState) onClientCertificate(ev event) ([]action, *Error) {
	if ev.msgType != typeCertificate {
		return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "certificate", nil)
	}
	cert := &certificateMsg{}
	cbs := cryptobyteString(ev.msgBody)
	if err := cert.unmarshalBody(&cbs); err != nil {
		return nil, err.(*Error)
	}
	if len(cert.certificates) > 0 {
		chain := make([]Certificate, 0, len(cert.certificates))
		for _, der := range cert.certificates {
			parsed, perr := s.config.CertProvider.ParseCertificate(der)
			if perr != nil {
				return nil, newError(ErrKindDecode, s.state.String(), "certificate", perr)
			}
			chain = append(chain, parsed)
		}
		if verr := s.config.CertProvider.VerifyChain(chain, "", time.Now()); verr != nil {
			return nil, newError(ErrKindCertificate, s.state.String(), "certificate", verr)
		}
		s.clientCertChain = cert.certificates
		s.clientPubKey = s.config.CertProvider.PublicKey(chain[0])
	}
	s.transcript.write(packMessage(cert))
	s.state = stateRecvCKE
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (s *serverHandshakeState) onClientCertificateVerify(ev event) ([]action, *Error) {
	if ev.msgType != typeCertificateVerify {
		return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "certificate_verify", nil)
	}
	cv := &certificateVerifyMsg{}
	cbs := cryptobyteString(ev.msgBody)
	if err := cv.unmarshalBody(&cbs); err != nil {
		return nil, err.(*Error)
	}
	signed := s.transcript.sum()
	if verr := s.config.Crypto.VerifySignature(s.clientPubKey, cv.signatureAlgorithm, signed, cv.signature); verr != nil {
		return nil, newError(ErrKindHandshakeFailure, s.state.String(), "certificate_verify", verr)
	}
	s.transcript.write(packMessage(cv))
	s.state = stateRecvFin
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (s *serverHandshakeState) onClientKeyExchange(ev event) ([]action, *Error) {
	if ev.msgType != typeClientKeyExchange {
		return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "client_key_exchange", nil)
	}
	cke := &clientKeyExchangeMsg{}
	cbs := cryptobyteString(ev.msgBody)
	if err := cke.unmarshalBody(&cbs); err != nil {
		return nil, err.(*Error)
	}
	s.transcript.write(packMessage(cke))

	var premaster []byte
	switch s.suite.KX {
	case kxECDHE:
		secret, err := ecdheComputeSecret(s.config.Crypto, s.ecdheGroup, s.ecdhePrivate, cke.body)
		if err != nil {
			return nil, err.(*Error)
		}
		premaster = secret
	case kxRSA:
		result, err := serverRSAKeyExchange(s.config.Crypto, s.selectedCert.PrivateKey, s.clientHello.vers, cke.body)
		if err != nil {
			return nil, err.(*Error)
		}
		premaster = result.premaster
	}
	s.masterSecret = premasterToMaster(s.config.Crypto, s.suite.Hash, premaster, s.clientHello.random, s.serverRandom, s.clientHello.extendedMasterSecret, s.transcript.sum())

	if len(s.clientCertChain) > 0 {
		s.state = stateRecvCV
	} else {
		s.state = stateRecvFin
	}
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (s *serverHandshakeState) onFinished(ev event) ([]action, *Error) {
	if ev.msgType != typeFinished {
		return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "finished", nil)
	}
	fin := &finishedMsg{}
	cbs := cryptobyteString(ev.msgBody)
	if err := fin.unmarshalBody(&cbs); err != nil {
		return nil, err.(*Error)
	}

	if s.negotiatedVersion == VersionTLS13 {
		expected := s.schedule13.verifyData(s.schedule13.clientHandshakeTraffic, s.transcript.sum())
		if !constantTimeEqual(expected, fin.verifyData) {
			return nil, newError(ErrKindBadRecordMAC, s.state.String(), "finished", nil)
		}
		s.clientVerifyData = fin.verifyData
		s.transcript.write(packMessage(fin))
		rms := s.schedule13.resumptionSecret(s.transcript.sum())

		clientKey, clientIV := s.schedule13.trafficKeys(s.schedule13.clientAppTraffic, s.suite13.KeyLen)
		serverKey, serverIV := s.schedule13.trafficKeys(s.schedule13.serverAppTraffic, s.suite13.KeyLen)
		actions := []action{
			{kind: actionUpdateTranscript},
			{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{SuiteID: s.suite13.ID, Key: clientKey, IV: clientIV, IsAEAD: true}},
			{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{SuiteID: s.suite13.ID, Key: serverKey, IV: serverIV, IsAEAD: true}},
			{kind: actionHandshakeComplete},
		}
		if s.config.TicketSupport && s.config.TicketKeys != nil {
			sess := &Session{
				Version: VersionTLS13, CipherSuiteTLS13: s.suite13.ID, MasterSecret: rms,
				ServerName: s.clientHello.serverName,
			}
			if blob, terr := encryptTicket(s.config.TicketKeys, sess); terr == nil {
				nst := &newSessionTicketMsg{isTLS13: true, ticket: blob, lifetimeHint: 7200}
				actions = append(actions, action{kind: actionSendMessage, message: packMessage(nst)}, action{kind: actionUpdateTranscript})
			}
		}
		s.state = stateAppTraffic
		return actions, nil
	}

	expected := s.classicVerifyData(true)
	if !constantTimeEqual(expected, fin.verifyData) {
		return nil, newError(ErrKindBadRecordMAC, s.state.String(), "finished", nil)
	}
	s.clientVerifyData = fin.verifyData
	s.transcript.write(packMessage(fin))

	var actions []action
	if !s.resuming {
		finished := s.buildClassicFinished(false)
		actions = append(actions,
			action{kind: actionUpdateTranscript},
			action{kind: actionSendCCS, message: []byte{1}},
			action{kind: actionInstallWriteKey},
			action{kind: actionSendMessage, message: finished},
			action{kind: actionUpdateTranscript},
		)
		if s.config.TicketSupport && s.config.TicketKeys != nil {
			sess := &Session{
				Version: VersionTLS12, CipherSuite: s.suite.ID, MasterSecret: s.masterSecret,
				SessionID: make([]byte, 32), ExtendedMasterSecret: s.clientHello.extendedMasterSecret,
				ServerName: s.clientHello.serverName,
			}
			fillRandom(s.config.rand(), sess.SessionID)
			s.session = sess
			if blob, terr := encryptTicket(s.config.TicketKeys, sess); terr == nil {
				nst := &newSessionTicketMsg{ticket: blob, lifetimeHint: 7200}
				actions = append(actions, action{kind: actionSendMessage, message: packMessage(nst)}, action{kind: actionUpdateTranscript})
			}
		}
	} else {
		actions = append(actions, action{kind: actionUpdateTranscript})
	}
	actions = append(actions, action{kind: actionHandshakeComplete}, action{kind: actionDeliverSessionToCache, session: s.session})
	s.state = stateAppTraffic
	return actions, nil
}

func (s *serverHandshakeState) onPostHandshake(ev event) ([]action, *Error) {
	switch ev.msgType {
	case typeClientHello:
		if !s.config.RenegotiationAllowed {
			return []action{{kind: actionSendAlert, alert: AlertNoRenegotiation, alertFatal: false}}, nil
		}
		s.isRenegotiation = true
		s.storedClientVerifyData = s.clientVerifyData
		s.state = stateIdle
		return s.onClientHello(ev)
	case typeKeyUpdate:
		ku := &keyUpdateMsg{}
		cbs := cryptobyteString(ev.msgBody)
		if err := ku.unmarshalBody(&cbs); err != nil {
			return nil, err.(*Error)
		}
		s.schedule13.clientAppTraffic = s.schedule13.nextTrafficSecret(s.schedule13.clientAppTraffic)
		key, iv := s.schedule13.trafficKeys(s.schedule13.clientAppTraffic, s.suite13.KeyLen)
		return []action{{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{Key: key, IV: iv, IsAEAD: true}}}, nil
	}
	return nil, newError(ErrKindUnexpectedMessage, s.state.String(), "", nil)
}

func (s *serverHandshakeState) handleAppRequest(ev event) ([]action, *Error) {
	switch ev.appRequest {
	case appRequestRenegotiate:
		hr := &helloRequestMsg{}
		return []action{{kind: actionSendMessage, message: packMessage(hr)}}, nil
	case appRequestKeyUpdate:
		s.schedule13.serverAppTraffic = s.schedule13.nextTrafficSecret(s.schedule13.serverAppTraffic)
		key, iv := s.schedule13.trafficKeys(s.schedule13.serverAppTraffic, s.suite13.KeyLen)
		ku := &keyUpdateMsg{requestUpdate: ev.keyUpdateReq}
		return []action{
			{kind: actionSendMessage, message: packMessage(ku)},
			{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{Key: key, IV: iv, IsAEAD: true}},
		}, nil
	case appRequestPostHandshakeAuth:
		cr := &certificateRequestMsg{certificateTypes: []byte{1}, signatureAlgorithms: s.config.SignatureSchemes}
		return []action{{kind: actionSendMessage, message: packMessage(cr)}}, nil
	case appRequestClose:
		return []action{{kind: actionSendAlert, alert: AlertCloseNotify}, {kind: actionCloseWrite}}, nil
	}
	return nil, newError(ErrKindInternal, s.state.String(), "", nil)
}

func (s *serverHandshakeState) pickCertificate(serverName string) *CertKeyPair {
	for i := range s.config.Certificates {
		// A real SNI-aware picker would match serverName against each
		// cert's SAN list; the default adapter keeps a single configured
		// identity per Config, so the first entry always applies.
		_ = serverName
		return &s.config.Certificates[i]
	}
	return &CertKeyPair{}
}

func (s *serverHandshakeState) buildClassicFinished(fromClient bool) []byte {
	return packMessage(&finishedMsg{verifyData: s.classicVerifyDataFor(fromClient)})
}

func (s *serverHandshakeState) classicVerifyData(fromClient bool) []byte {
	return s.classicVerifyDataFor(fromClient)
}

func (s *serverHandshakeState) classicVerifyDataFor(fromClient bool) []byte {
	label := "server finished"
	if fromClient {
		label = "client finished"
	}
	return s.config.Crypto.HKDFExpandLabel(s.suite.Hash, s.masterSecret, label, s.transcript.sum(), 12)
}

func keyShareGroups(shares []keyShareEntry) []NamedGroup {
	out := make([]NamedGroup, len(shares))
	for i, s := range shares {
		out[i] = s.group
	}
	return out
}
