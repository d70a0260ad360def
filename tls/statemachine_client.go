package tls

import "time"

// clientHandshakeState is the client's Handshake Workspace (spec §3):
// everything scoped to one handshake attempt, separate from the
// longer-lived Connection Context (*Conn).
type clientHandshakeState struct {
	config *Config
	conn   *Conn

	state handshakeState

	transcript *transcript
	schedule13 *schedule13

	clientHello      *clientHelloMsg
	clientHelloBytes []byte
	serverHello      *serverHelloMsg
	hrrSeen          bool

	negotiatedVersion uint16
	suite             *CipherSuite
	suite13           *CipherSuiteTLS13

	ecdhePrivate    []byte
	ecdheGroup      NamedGroup
	peerECDHEPublic []byte

	peerCertChain [][]byte
	peerPubKey    interface{}

	certRequested       bool
	certRequestedSchemes []SignatureScheme
	clientCert          *CertKeyPair

	session      *Session
	resuming     bool
	masterSecret []byte

	clientVerifyData []byte
	serverVerifyData []byte

	isRenegotiation bool
}

func newClientHandshake(conn *Conn) *clientHandshakeState {
	return &clientHandshakeState{
		config:     conn.config,
		conn:       conn,
		state:      stateIdle,
		transcript: newTranscript(),
	}
}

// next implements the client's half of spec §4.6: `Next(message) ->
// (nextState, actions, alert)`, modeled as a resumable function rather
// than the teacher's blocking `clientHandshake`/`doFullHandshake` linear
// calls, per spec §9's explicit callback-resumability requirement.
func (c *clientHandshakeState) next(ev event) ([]action, *Error) {
	if c.state == stateSink {
		return nil, newError(ErrKindInternal, c.state.String(), "", nil)
	}
	switch ev.kind {
	case eventAppRequest:
		return c.handleAppRequest(ev)
	case eventTimerExpired:
		return c.handleRetransmit()
	}

	switch c.state {
	case stateIdle:
		return c.sendClientHello()
	case stateRecvSH, stateSendCH2:
		return c.onServerHello(ev)
	case stateRecvEE:
		return c.onEncryptedExtensions(ev)
	case stateRecvCert:
		return c.onCertificate(ev)
	case stateRecvSKE:
		return c.onServerKeyExchange(ev)
	case stateRecvCR:
		return c.onCertificateRequestOrDone(ev)
	case stateRecvSHD:
		return c.onServerHelloDone(ev)
	case stateRecvCV:
		return c.onCertificateVerify(ev)
	case stateRecvFin:
		return c.onFinished(ev)
	case stateRecvNST:
		return c.onNewSessionTicket(ev)
	case stateAppTraffic:
		return c.onPostHandshake(ev)
	}
	return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "", nil)
}

func (c *clientHandshakeState) sendClientHello() ([]action, *Error) {
	ch := &clientHelloMsg{
		vers:                c.config.maxVersion(),
		serverName:          c.config.ServerName,
		cipherSuites:        c.config.CipherSuites,
		compressionMethods:  []byte{0},
		supportedGroups:     c.config.SupportedGroups,
		supportedPoints:     []byte{pointFormatUncompressed},
		signatureAlgorithms: c.config.SignatureSchemes,
		alpnProtocols:       c.config.ALPNProtocols,
		extendedMasterSecret: c.config.ExtendedMasterSecret,
		renegotiationSupported: true,
	}
	if c.config.maxVersion() == VersionTLS13 {
		ch.supportedVersions = []uint16{VersionTLS13, VersionTLS12}
		group := GroupX25519
		if len(c.config.SupportedGroups) > 0 {
			group = c.config.SupportedGroups[0]
		}
		pub, priv, err := c.config.Crypto.GenerateKeyShare(group)
		if err != nil {
			return nil, newError(ErrKindInternal, "IDLE", "client_hello", err)
		}
		c.ecdheGroup = group
		c.ecdhePrivate = priv
		ch.keyShares = []keyShareEntry{{group: group, data: pub}}
		ch.pskModes = []uint8{1} // psk_dhe_ke
	}
	var random [32]byte
	if err := fillRandom(c.config.rand(), random[:]); err != nil {
		return nil, newError(ErrKindInternal, "IDLE", "client_hello", err)
	}
	ch.random = random
	c.clientHello = ch
	wire := packMessage(ch)
	c.clientHelloBytes = wire
	c.state = stateRecvSH
	if isDTLS(ch.vers) {
		// spec §4.2's DTLS carve-out: the first, cookie-less ClientHello
		// never enters the transcript -- only the cookie-bearing retry
		// sent from onHelloVerifyRequest does.
		return []action{{kind: actionSendMessage, message: wire}}, nil
	}
	c.transcript.write(wire)
	return []action{
		{kind: actionSendMessage, message: wire},
		{kind: actionUpdateTranscript},
	}, nil
}

func (c *clientHandshakeState) onServerHello(ev event) ([]action, *Error) {
	if ev.msgType == typeHelloVerifyRequest {
		return c.onHelloVerifyRequest(ev)
	}
	if ev.msgType != typeServerHello {
		return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "server_hello", nil)
	}
	sh := &serverHelloMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := sh.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}
	c.serverHello = sh

	if sh.isHRR() {
		if c.hrrSeen {
			return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "server_hello", nil)
		}
		c.hrrSeen = true
		return c.onHelloRetryRequest(sh)
	}

	version, ok := selectVersion(c.config.minVersion(), c.config.maxVersion(),
		[]uint16{sh.supportedVersion}, sh.vers)
	if !ok || (sh.supportedVersion != 0 && sh.supportedVersion != version) {
		version = sh.vers
	}
	c.negotiatedVersion = version

	wire := packMessage(sh)
	c.transcript.write(wire)

	if version == VersionTLS13 {
		suite := cipherSuiteTLS13ByID(sh.cipherSuite)
		if suite == nil {
			return nil, newError(ErrKindHandshakeFailure, c.state.String(), "server_hello", nil)
		}
		c.suite13 = suite
		c.transcript.setHash(suite.Hash)
		c.schedule13 = newSchedule13(c.config.Crypto, suite.Hash)

		var psk []byte
		external := false
		if sh.selectedIdentity != nil {
			// PSK-only or PSK+DHE; psk bytes resolved by caller-held
			// resumption/external store, keyed by the identity offered.
			psk, external = c.resolveOfferedPSKSecret(*sh.selectedIdentity)
		}
		c.schedule13.initEarlySecret(psk, external)

		var dheSecret []byte
		if sh.keyShare != nil {
			secret, err := ecdheComputeSecret(c.config.Crypto, sh.keyShare.group, c.ecdhePrivate, sh.keyShare.data)
			if err != nil {
				return nil, err.(*Error)
			}
			dheSecret = secret
		}
		c.schedule13.initHandshakeSecret(dheSecret, c.transcript.sum())

		clientKey, clientIV := c.schedule13.trafficKeys(c.schedule13.clientHandshakeTraffic, suite.KeyLen)
		serverKey, serverIV := c.schedule13.trafficKeys(c.schedule13.serverHandshakeTraffic, suite.KeyLen)
		c.state = stateRecvEE
		return []action{
			{kind: actionUpdateTranscript},
			{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{SuiteID: sh.cipherSuite, Key: serverKey, IV: serverIV, IsAEAD: true}},
			{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{SuiteID: sh.cipherSuite, Key: clientKey, IV: clientIV, IsAEAD: true}},
		}, nil
	}

	suite := cipherSuiteByID(sh.cipherSuite)
	if suite == nil {
		return nil, newError(ErrKindHandshakeFailure, c.state.String(), "server_hello", nil)
	}
	c.suite = suite
	c.transcript.setHash(suite.Hash)

	if len(sh.sessionID) > 0 && c.session != nil && bytesEqual(sh.sessionID, c.session.SessionID) {
		c.resuming = true
		c.masterSecret = c.session.MasterSecret
		c.state = stateRecvFin
		return []action{{kind: actionUpdateTranscript}}, nil
	}

	switch suite.KX {
	case kxECDHE, kxECDHEPSK:
		c.state = stateRecvCert
	case kxDHE, kxDHEPSK:
		c.state = stateRecvCert
	case kxRSA, kxRSAPSK:
		c.state = stateRecvCert
	case kxPSK:
		c.state = stateRecvSKE
	}
	return []action{{kind: actionUpdateTranscript}}, nil
}

// onHelloVerifyRequest implements the client's half of the DTLS
// stateless cookie exchange (RFC 6347 §4.2.1): replay the server's
// cookie in a fresh ClientHello. Per spec §4.2's DTLS carve-out, neither
// the first (cookie-less) ClientHello nor this HelloVerifyRequest ever
// enters the transcript -- only the cookie-bearing second ClientHello
// below starts it.
func (c *clientHandshakeState) onHelloVerifyRequest(ev event) ([]action, *Error) {
	hvr := &helloVerifyRequestMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := hvr.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}
	c.clientHello.dtlsCookie = hvr.cookie
	wire := packMessage(c.clientHello)
	c.clientHelloBytes = wire
	c.transcript.write(wire)
	c.state = stateRecvSH
	return []action{
		{kind: actionSendMessage, message: wire},
		{kind: actionUpdateTranscript},
	}, nil
}

func (c *clientHandshakeState) onHelloRetryRequest(sh *serverHelloMsg) ([]action, *Error) {
	suite := cipherSuiteTLS13ByID(sh.cipherSuite)
	if suite == nil {
		return nil, newError(ErrKindHandshakeFailure, c.state.String(), "server_hello", nil)
	}
	replaced := replaceWithMessageHash(suite.Hash, c.clientHelloBytes)
	// Drop the buffered ClientHello1 so only its message_hash form is hashed.
	c.transcript = newTranscript()
	c.transcript.setHash(suite.Hash)
	c.transcript.write(replaced)
	c.transcript.write(packMessage(sh))

	pub, priv, err := c.config.Crypto.GenerateKeyShare(sh.selectedGroup)
	if err != nil {
		return nil, newError(ErrKindInternal, c.state.String(), "client_hello", err)
	}
	c.ecdheGroup = sh.selectedGroup
	c.ecdhePrivate = priv
	c.clientHello.keyShares = []keyShareEntry{{group: sh.selectedGroup, data: pub}}
	if sh.cookie != nil {
		c.clientHello.cookie = sh.cookie
	}
	wire := packMessage(c.clientHello)
	c.clientHelloBytes = wire
	c.transcript.write(wire)
	c.state = stateRecvSH
	return []action{
		{kind: actionSendMessage, message: wire},
		{kind: actionUpdateTranscript},
	}, nil
}

func (c *clientHandshakeState) onEncryptedExtensions(ev event) ([]action, *Error) {
	if ev.msgType != typeEncryptedExtensions {
		return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "encrypted_extensions", nil)
	}
	ee := &encryptedExtensionsMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := ee.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}
	c.transcript.write(packMessage(ee))
	if c.schedule13.binderKey != nil && c.clientHello.preSharedKey != nil {
		// PSK-only mode: no certificate exchange.
		c.state = stateRecvFin
		return []action{{kind: actionUpdateTranscript}}, nil
	}
	c.state = stateRecvCert
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (c *clientHandshakeState) onCertificate(ev event) ([]action, *Error) {
	switch ev.msgType {
	case typeCertificate:
		cert := &certificateMsg{}
		s := cryptobyteString(ev.msgBody)
		if err := cert.unmarshalBody(&s); err != nil {
			return nil, err.(*Error)
		}
		if len(cert.certificates) == 0 {
			return nil, newError(ErrKindHandshakeFailure, c.state.String(), "certificate", nil)
		}
		chain := make([]Certificate, 0, len(cert.certificates))
		for _, der := range cert.certificates {
			parsed, perr := c.config.CertProvider.ParseCertificate(der)
			if perr != nil {
				return nil, newError(ErrKindDecode, c.state.String(), "certificate", perr)
			}
			chain = append(chain, parsed)
		}
		if verr := c.config.CertProvider.VerifyChain(chain, c.config.ServerName, time.Now()); verr != nil {
			return nil, newError(ErrKindCertificate, c.state.String(), "certificate", verr)
		}
		c.peerCertChain = cert.certificates
		c.peerPubKey = c.config.CertProvider.PublicKey(chain[0])

		c.transcript.write(packMessage(cert))
		if c.negotiatedVersion == VersionTLS13 {
			c.state = stateRecvCV
		} else {
			c.state = stateRecvSKE
		}
		return []action{{kind: actionUpdateTranscript}}, nil
	}
	return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "certificate", nil)
}

func (c *clientHandshakeState) onServerKeyExchange(ev event) ([]action, *Error) {
	if ev.msgType != typeServerKeyExchange {
		// Not every <=1.2 mode sends one (plain RSA doesn't); fall
		// through to ServerHelloDone handling.
		return c.onCertificateRequestOrDone(ev)
	}
	ske := &serverKeyExchangeMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := ske.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}

	if c.suite.KX == kxECDHE {
		params, perr := unmarshalECDHEServerKeyExchange(ske.body)
		if perr != nil {
			return nil, perr
		}
		if params.signed {
			signed := ecdheSignedMessage(c.clientHello.random, c.serverHello.random, params.params)
			if verr := c.config.Crypto.VerifySignature(c.peerPubKey, params.scheme, signed, params.signature); verr != nil {
				return nil, newError(ErrKindHandshakeFailure, c.state.String(), "server_key_exchange", verr)
			}
		}
		c.ecdheGroup = params.group
		c.peerECDHEPublic = params.publicKey
	}

	c.transcript.write(packMessage(ske))
	c.state = stateRecvCR
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (c *clientHandshakeState) onCertificateRequestOrDone(ev event) ([]action, *Error) {
	switch ev.msgType {
	case typeCertificateRequest:
		cr := &certificateRequestMsg{}
		s := cryptobyteString(ev.msgBody)
		if err := cr.unmarshalBody(&s); err != nil {
			return nil, err.(*Error)
		}
		c.transcript.write(packMessage(cr))
		c.certRequested = true
		c.certRequestedSchemes = cr.signatureAlgorithms
		c.state = stateRecvSHD
		return []action{{kind: actionUpdateTranscript}}, nil
	case typeServerHelloDone:
		return c.onServerHelloDone(ev)
	}
	return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "", nil)
}

func (c *clientHandshakeState) onServerHelloDone(ev event) ([]action, *Error) {
	if ev.msgType != typeServerHelloDone {
		return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "server_hello_done", nil)
	}
	done := &serverHelloDoneMsg{}
	c.transcript.write(packMessage(done))

	var actions []action
	actions = append(actions, action{kind: actionUpdateTranscript})

	if c.certRequested {
		var chain [][]byte
		if len(c.config.Certificates) > 0 {
			c.clientCert = &c.config.Certificates[0]
			chain = c.clientCert.Chain
		}
		certMsg := &certificateMsg{certificates: chain}
		certWire := packMessage(certMsg)
		c.transcript.write(certWire)
		actions = append(actions, action{kind: actionSendMessage, message: certWire}, action{kind: actionUpdateTranscript})
	}

	cke := &clientKeyExchangeMsg{}
	var premaster []byte
	switch c.suite.KX {
	case kxECDHE:
		pub, priv, kerr := c.config.Crypto.GenerateKeyShare(c.ecdheGroup)
		if kerr != nil {
			return nil, newError(ErrKindInternal, c.state.String(), "client_key_exchange", kerr)
		}
		c.ecdhePrivate = priv
		cke.body = pub
		secret, serr := ecdheComputeSecret(c.config.Crypto, c.ecdheGroup, priv, c.peerECDHEPublic)
		if serr != nil {
			return nil, serr.(*Error)
		}
		premaster = secret
	case kxRSA:
		serverRSAPub, perr := rsaPublicKeyDER(c.peerPubKey)
		if perr != nil {
			return nil, perr
		}
		result, err := clientRSAKeyExchange(c.config.Crypto, c.clientHello.vers, serverRSAPub)
		if err != nil {
			return nil, err.(*Error)
		}
		cke.body = result.clientKeyExchange
		premaster = result.premaster
	}
	if premaster != nil {
		c.masterSecret = premasterToMaster(c.config.Crypto, c.suite.Hash, premaster, c.clientHello.random, c.serverHello.random, c.clientHello.extendedMasterSecret, c.transcript.sum())
	}
	wire := packMessage(cke)
	c.transcript.write(wire)
	actions = append(actions,
		action{kind: actionSendMessage, message: wire},
		action{kind: actionUpdateTranscript},
	)

	if c.clientCert != nil && len(c.clientCert.Chain) > 0 {
		scheme, ok := selectSignatureScheme(c.clientCert.SupportedSigs, c.certRequestedSchemes)
		if !ok {
			return nil, newError(ErrKindHandshakeFailure, c.state.String(), "certificate_verify", nil)
		}
		sig, serr := c.config.Crypto.Sign(c.clientCert.PrivateKey, scheme, c.transcript.sum())
		if serr != nil {
			return nil, newError(ErrKindInternal, c.state.String(), "certificate_verify", serr)
		}
		cv := &certificateVerifyMsg{signatureAlgorithm: scheme, signature: sig}
		cvWire := packMessage(cv)
		c.transcript.write(cvWire)
		actions = append(actions, action{kind: actionSendMessage, message: cvWire}, action{kind: actionUpdateTranscript})
	}

	finished := c.buildClassicFinished(true)
	ccs := []byte{1}
	actions = append(actions,
		action{kind: actionSendCCS, message: ccs},
		action{kind: actionInstallWriteKey},
		action{kind: actionSendMessage, message: finished},
		action{kind: actionUpdateTranscript},
	)
	c.state = stateRecvFin
	return actions, nil
}

func (c *clientHandshakeState) onCertificateVerify(ev event) ([]action, *Error) {
	if ev.msgType != typeCertificateVerify {
		return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "certificate_verify", nil)
	}
	cv := &certificateVerifyMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := cv.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}
	signed := c.transcript.sum()
	if verr := c.config.Crypto.VerifySignature(c.peerPubKey, cv.signatureAlgorithm, signed, cv.signature); verr != nil {
		return nil, newError(ErrKindHandshakeFailure, c.state.String(), "certificate_verify", verr)
	}
	c.transcript.write(packMessage(cv))
	c.state = stateRecvFin
	return []action{{kind: actionUpdateTranscript}}, nil
}

func (c *clientHandshakeState) onFinished(ev event) ([]action, *Error) {
	if ev.msgType != typeFinished {
		return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "finished", nil)
	}
	fin := &finishedMsg{}
	s := cryptobyteString(ev.msgBody)
	if err := fin.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}

	if c.negotiatedVersion == VersionTLS13 {
		transcriptThroughEE := c.transcript.sum()
		expected := c.schedule13.verifyData(c.schedule13.serverHandshakeTraffic, transcriptThroughEE)
		if !constantTimeEqual(expected, fin.verifyData) {
			return nil, newError(ErrKindBadRecordMAC, c.state.String(), "finished", nil)
		}
		c.serverVerifyData = fin.verifyData
		c.transcript.write(packMessage(fin))
		c.schedule13.initMasterSecret(c.transcript.sum())

		actions := []action{{kind: actionUpdateTranscript}}
		clientFinished := &finishedMsg{verifyData: c.schedule13.verifyData(c.schedule13.clientHandshakeTraffic, c.transcript.sum())}
		wire := packMessage(clientFinished)
		c.transcript.write(wire)
		c.clientVerifyData = clientFinished.verifyData

		clientKey, clientIV := c.schedule13.trafficKeys(c.schedule13.clientAppTraffic, c.suite13.KeyLen)
		serverKey, serverIV := c.schedule13.trafficKeys(c.schedule13.serverAppTraffic, c.suite13.KeyLen)
		actions = append(actions,
			action{kind: actionSendMessage, message: wire},
			action{kind: actionUpdateTranscript},
			action{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{SuiteID: c.suite13.ID, Key: serverKey, IV: serverIV, IsAEAD: true}},
			action{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{SuiteID: c.suite13.ID, Key: clientKey, IV: clientIV, IsAEAD: true}},
			action{kind: actionHandshakeComplete},
		)
		c.state = stateAppTraffic
		return actions, nil
	}

	expected := c.classicVerifyData(false)
	if !constantTimeEqual(expected, fin.verifyData) {
		return nil, newError(ErrKindBadRecordMAC, c.state.String(), "finished", nil)
	}
	c.transcript.write(packMessage(fin))
	c.state = stateRecvNST
	return []action{{kind: actionUpdateTranscript}, {kind: actionHandshakeComplete}}, nil
}

func (c *clientHandshakeState) onNewSessionTicket(ev event) ([]action, *Error) {
	if ev.msgType != typeNewSessionTicket {
		c.state = stateAppTraffic
		return c.next(ev)
	}
	nst := &newSessionTicketMsg{isTLS13: c.negotiatedVersion == VersionTLS13}
	s := cryptobyteString(ev.msgBody)
	if err := nst.unmarshalBody(&s); err != nil {
		return nil, err.(*Error)
	}
	c.transcript.write(packMessage(nst))
	c.state = stateAppTraffic
	return []action{{kind: actionUpdateTranscript}, {kind: actionDeliverSessionToUser}}, nil
}

func (c *clientHandshakeState) onPostHandshake(ev event) ([]action, *Error) {
	switch ev.msgType {
	case typeHelloRequest:
		c.isRenegotiation = true
		c.state = stateIdle
		return c.sendClientHello()
	case typeKeyUpdate:
		ku := &keyUpdateMsg{}
		s := cryptobyteString(ev.msgBody)
		if err := ku.unmarshalBody(&s); err != nil {
			return nil, err.(*Error)
		}
		c.schedule13.serverAppTraffic = c.schedule13.nextTrafficSecret(c.schedule13.serverAppTraffic)
		key, iv := c.schedule13.trafficKeys(c.schedule13.serverAppTraffic, c.suite13.KeyLen)
		actions := []action{{kind: actionInstallReadKey, readKey: &TrafficKeyInstall{Key: key, IV: iv, IsAEAD: true}}}
		if ku.requestUpdate {
			c.schedule13.clientAppTraffic = c.schedule13.nextTrafficSecret(c.schedule13.clientAppTraffic)
			ckey, civ := c.schedule13.trafficKeys(c.schedule13.clientAppTraffic, c.suite13.KeyLen)
			reply := &keyUpdateMsg{}
			actions = append(actions,
				action{kind: actionSendMessage, message: packMessage(reply)},
				action{kind: actionInstallWriteKey, writeKey: &TrafficKeyInstall{Key: ckey, IV: civ, IsAEAD: true}},
			)
		}
		return actions, nil
	case typeNewSessionTicket:
		return c.onNewSessionTicket(ev)
	}
	return nil, newError(ErrKindUnexpectedMessage, c.state.String(), "", nil)
}

func (c *clientHandshakeState) handleAppRequest(ev event) ([]action, *Error) {
	switch ev.appRequest {
	case appRequestClose:
		return []action{{kind: actionSendAlert, alert: AlertCloseNotify}, {kind: actionCloseWrite}}, nil
	}
	return nil, newError(ErrKindInternal, c.state.String(), "", nil)
}

func (c *clientHandshakeState) handleRetransmit() ([]action, *Error) {
	if c.clientHelloBytes != nil && (c.state == stateRecvSH) {
		return []action{{kind: actionSendMessage, message: c.clientHelloBytes}}, nil
	}
	return nil, nil
}

func (c *clientHandshakeState) resolveOfferedPSKSecret(index uint16) ([]byte, bool) {
	if c.clientHello.preSharedKey == nil || int(index) >= len(c.clientHello.preSharedKey.identities) {
		return nil, false
	}
	id := c.clientHello.preSharedKey.identities[index]
	if secret, ok := c.config.ExternalPSKs[string(id.label)]; ok {
		return secret, true
	}
	if c.session != nil {
		return c.session.MasterSecret, false
	}
	return nil, false
}

// buildClassicFinished implements the <=1.2 Finished message (RFC 5246
// §7.4.9): verify_data = PRF(master_secret, label, Hash(handshake
// messages))[0:12], delegated to the CryptoProvider's HKDFExpandLabel as
// the shared "expand with a label" primitive (the teacher's suites.go
// PRF and TLS 1.3's HKDF-Expand-Label share this shape).
func (c *clientHandshakeState) buildClassicFinished(fromClient bool) []byte {
	verifyData := c.classicVerifyData(fromClient)
	if fromClient {
		c.clientVerifyData = verifyData
	}
	return packMessage(&finishedMsg{verifyData: verifyData})
}

func (c *clientHandshakeState) classicVerifyData(fromClient bool) []byte {
	label := "server finished"
	if fromClient {
		label = "client finished"
	}
	return c.config.Crypto.HKDFExpandLabel(c.suite.Hash, c.masterSecret, label, c.transcript.sum(), 12)
}

func bytesEqual(a, b []byte) bool { return constantTimeEqual(a, b) }
