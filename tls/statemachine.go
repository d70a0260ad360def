package tls

// handshakeState is the canonical per-role state (spec §4.6). Client and
// server share one enum since most names line up 1:1; role-specific
// states are simply unreached on the other role, and SEND_HRR is not
// entered by either role's transitions.
type handshakeState int

const (
	stateIdle handshakeState = iota
	stateSendCH
	stateSendHRR // not entered; the server waits in SEND_CH2 after an HRR
	stateRecvSH  // client
	stateSendCH2 // server, waiting for the second ClientHello after an HRR or HelloVerifyRequest
	stateRecvEE  // TLS 1.3
	stateRecvCert
	stateRecvSKE // <=1.2
	stateRecvCR  // optional, client-auth
	stateRecvSHD // <=1.2 ServerHelloDone
	stateRecvCV  // TLS 1.3 CertificateVerify
	stateRecvCKE // <=1.2, server: waiting for ClientKeyExchange
	stateRecvFin
	stateSendCert
	stateSendCKE // <=1.2
	stateSendCV
	stateSendCCS // <=1.2
	stateSendFin
	stateRecvNST
	stateAppTraffic
	stateSink // fatal alert sent/received; refuses further handshake messages
)

func (s handshakeState) String() string {
	names := map[handshakeState]string{
		stateIdle: "IDLE", stateSendCH: "SEND_CH", stateSendHRR: "SEND_HRR",
		stateRecvSH: "RECV_SH", stateSendCH2: "SEND_CH2", stateRecvEE: "RECV_EE",
		stateRecvCert: "RECV_CERT", stateRecvSKE: "RECV_SKE", stateRecvCR: "RECV_CR",
		stateRecvSHD: "RECV_SHD", stateRecvCV: "RECV_CV", stateRecvCKE: "RECV_CKE",
		stateRecvFin: "RECV_FIN",
		stateSendCert: "SEND_CERT", stateSendCKE: "SEND_CKE", stateSendCV: "SEND_CV",
		stateSendCCS: "SEND_CCS", stateSendFin: "SEND_FIN", stateRecvNST: "RECV_NST",
		stateAppTraffic: "APP_TRAFFIC", stateSink: "SINK",
	}
	if n, ok := names[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// eventKind distinguishes the three event shapes spec §4.6 names.
type eventKind int

const (
	eventMessage eventKind = iota
	eventTimerExpired
	eventAppRequest
)

type appRequestKind int

const (
	appRequestRenegotiate appRequestKind = iota
	appRequestKeyUpdate
	appRequestPostHandshakeAuth
	appRequestClose
)

// event is what drives one state-machine transition.
type event struct {
	kind         eventKind
	msgType      uint8
	msgBody      []byte
	appRequest   appRequestKind
	keyUpdateReq bool
}

// actionKind enumerates the transition-output set spec §4.6 names:
// "schedule message to send, update transcript, install new read key,
// install new write key, deliver session to cache, deliver session to
// user, signal handshake complete."
type actionKind int

const (
	actionSendMessage actionKind = iota
	actionUpdateTranscript
	actionInstallReadKey
	actionInstallWriteKey
	actionDeliverSessionToCache
	actionDeliverSessionToUser
	actionHandshakeComplete
	actionSendAlert
	actionSendCCS
	actionExpectCCS
	actionCloseWrite
)

type action struct {
	kind     actionKind
	message  []byte // actionSendMessage: the packed wire bytes
	alert    AlertDescription
	alertFatal bool
	readKey  *TrafficKeyInstall
	writeKey *TrafficKeyInstall
	session  *Session
}

// TrafficKeyInstall is the Record Layer command payload for
// installReadKey/installWriteKey (spec §6.5 "set_read_key(epoch, suite,
// key, iv)").
type TrafficKeyInstall struct {
	Epoch   int
	SuiteID uint16
	Key     []byte
	IV      []byte
	IsAEAD  bool
}

// StepStatus mirrors spec §4.7's Coordinator status set.
type StepStatus int

const (
	StatusWantMore StepStatus = iota
	StatusHandshakeComplete
	StatusAppDataReady
	StatusNeedsCertCallback
	StatusNeedsPSKCallback
	StatusError
)

// fatalActions builds the canonical "send alert, move to sink" action pair for
// any transition that detects a protocol violation (spec §4.6's
// "Fatal-alert policy").
func fatalActions(err *Error) []action {
	return []action{
		{kind: actionSendAlert, alert: err.Alert, alertFatal: true},
		{kind: actionCloseWrite},
	}
}
