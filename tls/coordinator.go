package tls

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordLayer is the Coordinator's collaborator contract into the wire
// (spec §6.5): framing, epoch/key bookkeeping, and change_cipher_spec
// signalling are all delegated here so the state machine itself never
// touches a net.Conn directly. internal/recordlayer provides the
// default TLS/TLCP/DTLS adapters.
type RecordLayer interface {
	Send(msgType uint8, body []byte) error
	Recv() (msgType uint8, body []byte, err error)
	SetReadKey(k *TrafficKeyInstall) error
	SetWriteKey(k *TrafficKeyInstall) error
	ReadCCS() error
	WriteCCS() error
	SendAlert(desc AlertDescription, fatal bool) error
	Flush() error
	Close() error
}

// Role distinguishes which handshake workspace a Conn drives.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Conn is the Connection Context (spec §3, §4.7): the long-lived object
// the application holds, wrapping one Handshake Workspace plus the
// RecordLayer and session cache it reads/writes into.
type Conn struct {
	id     uuid.UUID
	role   Role
	config *Config
	record RecordLayer
	log    *zap.Logger

	sessions *sessionStore

	client *clientHandshakeState
	server *serverHandshakeState

	status      StepStatus
	lastErr     *Error
	negotiated  bool
	peerClosed  bool
}

// New creates a Connection Context for the given role, wiring the
// RecordLayer and a fresh Handshake Workspace (spec §4.7 "New(role,
// config, record_layer) -> Conn").
func New(role Role, config *Config, record RecordLayer) *Conn {
	c := &Conn{
		id:     uuid.New(),
		role:   role,
		config: config,
		record: record,
		log:    config.logger(),
	}
	if config.SessionCacheCapacity > 0 {
		c.sessions = newSessionStore(config.SessionCacheCapacity, config.SessionCacheTimeout)
	}
	if role == RoleClient {
		c.client = newClientHandshake(c)
	} else {
		c.server = newServerHandshake(c)
	}
	return c
}

// Configure updates the static Config a Conn negotiates against;
// callers must do this before the first Step (spec §4.7 "Configure").
func (c *Conn) Configure(config *Config) {
	c.config = config
	c.log = config.logger()
	if c.client != nil {
		c.client.config = config
	}
	if c.server != nil {
		c.server.config = config
	}
}

// Start kicks off a client handshake by emitting the first ClientHello;
// servers instead wait for Step to be driven by an incoming message.
func (c *Conn) Start() *Error {
	if c.role != RoleClient {
		return newError(ErrKindInternal, "", "", nil)
	}
	// stateIdle's transition ignores the event payload entirely (the
	// first ClientHello needs no triggering message); eventMessage just
	// avoids the eventAppRequest/eventTimerExpired special-casing in
	// next() that would otherwise intercept it before reaching the
	// per-state dispatch.
	actions, err := c.client.next(event{kind: eventMessage})
	if err != nil {
		return c.fail(err)
	}
	return c.apply(actions)
}

// Step drives one state-machine transition from a received handshake
// message and applies its actions against the RecordLayer (spec §4.7
// "Step(event) -> status"). StatusNeedsCertCallback and
// StatusNeedsPSKCallback are part of the StepStatus set, but no
// transition returns them, so Step never pauses for an application
// callback.
func (c *Conn) Step(msgType uint8, msgBody []byte) StepStatus {
	ev := event{kind: eventMessage, msgType: msgType, msgBody: msgBody}
	var actions []action
	var err *Error
	if c.role == RoleClient {
		actions, err = c.client.next(ev)
	} else {
		actions, err = c.server.next(ev)
	}
	if err != nil {
		c.fail(err)
		return StatusError
	}
	if e := c.apply(actions); e != nil {
		return StatusError
	}
	return c.status
}

// apply walks one transition's action list against the RecordLayer,
// mirroring spec §4.6's canonical action set: send message, update
// transcript, install key, deliver session, signal complete, alert.
func (c *Conn) apply(actions []action) *Error {
	for _, a := range actions {
		switch a.kind {
		case actionSendMessage:
			typ, body, derr := parseMessageHeader(a.message)
			if derr != nil {
				return c.fail(newError(ErrKindDecode, "", "", derr))
			}
			if err := c.record.Send(typ, body); err != nil {
				return c.fail(newError(ErrKindInternal, "", "", err))
			}
		case actionUpdateTranscript:
			// Transcript bytes are folded in directly by the state
			// machine as each message is built/parsed; this action
			// exists purely as a logging/observability marker.
			c.log.Debug("transcript updated", zap.String("conn", c.id.String()))
		case actionInstallReadKey:
			if err := c.record.SetReadKey(a.readKey); err != nil {
				return c.fail(newError(ErrKindInternal, "", "", err))
			}
		case actionInstallWriteKey:
			if err := c.record.SetWriteKey(a.writeKey); err != nil {
				return c.fail(newError(ErrKindInternal, "", "", err))
			}
		case actionSendCCS:
			if err := c.record.WriteCCS(); err != nil {
				return c.fail(newError(ErrKindInternal, "", "", err))
			}
		case actionExpectCCS:
			if err := c.record.ReadCCS(); err != nil {
				return c.fail(newError(ErrKindUnexpectedMessage, "", "change_cipher_spec", err))
			}
		case actionDeliverSessionToCache:
			if a.session != nil && c.sessions != nil {
				c.sessions.insert(a.session)
			}
		case actionDeliverSessionToUser:
			// Carried for callers that want every negotiated Session
			// surfaced (e.g. a client-side session cache keyed by
			// server name); Conn itself has no further use for it.
		case actionHandshakeComplete:
			c.negotiated = true
			c.status = StatusHandshakeComplete
			c.log.Info("handshake complete", zap.String("conn", c.id.String()))
		case actionSendAlert:
			_ = c.record.SendAlert(a.alert, a.alertFatal)
			if a.alertFatal {
				c.peerClosed = true
			}
		case actionCloseWrite:
			_ = c.record.Flush()
		}
	}
	if c.status != StatusHandshakeComplete && c.status != StatusError {
		c.status = StatusWantMore
	}
	return nil
}

func (c *Conn) fail(err *Error) *Error {
	c.lastErr = err
	c.status = StatusError
	_ = c.record.SendAlert(err.Alert, true)
	_ = c.record.Close()
	c.log.Warn("handshake failed", zap.String("conn", c.id.String()), zap.String("kind", string(err.Kind)))
	return err
}

// Renegotiate drives the spec §4.7 "application requests renegotiation"
// transition: only the server side can originate it (it emits
// HelloRequest); the client's matching half-transition fires when that
// HelloRequest later arrives as an ordinary Step message event.
func (c *Conn) Renegotiate() *Error {
	if c.role != RoleServer {
		return newError(ErrKindInternal, "", "", nil)
	}
	actions, err := c.server.next(event{kind: eventAppRequest, appRequest: appRequestRenegotiate})
	if err != nil {
		return c.fail(err)
	}
	return c.apply(actions)
}

// KeyUpdate drives the TLS 1.3 post-handshake KeyUpdate request (spec
// §4.7). requestPeerUpdate sets KeyUpdateRequest's update_requested flag.
func (c *Conn) KeyUpdate(requestPeerUpdate bool) *Error {
	ev := event{kind: eventAppRequest, appRequest: appRequestKeyUpdate, keyUpdateReq: requestPeerUpdate}
	var actions []action
	var err *Error
	if c.role == RoleClient {
		actions, err = c.client.next(ev)
	} else {
		actions, err = c.server.next(ev)
	}
	if err != nil {
		return c.fail(err)
	}
	return c.apply(actions)
}

// PostHandshakeAuthRequest drives the server-initiated TLS 1.3
// post-handshake client-authentication request (spec §4.7).
func (c *Conn) PostHandshakeAuthRequest() *Error {
	if c.role != RoleServer {
		return newError(ErrKindInternal, "", "", nil)
	}
	actions, err := c.server.next(event{kind: eventAppRequest, appRequest: appRequestPostHandshakeAuth})
	if err != nil {
		return c.fail(err)
	}
	return c.apply(actions)
}

// Close signals a clean shutdown: close_notify out, write side closed.
func (c *Conn) Close() *Error {
	ev := event{kind: eventAppRequest, appRequest: appRequestClose}
	var actions []action
	var err *Error
	if c.role == RoleClient {
		actions, err = c.client.next(ev)
	} else {
		actions, err = c.server.next(ev)
	}
	if err != nil {
		return c.fail(err)
	}
	defer c.record.Close()
	return c.apply(actions)
}

// LastError exposes the failure that moved this Conn to StatusError, if
// any, for callers that want structured diagnostics beyond the status
// code.
func (c *Conn) LastError() *Error { return c.lastErr }

// ID is the per-connection identifier used in log correlation.
func (c *Conn) ID() uuid.UUID { return c.id }
