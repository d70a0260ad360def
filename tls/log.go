package tls

import "go.uber.org/zap"

// logStateTransition records a state-machine transition at debug level;
// handshakes are chatty enough that this stays below Info.
func logStateTransition(log *zap.Logger, connID string, from, to handshakeState) {
	log.Debug("state transition",
		zap.String("conn", connID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// logNegotiated records the parameters a handshake settled on, once
// ServerHello/EncryptedExtensions have been processed.
func logNegotiated(log *zap.Logger, connID string, version uint16, cipherSuite uint16, resumed bool) {
	log.Info("negotiated parameters",
		zap.String("conn", connID),
		zap.Uint16("version", version),
		zap.Uint16("cipher_suite", cipherSuite),
		zap.Bool("resumed", resumed),
	)
}

// logNonFatalAlert records an alert that did not move the connection to
// the sink state (e.g. a peer's user_canceled on close).
func logNonFatalAlert(log *zap.Logger, connID string, alert AlertDescription) {
	log.Warn("non-fatal alert received", zap.String("conn", connID), zap.String("alert", alert.String()))
}
