package tls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// TestLogStateTransition_RecordsFromAndToAtDebug_001 checks the
// transition logger names both endpoints at debug level.
func TestLogStateTransition_RecordsFromAndToAtDebug_001(t *testing.T) {
	// Arrange
	log, logs := observedLogger()

	// Act
	logStateTransition(log, "conn-1", stateIdle, stateRecvSH)

	// Assert
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "conn-1", entry.ContextMap()["conn"])
	assert.Equal(t, stateIdle.String(), entry.ContextMap()["from"])
	assert.Equal(t, stateRecvSH.String(), entry.ContextMap()["to"])
}

// TestLogNegotiated_RecordsParametersAtInfo_002 checks the negotiated-
// parameters logger surfaces version/suite/resumed at info level.
func TestLogNegotiated_RecordsParametersAtInfo_002(t *testing.T) {
	// Arrange
	log, logs := observedLogger()

	// Act
	logNegotiated(log, "conn-2", VersionTLS13, uint16(TLS_AES_128_GCM_SHA256), true)

	// Assert
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "conn-2", entry.ContextMap()["conn"])
	assert.Equal(t, true, entry.ContextMap()["resumed"])
}

// TestLogNonFatalAlert_RecordsAtWarn_003 checks the non-fatal-alert
// logger fires at warn level with the alert's wire name.
func TestLogNonFatalAlert_RecordsAtWarn_003(t *testing.T) {
	// Arrange
	log, logs := observedLogger()

	// Act
	logNonFatalAlert(log, "conn-3", AlertUserCanceled)

	// Assert
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "user_canceled", entry.ContextMap()["alert"])
}
