// Package recordlayer is the default tls.RecordLayer: TLS/TLCP framing
// over a net.Conn stream, grounded on the teacher's halfConn design
// (prepareCipherSpec/changeCipherSpec/incSeq), and a DTLS PacketConn
// variant with epoch/sequence bookkeeping in dtls.go.
package recordlayer

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/tlhc/openhitls/tls"
)

const (
	contentTypeChangeCipherSpec = 20
	contentTypeAlert            = 21
	contentTypeHandshake        = 22
	contentTypeApplicationData  = 23

	recordHeaderLen = 5
	maxRecordLen    = 1 << 14
)

// AEADFactory builds a tls.AEAD for a negotiated suite+key, the shape
// tls.CryptoProvider.NewAEAD already has; kept as its own type here so
// the record layer only depends on that one method, not the full
// CryptoProvider surface.
type AEADFactory func(suiteID uint16, key []byte) (tls.AEAD, error)

// peerAlertError wraps an alert record received while waiting on a
// handshake message, so the caller can distinguish "peer aborted" from
// a transport-level read failure.
type peerAlertError struct {
	level       byte
	description tls.AlertDescription
}

func (e peerAlertError) Error() string {
	return "recordlayer: peer alert " + e.description.String()
}

// halfConn is one direction's record-protection state, mirroring the
// teacher's halfConn: a cipher (here, an AEAD) plus the sequence number
// it feeds into nonce construction (RFC 8446 §5.3).
type halfConn struct {
	aead tls.AEAD
	iv   []byte
	seq  uint64
}

func (hc *halfConn) nonce() []byte {
	nonce := make([]byte, len(hc.iv))
	copy(nonce, hc.iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], hc.seq)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-8+i] ^= seqBytes[i]
	}
	return nonce
}

func (hc *halfConn) incSeq() { hc.seq++ }

// StreamConn implements tls.RecordLayer over a net.Conn, for TLS and
// TLCP (both byte-stream protocols; DTLS instead uses PacketConn, see
// dtls.go in this package).
type StreamConn struct {
	mu   sync.Mutex
	conn net.Conn
	aeads AEADFactory

	in, out halfConn

	buf      []byte // decrypted handshake-layer bytes not yet consumed
	readBuf  [maxRecordLen + recordHeaderLen]byte
}

// NewStreamConn wraps conn for TLS/TLCP record framing. aeads builds
// the negotiated AEAD from a trafficKeyInstall's raw key bytes once
// SetReadKey/SetWriteKey install one.
func NewStreamConn(conn net.Conn, aeads AEADFactory) *StreamConn {
	return &StreamConn{conn: conn, aeads: aeads}
}

// Send implements tls.RecordLayer: wrap one handshake message (its
// 1-byte type + 3-byte length + body, exactly as tls.packMessage
// produces) in one or more handshake-content-type records, encrypting
// under the current write key if one is installed.
func (s *StreamConn) Send(msgType uint8, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var header [4]byte
	header[0] = msgType
	header[1] = byte(len(body) >> 16)
	header[2] = byte(len(body) >> 8)
	header[3] = byte(len(body))
	plaintext := append(header[:], body...)

	for len(plaintext) > 0 {
		chunk := plaintext
		if len(chunk) > maxRecordLen {
			chunk = chunk[:maxRecordLen]
		}
		if err := s.writeRecord(contentTypeHandshake, chunk); err != nil {
			return err
		}
		plaintext = plaintext[len(chunk):]
	}
	return nil
}

func (s *StreamConn) writeRecord(contentType uint8, payload []byte) error {
	if s.out.aead != nil {
		nonce := s.out.nonce()
		sealed := s.out.aead.Seal(nil, nonce, append(payload, contentType), nil)
		s.out.incSeq()
		return s.writeRawRecord(contentTypeApplicationData, sealed)
	}
	return s.writeRawRecord(contentType, payload)
}

func (s *StreamConn) writeRawRecord(contentType uint8, payload []byte) error {
	var header [recordHeaderLen]byte
	header[0] = contentType
	header[1], header[2] = 0x03, 0x03 // legacy_record_version, TLS 1.2 wire value
	binary.BigEndian.PutUint16(header[3:5], uint16(len(payload)))
	if _, err := s.conn.Write(header[:]); err != nil {
		return err
	}
	_, err := s.conn.Write(payload)
	return err
}

// Recv implements tls.RecordLayer: pull handshake-layer bytes from as
// many records as needed and pop exactly one framed message.
func (s *StreamConn) Recv() (uint8, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if msgType, body, ok := s.popMessage(); ok {
			return msgType, body, nil
		}
		contentType, payload, err := s.readRecord()
		if err != nil {
			return 0, nil, err
		}
		switch contentType {
		case contentTypeHandshake:
			s.buf = append(s.buf, payload...)
		case contentTypeAlert:
			if len(payload) == 2 {
				return 0, nil, peerAlertError{level: payload[0], description: tls.AlertDescription(payload[1])}
			}
		case contentTypeChangeCipherSpec, contentTypeApplicationData:
			// Callers drive CCS/application data through ReadCCS and a
			// separate application-data path; a stray one here while
			// waiting on a handshake message is a protocol violation
			// the state machine will reject once surfaced.
		}
	}
}

func (s *StreamConn) popMessage() (uint8, []byte, bool) {
	if len(s.buf) < 4 {
		return 0, nil, false
	}
	length := int(s.buf[1])<<16 | int(s.buf[2])<<8 | int(s.buf[3])
	if len(s.buf) < 4+length {
		return 0, nil, false
	}
	msgType := s.buf[0]
	body := append([]byte{}, s.buf[4:4+length]...)
	s.buf = s.buf[4+length:]
	return msgType, body, true
}

// readRecord reads and, if a read key is installed, decrypts exactly
// one TLS record, returning its inner content type and plaintext.
func (s *StreamConn) readRecord() (uint8, []byte, error) {
	if _, err := io.ReadFull(s.conn, s.readBuf[:recordHeaderLen]); err != nil {
		return 0, nil, err
	}
	contentType := s.readBuf[0]
	length := binary.BigEndian.Uint16(s.readBuf[3:5])
	if int(length) > maxRecordLen+256 {
		return 0, nil, errors.New("recordlayer: oversized record")
	}
	payload := s.readBuf[recordHeaderLen : recordHeaderLen+int(length)]
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return 0, nil, err
	}
	if s.in.aead == nil {
		return contentType, append([]byte{}, payload...), nil
	}
	nonce := s.in.nonce()
	opened, err := s.in.aead.Open(nil, nonce, payload, nil)
	if err != nil {
		return 0, nil, err
	}
	s.in.incSeq()
	// TLS 1.3 inner plaintext: real content type is the last non-zero
	// byte (RFC 8446 §5.4); padding is all-zero bytes after it.
	i := len(opened) - 1
	for i >= 0 && opened[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, errors.New("recordlayer: empty inner plaintext")
	}
	return opened[i], opened[:i], nil
}

func (s *StreamConn) SetReadKey(k *tls.TrafficKeyInstall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	aead, err := s.aeads(k.SuiteID, k.Key)
	if err != nil {
		return err
	}
	s.in = halfConn{aead: aead, iv: k.IV}
	return nil
}

func (s *StreamConn) SetWriteKey(k *tls.TrafficKeyInstall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	aead, err := s.aeads(k.SuiteID, k.Key)
	if err != nil {
		return err
	}
	s.out = halfConn{aead: aead, iv: k.IV}
	return nil
}

// ReadCCS/WriteCCS implement the <=1.2 middlebox-compatible
// change_cipher_spec signal, a one-byte record on its own content type
// rather than a handshake message.
func (s *StreamConn) ReadCCS() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contentType, _, err := s.readRecord()
	if err != nil {
		return err
	}
	if contentType != contentTypeChangeCipherSpec {
		return errors.New("recordlayer: expected change_cipher_spec")
	}
	return nil
}

func (s *StreamConn) WriteCCS() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRawRecord(contentTypeChangeCipherSpec, []byte{1})
}

func (s *StreamConn) SendAlert(desc tls.AlertDescription, fatal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	level := byte(1)
	if fatal {
		level = 2
	}
	return s.writeRecord(contentTypeAlert, []byte{level, byte(desc)})
}

func (s *StreamConn) Flush() error { return nil }

func (s *StreamConn) Close() error { return s.conn.Close() }
