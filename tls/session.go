package tls

import (
	"container/list"
	"sync"
	"time"
)

// Session is the resumable state captured at handshake completion
// (spec §4.4): everything a later abbreviated handshake or ticket needs
// to reuse the established secret without re-running the full exchange.
type Session struct {
	Version            uint16
	CipherSuite        uint16
	CipherSuiteTLS13   uint16
	MasterSecret       []byte // TLS 1.3: resumption master secret
	SessionID          []byte
	SessionIDContext   []byte
	ExtendedMasterSecret bool
	ServerName         string
	PeerCertificates   [][]byte
	LifetimeHint       uint32
	CreatedAt          time.Time
	TicketAgeAdd       uint32
	AuthIdentityHash   []byte // TLS 1.3 replay-window dedup key
}

// valid reports whether s is still usable for resumption: not expired
// by its own lifetime hint, per spec §4.4 "Ticket expiry is enforced
// both by the embedded absolute timestamp and by key rotation".
func (s *Session) valid(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.LifetimeHint == 0 {
		return true
	}
	return now.Before(s.CreatedAt.Add(time.Duration(s.LifetimeHint) * time.Second))
}

// sessionStore is the stateful half of the Session Store (spec §4.4):
// a session-ID-keyed cache with LRU eviction, a size cap, and an
// absolute timeout, all operations atomic under one lock (spec §5
// "Session Store is shared and MUST be internally synchronised").
type sessionStore struct {
	mu      sync.RWMutex
	cap     int
	timeout time.Duration
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type sessionEntry struct {
	id      string
	session *Session
	touched time.Time
}

func newSessionStore(capacity int, timeout time.Duration) *sessionStore {
	return &sessionStore{
		cap:     capacity,
		timeout: timeout,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *sessionStore) insert(session *Session) string {
	id := string(session.SessionID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		c.order.MoveToFront(el)
		el.Value.(*sessionEntry).session = session
		el.Value.(*sessionEntry).touched = time.Now()
		return id
	}
	el := c.order.PushFront(&sessionEntry{id: id, session: session, touched: time.Now()})
	c.entries[id] = el
	for c.cap > 0 && c.order.Len() > c.cap {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*sessionEntry).id)
	}
	return id
}

func (c *sessionStore) lookup(id []byte) (*Session, bool) {
	key := string(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*sessionEntry)
	if c.timeout > 0 && time.Since(entry.touched) > c.timeout {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.session, true
}

func (c *sessionStore) delete(id []byte) {
	key := string(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, key)
}
