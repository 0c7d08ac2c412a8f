package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wildcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// Dispatcher routes a decrypted payload to the handler registered for its
// opcode. internal/router implements this; the interface lives here (not
// there) so Connection can call into dispatch without internal/net
// importing internal/router, which itself needs Connection as its session
// type (spec.md §4.1's handshake state machine and §6's handler wiring
// otherwise form an import cycle).
type Dispatcher interface {
	Dispatch(conn *Connection, state packet.SessionState, payload []byte) error
}

// DisconnectHandler is an optional capability of a Dispatcher: if the
// Dispatcher passed to NewServer also implements this, Server notifies it
// once a Connection has fully closed (spec.md §4.1 "Socket close triggers
// a logout message to WorldDirectory which despawns any bound entity").
// A plain type assertion keeps this optional rather than widening
// Dispatcher itself, the same way Go's io.ReaderFrom is an optional
// capability of a Writer.
type DisconnectHandler interface {
	HandleDisconnect(conn *Connection)
}

// rateLimiter is a fixed-window packets/sec counter. spec.md's Supplemented
// Features call for per-connection rate limiting on login attempts and
// packets/sec; the teacher's own RateLimitConfig (cmd/l1jgo/main.go) never
// pulls in a third-party limiter, so this is a small hand-rolled window
// counter rather than an unlisted dependency.
type rateLimiter struct {
	limit      int // 0 disables the limiter
	windowSecs int64
	count      int
}

func (rl *rateLimiter) allow(now time.Time) bool {
	if rl.limit <= 0 {
		return true
	}
	sec := now.Unix()
	if sec != rl.windowSecs {
		rl.windowSecs = sec
		rl.count = 0
	}
	rl.count++
	return rl.count <= rl.limit
}

// Connection is a single client's TCP peer, replacing the teacher's
// Session. Each Connection owns its own cipher state and outbound queue
// exclusively (spec.md §3 "Connection ... owns the socket, the cipher
// state, and the outbound queue"); no other goroutine ever touches them.
type Connection struct {
	TraceID uuid.UUID
	conn    net.Conn

	cipher   *Cipher
	cipherMu sync.Mutex // guards installing a new key mid-handshake
	writeMu  sync.Mutex // serializes actual socket writes across writeLoop and SendAndClose
	state    atomic.Int32

	out chan []byte // outbound frames, encrypted just before write

	AccountID       int64
	CharGUID        uint64
	CharAccessLevel int16

	// PendingChallenge and PendingAccountID bridge the two-stage SRP6
	// handshake (spec.md §4.1): set by the ClientHelloAuth handler, read
	// and cleared by the ClientProof handler. Opaque `any` here to avoid
	// internal/net importing internal/net/srp6 for a single field type —
	// internal/router, which owns both, does the type assertion.
	PendingChallenge any
	PendingAccountID int64

	dispatcher Dispatcher
	pktLimiter rateLimiter

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration

	log *zap.Logger
}

// NewConnection wraps an accepted TCP connection. The cipher is nil until
// the unauth handshake installs the auth key (spec.md §4.1's unauth phase
// frames travel under FlagPlaintext until then).
func NewConnection(conn net.Conn, dispatcher Dispatcher, outSize int, pktPerSec int, readTimeout, writeTimeout time.Duration, log *zap.Logger) *Connection {
	id := uuid.New()
	c := &Connection{
		TraceID:      id,
		conn:         conn,
		out:          make(chan []byte, outSize),
		dispatcher:   dispatcher,
		pktLimiter:   rateLimiter{limit: pktPerSec},
		closeCh:      make(chan struct{}),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		log:          log.With(zap.String("conn", id.String())),
	}
	c.state.Store(int32(packet.StateUnauth))
	return c
}

func (c *Connection) State() packet.SessionState {
	return packet.SessionState(c.state.Load())
}

func (c *Connection) SetState(st packet.SessionState) {
	c.state.Store(int32(st))
}

func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// InstallCipher swaps in a freshly derived key, used at the auth→world
// transition (spec.md §4.1's world-key re-derivation from the SRP6
// session key) as well as at the very start of the handshake (auth key).
func (c *Connection) InstallCipher(key [16]byte) {
	c.cipherMu.Lock()
	defer c.cipherMu.Unlock()
	c.cipher = NewCipher(key)
}

// Start launches the reader and writer goroutines. Call after the
// connection's initial plaintext greeting (if any) has been written.
func (c *Connection) Start() {
	go c.readLoop()
	go c.writeLoop()
}

// Send queues an already-built packet (opcode + body, unencrypted) for
// sending. Non-blocking: a full outbound queue means a Connection too slow
// to drain its own writes, and spec.md §4.5 "Backpressure" calls for
// closing it rather than growing memory without bound or blocking the
// sender.
func (c *Connection) Send(data []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.out <- data:
	default:
		c.log.Warn("outbound queue full, closing slow connection")
		c.Close()
	}
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.SetState(packet.StateDisconnecting)
		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

func (c *Connection) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}

		flags, payload, err := ReadFrame(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.log.Debug("frame read error", zap.Error(err))
			}
			return
		}

		if !c.pktLimiter.allow(time.Now()) {
			c.log.Warn("packets/sec limit exceeded, closing connection")
			return
		}

		var decrypted []byte
		if flags&FlagPlaintext != 0 || c.cipher == nil {
			decrypted = payload
		} else {
			c.cipherMu.Lock()
			decrypted = c.cipher.Decrypt(payload)
			c.cipherMu.Unlock()
		}

		if err := c.dispatcher.Dispatch(c, c.State(), decrypted); err != nil {
			c.log.Debug("dispatch error, closing connection",
				zap.Error(err),
				zap.String("state", c.State().String()),
			)
			return
		}
	}
}

func (c *Connection) writeLoop() {
	defer c.Close()

	for {
		select {
		case data := <-c.out:
			if err := c.writeFrame(data); err != nil {
				if !c.closed.Load() {
					c.log.Debug("frame write error", zap.Error(err))
				}
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// writeFrame encrypts (if a key is installed) and writes one frame to the
// socket, serialized against any other writer via writeMu so SendAndClose
// can share the connection without corrupting the byte stream.
func (c *Connection) writeFrame(data []byte) error {
	var flags Flags
	var framed []byte
	c.cipherMu.Lock()
	if c.cipher == nil {
		flags = FlagPlaintext
		framed = data
	} else {
		encrypted := make([]byte, len(data))
		copy(encrypted, data)
		framed = c.cipher.Encrypt(encrypted)
	}
	c.cipherMu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return WriteFrame(c.conn, flags, framed)
}

// SendAndClose writes data synchronously, then closes the connection.
// Queuing through Send and immediately calling Close races writeLoop's
// select — closeCh and the just-queued frame can both become ready at
// once, and Go picks between them at random, occasionally dropping the
// final frame (spec.md §7 "Authentication failures ... send ServerAuthFail
// ... then close" requires the frame actually reach the client first).
func (c *Connection) SendAndClose(data []byte) {
	if c.closed.Load() {
		return
	}
	if err := c.writeFrame(data); err != nil {
		c.log.Debug("frame write error before close", zap.Error(err))
	}
	c.Close()
}

// DecryptEnvelope decrypts an inner packet carried inside an encrypted-
// envelope frame (spec.md §6 opcode 0x0077), using whatever key is
// currently installed. Errors if no key has been installed yet — an
// envelope arriving before the handshake is a protocol violation (spec.md
// §6 "An encrypted envelope arriving before a key is installed closes the
// connection").
func (c *Connection) DecryptEnvelope(data []byte) ([]byte, error) {
	c.cipherMu.Lock()
	defer c.cipherMu.Unlock()
	if c.cipher == nil {
		return nil, fmt.Errorf("no cipher key installed")
	}
	return c.cipher.Decrypt(data), nil
}

// WritePlaintext writes a single frame directly, bypassing the outbound
// queue and cipher, for a frame sent before any cipher key exists. No code
// in this module calls it.
func (c *Connection) WritePlaintext(data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := WriteFrame(c.conn, FlagPlaintext, data); err != nil {
		return fmt.Errorf("write plaintext greeting: %w", err)
	}
	return nil
}
