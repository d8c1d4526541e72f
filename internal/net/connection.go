package net

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Protocol receives the decoded messages of one connection. All callbacks run
// on the connection's read goroutine except OnClose, which runs on whichever
// goroutine closed the connection first. Implementations hand world work to
// the dispatcher instead of touching game state here.
type Protocol interface {
	// OnRecvFirstMessage gets the plaintext body of the first frame.
	OnRecvFirstMessage(body []byte)
	// OnRecvMessage gets the decrypted payload of every later frame.
	OnRecvMessage(payload []byte)
	OnClose()
}

// ConnOptions tunes per-connection limits.
type ConnOptions struct {
	OutQueueSize int
	PktPerSec    int // 0 = unlimited
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Tracer       *Tracer
}

type outFrame struct {
	payload    []byte
	cipher     *Cipher
	closeAfter bool
}

// Connection is one client transport. Network I/O runs in dedicated
// goroutines; the XTEA cipher is installed once by the handshake and read
// atomically by both loops.
type Connection struct {
	ID   uint64
	IP   string
	conn net.Conn

	cipher   atomic.Pointer[Cipher]
	protocol Protocol

	outQueue chan outFrame
	closing  atomic.Bool // SendAndClose queued; later sends are dropped

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int
	pktCount   int
	pktResetAt int64

	readTimeout  time.Duration
	writeTimeout time.Duration
	tracer       *Tracer

	log *zap.Logger
}

func NewConnection(conn net.Conn, id uint64, opts ConnOptions, log *zap.Logger) *Connection {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 256
	}
	c := &Connection{
		ID:           id,
		IP:           hostOf(conn.RemoteAddr()),
		conn:         conn,
		outQueue:     make(chan outFrame, opts.OutQueueSize),
		closeCh:      make(chan struct{}),
		pktPerSec:    opts.PktPerSec,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		tracer:       opts.Tracer,
		log:          log.With(zap.Uint64("conn", id)),
	}
	return c
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Start attaches the protocol and launches the reader and writer goroutines.
func (c *Connection) Start(p Protocol) {
	c.protocol = p
	go c.readLoop()
	go c.writeLoop()
}

// SetCipherKey enables XTEA for every frame read or queued after this call.
func (c *Connection) SetCipherKey(key [4]uint32) error {
	ci, err := NewCipher(key)
	if err != nil {
		return err
	}
	c.cipher.Store(ci)
	return nil
}

// Send queues one payload for the writer goroutine. Non-blocking: if the
// output queue is full the connection is dropped (backpressure).
func (c *Connection) Send(payload []byte) {
	if c.closed.Load() || c.closing.Load() || len(payload) == 0 {
		return
	}
	select {
	case c.outQueue <- outFrame{payload: payload, cipher: c.cipher.Load()}:
	default:
		c.log.Warn("output queue full, dropping slow connection")
		c.Close()
	}
}

// SendAndClose queues a final payload; the connection closes once it is written.
func (c *Connection) SendAndClose(payload []byte) {
	if c.closed.Load() || !c.closing.CompareAndSwap(false, true) {
		return
	}
	select {
	case c.outQueue <- outFrame{payload: payload, cipher: c.cipher.Load(), closeAfter: true}:
	default:
		c.Close()
	}
}

// Close shuts the connection down. Safe to call from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		c.conn.Close()
		if c.tracer != nil {
			if err := c.tracer.Close(); err != nil {
				c.log.Debug("trace close", zap.Error(err))
			}
		}
		if c.protocol != nil {
			c.protocol.OnClose()
		}
	})
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// readLoop reads frames, decrypts them and hands them to the protocol.
func (c *Connection) readLoop() {
	defer c.Close()

	first := true
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		body, err := ReadFrame(c.conn)
		if err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if !c.allowPacket() {
			c.log.Warn("packet rate exceeded", zap.Int("pps", c.pktCount))
			return
		}

		if first {
			first = false
			c.tracer.Record(TraceIn, body)
			c.protocol.OnRecvFirstMessage(body)
			continue
		}

		payload, err := openPayload(c.cipher.Load(), body)
		if err != nil {
			c.log.Warn("malformed frame", zap.Error(err))
			return
		}
		c.tracer.Record(TraceIn, payload)
		c.protocol.OnRecvMessage(payload)
	}
}

func (c *Connection) allowPacket() bool {
	if c.pktPerSec <= 0 {
		return true
	}
	now := time.Now().Unix()
	if now != c.pktResetAt {
		c.pktCount = 0
		c.pktResetAt = now
	}
	c.pktCount++
	return c.pktCount <= c.pktPerSec
}

// writeLoop encrypts queued payloads with the cipher captured at Send time
// and writes them as frames.
func (c *Connection) writeLoop() {
	defer c.Close()

	for {
		select {
		case f := <-c.outQueue:
			if !c.writeOne(f) || f.closeAfter {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Connection) writeOne(f outFrame) bool {
	c.log.Debug("TX",
		zap.String("op", fmt.Sprintf("0x%02X", f.payload[0])),
		zap.Int("len", len(f.payload)),
	)
	c.tracer.Record(TraceOut, f.payload)

	body := sealPayload(f.cipher, f.payload)
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := WriteFrame(c.conn, body); err != nil {
		if !c.closed.Load() {
			c.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
