package protocol

import (
	"sync/atomic"
	"time"

	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// GameSession is one game-protocol connection. Network callbacks arrive on
// the connection's read goroutine; everything touching the world or the
// output buffer runs on the dispatcher.
type GameSession struct {
	deps   *Deps
	conn   Conn
	connID uint64
	ip     string
	log    *zap.Logger

	state    atomic.Int32 // packet.SessionState
	closed   atomic.Bool
	lastRecv atomic.Int64 // unix nanos

	// dispatcher-owned
	player        *world.Player
	os            uint16
	version       uint16
	known         *knownSet
	aware         awareRange
	extendedStack bool
	out           *packet.Writer
	walk          predictiveWalk
	lastPing      time.Time
	connectEvent  uint64
	pendingPlayer uint32
}

func NewGameSession(deps *Deps, conn Conn, connID uint64, ip string) *GameSession {
	s := &GameSession{
		deps:   deps,
		conn:   conn,
		connID: connID,
		ip:     ip,
		log:    deps.Log.With(zap.Uint64("conn", connID), zap.String("ip", ip)),
		known:  newKnownSet(),
		aware: awareRange{
			width:  deps.Config.Game.AwareRangeDefaultW,
			height: deps.Config.Game.AwareRangeDefaultH,
		},
		out: packet.NewWriter(),
	}
	s.state.Store(int32(packet.StateConnecting))
	s.lastRecv.Store(deps.Now().UnixNano())
	return s
}

func (s *GameSession) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *GameSession) setState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Player is the attached player, or nil. Dispatcher only.
func (s *GameSession) Player() *world.Player { return s.player }

// OnRecvMessage queues the packet for the dispatcher. Look requests expire
// when the dispatcher falls behind.
func (s *GameSession) OnRecvMessage(payload []byte) {
	s.lastRecv.Store(s.deps.Now().UnixNano())
	if len(payload) == 0 || s.closed.Load() {
		return
	}
	buf := append([]byte(nil), payload...)
	run := func() { s.parsePacket(buf) }
	if ttl := s.deps.Handlers.Expiry(buf[0]); ttl > 0 {
		s.deps.Dispatcher.AddTaskWithExpiry(ttl, run)
		return
	}
	s.deps.Dispatcher.AddTask(run)
}

// parsePacket decodes and handles one packet on the dispatcher. Dead or
// removed players may only log out or answer pings. Reading past the end
// of the packet is fatal.
func (s *GameSession) parsePacket(buf []byte) {
	p := s.player
	if s.closed.Load() || p == nil {
		return
	}
	if (p.IsDead() || p.Removed()) && !s.deps.Handlers.AllowedWhileDead(buf[0]) {
		return
	}
	r := packet.NewReader(buf)
	err := s.deps.Handlers.Dispatch(s, s.State(), r)
	if err != nil || r.Overrun() {
		s.log.Warn("bad packet, disconnecting",
			zap.Uint8("opcode", buf[0]),
			zap.Bool("overrun", r.Overrun()),
			zap.Error(err),
		)
		s.conn.Close()
	}
}

// OnClose detaches the player on the dispatcher. The player stays in the
// world when it may not leave yet.
func (s *GameSession) OnClose() {
	if s.closed.Swap(true) {
		return
	}
	s.setState(packet.StateClosed)
	s.deps.Dispatcher.AddTask(func() {
		s.deps.Sessions.remove(s)
		g := s.deps.Game
		if s.connectEvent != 0 {
			s.deps.Scheduler.StopEvent(s.connectEvent)
			s.connectEvent = 0
			if p := g.Players.PlayerByID(s.pendingPlayer); p != nil {
				p.Connecting = false
			}
		}
		if p := s.player; p != nil && p.Client == world.Client(s) {
			g.Disconnected(p)
		}
		s.player = nil
	})
}

// write queues a packet into the output buffer, flushing first when full.
func (s *GameSession) write(w *packet.Writer) {
	if w.Dropped() {
		s.log.Warn("outbound packet truncated", zap.Uint8("opcode", w.Bytes()[0]))
	}
	if !s.out.Append(w) {
		s.Flush()
		s.out.Append(w)
	}
}

// Flush sends whatever the dispatcher buffered this tick.
func (s *GameSession) Flush() {
	if s.out.Len() == 0 {
		return
	}
	if !s.closed.Load() {
		s.conn.Send(s.out.Bytes())
	}
	s.out = packet.NewWriter()
}

// closeAfterFlush sends the buffered output and then closes.
func (s *GameSession) closeAfterFlush() {
	if s.out.Len() == 0 {
		s.conn.Close()
		return
	}
	payload := s.out.Bytes()
	s.out = packet.NewWriter()
	s.conn.SendAndClose(payload)
}

// disconnectClient sends a reason and closes. Safe from any goroutine as
// it bypasses the output buffer.
func (s *GameSession) disconnectClient(msg string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_DISCONNECT)
	w.WriteS(msg)
	s.conn.SendAndClose(w.Bytes())
}

// KeepAlive pings the client every interval and drops it after idle
// silence. Dispatcher only.
func (s *GameSession) KeepAlive(now time.Time, interval, idle time.Duration) {
	if s.closed.Load() || s.player == nil {
		return
	}
	if idle > 0 && now.Sub(time.Unix(0, s.lastRecv.Load())) >= idle {
		s.log.Info("idle timeout", zap.String("player", s.player.Name()))
		s.conn.Close()
		return
	}
	if interval > 0 && now.Sub(s.lastPing) >= interval {
		s.lastPing = now
		s.write(packet.NewWriterWithOpcode(packet.S_OPCODE_PING))
	}
}

// attach makes s the client of p.
func (s *GameSession) attach(p *world.Player) {
	s.player = p
	p.Client = s
	s.extendedStack = false
	for _, os := range s.deps.Config.Network.ExtendedStackOSes {
		if int(s.os) == os {
			s.extendedStack = true
		}
	}
}

func (s *GameSession) detach() {
	if s.player != nil && s.player.Client == world.Client(s) {
		s.player.Client = nil
	}
	s.player = nil
}

// Logout closes the connection on behalf of the game. The player is not
// removed here.
func (s *GameSession) Logout(displayEffect, forced bool) {
	s.detach()
	s.closeAfterFlush()
}
