package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strconv"

	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/persist"
	"go.uber.org/zap"
)

// unlimitedPremium is shown for accounts when everyone is premium.
const unlimitedPremium = 0xFFFF

// LoginSession serves the character list. It never touches the world, so
// the whole exchange runs on the connection's read goroutine.
type LoginSession struct {
	deps *Deps
	conn Conn
	ip   string
	log  *zap.Logger
}

func NewLoginSession(deps *Deps, conn Conn, connID uint64, ip string) *LoginSession {
	return &LoginSession{
		deps: deps,
		conn: conn,
		ip:   ip,
		log:  deps.Log.With(zap.Uint64("conn", connID), zap.String("ip", ip), zap.String("protocol", "login")),
	}
}

func (s *LoginSession) OnRecvFirstMessage(body []byte) {
	h := readHandshake(s.deps, s.conn, body, s.log)
	if h == nil {
		s.conn.Close()
		return
	}
	accountName := h.rsa.ReadS()
	password := h.rsa.ReadS()
	if h.rsa.Overrun() {
		s.conn.Close()
		return
	}

	cfg := s.deps.Config
	if msg := versionError(h.version, cfg.Network.ClientVersionMin, cfg.Network.ClientVersionMax); msg != "" {
		s.fail(msg)
		return
	}
	if accountName == "" {
		s.fail(msgNoAccountName)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Network.AuthTimeout)
	defer cancel()
	payload, msg := s.characterList(ctx, accountName, password)
	if msg != "" {
		s.fail(msg)
		return
	}
	s.conn.SendAndClose(payload)
}

// OnRecvMessage ignores anything after the first message.
func (s *LoginSession) OnRecvMessage([]byte) {}

func (s *LoginSession) OnClose() {}

func (s *LoginSession) fail(msg string) {
	w := packet.NewWriterWithOpcode(packet.S_LOGIN_OPCODE_ERROR)
	w.WriteS(msg)
	s.conn.SendAndClose(w.Bytes())
}

// characterList authenticates and builds the motd and character list.
func (s *LoginSession) characterList(ctx context.Context, accountName, password string) ([]byte, string) {
	now := s.deps.Now()
	ban, err := s.deps.Bans.IPBan(ctx, s.ip)
	if err != nil {
		s.log.Error("ip ban lookup", zap.Error(err))
		return nil, msgInternalError
	}
	if ban.Active(now) {
		return nil, banMessage("Your IP has", ban)
	}

	acc, err := s.deps.Accounts.Authenticate(ctx, accountName, password)
	if errors.Is(err, persist.ErrInvalidCredentials) {
		return nil, msgInvalidCredentials
	}
	if err != nil {
		s.log.Error("authenticate", zap.String("account", accountName), zap.Error(err))
		return nil, msgInternalError
	}
	ban, err = s.deps.Bans.AccountBan(ctx, acc.ID)
	if err != nil {
		s.log.Error("account ban lookup", zap.Error(err))
		return nil, msgInternalError
	}
	if ban.Active(now) {
		return nil, banMessage("Your account has", ban)
	}

	names, err := s.deps.Accounts.CharacterNames(ctx, acc.ID)
	if err != nil {
		s.log.Error("character list", zap.Uint32("account", acc.ID), zap.Error(err))
		return nil, msgInternalError
	}

	srv := s.deps.Config.Server
	w := packet.NewWriterWithOpcode(packet.S_LOGIN_OPCODE_MOTD)
	w.WriteS("1\n" + srv.MOTD)

	w.WriteC(packet.S_LOGIN_OPCODE_CHARACTER_LIST)
	w.WriteC(byte(min(len(names), 0xFF)))
	ip := advertisedIP(srv.IP)
	port := gamePort(s.deps.Config.Network.GameBindAddress)
	for _, name := range names[:min(len(names), 0xFF)] {
		w.WriteS(name)
		w.WriteS(srv.WorldName)
		w.WriteD(ip)
		w.WriteH(port)
	}
	if s.deps.Config.Game.FreePremium {
		w.WriteH(unlimitedPremium)
	} else {
		w.WriteH(acc.PremiumDays(now))
	}
	s.log.Info("character list sent", zap.String("account", accountName), zap.Int("characters", len(names)))
	return w.Bytes(), ""
}

// advertisedIP encodes an IPv4 address the way the client reads it.
func advertisedIP(addr string) uint32 {
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(ip)
}

func gamePort(bind string) uint16 {
	_, port, err := net.SplitHostPort(bind)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}
