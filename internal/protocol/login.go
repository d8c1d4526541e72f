package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/otgo/server/internal/admission"
	"github.com/otgo/server/internal/game"
	otnet "github.com/otgo/server/internal/net"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/persist"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// Player-facing login failures.
const (
	msgInvalidCredentials = "Account name or password is not correct."
	msgNoAccountName      = "You must enter your account name."
	msgCharacterMissing   = "Your character could not be loaded."
	msgNamelocked         = "Your character has been namelocked."
	msgInternalError      = "Internal error, please try again later."
	msgStartingUp         = "Gameworld is starting up. Please wait."
	msgShuttingDown       = "Gameworld is shutting down. Please reconnect in a few minutes."
	msgServerClosed       = "Server is currently closed.\nPlease try again later."
	msgOneCharacter       = "You may only login with one character\nof your account at the same time."
	msgAlreadyLoggedIn    = "You are already logged in."
)

// handshake is the plaintext both protocols share at the start of the
// first message.
type handshake struct {
	os      uint16
	version uint16
	key     [4]uint32
	rsa     *packet.Reader
}

// readHandshake parses os, version and the RSA block and installs the
// session cipher. A nil result means the connection should just be closed.
func readHandshake(deps *Deps, conn Conn, body []byte, log *zap.Logger) *handshake {
	r := packet.NewReader(body)
	h := &handshake{os: r.ReadH(), version: r.ReadH()}
	r.Skip(12)
	block := r.ReadBytes(deps.Key.Size())
	if r.Overrun() {
		log.Debug("short first message")
		return nil
	}
	plain, err := otnet.DecryptRSABlock(deps.Key, block)
	if err != nil || plain[0] != 0 {
		log.Debug("bad rsa block", zap.Error(err))
		return nil
	}
	h.rsa = packet.NewReader(plain[1:])
	for i := range h.key {
		h.key[i] = h.rsa.ReadD()
	}
	if err := conn.SetCipherKey(h.key); err != nil {
		log.Warn("set cipher key", zap.Error(err))
		return nil
	}
	return h
}

// versionError returns the rejection text for an unsupported version, or "".
func versionError(version uint16, lo, hi int) string {
	if int(version) >= lo && int(version) <= hi {
		return ""
	}
	if lo == hi {
		return fmt.Sprintf("Only clients with protocol %s allowed!", formatVersion(lo))
	}
	return fmt.Sprintf("Only clients with protocol %s-%s allowed!", formatVersion(lo), formatVersion(hi))
}

func formatVersion(v int) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

// OnRecvFirstMessage runs the authentication half of the login on the
// read goroutine, then hands the world half to the dispatcher.
func (s *GameSession) OnRecvFirstMessage(body []byte) {
	s.setState(packet.StateAuthenticating)
	h := readHandshake(s.deps, s.conn, body, s.log)
	if h == nil {
		s.conn.Close()
		return
	}
	s.os, s.version = h.os, h.version

	h.rsa.ReadC() // gamemaster flag, granted by account type instead
	accountName := h.rsa.ReadS()
	characterName := h.rsa.ReadS()
	password := h.rsa.ReadS()
	if h.rsa.Overrun() {
		s.conn.Close()
		return
	}

	cfg := s.deps.Config
	if msg := versionError(h.version, cfg.Network.ClientVersionMin, cfg.Network.ClientVersionMax); msg != "" {
		s.disconnectClient(msg)
		return
	}
	if accountName == "" {
		s.disconnectClient(msgNoAccountName)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Network.AuthTimeout)
	defer cancel()

	data, acc, msg := s.authenticate(ctx, accountName, characterName, password)
	if msg != "" {
		s.disconnectClient(msg)
		return
	}
	s.deps.Dispatcher.AddTask(func() { s.login(data, acc) })
}

// authenticate checks bans and credentials and loads the character. A
// non-empty message is the reason shown to the client.
func (s *GameSession) authenticate(ctx context.Context, accountName, characterName, password string) (*world.PlayerData, *persist.Account, string) {
	now := s.deps.Now()
	ban, err := s.deps.Bans.IPBan(ctx, s.ip)
	if err != nil {
		s.log.Error("ip ban lookup", zap.Error(err))
		return nil, nil, msgInternalError
	}
	if ban.Active(now) {
		return nil, nil, banMessage("Your IP has", ban)
	}

	acc, err := s.deps.Accounts.Authenticate(ctx, accountName, password)
	if errors.Is(err, persist.ErrInvalidCredentials) {
		return nil, nil, msgInvalidCredentials
	}
	if err != nil {
		s.log.Error("authenticate", zap.String("account", accountName), zap.Error(err))
		return nil, nil, msgInternalError
	}

	data, err := s.deps.Players.LoadByName(ctx, acc.ID, characterName)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, nil, msgCharacterMissing
	}
	if err != nil {
		s.log.Error("load player", zap.String("name", characterName), zap.Error(err))
		return nil, nil, msgInternalError
	}
	locked, err := s.deps.Bans.IsNamelocked(ctx, data.GUID)
	if err != nil {
		s.log.Error("namelock lookup", zap.Error(err))
		return nil, nil, msgInternalError
	}
	if locked {
		return nil, nil, msgNamelocked
	}

	if data.Flags&world.FlagCannotBeBanned == 0 {
		ban, err := s.deps.Bans.AccountBan(ctx, acc.ID)
		if err != nil {
			s.log.Error("account ban lookup", zap.Error(err))
			return nil, nil, msgInternalError
		}
		if ban.Active(now) {
			return nil, nil, banMessage("Your account has", ban)
		}
	}

	data.AccountType = acc.Type
	data.PremiumDays = acc.PremiumDays(now)
	return data, acc, ""
}

// banMessage formats an account or IP ban for the client.
func banMessage(subject string, b *persist.Ban) string {
	reason := b.Reason
	if reason == "" {
		reason = "(none)"
	}
	if b.ExpiresAt == nil {
		return fmt.Sprintf("%s been permanently banned by %s.\n\nReason specified:\n%s", subject, b.BannedBy, reason)
	}
	return fmt.Sprintf("%s been banned until %s by %s.\n\nReason specified:\n%s",
		subject, b.ExpiresAt.Format("02 Jan 2006"), b.BannedBy, reason)
}

// login is the dispatcher half: game state, duplicate handling, the
// waiting list and world placement.
func (s *GameSession) login(data *world.PlayerData, acc *persist.Account) {
	if s.closed.Load() {
		return
	}
	g := s.deps.Game
	cfg := s.deps.Config.Game
	privileged := data.Flags&world.FlagCanAlwaysLogin != 0 || acc.Type >= world.AccountGamemaster

	switch g.State() {
	case game.StateStartup:
		s.disconnectClient(msgStartingUp)
		return
	case game.StateClosing, game.StateShutdown:
		s.disconnectClient(msgShuttingDown)
		return
	case game.StateClosed:
		if !privileged {
			s.disconnectClient(msgServerClosed)
			return
		}
	}

	found := g.Players.PlayerByName(data.Name)
	if found != nil && !cfg.AllowClones {
		s.takeOver(found)
		return
	}

	if cfg.OnePlayerPerAccount && !privileged && len(g.Players.PlayersByAccount(acc.ID)) > 0 {
		s.disconnectClient(msgOneCharacter)
		return
	}

	p := world.NewPlayer(*data)
	slot := s.deps.Admission.Admit(admission.Candidate{
		PlayerID:   data.GUID,
		Premium:    p.IsPremium(cfg.FreePremium),
		Privileged: privileged,
	}, g.PlayersOnline())
	if slot > 0 {
		s.setState(packet.StateQueued)
		s.sendWaitList(slot)
		return
	}

	s.setState(packet.StateAdmitted)
	p.OperatingSystem = s.os
	s.attach(p)
	if err := g.PlacePlayer(p, s.connID); err != nil {
		s.detach()
		s.log.Info("login refused", zap.String("player", data.Name), zap.Error(err))
		s.disconnectClient(err.Error())
		return
	}
	s.enterPlaying()
}

func (s *GameSession) enterPlaying() {
	s.setState(packet.StatePlaying)
	s.deps.Sessions.add(s)
	s.lastPing = s.deps.Now()
}

// takeOver handles a login for a character that is already online. With
// replace-on-login the old client is kicked and the new one takes the
// player over after a short delay, on the dispatcher.
func (s *GameSession) takeOver(found *world.Player) {
	if found.Connecting || !s.deps.Config.Game.ReplaceKickOnLogin {
		s.disconnectClient(msgAlreadyLoggedIn)
		return
	}
	if found.Client == nil {
		s.connect(found.ID())
		return
	}
	old := found.Client
	found.Client = nil
	found.Connecting = true
	old.Logout(false, true)

	id := found.ID()
	s.pendingPlayer = id
	s.connectEvent = s.deps.Scheduler.AddEvent(s.deps.Config.Game.ReconnectDelay, func() {
		s.connect(id)
	})
}

// connect attaches s to an online player.
func (s *GameSession) connect(playerID uint32) {
	s.connectEvent = 0
	g := s.deps.Game
	p := g.Players.PlayerByID(playerID)
	if p == nil || p.Client != nil {
		s.disconnectClient(msgAlreadyLoggedIn)
		return
	}
	p.Connecting = false
	if s.closed.Load() {
		return
	}
	p.OperatingSystem = s.os
	s.known.reset()
	s.attach(p)
	pos := p.Position()
	stackPos := 0
	if t := g.Map.Tile(pos); t != nil {
		stackPos = t.StackPosOfCreature(p, p)
	}
	s.SendAddCreature(p, pos, stackPos, false)
	s.enterPlaying()
	s.log.Info("player reconnected", zap.String("player", p.Name()))
}

// sendWaitList tells a queued client its place and when to retry.
func (s *GameSession) sendWaitList(slot int) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WAIT_LIST)
	w.WriteS(fmt.Sprintf("Too many players online.\nYou are at place %d on the waiting list.", slot))
	w.WriteC(byte(admission.RetryDelay(slot)))
	s.conn.SendAndClose(w.Bytes())
}
