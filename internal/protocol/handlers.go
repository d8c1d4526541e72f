package protocol

import (
	"unicode/utf8"

	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/world"
)

// maxSayLength is the longest text the client may send in one statement.
const maxSayLength = 255

// clientDirections maps auto-walk path bytes to directions.
var clientDirections = [...]geo.Direction{
	1: geo.East, 2: geo.NorthEast, 3: geo.North, 4: geo.NorthWest,
	5: geo.West, 6: geo.SouthWest, 7: geo.South, 8: geo.SouthEast,
}

// RegisterAll installs every game-protocol handler.
func RegisterAll(reg *packet.Registry[*GameSession], deps *Deps) {
	playing := []packet.SessionState{packet.StatePlaying}

	reg.Register(packet.C_OPCODE_LOGOUT, playing, HandleLogout, packet.AllowWhileDead())
	reg.Register(packet.C_OPCODE_PING, playing, HandlePing)
	reg.Register(packet.C_OPCODE_PING_BACK, playing, func(*GameSession, *packet.Reader) {}, packet.AllowWhileDead())
	reg.Register(packet.C_OPCODE_AWARE_RANGE, playing, HandleAwareRange)

	// Movement
	reg.Register(packet.C_OPCODE_PREDICTIVE_WALK, playing, HandlePredictiveWalk)
	reg.Register(packet.C_OPCODE_AUTO_WALK, playing, HandleAutoWalk)
	reg.Register(packet.C_OPCODE_STOP_AUTO_WALK, playing, func(sess *GameSession, r *packet.Reader) {
		sess.deps.Game.PlayerStopAutoWalk(sess.player)
	})
	steps := map[byte]geo.Direction{
		packet.C_OPCODE_MOVE_NORTH:     geo.North,
		packet.C_OPCODE_MOVE_EAST:      geo.East,
		packet.C_OPCODE_MOVE_SOUTH:     geo.South,
		packet.C_OPCODE_MOVE_WEST:      geo.West,
		packet.C_OPCODE_MOVE_NORTHEAST: geo.NorthEast,
		packet.C_OPCODE_MOVE_SOUTHEAST: geo.SouthEast,
		packet.C_OPCODE_MOVE_SOUTHWEST: geo.SouthWest,
		packet.C_OPCODE_MOVE_NORTHWEST: geo.NorthWest,
	}
	for op, dir := range steps {
		reg.Register(op, playing, func(sess *GameSession, r *packet.Reader) {
			sess.deps.Game.PlayerStopAutoWalk(sess.player)
			sess.deps.Game.PlayerMove(sess.player, dir)
		})
	}
	turns := map[byte]geo.Direction{
		packet.C_OPCODE_TURN_NORTH: geo.North,
		packet.C_OPCODE_TURN_EAST:  geo.East,
		packet.C_OPCODE_TURN_SOUTH: geo.South,
		packet.C_OPCODE_TURN_WEST:  geo.West,
	}
	for op, dir := range turns {
		reg.Register(op, playing, func(sess *GameSession, r *packet.Reader) {
			sess.deps.Game.Turn(sess.player, dir)
		})
	}

	// Items
	reg.Register(packet.C_OPCODE_THROW, playing, HandleThrow)
	reg.Register(packet.C_OPCODE_USE_ITEM, playing, HandleUseItem)
	reg.Register(packet.C_OPCODE_USE_ITEM_EX, playing, HandleUseItemEx)
	reg.Register(packet.C_OPCODE_LOOK_AT, playing, HandleLookAt, packet.WithExpiry(deps.Config.Game.LookExpiry))
	reg.Register(packet.C_OPCODE_UPDATE_TILE, playing, func(sess *GameSession, r *packet.Reader) {
		pos := r.ReadPosition()
		sess.deps.Game.UpdateTile(sess.player, pos)
	})

	// Chat and combat
	reg.Register(packet.C_OPCODE_SAY, playing, HandleSay)
	reg.Register(packet.C_OPCODE_FIGHT_MODES, playing, func(sess *GameSession, r *packet.Reader) {
		fight, chase, secure := r.ReadC(), r.ReadC(), r.ReadC()
		sess.deps.Game.SetFightModes(sess.player, fight, chase, secure)
	})
	reg.Register(packet.C_OPCODE_ATTACK, playing, func(sess *GameSession, r *packet.Reader) {
		id := r.ReadD()
		sess.deps.Game.Attack(sess.player, id)
	})
	reg.Register(packet.C_OPCODE_FOLLOW, playing, func(sess *GameSession, r *packet.Reader) {
		id := r.ReadD()
		sess.deps.Game.Follow(sess.player, id)
	})
	reg.Register(packet.C_OPCODE_CANCEL_ATTACK, playing, func(sess *GameSession, r *packet.Reader) {
		sess.deps.Game.CancelAttackAndFollow(sess.player)
	})

	// Outfit
	reg.Register(packet.C_OPCODE_REQUEST_OUTFIT, playing, func(sess *GameSession, r *packet.Reader) {
		sess.deps.Game.RequestOutfit(sess.player)
	})
	reg.Register(packet.C_OPCODE_SET_OUTFIT, playing, HandleSetOutfit)
}

// HandleLogout leaves the world when the logout rules allow it.
func HandleLogout(sess *GameSession, _ *packet.Reader) {
	p := sess.player
	if sess.deps.Game.Logout(p, true, false) {
		sess.setState(packet.StateLoggingOut)
		sess.detach()
		sess.closeAfterFlush()
	}
}

func HandlePing(sess *GameSession, _ *packet.Reader) {
	sess.write(packet.NewWriterWithOpcode(packet.S_OPCODE_PING_BACK))
}

// HandleAwareRange resizes the client's window within the configured
// bounds and resends the map.
func HandleAwareRange(sess *GameSession, r *packet.Reader) {
	width, height := int(r.ReadC()), int(r.ReadC())
	if r.Overrun() {
		return
	}
	cfg := sess.deps.Config.Game
	sess.aware = awareRange{
		width:  clampRange(width, cfg.AwareRangeMinW, cfg.AwareRangeMaxW),
		height: clampRange(height, cfg.AwareRangeMinH, cfg.AwareRangeMaxH),
	}
	sess.sendAwareRange()
}

func HandlePredictiveWalk(sess *GameSession, r *packet.Reader) {
	id := r.ReadD()
	dir := geo.Direction(r.ReadC())
	pos := r.ReadPosition()
	if r.Overrun() {
		return
	}
	sess.deps.Game.PlayerStopAutoWalk(sess.player)
	sess.predictiveStep(id, dir, pos)
}

// HandleAutoWalk starts a click-to-walk path. Unknown path bytes end the
// path early.
func HandleAutoWalk(sess *GameSession, r *packet.Reader) {
	n := int(r.ReadC())
	raw := r.ReadBytes(n)
	if r.Overrun() {
		return
	}
	path := make([]geo.Direction, 0, n)
	for _, b := range raw {
		if b == 0 || int(b) >= len(clientDirections) {
			break
		}
		path = append(path, clientDirections[b])
	}
	sess.deps.Game.PlayerAutoWalk(sess.player, path)
}

func HandleThrow(sess *GameSession, r *packet.Reader) {
	from := r.ReadPosition()
	r.ReadH() // sprite id
	stackPos := int(r.ReadC())
	to := r.ReadPosition()
	count := r.ReadC()
	if r.Overrun() {
		return
	}
	sess.deps.Game.Throw(sess.player, from, stackPos, to, count)
}

func HandleUseItem(sess *GameSession, r *packet.Reader) {
	pos := r.ReadPosition()
	r.ReadH() // sprite id
	stackPos := int(r.ReadC())
	r.ReadC() // container index
	if r.Overrun() {
		return
	}
	sess.deps.Game.UseItem(sess.player, pos, stackPos)
}

func HandleUseItemEx(sess *GameSession, r *packet.Reader) {
	from := r.ReadPosition()
	r.ReadH()
	fromStack := int(r.ReadC())
	to := r.ReadPosition()
	r.ReadH()
	r.ReadC()
	if r.Overrun() {
		return
	}
	sess.deps.Game.UseItemEx(sess.player, from, fromStack, to)
}

func HandleLookAt(sess *GameSession, r *packet.Reader) {
	pos := r.ReadPosition()
	r.ReadH()
	stackPos := int(r.ReadC())
	if r.Overrun() {
		return
	}
	sess.deps.Game.LookAt(sess.player, pos, stackPos)
}

// HandleSay accepts plain speech only; channel and private types are not
// served.
func HandleSay(sess *GameSession, r *packet.Reader) {
	speakType := r.ReadC()
	text := r.ReadS()
	if r.Overrun() || text == "" || utf8.RuneCountInString(text) > maxSayLength {
		return
	}
	switch speakType {
	case world.SpeakSay, world.SpeakWhisper, world.SpeakYell:
		sess.deps.Game.Say(sess.player, speakType, text)
	}
}

func HandleSetOutfit(sess *GameSession, r *packet.Reader) {
	o := world.Outfit{LookType: r.ReadH()}
	o.Head, o.Body, o.Legs, o.Feet = r.ReadC(), r.ReadC(), r.ReadC(), r.ReadC()
	o.Addons = r.ReadC()
	if r.Overrun() {
		return
	}
	p := sess.player
	if !p.IsStaff() && !outfitAllowed(p.Sex, o.LookType) {
		return
	}
	o.Addons = 0
	sess.deps.Game.ChangeOutfit(p, o)
}
