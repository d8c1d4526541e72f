package world

import (
	"time"

	"github.com/otgo/server/internal/geo"
)

// AccountType is the account tier. Gamemaster and above bypass the login queue.
type AccountType uint8

const (
	AccountNormal AccountType = iota + 1
	AccountTutor
	AccountSeniorTutor
	AccountGamemaster
	AccountCommunityManager
	AccountGod
)

// PlayerFlag grants special privileges.
type PlayerFlag uint64

const (
	FlagCanAlwaysLogin PlayerFlag = 1 << iota
	FlagCannotBeBanned
	FlagCanReportBugs
	FlagIgnoreProtectionZone
	FlagCanLogoutAnytime
)

// Skills, in client order.
const (
	SkillFist = iota
	SkillClub
	SkillSword
	SkillAxe
	SkillDistance
	SkillShield
	SkillFishing
	SkillCount
)

type Skill struct {
	Level   uint8
	Percent uint8
}

// Text message classes used by SendTextMessage.
const (
	MessageStatusSmall   uint8 = 0x15
	MessageInfoDesc      uint8 = 0x16
	MessageStatusDefault uint8 = 0x14
	MessageEventAdvance  uint8 = 0x13
)

// Speech classes for creature say.
const (
	SpeakSay     uint8 = 1
	SpeakWhisper uint8 = 2
	SpeakYell    uint8 = 3
)

// Magic effects used by the core.
const (
	EffectDrawBlood uint8 = 1
	EffectPoff      uint8 = 3
	EffectTeleport  uint8 = 11
)

// Client receives world events for one player. Implemented by the game
// protocol session; every call happens on the dispatcher goroutine.
type Client interface {
	// SendAddCreature announces c at pos. When c is the client's own player
	// and isLogin is set this carries the full login sequence.
	SendAddCreature(c Creature, pos geo.Position, stackPos int, isLogin bool)
	SendRemoveTileThing(pos geo.Position, stackPos int)
	SendMoveCreature(c Creature, newPos geo.Position, newStackPos int, oldPos geo.Position, oldStackPos int, teleport bool)
	SendCreatureTurn(c Creature, stackPos int)
	SendCreatureSay(c Creature, speakType uint8, text string)
	SendCreatureHealth(c Creature)
	SendCreatureOutfit(c Creature)
	SendAddTileItem(pos geo.Position, stackPos int, it *Item)
	SendUpdateTileItem(pos geo.Position, stackPos int, it *Item)
	SendUpdateTile(t *Tile)
	SendMagicEffect(pos geo.Position, effect uint8)
	SendTextMessage(class uint8, text string)
	SendCancelWalk()
	SendCancelTarget()
	SendStats()
	SendSkills()
	SendIcons(icons uint16)
	SendOutfitWindow()
	// Logout disconnects the client; displayEffect shows the poff effect.
	Logout(displayEffect, forced bool)
}

// PlayerData is the persisted part of a player.
type PlayerData struct {
	GUID           uint32
	AccountID      uint32
	Name           string
	Sex            uint8
	Level          uint16
	Experience     uint64
	Health         int32
	MaxHealth      int32
	Mana           int32
	MaxMana        int32
	MagicLevel     uint8
	Capacity       uint32
	Soul           uint8
	StaminaMinutes uint16
	Skills         [SkillCount]Skill
	Outfit         Outfit
	Direction      geo.Direction
	Speed          uint16
	Position       geo.Position // zero = never logged in
	Temple         geo.Position
	Flags          PlayerFlag
	LastLogin      time.Time
	LastLogout     time.Time
	AccountType    AccountType
	PremiumDays    uint16
}

// Player is a logged-in character. Mutated on the dispatcher only.
type Player struct {
	Body

	GUID           uint32
	AccountID      uint32
	AccountType    AccountType
	PremiumDays    uint16
	Flags          PlayerFlag
	Sex            uint8
	Level          uint16
	Experience     uint64
	Mana           int32
	MaxMana        int32
	MagicLevel     uint8
	Capacity       uint32
	Soul           uint8
	StaminaMinutes uint16
	Skills         [SkillCount]Skill
	LoginPosition  geo.Position
	TemplePosition geo.Position
	LastLogin      time.Time
	LastLogout     time.Time

	Client          Client
	OperatingSystem uint16
	Connecting      bool // a replacement connection is scheduled to take over

	FightMode    uint8
	ChaseMode    uint8
	SecureMode   uint8
	AttackTarget uint32
	FollowTarget uint32

	WalkPath  []geo.Direction
	WalkEvent uint64

	fightUntil time.Time
}

// NewPlayer builds a player from persisted data. The creature id is assigned
// by State when the player enters the world.
func NewPlayer(d PlayerData) *Player {
	p := &Player{
		Body: Body{
			name:      d.Name,
			pos:       d.Position,
			dir:       d.Direction,
			health:    d.Health,
			maxHealth: d.MaxHealth,
			outfit:    d.Outfit,
			speed:     d.Speed,
		},
		GUID:           d.GUID,
		AccountID:      d.AccountID,
		AccountType:    d.AccountType,
		PremiumDays:    d.PremiumDays,
		Flags:          d.Flags,
		Sex:            d.Sex,
		Level:          d.Level,
		Experience:     d.Experience,
		Mana:           d.Mana,
		MaxMana:        d.MaxMana,
		MagicLevel:     d.MagicLevel,
		Capacity:       d.Capacity,
		Soul:           d.Soul,
		StaminaMinutes: d.StaminaMinutes,
		Skills:         d.Skills,
		LoginPosition:  d.Position,
		TemplePosition: d.Temple,
		LastLogin:      d.LastLogin,
		LastLogout:     d.LastLogout,
	}
	if p.speed == 0 {
		p.speed = 220
	}
	if p.AccountType == 0 {
		p.AccountType = AccountNormal
	}
	return p
}

func (p *Player) Kind() Kind { return KindPlayer }

// Snapshot copies the persisted fields for an asynchronous save.
func (p *Player) Snapshot() PlayerData {
	return PlayerData{
		GUID:           p.GUID,
		AccountID:      p.AccountID,
		Name:           p.name,
		Sex:            p.Sex,
		Level:          p.Level,
		Experience:     p.Experience,
		Health:         p.health,
		MaxHealth:      p.maxHealth,
		Mana:           p.Mana,
		MaxMana:        p.MaxMana,
		MagicLevel:     p.MagicLevel,
		Capacity:       p.Capacity,
		Soul:           p.Soul,
		StaminaMinutes: p.StaminaMinutes,
		Skills:         p.Skills,
		Outfit:         p.outfit,
		Direction:      p.dir,
		Speed:          p.speed,
		Position:       p.pos,
		Temple:         p.TemplePosition,
		Flags:          p.Flags,
		LastLogin:      p.LastLogin,
		LastLogout:     p.LastLogout,
		AccountType:    p.AccountType,
		PremiumDays:    p.PremiumDays,
	}
}

func (p *Player) HasFlag(f PlayerFlag) bool { return p.Flags&f != 0 }

// IsStaff reports gamemaster tier or above.
func (p *Player) IsStaff() bool { return p.AccountType >= AccountGamemaster }

func (p *Player) IsPremium(freePremium bool) bool {
	return freePremium || p.PremiumDays > 0
}

// CanSeeCreature hides gamemasters in ghost mode from ordinary players.
func (p *Player) CanSeeCreature(c Creature) bool {
	if c == nil {
		return false
	}
	if c.ID() == p.id {
		return true
	}
	return !c.Hidden() || p.IsStaff()
}

func (p *Player) IsDead() bool { return p.health <= 0 }

// SetInFight marks the player as in combat until now+d.
func (p *Player) SetInFight(now time.Time, d time.Duration) {
	if until := now.Add(d); until.After(p.fightUntil) {
		p.fightUntil = until
	}
}

func (p *Player) InFight(now time.Time) bool {
	return now.Before(p.fightUntil)
}

// LevelPercent is progress toward the next level.
func (p *Player) LevelPercent() uint8 {
	cur := ExperienceForLevel(p.Level)
	next := ExperienceForLevel(p.Level + 1)
	if next <= cur || p.Experience < cur {
		return 0
	}
	return uint8((p.Experience - cur) * 100 / (next - cur))
}

// ExperienceForLevel is the classic cubic experience curve.
func ExperienceForLevel(lv uint16) uint64 {
	if lv == 0 {
		return 0
	}
	l := uint64(lv) - 1
	return (50*l*l*l - 150*l*l + 400*l) / 3
}

// FreeCapacity in hundredths of an ounce; carried items are not modelled.
func (p *Player) FreeCapacity() uint32 { return p.Capacity }
