package world

import "github.com/otgo/server/internal/geo"

// Kind tags what a creature is, in place of downcasting.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindMonster
	KindNPC
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindMonster:
		return "monster"
	case KindNPC:
		return "npc"
	}
	return "unknown"
}

// Outfit is a creature's look. A zero LookType means the creature shows an
// item (LookTypeEx) instead of a body.
type Outfit struct {
	LookType   uint16
	LookTypeEx uint16
	Head       uint8
	Body       uint8
	Legs       uint8
	Feet       uint8
	Addons     uint8
}

// Light is an emitted light source.
type Light struct {
	Level uint8
	Color uint8
}

// Skull and party shield marks shown over a creature.
const (
	SkullNone uint8 = iota
	SkullYellow
	SkullGreen
	SkullWhite
	SkullRed
	SkullBlack
)

// Creature is what the protocol and game layers need from anything standing
// on a tile.
type Creature interface {
	ID() uint32
	Kind() Kind
	Name() string
	Position() geo.Position
	Direction() geo.Direction
	HealthPercent() uint8
	Health() int32
	Outfit() Outfit
	Light() Light
	Speed() uint16
	Skull() uint8
	Shield() uint8
	Emblem() uint8
	// Hidden creatures (gamemaster ghost mode) are only seen by staff.
	Hidden() bool
	Removed() bool

	SetDirection(d geo.Direction)
	SetOutfit(o Outfit)
	SetHealth(h int32)

	base() *Body
}

// Body holds the state every creature kind shares. Mutated on the dispatcher only.
type Body struct {
	id        uint32
	name      string
	pos       geo.Position
	dir       geo.Direction
	health    int32
	maxHealth int32
	outfit    Outfit
	light     Light
	speed     uint16
	skull     uint8
	shield    uint8
	emblem    uint8
	hidden    bool
	removed   bool
}

func (b *Body) ID() uint32               { return b.id }
func (b *Body) Name() string             { return b.name }
func (b *Body) Position() geo.Position   { return b.pos }
func (b *Body) Direction() geo.Direction { return b.dir }
func (b *Body) Health() int32            { return b.health }
func (b *Body) MaxHealth() int32         { return b.maxHealth }
func (b *Body) Outfit() Outfit           { return b.outfit }
func (b *Body) Light() Light             { return b.light }
func (b *Body) Speed() uint16            { return b.speed }
func (b *Body) Skull() uint8             { return b.skull }
func (b *Body) Shield() uint8            { return b.shield }
func (b *Body) Emblem() uint8            { return b.emblem }
func (b *Body) Hidden() bool             { return b.hidden }
func (b *Body) Removed() bool            { return b.removed }
func (b *Body) base() *Body              { return b }

// HealthPercent rounds up so a creature with any health left never shows 0%.
func (b *Body) HealthPercent() uint8 {
	if b.maxHealth <= 0 || b.health <= 0 {
		return 0
	}
	p := (int64(b.health)*100 + int64(b.maxHealth) - 1) / int64(b.maxHealth)
	return uint8(min(p, 100))
}

func (b *Body) SetDirection(d geo.Direction) { b.dir = d }
func (b *Body) SetOutfit(o Outfit)           { b.outfit = o }
func (b *Body) SetLight(l Light)             { b.light = l }
func (b *Body) SetSpeed(s uint16)            { b.speed = s }
func (b *Body) SetSkull(s uint8)             { b.skull = s }
func (b *Body) SetShield(s uint8)            { b.shield = s }
func (b *Body) SetHidden(h bool)             { b.hidden = h }

// SetHealth clamps to [0, max].
func (b *Body) SetHealth(h int32) {
	b.health = max(0, min(h, b.maxHealth))
}

// SetMaxHealth also clamps current health.
func (b *Body) SetMaxHealth(m int32) {
	b.maxHealth = m
	b.health = min(b.health, m)
}

// Npc is a non-player creature: a monster or a scripted townsperson.
type Npc struct {
	Body
	kind  Kind
	Spawn geo.Position
}

func (n *Npc) Kind() Kind { return n.kind }

// NewNpc creates an npc or monster; the id comes from State.
func NewNpc(kind Kind, name string, pos geo.Position, dir geo.Direction, health int32, speed uint16, outfit Outfit) *Npc {
	return &Npc{
		Body: Body{
			name:      name,
			pos:       pos,
			dir:       dir,
			health:    health,
			maxHealth: health,
			speed:     speed,
			outfit:    outfit,
		},
		kind:  kind,
		Spawn: pos,
	}
}
