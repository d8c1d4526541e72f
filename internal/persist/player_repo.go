package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
)

// playerRow mirrors the players table.
type playerRow struct {
	ID, AccountID         int32
	Name                  string
	Sex                   int16
	Level                 int32
	Experience            int64
	Health, MaxHealth     int32
	Mana, MaxMana         int32
	MagicLevel            int16
	Capacity              int32
	Soul                  int16
	StaminaMinutes        int32
	Skills                []int16
	LookType              int32
	LookHead, LookBody    int16
	LookLegs, LookFeet    int16
	LookAddons            int16
	Direction             int16
	PosX, PosY            int32
	PosZ                  int16
	TempleX, TempleY      int32
	TempleZ               int16
	Flags                 int64
	LastLogin, LastLogout *time.Time
}

const playerColumns = `id, account_id, name, sex, level, experience, health, max_health,
	mana, max_mana, magic_level, capacity, soul, stamina_minutes, skills,
	look_type, look_head, look_body, look_legs, look_feet, look_addons, direction,
	pos_x, pos_y, pos_z, temple_x, temple_y, temple_z, flags, last_login, last_logout`

func (r *playerRow) scanTargets() []any {
	return []any{
		&r.ID, &r.AccountID, &r.Name, &r.Sex, &r.Level, &r.Experience, &r.Health, &r.MaxHealth,
		&r.Mana, &r.MaxMana, &r.MagicLevel, &r.Capacity, &r.Soul, &r.StaminaMinutes, &r.Skills,
		&r.LookType, &r.LookHead, &r.LookBody, &r.LookLegs, &r.LookFeet, &r.LookAddons, &r.Direction,
		&r.PosX, &r.PosY, &r.PosZ, &r.TempleX, &r.TempleY, &r.TempleZ, &r.Flags, &r.LastLogin, &r.LastLogout,
	}
}

func (r *playerRow) toData() *world.PlayerData {
	d := &world.PlayerData{
		GUID:           uint32(r.ID),
		AccountID:      uint32(r.AccountID),
		Name:           r.Name,
		Sex:            uint8(r.Sex),
		Level:          uint16(r.Level),
		Experience:     uint64(max(r.Experience, 0)),
		Health:         r.Health,
		MaxHealth:      r.MaxHealth,
		Mana:           r.Mana,
		MaxMana:        r.MaxMana,
		MagicLevel:     uint8(r.MagicLevel),
		Capacity:       uint32(max(r.Capacity, 0)),
		Soul:           uint8(r.Soul),
		StaminaMinutes: uint16(r.StaminaMinutes),
		Outfit: world.Outfit{
			LookType: uint16(r.LookType),
			Head:     uint8(r.LookHead),
			Body:     uint8(r.LookBody),
			Legs:     uint8(r.LookLegs),
			Feet:     uint8(r.LookFeet),
			Addons:   uint8(r.LookAddons),
		},
		Direction: geo.Direction(r.Direction),
		Position:  geo.Position{X: uint16(r.PosX), Y: uint16(r.PosY), Z: uint8(r.PosZ)},
		Temple:    geo.Position{X: uint16(r.TempleX), Y: uint16(r.TempleY), Z: uint8(r.TempleZ)},
		Flags:     world.PlayerFlag(r.Flags),
	}
	for i := 0; i < len(r.Skills) && i < int(world.SkillCount); i++ {
		d.Skills[i].Level = uint8(r.Skills[i])
	}
	if r.LastLogin != nil {
		d.LastLogin = *r.LastLogin
	}
	if r.LastLogout != nil {
		d.LastLogout = *r.LastLogout
	}
	if !d.Direction.Valid() || d.Direction.Diagonal() {
		d.Direction = geo.South
	}
	return d
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// LoadByName loads a character owned by the account. Returns ErrNotFound
// when the name is unknown or belongs to another account.
func (r *PlayerRepo) LoadByName(ctx context.Context, accountID uint32, name string) (*world.PlayerData, error) {
	var row playerRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE lower(name) = lower($1) AND account_id = $2`,
		name, accountID,
	).Scan(row.scanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", name, err)
	}
	return row.toData(), nil
}

// Save writes the mutable part of a player.
func (r *PlayerRepo) Save(ctx context.Context, d world.PlayerData) error {
	skills := make([]int16, world.SkillCount)
	for i := range skills {
		skills[i] = int16(d.Skills[i].Level)
	}
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET level = $2, experience = $3, health = $4, max_health = $5,
		    mana = $6, max_mana = $7, magic_level = $8, capacity = $9, soul = $10,
		    stamina_minutes = $11, skills = $12, look_type = $13, look_head = $14,
		    look_body = $15, look_legs = $16, look_feet = $17, look_addons = $18,
		    direction = $19, pos_x = $20, pos_y = $21, pos_z = $22,
		    last_login = $23, last_logout = $24
		 WHERE id = $1`,
		d.GUID, int32(d.Level), int64(d.Experience), d.Health, d.MaxHealth,
		d.Mana, d.MaxMana, int16(d.MagicLevel), int32(d.Capacity), int16(d.Soul),
		int32(d.StaminaMinutes), skills, int32(d.Outfit.LookType), int16(d.Outfit.Head),
		int16(d.Outfit.Body), int16(d.Outfit.Legs), int16(d.Outfit.Feet), int16(d.Outfit.Addons),
		int16(d.Direction), int32(d.Position.X), int32(d.Position.Y), int16(d.Position.Z),
		nullTime(d.LastLogin), nullTime(d.LastLogout),
	)
	if err != nil {
		return fmt.Errorf("save player %s: %w", d.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save player %s: %w", d.Name, ErrNotFound)
	}
	return nil
}

// MarkLogin stamps last_login when a character enters the world, so the
// login survives a crash before the next save.
func (r *PlayerRepo) MarkLogin(ctx context.Context, guid uint32, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE players SET last_login = $2 WHERE id = $1`, guid, nullTime(at))
	if err != nil {
		return fmt.Errorf("mark login %d: %w", guid, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark login %d: %w", guid, ErrNotFound)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
