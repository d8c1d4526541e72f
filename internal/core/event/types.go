package event

import (
	"time"

	"github.com/otgo/server/internal/geo"
)

// PlayerEntered is emitted once a player has been placed in the world.
type PlayerEntered struct {
	PlayerID  uint32
	GUID      uint32
	Name      string
	AccountID uint32
	ConnID    uint64
	Position  geo.Position
	At        time.Time
}

// PlayerLeft is emitted after a player was removed from the world.
// Snapshot is the state to persist; the world no longer references it.
type PlayerLeft struct {
	PlayerID uint32
	Name     string
	Snapshot any
}
