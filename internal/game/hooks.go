package game

import (
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
)

// Decision is a hook's verdict. A denied action shows Message to the player
// when it is set.
type Decision struct {
	Allow   bool
	Message string
}

// Allow is the permissive decision.
var Allow = Decision{Allow: true}

// Hooks lets scripts veto game events. Called on the dispatcher only.
type Hooks interface {
	OnLogin(p *world.Player) Decision
	OnLogout(p *world.Player) Decision
	OnUse(p *world.Player, it *world.Item, pos geo.Position) Decision
	OnSay(p *world.Player, speakType uint8, text string) Decision
}

// AllowAll is the default Hooks.
type AllowAll struct{}

func (AllowAll) OnLogin(*world.Player) Decision                          { return Allow }
func (AllowAll) OnLogout(*world.Player) Decision                         { return Allow }
func (AllowAll) OnUse(*world.Player, *world.Item, geo.Position) Decision { return Allow }
func (AllowAll) OnSay(*world.Player, uint8, string) Decision             { return Allow }
