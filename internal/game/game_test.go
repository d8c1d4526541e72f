package game

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/otgo/server/internal/core/event"
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
	"github.com/pixil98/go-testutil"
	"go.uber.org/zap"
)

var (
	grassType = &data.ItemType{ID: 100, ClientID: 100, Name: "grass", Ground: true}
	wallType  = &data.ItemType{ID: 101, ClientID: 101, Name: "wall", BlockSolid: true}
	leverType = &data.ItemType{ID: 102, ClientID: 102, Name: "lever", Useable: true}
	coinType  = &data.ItemType{ID: 103, ClientID: 103, Name: "gold coin", Stackable: true, Moveable: true, Pickupable: true}
)

// fakeClient records every call as a short line.
type fakeClient struct {
	calls     []string
	messages  []string
	loggedOut bool
}

func (f *fakeClient) add(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) SendAddCreature(c world.Creature, pos geo.Position, stackPos int, isLogin bool) {
	f.add("add %s %v %d", c.Name(), pos, stackPos)
}
func (f *fakeClient) SendRemoveTileThing(pos geo.Position, stackPos int) {
	f.add("remove %v %d", pos, stackPos)
}
func (f *fakeClient) SendMoveCreature(c world.Creature, newPos geo.Position, newStackPos int, oldPos geo.Position, oldStackPos int, teleport bool) {
	f.add("move %s %v %d %v %d %t", c.Name(), oldPos, oldStackPos, newPos, newStackPos, teleport)
}
func (f *fakeClient) SendCreatureTurn(c world.Creature, stackPos int) {
	f.add("turn %s %d", c.Name(), stackPos)
}
func (f *fakeClient) SendCreatureSay(c world.Creature, speakType uint8, text string) {
	f.add("say %s %d %s", c.Name(), speakType, text)
}
func (f *fakeClient) SendCreatureHealth(c world.Creature) { f.add("health %s", c.Name()) }
func (f *fakeClient) SendCreatureOutfit(c world.Creature) { f.add("outfit %s", c.Name()) }
func (f *fakeClient) SendAddTileItem(pos geo.Position, stackPos int, it *world.Item) {
	f.add("additem %v %d %d", pos, stackPos, it.Count)
}
func (f *fakeClient) SendUpdateTileItem(pos geo.Position, stackPos int, it *world.Item) {
	f.add("updateitem %v %d %d", pos, stackPos, it.Count)
}
func (f *fakeClient) SendUpdateTile(t *world.Tile) { f.add("tile %v", t.Position()) }
func (f *fakeClient) SendMagicEffect(pos geo.Position, effect uint8) {
	f.add("effect %v %d", pos, effect)
}
func (f *fakeClient) SendTextMessage(class uint8, text string) {
	f.messages = append(f.messages, text)
}
func (f *fakeClient) SendCancelWalk()                   { f.add("cancelwalk") }
func (f *fakeClient) SendCancelTarget()                 { f.add("canceltarget") }
func (f *fakeClient) SendStats()                        { f.add("stats") }
func (f *fakeClient) SendSkills()                       { f.add("skills") }
func (f *fakeClient) SendIcons(uint16)                  {}
func (f *fakeClient) SendOutfitWindow()                 { f.add("outfitwindow") }
func (f *fakeClient) Logout(displayEffect, forced bool) { f.loggedOut = true }

func (f *fakeClient) joined() string { return joined(f.calls...) }

func joined(calls ...string) string { return strings.Join(calls, "; ") }

func (f *fakeClient) lastMessage() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

// manualScheduler runs events only when fired by the test.
type manualScheduler struct {
	next   uint64
	events map[uint64]func()
}

func (s *manualScheduler) AddEvent(_ time.Duration, fn func()) uint64 {
	if s.events == nil {
		s.events = make(map[uint64]func())
	}
	s.next++
	s.events[s.next] = fn
	return s.next
}

func (s *manualScheduler) StopEvent(id uint64) bool {
	_, ok := s.events[id]
	delete(s.events, id)
	return ok
}

func (s *manualScheduler) fireAll() {
	for len(s.events) > 0 {
		for id, fn := range s.events {
			delete(s.events, id)
			fn()
		}
	}
}

// denyHooks vetoes the events that have a decision set.
type denyHooks struct {
	login, logout, say, use *Decision
}

func pick(d *Decision) Decision {
	if d == nil {
		return Allow
	}
	return *d
}

func (d denyHooks) OnLogin(*world.Player) Decision              { return pick(d.login) }
func (d denyHooks) OnLogout(*world.Player) Decision             { return pick(d.logout) }
func (d denyHooks) OnSay(*world.Player, uint8, string) Decision { return pick(d.say) }
func (d denyHooks) OnUse(*world.Player, *world.Item, geo.Position) Decision {
	return pick(d.use)
}

func pos(x, y int) geo.Position {
	return geo.Position{X: uint16(x), Y: uint16(y), Z: 7}
}

func newTestGame(t *testing.T, hooks Hooks) (*Game, *manualScheduler, *event.Bus) {
	t.Helper()
	m := world.NewMap(32, 32, 8)
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			m.EnsureTile(pos(x, y)).AddItem(world.NewItem(grassType, 1))
		}
	}
	m.Temple = pos(10, 10)
	sched := &manualScheduler{}
	bus := event.NewBus()
	g := New(m, nil, hooks, sched, bus, Options{}, zap.NewNop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	g.SetState(StateNormal)
	return g, sched, bus
}

func login(t *testing.T, g *Game, guid uint32, name string, at geo.Position) (*world.Player, *fakeClient) {
	t.Helper()
	p := world.NewPlayer(world.PlayerData{
		GUID: guid, AccountID: guid, Name: name, Level: 8,
		Health: 150, MaxHealth: 150, Position: at,
	})
	fc := &fakeClient{}
	p.Client = fc
	if err := g.PlacePlayer(p, uint64(guid)); err != nil {
		t.Fatalf("PlacePlayer(%s): %v", name, err)
	}
	return p, fc
}

func TestPlacePlayerNotifiesSpectators(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	_, bc := login(t, g, 2, "Bob", pos(6, 5))

	testutil.AssertEqual(t, "alice sees herself", ac.calls[0], "add Alice (5, 5, 7) 1")
	testutil.AssertEqual(t, "alice sees bob", ac.calls[1], "add Bob (6, 5, 7) 1")
	testutil.AssertEqual(t, "bob sees himself", bc.calls[0], "add Bob (6, 5, 7) 1")
	testutil.AssertEqual(t, "online", g.PlayersOnline(), 2)
	testutil.AssertEqual(t, "registered", g.Players.PlayerByName("alice") == a, true)
}

func TestPlacePlayerEmitsEntered(t *testing.T) {
	g, _, bus := newTestGame(t, nil)
	var got []event.PlayerEntered
	event.Subscribe(bus, func(e event.PlayerEntered) { got = append(got, e) })

	p, _ := login(t, g, 4, "Dave", pos(5, 5))
	bus.SwapBuffers()
	bus.DispatchAll()

	testutil.AssertEqual(t, "one event", len(got), 1)
	testutil.AssertEqual(t, "guid", got[0].GUID, uint32(4))
	testutil.AssertEqual(t, "id", got[0].PlayerID, p.ID())
	testutil.AssertEqual(t, "at", got[0].At.Equal(g.now()), true)
	testutil.AssertEqual(t, "last login", p.LastLogin.Equal(g.now()), true)
}

func TestPlacePlayerFallsBackToTemple(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	g.Map.Tile(pos(3, 3)).AddItem(world.NewItem(wallType, 1))
	for _, o := range [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
		g.Map.Tile(pos(3+o[0], 3+o[1])).AddItem(world.NewItem(wallType, 1))
	}

	p, _ := login(t, g, 1, "Alice", pos(3, 3))
	testutil.AssertEqual(t, "temple", p.Position(), pos(10, 10))
}

func TestPlacePlayerTempleWrong(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	g.Map.Temple = geo.Position{X: 30, Y: 30, Z: 7}
	p := world.NewPlayer(world.PlayerData{GUID: 1, Name: "Alice", Health: 10, MaxHealth: 10})
	p.Client = &fakeClient{}

	err := g.PlacePlayer(p, 1)
	testutil.AssertErrorContains(t, err, "Temple position is wrong")
	testutil.AssertEqual(t, "not registered", g.PlayersOnline(), 0)
}

func TestPlacePlayerHookDenies(t *testing.T) {
	g, _, _ := newTestGame(t, denyHooks{login: &Decision{Message: "Go away."}})
	p := world.NewPlayer(world.PlayerData{GUID: 1, Name: "Alice", Health: 10, MaxHealth: 10, Position: pos(5, 5)})

	err := g.PlacePlayer(p, 1)
	testutil.AssertErrorContains(t, err, "Go away.")
	testutil.AssertEqual(t, "not placed", g.Map.CreatureCount(), 0)
}

func TestMoveNotifiesWithStackPositions(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	_, bc := login(t, g, 2, "Bob", pos(5, 7))
	ac.calls, bc.calls = nil, nil

	err := g.PlayerMove(a, geo.East)
	testutil.AssertEqual(t, "moved", err, nil)
	testutil.AssertEqual(t, "position", a.Position(), pos(6, 5))
	testutil.AssertEqual(t, "facing", a.Direction(), geo.East)
	testutil.AssertEqual(t, "self", ac.joined(), joined("move Alice (5, 5, 7) 1 (6, 5, 7) 1 false"))
	testutil.AssertEqual(t, "other", bc.joined(), joined("move Alice (5, 5, 7) 1 (6, 5, 7) 1 false"))
}

func TestMoveBlocked(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	login(t, g, 2, "Bob", pos(5, 6))
	g.Map.Tile(pos(6, 5)).AddItem(world.NewItem(wallType, 1))
	ac.calls = nil

	err := g.PlayerMove(a, geo.South)
	testutil.AssertEqual(t, "creature", errors.Is(err, ErrNotEnoughRoom), true)
	testutil.AssertEqual(t, "message", ac.lastMessage(), "There is not enough room.")

	err = g.PlayerMove(a, geo.East)
	testutil.AssertEqual(t, "wall", errors.Is(err, ErrNotPossible), true)
	testutil.AssertEqual(t, "cancel walk", ac.calls[len(ac.calls)-1], "cancelwalk")
	testutil.AssertEqual(t, "not moved", a.Position(), pos(5, 5))
}

func TestStepFacing(t *testing.T) {
	tests := map[string]struct {
		to   geo.Position
		want geo.Direction
	}{
		"north":     {to: pos(5, 4), want: geo.North},
		"south":     {to: pos(5, 6), want: geo.South},
		"northeast": {to: pos(6, 4), want: geo.East},
		"southwest": {to: pos(4, 6), want: geo.West},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := stepFacing(pos(5, 5), tt.to)
			testutil.AssertEqual(t, "ok", ok, true)
			testutil.AssertEqual(t, "dir", got, tt.want)
		})
	}
}

func TestStairsAndTeleportPortals(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	below := geo.Position{X: 5, Y: 6, Z: 8}
	g.Map.EnsureTile(below).AddItem(world.NewItem(grassType, 1))
	g.Map.Tile(pos(5, 6)).Portal = &data.Portal{Src: pos(5, 6), Dst: below}
	g.Map.Tile(pos(6, 5)).Portal = &data.Portal{Src: pos(6, 5), Dst: pos(15, 15), Teleport: true}

	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	testutil.AssertEqual(t, "stairs", g.PlayerMove(a, geo.South), nil)
	testutil.AssertEqual(t, "below", a.Position(), below)

	b, _ := login(t, g, 2, "Bob", pos(5, 5))
	ac.calls = nil
	testutil.AssertEqual(t, "teleport", g.PlayerMove(b, geo.East), nil)
	testutil.AssertEqual(t, "teleported", b.Position(), pos(15, 15))
}

func TestAutoWalk(t *testing.T) {
	g, sched, _ := newTestGame(t, nil)
	a, _ := login(t, g, 1, "Alice", pos(5, 5))

	g.PlayerAutoWalk(a, []geo.Direction{geo.East, geo.East, geo.South})
	testutil.AssertEqual(t, "first step immediate", a.Position(), pos(6, 5))
	testutil.AssertEqual(t, "next step scheduled", len(sched.events), 1)

	sched.fireAll()
	testutil.AssertEqual(t, "walked", a.Position(), pos(7, 6))
	testutil.AssertEqual(t, "path drained", len(a.WalkPath), 0)
	testutil.AssertEqual(t, "no event", a.WalkEvent, uint64(0))
}

func TestStopAutoWalk(t *testing.T) {
	g, sched, _ := newTestGame(t, nil)
	a, _ := login(t, g, 1, "Alice", pos(5, 5))

	g.PlayerAutoWalk(a, []geo.Direction{geo.East, geo.East, geo.East})
	g.PlayerStopAutoWalk(a)
	testutil.AssertEqual(t, "event cancelled", len(sched.events), 0)
	sched.fireAll()
	testutil.AssertEqual(t, "stopped", a.Position(), pos(6, 5))
}

func TestLogoutRules(t *testing.T) {
	g, _, bus := newTestGame(t, nil)
	var left []event.PlayerLeft
	event.Subscribe(bus, func(e event.PlayerLeft) { left = append(left, e) })

	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	g.Map.Tile(pos(5, 5)).Flags |= world.TileNoLogout
	testutil.AssertEqual(t, "no logout tile", g.Logout(a, true, false), false)
	testutil.AssertEqual(t, "no logout message", ac.lastMessage(), "You can not logout here.")

	g.Map.Tile(pos(5, 5)).Flags = 0
	a.SetInFight(g.now(), time.Minute)
	testutil.AssertEqual(t, "in fight", g.Logout(a, true, false), false)
	testutil.AssertEqual(t, "fight message", ac.lastMessage(), "You may not logout during or immediately after a fight!")

	g.Map.Tile(pos(5, 5)).Flags = world.TileProtectionZone
	testutil.AssertEqual(t, "pz allows", g.Logout(a, true, false), true)
	testutil.AssertEqual(t, "removed", a.Removed(), true)
	testutil.AssertEqual(t, "unregistered", g.PlayersOnline(), 0)

	bus.SwapBuffers()
	bus.DispatchAll()
	testutil.AssertEqual(t, "left events", len(left), 1)
	snap, ok := left[0].Snapshot.(world.PlayerData)
	testutil.AssertEqual(t, "snapshot type", ok, true)
	testutil.AssertEqual(t, "snapshot pos", snap.Position, pos(5, 5))
}

func TestLogoutHookAndForce(t *testing.T) {
	g, _, _ := newTestGame(t, denyHooks{logout: &Decision{Message: "Not now."}})
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	_, bc := login(t, g, 2, "Bob", pos(6, 5))
	bc.calls = nil

	testutil.AssertEqual(t, "denied", g.Logout(a, true, false), false)
	testutil.AssertEqual(t, "hook message", ac.lastMessage(), "Not now.")

	testutil.AssertEqual(t, "forced", g.Logout(a, true, true), true)
	testutil.AssertEqual(t, "bob sees poff", bc.joined(), joined("remove (5, 5, 7) 1", "effect (5, 5, 7) 3"))
}

func TestDisconnectedInFightStaysLinkless(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, _ := login(t, g, 1, "Alice", pos(5, 5))
	b, _ := login(t, g, 2, "Bob", pos(7, 7))

	a.SetInFight(g.now(), time.Minute)
	g.Disconnected(a)
	testutil.AssertEqual(t, "still in world", a.Removed(), false)
	testutil.AssertEqual(t, "client cleared", a.Client == nil, true)

	g.Disconnected(b)
	testutil.AssertEqual(t, "removed", b.Removed(), true)
}

func TestSayRanges(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, _ := login(t, g, 1, "Alice", pos(5, 5))
	_, near := login(t, g, 2, "Bob", pos(6, 5))
	_, far := login(t, g, 3, "Carl", pos(9, 5))
	near.calls, far.calls = nil, nil

	g.Say(a, world.SpeakWhisper, "secret")
	testutil.AssertEqual(t, "near hears", near.joined(), joined("say Alice 2 secret"))
	testutil.AssertEqual(t, "far hears noise", far.joined(), joined("say Alice 2 pspsps"))

	near.calls = nil
	g.Say(a, world.SpeakYell, "help")
	testutil.AssertEqual(t, "yell", near.joined(), joined("say Alice 3 HELP"))
}

func TestSayHookDenies(t *testing.T) {
	g, _, _ := newTestGame(t, denyHooks{say: &Decision{Message: "Muted."}})
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	ac.calls = nil

	g.Say(a, world.SpeakSay, "hello")
	testutil.AssertEqual(t, "nothing said", len(ac.calls), 0)
	testutil.AssertEqual(t, "message", ac.lastMessage(), "Muted.")
}

func TestUseItem(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	g.Map.Tile(pos(6, 5)).AddItem(world.NewItem(leverType, 1))
	g.Map.Tile(pos(9, 5)).AddItem(world.NewItem(leverType, 1))

	testutil.AssertEqual(t, "adjacent", g.UseItem(a, pos(6, 5), 1), nil)
	testutil.AssertEqual(t, "far", errors.Is(g.UseItem(a, pos(9, 5), 1), ErrTooFarAway), true)
	testutil.AssertEqual(t, "ground", errors.Is(g.UseItem(a, pos(6, 5), 0), ErrCannotUse), true)
	testutil.AssertEqual(t, "message", ac.lastMessage(), "You cannot use this object.")
}

func TestUseItemHookDenies(t *testing.T) {
	g, _, _ := newTestGame(t, denyHooks{use: &Decision{}})
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	g.Map.Tile(pos(6, 5)).AddItem(world.NewItem(leverType, 1))

	testutil.AssertErrorContains(t, g.UseItem(a, pos(6, 5), 1), "You cannot use this object.")
	testutil.AssertEqual(t, "message", ac.lastMessage(), "You cannot use this object.")
}

func TestThrowSplitsStack(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	coins := world.NewItem(coinType, 10)
	g.Map.Tile(pos(6, 5)).AddItem(coins)
	ac.calls = nil

	testutil.AssertEqual(t, "throw", g.Throw(a, pos(6, 5), 1, pos(8, 5), 4), nil)
	testutil.AssertEqual(t, "left behind", coins.Count, uint16(6))
	moved := g.Map.Tile(pos(8, 5)).TopDownItem()
	testutil.AssertEqual(t, "moved count", moved.Count, uint16(4))
	testutil.AssertEqual(t, "notifications", ac.joined(), joined(
		"updateitem (6, 5, 7) 1 6",
		"additem (8, 5, 7) 1 4",
	))

	ac.calls = nil
	testutil.AssertEqual(t, "throw rest", g.Throw(a, pos(6, 5), 1, pos(8, 5), 6), nil)
	testutil.AssertEqual(t, "source empty", g.Map.Tile(pos(6, 5)).TopDownItem() == nil, true)
	testutil.AssertEqual(t, "whole stack", ac.calls[0], "remove (6, 5, 7) 1")
}

func TestAttackRules(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	b, _ := login(t, g, 2, "Bob", pos(6, 5))

	testutil.AssertEqual(t, "self", errors.Is(g.Attack(a, a.ID()), ErrAttackSelf), true)
	testutil.AssertEqual(t, "attack", g.Attack(a, b.ID()), nil)
	testutil.AssertEqual(t, "target", a.AttackTarget, b.ID())
	testutil.AssertEqual(t, "in fight", a.InFight(g.now()), true)

	g.Map.Tile(pos(6, 5)).Flags |= world.TileProtectionZone
	testutil.AssertEqual(t, "pz", errors.Is(g.Attack(a, b.ID()), ErrProtectionZone), true)
	testutil.AssertEqual(t, "target cleared", a.AttackTarget, uint32(0))
	testutil.AssertEqual(t, "cancel target", ac.calls[len(ac.calls)-1], "canceltarget")
}

func TestLookAt(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	a, ac := login(t, g, 1, "Alice", pos(5, 5))
	login(t, g, 2, "Bob", pos(6, 5))
	g.Map.Tile(pos(4, 5)).AddItem(world.NewItem(coinType, 3))

	g.LookAt(a, pos(5, 5), 1)
	testutil.AssertEqual(t, "self", ac.lastMessage(), "You see yourself.")
	g.LookAt(a, pos(6, 5), 1)
	testutil.AssertEqual(t, "player", ac.lastMessage(), "You see Bob (Level 8).")
	g.LookAt(a, pos(4, 5), 1)
	testutil.AssertEqual(t, "stack", ac.lastMessage(), "You see 3 gold coins.")
	g.LookAt(a, pos(4, 5), 0)
	testutil.AssertEqual(t, "ground", ac.lastMessage(), "You see a grass.")
}

func TestSpawnAll(t *testing.T) {
	g, _, _ := newTestGame(t, nil)
	n := g.SpawnAll([]data.Spawn{
		{Name: "rat", Kind: "monster", Pos: pos(3, 3), Health: 20},
		{Name: "Sam", Kind: "npc", Pos: pos(4, 4), Health: 100},
		{Name: "ghost", Kind: "monster", Pos: pos(30, 30), Health: 20},
	})
	testutil.AssertEqual(t, "placed", n, 2)
	testutil.AssertEqual(t, "on map", g.Map.CreatureCount(), 2)
}
