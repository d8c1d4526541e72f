package system

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/otgo/server/internal/core/event"
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/game"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
	"github.com/pixil98/go-testutil"
	"go.uber.org/zap"
)

type recordingSaver struct {
	mu     sync.Mutex
	names  []string
	logins []string
	fail   string
}

func (r *recordingSaver) Save(_ context.Context, d world.PlayerData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Name == r.fail {
		return errors.New("db down")
	}
	r.names = append(r.names, d.Name)
	return nil
}

func (r *recordingSaver) MarkLogin(_ context.Context, guid uint32, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, fmt.Sprintf("%d@%s", guid, at.Format(time.RFC3339)))
	return nil
}

func (r *recordingSaver) saved() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := append([]string(nil), r.names...)
	sort.Strings(names)
	return strings.Join(names, ",")
}

func TestEventsSystemDeliversNextTick(t *testing.T) {
	bus := event.NewBus()
	var got []string
	event.Subscribe(bus, func(e event.PlayerEntered) { got = append(got, e.Name) })
	sys := NewEventsSystem(bus)

	event.Emit(bus, event.PlayerEntered{Name: "Alice"})
	sys.Update(0)
	testutil.AssertEqual(t, "delivered", strings.Join(got, ","), "Alice")

	sys.Update(0)
	testutil.AssertEqual(t, "once", len(got), 1)
}

func TestPersistenceSavesLeavingPlayers(t *testing.T) {
	bus := event.NewBus()
	saver := &recordingSaver{fail: "Broken"}
	events := NewEventsSystem(bus)
	ps := NewPersistenceSystem(bus, world.NewState(), saver, zap.NewNop(), 0, time.Second)

	event.Emit(bus, event.PlayerLeft{Name: "Alice", Snapshot: world.PlayerData{Name: "Alice"}})
	event.Emit(bus, event.PlayerLeft{Name: "Broken", Snapshot: world.PlayerData{Name: "Broken"}})
	event.Emit(bus, event.PlayerLeft{Name: "Odd", Snapshot: "not a snapshot"})
	events.Update(0)
	ps.Update(0)
	ps.SaveAllPlayers()

	testutil.AssertEqual(t, "saved", saver.saved(), "Alice")
}

func TestPersistenceStampsLogin(t *testing.T) {
	bus := event.NewBus()
	saver := &recordingSaver{}
	events := NewEventsSystem(bus)
	ps := NewPersistenceSystem(bus, world.NewState(), saver, zap.NewNop(), 0, time.Second)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event.Emit(bus, event.PlayerEntered{PlayerID: 0x10000001, GUID: 7, Name: "Alice", At: at})
	events.Update(0)
	ps.Update(0)
	ps.SaveAllPlayers()

	testutil.AssertEqual(t, "stamped", strings.Join(saver.logins, ","), "7@2026-03-01T12:00:00Z")
	testutil.AssertEqual(t, "no full save", saver.saved(), "")
}

func TestPersistenceAutoSave(t *testing.T) {
	players := world.NewState()
	p := world.NewPlayer(world.PlayerData{GUID: 1, Name: "Bob"})
	players.AssignPlayerID(p)
	players.AddPlayer(p)

	saver := &recordingSaver{}
	ps := NewPersistenceSystem(event.NewBus(), players, saver, zap.NewNop(), 2, time.Second)
	ps.Update(0)
	testutil.AssertEqual(t, "nothing yet", len(ps.pending), 0)
	ps.Update(0)
	ps.SaveAllPlayers()

	// once from the interval, once from shutdown
	testutil.AssertEqual(t, "saved", saver.saved(), "Bob,Bob")
}

var grassType = &data.ItemType{ID: 100, ClientID: 100, Name: "grass", Ground: true}

func TestLinklessSystemWaitsForFightToEnd(t *testing.T) {
	m := world.NewMap(16, 16, 8)
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			m.EnsureTile(geo.Position{X: uint16(x), Y: uint16(y), Z: 7}).AddItem(world.NewItem(grassType, 1))
		}
	}
	m.Temple = geo.Position{X: 5, Y: 5, Z: 7}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := game.New(m, nil, nil, nil, event.NewBus(), game.Options{Clock: func() time.Time { return now }}, zap.NewNop())
	g.SetState(game.StateNormal)

	p := world.NewPlayer(world.PlayerData{GUID: 1, Name: "Alice", Health: 100, MaxHealth: 100})
	if err := g.PlacePlayer(p, 1); err != nil {
		t.Fatalf("PlacePlayer: %v", err)
	}
	p.SetInFight(now, time.Hour)

	sys := NewLinklessSystem(g, zap.NewNop())
	sys.Update(0)
	testutil.AssertEqual(t, "fighting player kept", p.Removed(), false)

	now = now.Add(59 * time.Minute)
	sys.Update(0)
	testutil.AssertEqual(t, "still fighting", p.Removed(), false)

	now = now.Add(time.Minute)
	sys.Update(0)
	testutil.AssertEqual(t, "removed", p.Removed(), true)
	testutil.AssertEqual(t, "online", g.PlayersOnline(), 0)
}
