package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
	"github.com/pixil98/go-testutil"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func testPlayer() *world.Player {
	return world.NewPlayer(world.PlayerData{GUID: 3, Name: "Alice", Level: 20, Position: geo.Position{X: 10, Y: 11, Z: 7}})
}

func TestMissingHooksAllow(t *testing.T) {
	e := newEngine(t, nil)
	p := testPlayer()
	testutil.AssertEqual(t, "login", e.OnLogin(p).Allow, true)
	testutil.AssertEqual(t, "say", e.OnSay(p, world.SpeakSay, "hi").Allow, true)
}

func TestHookDecisions(t *testing.T) {
	e := newEngine(t, map[string]string{
		"core/login.lua": `
function on_login(player)
  if player.level < 8 then
    return false, "Level too low."
  end
end`,
		"events/say.lua": `
function on_say(player, kind, text)
  return text ~= "badword"
end`,
		"use.lua": `
function on_use(player, item, pos)
  if item.name == "locked door" and pos.z == 7 then
    return false
  end
  return true
end`,
	})

	p := testPlayer()
	testutil.AssertEqual(t, "level ok", e.OnLogin(p).Allow, true)
	p.Level = 5
	d := e.OnLogin(p)
	testutil.AssertEqual(t, "denied", d.Allow, false)
	testutil.AssertEqual(t, "message", d.Message, "Level too low.")

	testutil.AssertEqual(t, "clean", e.OnSay(p, world.SpeakSay, "hello").Allow, true)
	testutil.AssertEqual(t, "filtered", e.OnSay(p, world.SpeakSay, "badword").Allow, false)

	door := world.NewItem(&data.ItemType{ID: 5, ClientID: 5, Name: "locked door"}, 1)
	lever := world.NewItem(&data.ItemType{ID: 6, ClientID: 6, Name: "lever"}, 1)
	here := geo.Position{X: 1, Y: 1, Z: 7}
	testutil.AssertEqual(t, "door", e.OnUse(p, door, here).Allow, false)
	testutil.AssertEqual(t, "lever", e.OnUse(p, lever, here).Allow, true)
}

func TestHookErrorAllows(t *testing.T) {
	e := newEngine(t, map[string]string{
		"logout.lua": `function on_logout(player) error("boom") end`,
	})
	testutil.AssertEqual(t, "allowed", e.OnLogout(testPlayer()).Allow, true)
}

func TestBadScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("function ("), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewEngine(dir, zap.NewNop())
	testutil.AssertErrorContains(t, err, "broken.lua")
}
