package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otgo/server/internal/game"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Lua entry points. A script that does not define one allows the event.
const (
	fnOnLogin  = "on_login"
	fnOnLogout = "on_logout"
	fnOnUse    = "on_use"
	fnOnSay    = "on_say"
)

// Engine wraps a single gopher-lua VM and implements game.Hooks.
// Single-goroutine access only (dispatcher).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

var _ game.Hooks = (*Engine)(nil)

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("server_log", vm.NewFunction(e.luaLog))

	// Top-level scripts first, then the optional feature directories
	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "core"), filepath.Join(scriptsDir, "events")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, err
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaLog is server_log(msg) for scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func (e *Engine) OnLogin(p *world.Player) game.Decision {
	return e.decide(fnOnLogin, e.playerTable(p))
}

func (e *Engine) OnLogout(p *world.Player) game.Decision {
	return e.decide(fnOnLogout, e.playerTable(p))
}

func (e *Engine) OnUse(p *world.Player, it *world.Item, pos geo.Position) game.Decision {
	item := e.vm.NewTable()
	item.RawSetString("id", lua.LNumber(it.Type.ID))
	item.RawSetString("client_id", lua.LNumber(it.ClientID()))
	item.RawSetString("name", lua.LString(it.Type.Name))
	item.RawSetString("count", lua.LNumber(it.Count))
	return e.decide(fnOnUse, e.playerTable(p), item, e.positionTable(pos))
}

func (e *Engine) OnSay(p *world.Player, speakType uint8, text string) game.Decision {
	return e.decide(fnOnSay, e.playerTable(p), lua.LNumber(speakType), lua.LString(text))
}

// decide calls a hook. The hook returns nothing or true to allow, or
// false and an optional message to deny. Script errors are logged and
// the event is allowed.
func (e *Engine) decide(name string, args ...lua.LValue) game.Decision {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return game.Allow
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua hook error", zap.String("func", name), zap.Error(err))
		return game.Allow
	}

	allow := e.vm.Get(-2)
	msg := e.vm.Get(-1)
	e.vm.Pop(2)

	if allow == lua.LNil || lua.LVAsBool(allow) {
		return game.Allow
	}
	d := game.Decision{}
	if s, ok := msg.(lua.LString); ok {
		d.Message = string(s)
	}
	return d
}

func (e *Engine) playerTable(p *world.Player) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(p.ID()))
	t.RawSetString("guid", lua.LNumber(p.GUID))
	t.RawSetString("name", lua.LString(p.Name()))
	t.RawSetString("level", lua.LNumber(p.Level))
	t.RawSetString("account_type", lua.LNumber(p.AccountType))
	t.RawSetString("premium_days", lua.LNumber(p.PremiumDays))
	t.RawSetString("position", e.positionTable(p.Position()))
	return t
}

func (e *Engine) positionTable(pos geo.Position) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(pos.X))
	t.RawSetString("y", lua.LNumber(pos.Y))
	t.RawSetString("z", lua.LNumber(pos.Z))
	return t
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
