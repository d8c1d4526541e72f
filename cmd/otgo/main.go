package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/otgo/server/internal/admission"
	"github.com/otgo/server/internal/config"
	"github.com/otgo/server/internal/core/dispatch"
	"github.com/otgo/server/internal/core/event"
	coresys "github.com/otgo/server/internal/core/system"
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/game"
	"github.com/otgo/server/internal/geo"
	gonet "github.com/otgo/server/internal/net"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/persist"
	"github.com/otgo/server/internal/protocol"
	"github.com/otgo/server/internal/scripting"
	"github.com/otgo/server/internal/system"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName, worldName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Printf("\033[36;1m  │\033[0m               otgo  v%-21s\033[36;1m│\033[0m\n", version)
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(world: %s)\033[0m\n\n", serverName, worldName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.WorldName)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	schema, err := persist.RunMigrations(ctx, db.Pool)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK(fmt.Sprintf("schema at version %d", schema))
	fmt.Println()

	// 4. Create repositories
	accountRepo := persist.NewAccountRepo(db)
	banRepo := persist.NewBanRepo(db)
	playerRepo := persist.NewPlayerRepo(db)

	// 5. Load static data
	printSection("game data")

	items, err := data.LoadItemTable(cfg.Data.ItemsPath)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	printStat("item types", items.Count())

	md, err := data.LoadMapData(cfg.Data.MapPath, items)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	if md.Temple == (geo.Position{}) {
		t := cfg.Game.TemplePosition
		md.Temple = geo.Position{X: uint16(t[0]), Y: uint16(t[1]), Z: uint8(t[2])}
	}

	m := world.NewMap(cfg.Game.MapWidth, cfg.Game.MapHeight, cfg.Game.AOICellSize)
	m.SetViewRange(cfg.Game.AwareRangeMaxW, cfg.Game.AwareRangeMaxH)
	if err := m.Load(md, items); err != nil {
		return fmt.Errorf("build map: %w", err)
	}
	printStat("portals", len(md.Portals))

	// 6. Scripting
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printOK("Lua hooks loaded")

	// 7. Dispatcher, scheduler and game
	dispatcher := dispatch.New(log)
	scheduler := dispatch.NewScheduler(dispatcher)
	bus := event.NewBus()

	g := game.New(m, items, engine, scheduler, bus, game.Options{
		FreePremium:  cfg.Game.FreePremium,
		StepInterval: cfg.Game.StepInterval,
	}, log)
	printStat("creatures spawned", g.SpawnAll(md.Spawns))
	fmt.Println()

	// 8. Packet handlers
	handlers := packet.NewRegistry[*protocol.GameSession](log)
	sessions := protocol.NewSessions()
	deps := &protocol.Deps{
		Game:       g,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Admission:  admission.New(cfg.Game.MaxPlayers),
		Accounts:   accountRepo,
		Bans:       banRepo,
		Players:    playerRepo,
		Sessions:   sessions,
		Handlers:   handlers,
		Config:     cfg,
		Log:        log,
	}
	protocol.RegisterAll(handlers, deps)

	deps.Key, err = gonet.LoadRSAKey(cfg.Network.RSAKeyPath)
	if err != nil {
		return fmt.Errorf("rsa key: %w", err)
	}

	// 9. Systems
	persistence := system.NewPersistenceSystem(bus, g.Players, playerRepo, log,
		ticksIn(cfg.Game.SaveInterval, cfg.Network.TickRate), cfg.Game.SaveTimeout)

	runner := coresys.NewRunner()
	runner.Register(system.NewEventsSystem(bus))
	runner.Register(system.NewKeepAliveSystem(sessions, cfg.Game.PingInterval, cfg.Game.IdleKickTimeout))
	runner.Register(system.NewLinklessSystem(g, log))
	runner.Register(system.NewOutputSystem(sessions))
	runner.Register(persistence)

	// 10. Listeners
	serverOpts := gonet.ServerOptions{
		Conn: gonet.ConnOptions{
			OutQueueSize: cfg.Network.OutQueueSize,
			PktPerSec:    cfg.Network.PacketsPerSecond,
			ReadTimeout:  cfg.Network.ReadTimeout,
			WriteTimeout: cfg.Network.WriteTimeout,
		},
	}
	if cfg.Trace.Enabled {
		serverOpts.TraceDir = cfg.Trace.Directory
	}

	var connIDs atomic.Uint64
	var servers []*gonet.Server

	if cfg.Network.LoginBindAddress != "" {
		loginServer, err := gonet.NewServer("login", cfg.Network.LoginBindAddress, &connIDs,
			func(c *gonet.Connection) gonet.Protocol {
				return protocol.NewLoginSession(deps, c, c.ID, c.IP)
			}, serverOpts, log)
		if err != nil {
			return fmt.Errorf("login listener: %w", err)
		}
		servers = append(servers, loginServer)
	}

	gameServer, err := gonet.NewServer("game", cfg.Network.GameBindAddress, &connIDs,
		func(c *gonet.Connection) gonet.Protocol {
			return protocol.NewGameSession(deps, c, c.ID, c.IP)
		}, serverOpts, log)
	if err != nil {
		return fmt.Errorf("game listener: %w", err)
	}
	servers = append(servers, gameServer)

	for _, s := range servers {
		go s.AcceptLoop()
	}
	if addr := cfg.Network.WebSocketAddress; addr != "" {
		go func() {
			if err := gameServer.ServeWebSocket(addr); err != nil {
				log.Error("websocket listener stopped", zap.Error(err))
			}
		}()
	}

	// 11. Start game loop
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go scheduler.Run(loopCtx)
	go func() {
		defer close(loopDone)
		dispatcher.Run(loopCtx, cfg.Network.TickRate, runner.Tick)
	}()
	dispatcher.AddTask(func() { g.SetState(game.StateNormal) })

	printSection("ready")
	for _, s := range servers {
		printReady(fmt.Sprintf("listening on %s", s.Addr()))
	}
	printReady(fmt.Sprintf("game loop running (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	for _, s := range servers {
		s.Shutdown()
	}

	kicked := make(chan struct{})
	dispatcher.AddTask(func() {
		defer close(kicked)
		g.SetState(game.StateShutdown)
		var online []*world.Player
		g.Players.AllPlayers(func(p *world.Player) { online = append(online, p) })
		for _, p := range online {
			g.Kick(p)
		}
	})
	select {
	case <-kicked:
	case <-time.After(5 * time.Second):
		log.Warn("timed out kicking players")
	}

	stopLoop()
	<-loopDone
	dispatcher.Stop()

	// The loop is gone; deliver the last PlayerLeft events and flush here.
	runner.Tick(0)
	persistence.SaveAllPlayers()

	log.Info("server stopped")
	return nil
}

// ticksIn converts a wall-clock interval to a tick count, 0 meaning never.
func ticksIn(interval, tick time.Duration) int {
	if interval <= 0 || tick <= 0 {
		return 0
	}
	return max(int(interval/tick), 1)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
