package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/sectorsim/internal/actor"
	"github.com/l1jgo/sectorsim/internal/config"
	"github.com/l1jgo/sectorsim/internal/data"
	"github.com/l1jgo/sectorsim/internal/observer"
	"github.com/l1jgo/sectorsim/internal/persist"
	"github.com/l1jgo/sectorsim/internal/render/term"
	"github.com/l1jgo/sectorsim/internal/scripting"
	"github.com/l1jgo/sectorsim/internal/system"
	"github.com/l1jgo/sectorsim/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultConfigPath = "config/sectorsim.toml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(zoneName string, w, h, sector int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              sectorsim  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      concurrent 2D sector simulation      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mzone:\033[0m %s \033[90m(%dx%d, sector %d)\033[0m\n\n", zoneName, w, h, sector)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := numbers.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ────────────────────────────────────────────────────

func loadConfig() (*config.Config, error) {
	path := defaultConfigPath
	if p := os.Getenv("SECTORSIM_CONFIG"); p != "" {
		path = p
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run() error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// The terminal viewer owns the screen; keep the banner off it.
	quiet := cfg.Terminal.Enabled
	if !quiet {
		printBanner(cfg.Zone.Name, cfg.Zone.Width, cfg.Zone.Height, cfg.Zone.SectorSize)
	}

	// 3. Create the zone
	zone, err := world.NewZone(world.Options{
		Width:         cfg.Zone.Width,
		Height:        cfg.Zone.Height,
		SectorSize:    cfg.Zone.SectorSize,
		CycleInterval: cfg.Scheduler.CycleInterval,
		MaxCameras:    cfg.Zone.MaxCameras,
		TrimInterval:  cfg.Scheduler.TrimInterval,
		Logger:        log.With(zap.String("zone", cfg.Zone.Name)),
	})
	if err != nil {
		return fmt.Errorf("zone: %w", err)
	}

	// 4. Lua scripts
	var engine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		engine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		engine.SetStrict(cfg.Scripting.Strict)
		zone.Runner().Register(system.NewScriptSystem(zone, engine))
		if !quiet {
			printOK("Lua scripts loaded")
		}
	}

	// 5. Spawn sprites
	seed := cfg.Data.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	spawned := 0
	if cfg.Data.SpawnFile != "" {
		list, err := data.LoadSpawnList(cfg.Data.SpawnFile)
		if err != nil {
			return fmt.Errorf("spawn list: %w", err)
		}
		spawned, err = actor.Spawn(zone, list, engine, rand.New(rand.NewSource(seed)))
		if err != nil {
			return fmt.Errorf("spawn: %w", err)
		}
	}
	if !quiet {
		printSection("Data")
		printStat("sectors", zone.Table().Len())
		printStat("sprites", spawned)
		fmt.Println()
	}

	// 6. Optional PostgreSQL statistics
	var (
		writer system.StatsWriter
		runs   *persist.RunRepo
		runID  int64
	)
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		version, err := persist.RunMigrations(ctx, db)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		writer = persist.NewStatsRepo(db)
		runs = persist.NewRunRepo(db)
		runID, err = runs.Begin(ctx, cfg.Zone.Name, cfg.Data.SpawnFile, seed, spawned)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		if !quiet {
			printOK(fmt.Sprintf("PostgreSQL connected, schema v%d", version))
		}
	}
	stats := system.NewStatsSystem(zone, cfg.Zone.Name, cfg.Scheduler.StatsInterval, writer, log)
	zone.Runner().Register(stats)

	// 7. Start the processor and the outer surfaces
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	threads := cfg.Scheduler.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	if err := zone.Start(gctx, threads); err != nil {
		return fmt.Errorf("start zone: %w", err)
	}
	g.Go(zone.Wait)
	g.Go(func() error { return stats.Run(gctx) })

	if cfg.Observer.Enabled {
		obs, err := observer.NewServer(zone, cfg.Zone.Name, cfg.Observer, log)
		if err != nil {
			cancel()
			_ = zone.Wait()
			return err
		}
		g.Go(func() error { return obs.ListenAndServe(gctx, cfg.Observer.BindAddress) })
		if !quiet {
			printReady(fmt.Sprintf("observer on ws://%s/ws", cfg.Observer.BindAddress))
		}
	}

	if cfg.Terminal.Enabled {
		screen, err := tcell.NewScreen()
		if err == nil {
			err = screen.Init()
		}
		if err != nil {
			cancel()
			_ = zone.Wait()
			return fmt.Errorf("terminal: %w", err)
		}
		defer screen.Fini()
		viewer, err := term.NewViewer(screen, zone, world.UserID(cfg.Terminal.User), cfg.Terminal.Scale, cfg.Terminal.FrameRate, log)
		if err != nil {
			cancel()
			_ = zone.Wait()
			return err
		}
		g.Go(func() error {
			defer cancel()
			defer viewer.Close()
			return viewer.Run(gctx)
		})
	}

	if !quiet {
		printSection("Ready")
		printReady(fmt.Sprintf("%d workers, cycle %s", threads, cfg.Scheduler.CycleInterval))
		fmt.Println()
	}

	err = g.Wait()
	log.Info("simulation stopped",
		zap.Uint64("cycles", zone.Cycle()),
		zap.Duration("zone_time", zone.ZoneTime()),
		zap.String("cycles_fmt", numbers.Sprintf("%d", zone.Cycle())),
	)

	if runs != nil {
		fctx, fcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer fcancel()
		if ferr := runs.Finish(fctx, runID, zone.Cycle()); ferr != nil {
			log.Error("record run end failed", zap.Error(ferr))
		}
	}
	return err
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
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
