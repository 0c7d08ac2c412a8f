package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wildcore/server/internal/characterstore"
	"github.com/wildcore/server/internal/combat/formula"
	"github.com/wildcore/server/internal/config"
	"github.com/wildcore/server/internal/directory"
	"github.com/wildcore/server/internal/entity"
	gonet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/persist"
	"github.com/wildcore/server/internal/router"
	"github.com/wildcore/server/internal/staticdata"
	"github.com/wildcore/server/internal/zone"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/worldcore.toml"
	if p := os.Getenv("WORLDCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting worldcore",
		zap.String("server", cfg.Server.Name),
		zap.Int32("client_build", cfg.World.ClientBuild),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := persist.NewDB(ctx, cfg.Database, log)
	cancel()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	log.Info("connected to postgres")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = characterstore.RunMigrations(migrateCtx, db.Pool)
	migrateCancel()
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations complete")

	data, err := staticdata.Load(cfg.World.StaticDataDir)
	if err != nil {
		return fmt.Errorf("static data: %w", err)
	}
	log.Info("static data loaded", zap.String("dir", cfg.World.StaticDataDir))

	formulas, err := formula.NewEngine(cfg.World.FormulaScriptsDir, log)
	if err != nil {
		return fmt.Errorf("formula engine: %w", err)
	}

	chars := characterstore.New(db, log)

	guids := &entity.Allocator{}
	dir := directory.New(guids)

	// Router implements both net.Dispatcher (inbound) and zone.Sink
	// (outbound broadcast): the Router is built first, the Registry is
	// built with it as its sink, and deps.Zones is filled in afterward.
	deps := &router.Deps{
		Directory:   dir,
		Accounts:    chars,
		Characters:  chars,
		ClientBuild: cfg.World.ClientBuild,
		DefaultZone: zone.Key{WorldID: cfg.World.DefaultWorldID, InstanceID: cfg.World.DefaultInstanceID},
	}
	if zd, ok := data.Zone(cfg.World.DefaultWorldID); ok {
		deps.DefaultContent = zd.DefaultContent
	}

	rtr := router.New(deps, log)

	zones := zone.NewRegistry(cfg.World.CellSize, data, data, formulas, guids, rtr, log)
	deps.Zones = zones

	zoneCtx, zoneCancel := context.WithCancel(context.Background())
	go zones.Run(zoneCtx)

	pktPerSec := 0
	if cfg.RateLimit.Enabled {
		pktPerSec = cfg.Network.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(gonet.ServerConfig{
		BindAddress:      cfg.Network.BindAddress,
		OutQueueSize:     cfg.Network.OutQueueSize,
		PacketsPerSecond: pktPerSec,
		ReadTimeout:      cfg.Network.ReadTimeout,
		WriteTimeout:     cfg.Network.WriteTimeout,
	}, rtr, log)
	if err != nil {
		zoneCancel()
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()
	log.Info("listening", zap.String("addr", netServer.Addr().String()))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	netServer.Shutdown()
	flushSessions(dir, zones, chars, log)
	zoneCancel()

	log.Info("worldcore stopped")
	return nil
}

// flushSessions is the graceful-shutdown persistence sweep: every bound
// WorldSession is saved to the character store before the process exits,
// so a restart doesn't lose the last few ticks of position/health state a
// zone actor never got to persist on its own cadence.
func flushSessions(dir *directory.Directory, zones *zone.Registry, chars *characterstore.Store, log *zap.Logger) {
	sessions := dir.AllSessions()
	if len(sessions) == 0 {
		return
	}
	log.Info("flushing world sessions", zap.Int("count", len(sessions)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ws := range sessions {
		instance, ok := zones.Lookup(ws.Zone)
		if !ok {
			continue
		}
		ent, ok := instance.Lookup(ws.EntityGUID)
		if !ok {
			continue
		}
		snap := router.CharacterSnapshot{
			CharacterID: ws.CharacterID,
			AccountID:   ws.AccountID,
			Name:        ws.CharacterName,
			Level:       ent.Level,
			Health:      ent.Health,
			MaxHealth:   ent.MaxHealth,
			FactionID:   ent.FactionID,
			Position:    ent.Position,
			Zone:        ws.Zone,
		}
		if err := chars.SaveCharacter(ctx, snap); err != nil {
			log.Warn("shutdown sweep: save_character failed",
				zap.Int64("character_id", ws.CharacterID), zap.Error(err))
		}
	}
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
