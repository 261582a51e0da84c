package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/config"
	"nyiyui.ca/hato/shingo/game"
	"nyiyui.ca/hato/shingo/hof"
	"nyiyui.ca/hato/shingo/kujo"
	"nyiyui.ca/hato/shingo/presets"
	"nyiyui.ca/hato/shingo/ui"
)

func main() {
	defer zap.S().Sync()
	rc, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		os.Exit(2)
	}
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	flag.StringVar(&rc.Addr, "addr", rc.Addr, "listen address of the HTTP API (empty to disable)")
	flag.StringVar(&rc.DBPath, "db", rc.DBPath, "hall of fame database (empty to disable)")
	flag.StringVar(&rc.DBKind, "db-kind", rc.DBKind, "hall of fame database kind (bunt or sqlite)")
	flag.StringVar(&rc.Station, "station", rc.Station, fmt.Sprintf("station file, or one of %s", strings.Join(presets.Names(), ", ")))
	flag.StringVar(&rc.Player, "player", rc.Player, "player name")
	flag.DurationVar(&rc.Tick, "tick", rc.Tick, "simulated time per step")
	flag.Float64Var(&rc.Speedup, "speedup", rc.Speedup, "simulated time per wall-clock time")
	flag.Float64Var(&rc.Frequency, "frequency", rc.Frequency, "arrival rate in trains per second")
	flag.DurationVar(&rc.GameLength, "length", rc.GameLength, "simulated length of the game (0 for endless)")
	flag.Int64Var(&rc.Seed, "seed", rc.Seed, "random seed")
	withUI := flag.Bool("ui", false, "show the terminal dashboard")
	dumpStation := flag.Bool("dump-station", false, "print the station as JSON and exit")
	flag.Parse()

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*level)
	if *withUI {
		// the dashboard owns the terminal
		cfg.OutputPaths = []string{"shingo.log"}
	}
	dev, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	if err := rc.Validate(); err != nil {
		zap.S().Fatalf("config: %s", err)
	}
	rc.Log()

	st, err := loadStation(rc.Station)
	if err != nil {
		zap.S().Fatalf("load station: %s", err)
	}
	if *dumpStation {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			zap.S().Fatalf("dump station: %s", err)
		}
		return
	}
	m, routes, err := st.Build()
	if err != nil {
		zap.S().Fatalf("build station: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var store hof.Store
	if rc.DBPath != "" {
		store, err = hof.Open(ctx, rc.DBKind, rc.DBPath)
		if err != nil {
			zap.S().Fatalf("open hall of fame: %s", err)
		}
		defer store.Close()
	}

	g, err := game.New(game.Conf{
		Player:    rc.Player,
		Map:       m,
		Routes:    routes,
		Frequency: rc.Frequency,
		Tick:      rc.Tick,
		Speedup:   rc.Speedup,
		Length:    rc.GameLength,
		Seed:      rc.Seed,
		Store:     store,
	})
	if err != nil {
		zap.S().Fatalf("new game: %s", err)
	}
	defer g.Close()

	if rc.Addr != "" {
		s := kujo.NewServer(g, store)
		defer s.Close()
		srv := &http.Server{Addr: rc.Addr, Handler: s.Handler()}
		go func() {
			zap.S().Infof("listening on %s", rc.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.S().Errorf("serve: %s", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.S().Warnf("shutdown: %s", err)
			}
		}()
	}

	if *withUI {
		ctx2, cancel := context.WithCancel(ctx)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := g.Run(ctx2); err != nil && !errors.Is(err, context.Canceled) {
				zap.S().Errorf("game: %s", err)
			}
		}()
		if err := ui.Run(ctx2, g); err != nil {
			zap.S().Errorf("ui: %s", err)
		}
		cancel()
		<-done
	} else if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorf("game: %s", err)
	}
	report(g, store)
}

// loadStation resolves name as a preset first, then as a station file.
func loadStation(name string) (config.Station, error) {
	if st, ok := presets.Lookup(name); ok {
		return st, nil
	}
	return config.LoadStation(name)
}

func report(g *game.Game, store hof.Store) {
	res, ok := g.Result()
	if !ok {
		zap.S().Infof("game %s stopped: %s", g.ID, g.Status().Performance())
		return
	}
	fmt.Printf("%s: %.1f right/h (%s)\n", res.Player, res.RightPerHour, res.Performance)
	if store == nil {
		return
	}
	top, err := store.Top(context.Background(), res.Station, 10)
	if err != nil {
		zap.S().Errorf("hall of fame: %s", err)
		return
	}
	fmt.Printf("hall of fame for %s:\n", res.Station)
	for i, e := range top {
		mark := ""
		if e.ID == res.ID {
			mark = " <"
		}
		fmt.Printf("%2d. %-16s %6.1f/h %s%s\n", i+1, e.Player, e.RightPerHour, e.RecordedAt.Format(time.DateTime), mark)
	}
}
