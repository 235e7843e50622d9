// Command metaserver runs the Myth game metaserver: the player login
// port, the room port, the web admin port and the periodic ranking,
// stats-export and order-maintenance loops.
//
// Usage:
//
//	metaserver [flags]        run in the foreground
//	metaserver start [flags]  run and write the pid file
//	metaserver stop           signal the process named in the pid file
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/mythmeta/internal/config"
	"github.com/udisondev/mythmeta/internal/db"
	"github.com/udisondev/mythmeta/internal/flatfile"
	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/metaserver"
	"github.com/udisondev/mythmeta/internal/rank"
	"github.com/udisondev/mythmeta/internal/room"
	"github.com/udisondev/mythmeta/internal/search"
	"github.com/udisondev/mythmeta/internal/store"
)

type options struct {
	configPath string
	userdPort  int
	roomPort   int
	webPort    int
	noMail     bool
	writePID   bool
}

func main() {
	args := os.Args[1:]
	command := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("metaserver", flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "config file path")
	fs.IntVar(&opts.userdPort, "userd-port", 0, "player login port (overrides config)")
	fs.IntVar(&opts.roomPort, "room-port", 0, "room port (overrides config)")
	fs.IntVar(&opts.webPort, "web-port", 0, "web admin port (overrides config)")
	fs.BoolVar(&opts.noMail, "no-mail", false, "disable account notice mail")
	_ = fs.Parse(args)

	switch command {
	case "", "run":
	case "start":
		opts.writePID = true
	case "stop":
		if err := stop(opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadMetaserver(config.Path(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.userdPort > 0 {
		cfg.UserdPort = opts.userdPort
	}
	if opts.roomPort > 0 {
		cfg.RoomPort = opts.roomPort
	}
	if opts.webPort > 0 {
		cfg.WebPort = opts.webPort
	}
	if opts.noMail {
		cfg.NoMail = true
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("mythmeta starting",
		"userd_port", cfg.UserdPort, "room_port", cfg.RoomPort, "web_port", cfg.WebPort,
		"storage", cfg.Storage.Backend)

	if opts.writePID {
		if err := writePIDFile(cfg.PIDFile); err != nil {
			return err
		}
		defer os.Remove(cfg.PIDFile)
	}

	stores, journal, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	templates, err := room.LoadRoomList(cfg.RoomListPath)
	if err != nil {
		return fmt.Errorf("loading room list: %w", err)
	}
	rooms := room.NewRegistry(templates, cfg.RoomMaxMembers)
	slog.Info("room list loaded", "rooms", len(templates), "path", cfg.RoomListPath)

	scorer := game.NewScorer(stores.Users, journal, stores.Audit)
	games := game.NewCoordinator(scorer)
	index := search.NewIndex()
	ranker := rank.NewRanker(stores.Users)
	exporter := rank.NewStatsExporter(stores.Users, cfg.ScoreboardPath, cfg.ScoreboardTopN)
	maintainer := rank.NewOrderMaintainer(stores.Orders, stores.Audit)

	srv := metaserver.NewServer(cfg, stores, rooms, games, index, ranker)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("metaserver: %w", err)
		}
		return nil
	})
	g.Go(func() error { return games.Run(gctx) })
	g.Go(func() error { return ranker.Run(gctx) })
	g.Go(func() error { return exporter.Run(gctx) })
	g.Go(func() error { return maintainer.Run(gctx) })

	err = g.Wait()
	slog.Info("mythmeta stopped")
	return err
}

// openStores builds the persistence layer for the configured backend
// and returns a cleanup closure.
func openStores(ctx context.Context, cfg config.Metaserver) (metaserver.Stores, store.ScoreJournal, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return openPostgres(ctx, cfg)
	case "flatfile":
		return openFlatfile(cfg)
	default:
		return metaserver.Stores{}, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func openPostgres(ctx context.Context, cfg config.Metaserver) (metaserver.Stores, store.ScoreJournal, func(), error) {
	dsn := cfg.Database.DSN()
	database, err := db.New(ctx, dsn)
	if err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.RunMigrations(ctx, dsn); err != nil {
		database.Close()
		return metaserver.Stores{}, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database connected, migrations applied")

	pool := database.Pool()
	stores := metaserver.Stores{
		Users:  db.NewUserRepository(pool),
		Orders: db.NewOrderRepository(pool),
		Bans:   db.NewBanRepository(pool),
		Audit:  db.NewAuditRepository(pool),
	}
	return stores, db.NewJournalRepository(pool), database.Close, nil
}

func openFlatfile(cfg config.Metaserver) (metaserver.Stores, store.ScoreJournal, func(), error) {
	dir := cfg.Storage.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	users, err := flatfile.OpenUserFile(filepath.Join(dir, "users.dat"))
	if err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("opening user file: %w", err)
	}
	orders, err := flatfile.OpenOrderFile(filepath.Join(dir, "orders.dat"))
	if err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("opening order file: %w", err)
	}
	bans, err := flatfile.OpenBanFile(filepath.Join(dir, "bans.lst"))
	if err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("opening ban file: %w", err)
	}
	audit, err := flatfile.OpenAuditFile(filepath.Join(dir, "audit.log"))
	if err != nil {
		return metaserver.Stores{}, nil, nil, fmt.Errorf("opening audit file: %w", err)
	}
	journal, err := flatfile.OpenJournalFile(filepath.Join(dir, "scored.dat"))
	if err != nil {
		audit.Close()
		return metaserver.Stores{}, nil, nil, fmt.Errorf("opening score journal: %w", err)
	}
	slog.Info("flatfile stores opened", "dir", dir)

	stores := metaserver.Stores{Users: users, Orders: orders, Bans: bans, Audit: audit}
	closeAll := func() {
		_ = journal.Close()
		_ = audit.Close()
	}
	return stores, journal, closeAll, nil
}

func writePIDFile(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && processAlive(pid) {
			return fmt.Errorf("already running as pid %d (%s)", pid, path)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing pid file %s: %w", path, err)
	}
	return nil
}

// stop reads the pid file and delivers SIGTERM.
func stop(opts options) error {
	cfg, err := config.LoadMetaserver(config.Path(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	data, err := os.ReadFile(cfg.PIDFile)
	if err != nil {
		return fmt.Errorf("reading pid file %s: %w", cfg.PIDFile, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("pid file %s: %w", cfg.PIDFile, err)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling pid %d: %w", pid, err)
	}
	fmt.Printf("sent SIGTERM to pid %d\n", pid)
	return nil
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
