package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/marketplace/payouts/internal/infrastructure/config"
	"github.com/marketplace/payouts/internal/infrastructure/logger"
	"github.com/marketplace/payouts/internal/infrastructure/migration"
	"github.com/marketplace/payouts/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

// invocation is what a command gets to work with
type invocation struct {
	args []string
	dir  string
	log  *zap.Logger
	m    *migration.Migrator
}

type command struct {
	usage   string
	help    string
	nargs   int
	needsDB bool
	run     func(inv invocation) error
}

var commands = map[string]command{
	"up": {usage: "up", help: "Apply all pending migrations", needsDB: true,
		run: func(inv invocation) error { return inv.m.Up() }},
	"down": {usage: "down", help: "Roll back every migration (requires -yes)", needsDB: true,
		run: func(inv invocation) error { return inv.m.Down() }},
	"step": {usage: "step <n>", help: "Apply n migrations, negative n rolls back", nargs: 1, needsDB: true,
		run: func(inv invocation) error {
			n, err := strconv.Atoi(inv.args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("invalid step count %q", inv.args[0])
			}
			return inv.m.Steps(n)
		}},
	"goto": {usage: "goto <version>", help: "Migrate up or down to version", nargs: 1, needsDB: true,
		run: func(inv invocation) error {
			v, err := strconv.ParseUint(inv.args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", inv.args[0])
			}
			return inv.m.GoTo(uint(v))
		}},
	"version": {usage: "version", help: "Show the applied version", needsDB: true,
		run: func(inv invocation) error {
			v, dirty, err := inv.m.Version()
			if err != nil {
				return err
			}
			inv.log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			return nil
		}},
	"force": {usage: "force <version>", help: "Mark version applied without running it (repair only)", nargs: 1, needsDB: true,
		run: func(inv invocation) error {
			v, err := strconv.Atoi(inv.args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", inv.args[0])
			}
			return inv.m.Force(v)
		}},
	"create": {usage: "create <name> [description]", help: "Write a new up/down pair to the migrations directory", nargs: 1,
		run: func(inv invocation) error {
			dir := inv.dir
			if dir == "" {
				dir = defaultMigrationsDir
			}
			var description string
			if len(inv.args) > 1 {
				description = inv.args[1]
			}
			pair, err := migration.Create(dir, inv.args[0], description, time.Now())
			if err != nil {
				return err
			}
			inv.log.Info("Migration created",
				zap.Uint("version", pair.Version),
				zap.String("up_file", pair.UpPath),
				zap.String("down_file", pair.DownPath),
			)
			return nil
		}},
	"list": {usage: "list", help: "List available migrations",
		run: func(inv invocation) error {
			files := fs.FS(migrations.FS)
			if inv.dir != "" {
				files = os.DirFS(inv.dir)
			}
			catalog, err := migration.Catalog(files)
			if err != nil {
				return err
			}
			for _, e := range catalog {
				if e.HasDown {
					fmt.Println(e)
				} else {
					fmt.Println(e, "(no rollback)")
				}
			}
			return nil
		}},
}

// order of the usage text
var commandOrder = []string{"up", "down", "step", "goto", "version", "force", "create", "list"}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dir         string
		logLevel    string
		yes         bool
		lockTimeout time.Duration
	)
	flag.StringVar(&dir, "path", "", "Migrations directory (default: schema embedded in the binary; create writes to ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&yes, "yes", false, "Confirm a full rollback with down")
	flag.DurationVar(&lockTimeout, "lock-timeout", time.Minute, "How long to wait for another migrator's lock")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return 2
	}
	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok || len(args) < cmd.nargs {
		printUsage()
		return 2
	}
	if name == "down" && !yes {
		fmt.Fprintln(os.Stderr, "down drops the whole ledger schema; rerun with -yes to confirm")
		return 2
	}

	log, err := logger.New(logger.Config{
		Level:      logLevel,
		Format:     "console",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	inv := invocation{args: args, dir: dir, log: log}
	if cmd.needsDB {
		m, closeDB, err := openMigrator(dir, lockTimeout, log)
		if err != nil {
			log.Error("Failed to open migrator", zap.Error(err))
			return 1
		}
		defer closeDB()
		inv.m = m
	}

	if err := cmd.run(inv); err != nil {
		log.Error("Migration command failed", zap.String("command", name), zap.Error(err))
		return 1
	}
	return 0
}

func openMigrator(dir string, lockTimeout time.Duration, log *zap.Logger) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, log, migration.FromDir(dir), migration.WithLockTimeout(lockTimeout))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	// Closing the migrator closes db as well
	return m, func() { _ = m.Close() }, nil
}

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Ledger schema migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(out, "  %-28s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe database comes from config.toml or PAYOUTS_DATABASE_* variables.")
}
