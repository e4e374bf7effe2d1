// Package cli implements the dbjoin command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/koustreak/dbjoin/internal/config"
	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/filestore"
	"github.com/koustreak/dbjoin/internal/filestore/minio"
	"github.com/koustreak/dbjoin/internal/logger"
	"github.com/koustreak/dbjoin/internal/snapshot"
)

// errReported marks a failure whose message was already written to stderr.
var errReported = errors.New("reported")

// app carries the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     *config.Config
	log     *logger.Logger
	out     io.Writer
	errOut  io.Writer
}

// Execute runs the command line against the process arguments and returns
// the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes one command line. Results go to out; logs and errors go to
// errOut.
func Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := NewRootCommand(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(errOut, "Error:", err)
		}
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "dbjoin",
		Short: "Find join paths between database tables",
		Long: `dbjoin reads the foreign keys of a PostgreSQL or MySQL database (or of a
saved snapshot) and finds the shortest way to join a set of tables, printing
the path as JSON or as a ready-to-run SELECT statement.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./dbjoin.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file with DBJOIN_* variables (default is ./.env if present)")
	pf.String("dsn", "", "database URL or DSN (postgres://..., mysql://..., user:pass@tcp(host)/db)")
	pf.String("driver", "", "database driver: postgres or mysql (default: detected from the DSN)")
	pf.StringSlice("schema", nil, "schemas to read (default: public, or the MySQL database)")
	pf.String("snapshot", "", "read schemas from a snapshot file or s3:// location instead of a database")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")

	a.bind(pf.Lookup("dsn"), "database.dsn")
	a.bind(pf.Lookup("driver"), "database.driver")
	a.bind(pf.Lookup("schema"), "database.schemas")
	a.bind(pf.Lookup("snapshot"), "snapshot")
	a.bind(pf.Lookup("log-level"), "log.level")
	a.bind(pf.Lookup("log-format"), "log.format")

	root.AddCommand(
		a.tablesCommand(),
		a.describeCommand(),
		a.joinCommand(),
		a.snapshotCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) init() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	lc := cfg.LoggerConfig()
	lc.Output = a.errOut

	a.cfg = cfg
	a.log = logger.New(lc)
	return nil
}

// openProvider returns the snapshot when one is configured, the live
// database otherwise.
func (a *app) openProvider(ctx context.Context) (database.Provider, error) {
	if loc := a.cfg.Snapshot; loc != "" {
		l, err := a.loader(ctx, loc)
		if err != nil {
			return nil, err
		}
		src, err := l.Open(ctx, loc)
		if err != nil {
			return nil, err
		}
		a.log.With().
			Str("snapshot", loc).
			Int("tables", len(src.Document().Tables)).
			Logger().
			Debug("snapshot loaded")
		return src, nil
	}

	if a.cfg.Database.DSN == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "no database configured: pass --dsn or --snapshot")
	}
	return database.Open(ctx, a.cfg.DatabaseConfig(), a.log)
}

// loader connects the object store only when location needs it.
func (a *app) loader(ctx context.Context, location string) (*snapshot.Loader, error) {
	store := a.cfg.FilestoreConfig()
	l := &snapshot.Loader{Bucket: store.Bucket}
	if filestore.IsLocation(location) && store.Enabled() {
		drv, err := minio.New(ctx, store)
		if err != nil {
			return nil, err
		}
		l.Store = drv
	}
	return l, nil
}
