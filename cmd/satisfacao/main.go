package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/config"
	"github.com/soaringjerry/satisfacao/internal/db"
	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/monitoring"
	"github.com/soaringjerry/satisfacao/internal/services"
	"github.com/soaringjerry/satisfacao/internal/survey"
)

const usage = `usage: satisfacao [-config DIR] <command> [flags]

commands:
  init      create the database, the default administrator and the example questionnaires
  list      list questionnaires with their response counts
  stats     response statistics of one questionnaire
  report    full report of one questionnaire
  export    export responses as CSV
  take      answer a questionnaire in the terminal
  adduser   create an account
  login     check credentials and print a session token
  whoami    show the account behind a session token
  passwd    change an account password
`

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	global := flag.NewFlagSet("satisfacao", flag.ContinueOnError)
	global.SetOutput(errOut)
	global.Usage = func() { fmt.Fprint(errOut, usage) }
	configDir := global.String("config", ".", "directory holding config.yaml and .env")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(errOut, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Log.Sync() }()

	reg := prometheus.NewRegistry()
	if err := monitoring.Register(reg); err != nil {
		logger.Log.Warn("register metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = execute(ctx, cfg, rest[0], rest[1:], in, out, errOut)

	if cfg.Metrics.Textfile != "" {
		if werr := monitoring.WriteTextfile(cfg.Metrics.Textfile, reg); werr != nil {
			logger.Log.Warn("write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(werr))
		}
	}
	switch {
	case errors.Is(err, errUsage):
		return 2
	case err != nil:
		logger.Log.Error("command failed", zap.String("command", rest[0]), zap.Error(err))
		fmt.Fprintf(errOut, "erro: %v\n", err)
		return 1
	}
	return 0
}

type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *db.SQLiteStore
	authoring *services.QuestionnaireService
	stats     *services.StatisticsService
	auth      *services.AuthService
	engine    *survey.Engine
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
}

func execute(ctx context.Context, cfg *config.Config, cmd string, args []string, in io.Reader, out, errOut io.Writer) error {
	handlers := map[string]func(*app, context.Context, []string) error{
		"init":    (*app).runInit,
		"list":    (*app).runList,
		"stats":   (*app).runStats,
		"report":  (*app).runReport,
		"export":  (*app).runExport,
		"take":    (*app).runTake,
		"adduser": (*app).runAddUser,
		"login":   (*app).runLogin,
		"whoami":  (*app).runWhoami,
		"passwd":  (*app).runPasswd,
	}
	h, ok := handlers[cmd]
	if !ok {
		fmt.Fprintf(errOut, "unknown command %q\n\n%s", cmd, usage)
		return errUsage
	}

	log := logger.Log
	opts := []db.Option{db.WithLogger(log)}
	if cfg.Auth.BootstrapAdmin {
		opts = append(opts, db.WithDefaultAdmin(cfg.Auth.BcryptCost))
	}
	store, err := db.Open(ctx, cfg.Database, opts...)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("close database", zap.Error(cerr))
		}
	}()

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		authoring: services.NewQuestionnaireService(store, log),
		stats:     services.NewStatisticsService(store, log),
		auth:      services.NewAuthService(store, cfg.Auth, log),
		engine:    survey.NewEngine(store, log),
		in:        in,
		out:       out,
		errOut:    errOut,
	}
	return h(a, ctx, args)
}

// newFlags builds a subcommand flag set whose parse errors surface as errUsage.
func (a *app) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}
