package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cog-cli/internal/actions"
	"cog-cli/internal/format"
	"cog-cli/internal/gemini"
	"cog-cli/internal/logging"
	"cog-cli/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// annotTUI marks commands that take over the terminal; their logs go to a file.
const annotTUI = "tui"

type App struct {
	Dir        string
	Workspace  string
	Driver     string
	DSN        string
	Remote     string
	PrettyJSON bool
	Format     string
	Verbose    bool
	LogFile    string

	log *zap.Logger
	cfg *store.GlobalConfig
	st  *store.Store
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "cog",
		Short:        "cog: image series editor (terminal editor, CLI and HTTP actions)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Reopen the editor where you left off
  cog

  # Open a series in the editor, or a specific image in it
  cog edit ser-3f2a
  cog edit ser-3f2a img-91bc --group

  # Scriptable commands
  cog images list ser-3f2a --format yaml
  cog images rate img-91bc 4

  # Serve the actions API for remote editors
  cog serve --addr :8080
`),
		Annotations: map[string]string{annotTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runEditor(cmd, app, editorArgs{})
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return app.init(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("COG_DIR", ""), "Path to the workspace dir (overrides workspace resolution)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", envOr("COG_WORKSPACE", ""), "Workspace name (default: 'default')")
	cmd.PersistentFlags().StringVar(&app.Driver, "db-driver", envOr("COG_DB_DRIVER", ""), "Database driver (sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&app.DSN, "dsn", envOr("COG_DSN", ""), "Database DSN (required for postgres)")
	cmd.PersistentFlags().StringVar(&app.Remote, "remote", envOr("COG_REMOTE", ""), "Base URL of a cog server to use instead of the local store")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("COG_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", envOr("COG_VERBOSE", "") != "", "Debug logging")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log", envOr("COG_LOG", ""), "Log file (the editor logs to <workspace>/cog.log by default)")

	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newOpenCmd(app))
	cmd.AddCommand(newSeriesCmd(app))
	cmd.AddCommand(newImagesCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newJobsCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWorkspaceCmd(app))

	return cmd
}

func (app *App) init(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, fmt.Errorf("load config: %w", err))
	}
	app.cfg = cfg

	logFile := app.LogFile
	if logFile == "" && cmd.Annotations[annotTUI] == "true" {
		dir, err := app.resolveDir()
		if err != nil {
			return writeErr(cmd, err)
		}
		logFile = filepath.Join(dir, "cog.log")
	}
	log, err := logging.New(logging.Options{Verbose: app.Verbose, File: logFile})
	if err != nil {
		return writeErr(cmd, fmt.Errorf("logging: %w", err))
	}
	app.log = log
	return nil
}

func (app *App) close() error {
	var err error
	if app.st != nil {
		err = app.st.Close()
		app.st = nil
	}
	if app.log != nil {
		_ = app.log.Sync()
	}
	return err
}

func (app *App) logger() *zap.Logger {
	if app.log == nil {
		return logging.Nop()
	}
	return app.log
}

func (app *App) config() *store.GlobalConfig {
	if app.cfg == nil {
		return &store.GlobalConfig{}
	}
	return app.cfg
}

// resolveDir picks the workspace dir:
// 1) --dir
// 2) --workspace
// 3) ~/.cog/config.json currentWorkspace
// 4) the implicit "default" workspace
func (app *App) resolveDir() (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	name := app.Workspace
	if name == "" {
		name = app.config().CurrentWorkspace
	}
	if name == "" {
		name = "default"
	}
	dir, err := store.WorkspaceDir(name)
	if err != nil {
		return "", err
	}
	app.Workspace = name
	app.Dir = dir
	return dir, nil
}

func (app *App) loadStore(ctx context.Context) (*store.Store, error) {
	if app.st != nil {
		return app.st, nil
	}
	dir, err := app.resolveDir()
	if err != nil {
		return nil, err
	}
	opts := store.Options{Dir: dir, Driver: app.Driver, DSN: app.DSN}
	if db := app.config().Database; db != nil {
		if opts.Driver == "" {
			opts.Driver = db.Driver
		}
		if opts.DSN == "" {
			opts.DSN = db.DSN
		}
	}
	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	app.st = st
	return st, nil
}

var errRemote = errors.New("not available with --remote; run it against the server's workspace")

// localStore is for commands outside the actions API.
func (app *App) localStore(ctx context.Context) (*store.Store, error) {
	if app.Remote != "" {
		return nil, errRemote
	}
	return app.loadStore(ctx)
}

// backend returns the actions implementation: a client for --remote, otherwise
// the local store with the configured generator.
func (app *App) backend(ctx context.Context) (actions.Actions, actions.Blobs, error) {
	if app.Remote != "" {
		c := actions.NewClient(app.Remote)
		return c, c, nil
	}
	l, err := app.localBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return l, l, nil
}

func (app *App) localBackend(ctx context.Context) (*actions.Local, error) {
	st, err := app.localStore(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := app.generator(ctx)
	if err != nil {
		return nil, err
	}
	return actions.NewLocal(st, gen, app.logger()), nil
}

func (app *App) generator(ctx context.Context) (actions.Generator, error) {
	gc := app.config().Generator
	if gc == nil {
		gc = &store.GeneratorConfig{}
	}
	var gen actions.Generator
	switch strings.ToLower(strings.TrimSpace(gc.Provider)) {
	case "copy":
		gen = actions.CopyGenerator{}
	case "gemini":
		g, err := gemini.New(ctx, "", app.logger())
		if err != nil {
			return nil, err
		}
		g.Model = gc.Model
		gen = g
	case "":
		if os.Getenv("GEMINI_API_KEY") == "" {
			app.logger().Debug("no GEMINI_API_KEY; edits copy their source")
			gen = actions.CopyGenerator{}
			break
		}
		g, err := gemini.New(ctx, "", app.logger())
		if err != nil {
			return nil, err
		}
		g.Model = gc.Model
		gen = g
	default:
		return nil, fmt.Errorf("unknown generator provider %q (expected gemini|copy)", gc.Provider)
	}
	return actions.NewLimited(gen, gc.PerMinute), nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
