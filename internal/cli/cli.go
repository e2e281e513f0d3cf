package cli

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sheetblocks/pkg/buildinfo"
	"github.com/matzehuels/sheetblocks/pkg/config"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/pipeline"
	"github.com/matzehuels/sheetblocks/pkg/render"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Global flags.
	configPath string
	driver     string
	dataDir    string
	dsn        string
	namespace  string
	verbose    bool

	cfg *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Sheetblocks finds and labels blocks in spreadsheets",
		Long: `Sheetblocks splits spreadsheets into blocks of rows separated by blank rows,
lets you label those blocks, and saves the labels as templates that are applied
automatically to new files with the same block structure.`,
		Version:           buildinfo.Get().Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/sheetblocks/config.toml)")
	pf.StringVar(&c.driver, "storage", "", "storage driver: "+strings.Join(storage.Drivers, ", "))
	pf.StringVar(&c.dataDir, "data-dir", "", "data directory for the file and sqlite drivers")
	pf.StringVar(&c.dsn, "dsn", "", "connection string for the postgres, redis and mongo drivers")
	pf.StringVar(&c.namespace, "namespace", "", "key prefix isolating this data set")

	// Register all subcommands
	root.AddCommand(c.detectCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.annotateCommand())
	root.AddCommand(c.templateCommand())
	root.AddCommand(c.applyCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.storageCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration, applies flag overrides and attaches the
// logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.driver != "" {
		cfg.Storage.Driver = c.driver
	}
	if c.dataDir != "" {
		cfg.Storage.Dir = c.dataDir
	}
	if c.dsn != "" {
		cfg.Storage.DSN = c.dsn
	}
	if c.namespace != "" {
		cfg.Storage.Namespace = c.namespace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.SetLogLevel(logLevel(cfg.Log.Level, c.verbose))
	if c.Logger.GetLevel() == log.DebugLevel {
		registerDebugHooks(c.Logger)
	}
	c.Logger.Debug("loaded config", "config", cfg.String())

	cmd.SetContext(log.WithContext(cmd.Context(), c.Logger))
	return nil
}

// config returns the loaded configuration, or the defaults before setup.
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Service Factory
// =============================================================================

// openService opens the configured storage and builds a pipeline service
// on it. The caller must close the returned store.
func (c *CLI) openService(ctx context.Context) (*pipeline.Service, storage.Store, error) {
	cfg := c.config()
	st, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, nil, err
	}

	opts := pipeline.Options{
		Keyer:  storage.NewKeyer(cfg.Storage.Namespace),
		Logger: c.Logger,
	}
	if cfg.Match.Strict {
		opts.Mode = layout.ByShape
	}
	if cfg.Render.Enabled {
		opts.Renderer = render.NewRenderer(render.Format(cfg.Render.Format))
	}
	return pipeline.New(st, opts), st, nil
}

// withService runs fn with a service and closes its store afterwards.
func (c *CLI) withService(ctx context.Context, fn func(*pipeline.Service) error) error {
	svc, st, err := c.openService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			c.Logger.Warn("close storage", "error", cerr)
		}
	}()
	return fn(svc)
}
