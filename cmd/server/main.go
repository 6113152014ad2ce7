package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"netbloom/internal/config"
	"netbloom/internal/core/bootstrap"
)

const (
	FlagCatGlobal = "Global options:"
	FlagCatServe  = "Server options:"
)

func main() {
	if err := Run(context.Background(), os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// options collects the global flag values
type options struct {
	configPath string
	addr       string
	dataSource string
	hub        string
	storage    string
	logFile    string
	detect     bool
	verbose    bool
	brief      bool
}

func Run(ctx context.Context, args []string) error {
	opts := &options{}

	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "load configuration from `FILE` instead of the search path",
			EnvVars:     []string{"NETBLOOM_CONFIG"},
			Destination: &opts.configPath,
			Category:    FlagCatGlobal,
		},
		&cli.StringFlag{
			Name:        "data-source",
			Usage:       "data source `NAME` shown and persisted",
			EnvVars:     []string{"NETBLOOM_DATA_SOURCE"},
			Destination: &opts.dataSource,
			Category:    FlagCatGlobal,
		},
		&cli.StringFlag{
			Name:        "hub",
			Usage:       "hub node `IP` at the center of the graph",
			EnvVars:     []string{"NETBLOOM_HUB"},
			Destination: &opts.hub,
			Category:    FlagCatGlobal,
		},
		&cli.StringFlag{
			Name:        "storage",
			Usage:       "position store `DRIVER` (memory, sqlite, postgres, s3)",
			EnvVars:     []string{"NETBLOOM_STORAGE"},
			Destination: &opts.storage,
			Category:    FlagCatGlobal,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "also write logs to rotated `FILE`",
			EnvVars:     []string{"NETBLOOM_LOG_FILE"},
			Destination: &opts.logFile,
			Category:    FlagCatGlobal,
		},
		&cli.BoolFlag{
			Name:        "detect",
			Usage:       "detect the hub and a data source from this host when not configured",
			EnvVars:     []string{"NETBLOOM_DETECT"},
			Destination: &opts.detect,
			Category:    FlagCatGlobal,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "verbose output (includes debug)",
			EnvVars:     []string{"NETBLOOM_VERBOSE"},
			Destination: &opts.verbose,
			Category:    FlagCatGlobal,
		},
		&cli.BoolFlag{
			Name:        "brief",
			Aliases:     []string{"b"},
			Usage:       "brief output (only warn and error)",
			EnvVars:     []string{"NETBLOOM_BRIEF"},
			Destination: &opts.brief,
			Category:    FlagCatGlobal,
		},
	}

	serveFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP listen `ADDRESS`",
			EnvVars:     []string{"NETBLOOM_ADDR"},
			Destination: &opts.addr,
			Category:    FlagCatServe,
		},
	}

	serveAction := func(_ *cli.Context) error {
		return serve(ctx, opts)
	}

	app := &cli.App{
		Name:                   "netbloom",
		Usage:                  "live connection graph around a gateway",
		Suggest:                true,
		UseShortOptionHandling: true,
		Flags:                  flatten(globalFlags, serveFlags),
		Before: func(_ *cli.Context) error {
			if opts.verbose && opts.brief {
				return errors.New("verbose and brief are mutually exclusive")
			}
			return nil
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the engine, data sources and HTTP API",
				Flags:  serveFlags,
				Action: serveAction,
			},
			{
				Name:  "check-config",
				Usage: "load and validate the configuration, then print a summary",
				Action: func(c *cli.Context) error {
					cfg, path, err := loadConfig(opts)
					if err != nil {
						return err
					}
					logger, logFile := setupLogger(opts, cfg.Log)
					defer logFile.Close()
					detect(ctx, opts, cfg, logger)

					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("%s: %w", lo.Ternary(path == "", "defaults", path), err)
					}
					fmt.Fprintf(c.App.Writer, "config: %s\n%s", lo.Ternary(path == "", "(defaults)", path), cfg.Summary())
					return nil
				},
			},
			initConfigCommand(opts),
			renderCommand(ctx, opts),
		},
	}

	return app.Run(args) //nolint:wrapcheck
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(opts *options) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if opts.configPath != "" {
		cfg, path, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	applyOverrides(opts, cfg)

	return cfg, path, nil
}

// applyOverrides copies set global flags over file values
func applyOverrides(opts *options, cfg *config.Config) {
	if opts.dataSource != "" {
		cfg.DataSource = opts.dataSource
	}
	if opts.hub != "" {
		cfg.Hub = opts.hub
	}
	if opts.storage != "" {
		cfg.Storage.Driver = opts.storage
	}
	if opts.addr != "" {
		cfg.HTTP.Addr = opts.addr
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	cfg.ApplyDefaults()
}

func initConfigCommand(opts *options) *cli.Command {
	var output string
	var force bool

	return &cli.Command{
		Name:  "init-config",
		Usage: "write a default configuration file, with global flag overrides applied",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write to `FILE`",
				Value:       config.DefaultConfigPath(),
				Destination: &output,
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "overwrite an existing file",
				Destination: &force,
			},
		},
		Action: func(c *cli.Context) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", output)
			}

			cfg := config.DefaultConfig()
			applyOverrides(opts, cfg)
			if err := cfg.Save(output); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "wrote %s\n", output)
			return nil
		},
	}
}

// detect runs host discovery when asked to, or when the hub is "auto"
func detect(ctx context.Context, opts *options, cfg *config.Config, logger *slog.Logger) {
	if !opts.detect && cfg.Hub != config.HubAuto {
		return
	}
	res := bootstrap.Run(ctx, bootstrap.Options{}, logger.With("component", "bootstrap"))
	for _, note := range res.Apply(cfg, opts.detect) {
		logger.Info("detected", "setting", note)
	}
}

func flatten[T any, Slice ~[]T](collection ...Slice) Slice {
	return lo.Flatten(collection)
}
