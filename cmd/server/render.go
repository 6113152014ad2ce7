package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"netbloom/internal/codec"
	"netbloom/internal/engine"
	"netbloom/internal/render"
	"netbloom/internal/repository/open"
)

// DefaultRenderSteps bounds the offline layout run
const DefaultRenderSteps = 600

func renderCommand(ctx context.Context, opts *options) *cli.Command {
	var input, output, format string
	var steps int
	var restore bool

	return &cli.Command{
		Name:      "render",
		Usage:     "lay out one snapshot file offline and write SVG or DOT",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "snapshot `FILE` (JSON or YAML)",
				Required:    true,
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write to `FILE` instead of stdout",
				Destination: &output,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output `FORMAT` (svg or dot), defaults to the output extension or svg",
				Destination: &format,
			},
			&cli.IntFlag{
				Name:        "steps",
				Usage:       "maximum simulation `STEPS` before writing",
				Value:       DefaultRenderSteps,
				Destination: &steps,
			},
			&cli.BoolFlag{
				Name:        "restore",
				Usage:       "start from and save to the configured position store",
				Destination: &restore,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, logFile := setupLogger(opts, cfg.Log)
			defer logFile.Close()
			detect(ctx, opts, cfg, logger)

			if cfg.DataSource == "" {
				cfg.DataSource = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			format, err = outputFormat(format, output)
			if err != nil {
				return err
			}

			cd, err := codec.ForPath(input)
			if err != nil {
				return err
			}
			f, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("opening snapshot: %w", err)
			}
			conns, err := cd.Parse(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("reading %s: %w", input, err)
			}

			engOpts := []engine.Option{engine.WithLogger(logger)}
			if restore {
				store, err := open.Open(ctx, cfg.Storage)
				if err != nil {
					return fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
				}
				defer store.Close()
				engOpts = append(engOpts, engine.WithStore(store))
			}

			eng, err := engine.New(engineConfig(cfg), engOpts...)
			if err != nil {
				return fmt.Errorf("creating engine: %w", err)
			}
			defer eng.Stop()

			if _, err := eng.Update(conns); err != nil {
				return fmt.Errorf("applying snapshot: %w", err)
			}
			taken := eng.Settle(steps)
			st := eng.Status()
			logger.Info("layout done", "steps", taken, "alpha", st.Alpha, "settled", st.Settled,
				"nodes", st.Nodes, "edges", st.Edges)

			var w io.Writer = c.App.Writer
			if output != "" && output != "-" {
				out, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output: %w", err)
				}
				defer out.Close()
				w = out
			}

			if format == "dot" {
				return eng.WriteDOT(w)
			}

			r, err := render.New(ctx)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.SVG(ctx, eng.View(), w)
		},
	}
}

// outputFormat picks svg or dot from the flag or the output extension
func outputFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".dot", ".gv":
			format = "dot"
		default:
			format = "svg"
		}
	}
	switch format = strings.ToLower(format); format {
	case "svg", "dot":
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}
