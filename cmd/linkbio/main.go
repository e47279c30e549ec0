// Command linkbio runs the link-in-bio directory server.
//
//	linkbio serve    start the HTTP server
//	linkbio migrate  apply the schema for the configured store and exit
//	linkbio version  print build information
//
// Configuration comes from --config (default linkbio.toml, skipped if
// missing) overridden by LINKBIO_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/linkbio/internal/config"
	"github.com/sakif/linkbio/internal/logger"
	"github.com/sakif/linkbio/internal/server"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "linkbio",
		Short:         "Link-in-bio directory server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("LINKBIO_CONFIG"),
		"path to the TOML config file")

	load := func() (config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return cfg, nil, err
		}
		return cfg, logger.New(out, cfg.Log.Level, cfg.Log.Format), nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				srv, err := server.New(cmd.Context(), cfg, log)
				if err != nil {
					return fmt.Errorf("creating server: %w", err)
				}
				return srv.Start(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the schema for the configured store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := load()
				if err != nil {
					return err
				}
				_, closeStore, err := server.OpenStore(cmd.Context(), cfg.Database, log)
				if err != nil {
					return fmt.Errorf("migrating: %w", err)
				}
				closeStore()
				log.Info("schema is up to date", slog.String("driver", cfg.Database.Driver))
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), versionString())
			},
		},
	)
	return root
}

func versionString() string {
	v := "linkbio " + Version
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				v += " (" + s.Value[:7] + ")"
			}
		}
	}
	return v
}
