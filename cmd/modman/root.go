package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-modman/config"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	verbosity  int
	dir        string
	registries []string
	dryRun     bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "modman",
		Short: "A dependency-aware Minecraft mod manager",
		Long: titleStyle.Render("modman") + subtitleStyle.Render(" - a dependency-aware Minecraft mod manager") + `

modman resolves mods and their dependencies against a Modrinth-compatible
registry, then installs, upgrades or removes them as a single transaction
that is rolled back if any step fails.

Settings are read from the nearest modman.toml (see 'modman init').`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = newLogger(errOut, opts.verbosity)
			if cmd.Name() == "init" {
				return nil
			}
			cfg, err := config.LoadFrom(opts.dir)
			if err != nil {
				return err
			}
			if len(opts.registries) > 0 {
				cfg.Registry.URLs = opts.registries
			}
			a.logger.Debug("configuration loaded", "path", cfg.Path, "mods", cfg.Paths.Mods, "state", cfg.Paths.State)
			return a.setup(cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", "increase verbosity (-v info, -vv debug)")
	flags.StringVarP(&opts.dir, "dir", "C", ".", "directory to look for "+config.FileName+" from")
	flags.StringSliceVar(&opts.registries, "registry", nil, "registry URL, repeatable (overrides the configuration)")

	rootCmd.AddCommand(
		newInstallCmd(a, opts),
		newRemoveCmd(a, opts),
		newUpgradeCmd(a, opts),
		newListCmd(a),
		newGraphCmd(a),
		newWhyCmd(a),
		newInitCmd(a, opts),
	)
	return rootCmd
}

// newLogger backs slog with charmbracelet/log. Warnings are always shown;
// each -v lowers the threshold one level.
func newLogger(w io.Writer, verbosity int) *slog.Logger {
	level := log.WarnLevel
	switch {
	case verbosity >= 2:
		level = log.DebugLevel
	case verbosity == 1:
		level = log.InfoLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "modman",
	})
	return slog.New(handler)
}

func currentDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
