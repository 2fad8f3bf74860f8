package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-modman"
	"github.com/albertocavalcante/go-modman/config"
	"github.com/albertocavalcante/go-modman/mod"
)

func newInstallCmd(a *app, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <mod[@range]>...",
		Short: "Install mods and their dependencies",
		Example: `  modman install sodium
  modman install sodium@0.5.3 lithium@">=0.11"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := make([]modman.Operation, 0, len(args))
			for _, arg := range args {
				id, ranges, err := modman.ParseTarget(arg)
				if err != nil {
					return err
				}
				ops = append(ops, modman.Install(id, ranges...))
			}
			return a.run(cmd, modman.NewRequest(ops...), opts.dryRun)
		},
	}
	addDryRun(cmd, opts)
	return cmd
}

func newRemoveCmd(a *app, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <mod>...",
		Aliases: []string{"rm", "uninstall"},
		Short:   "Remove mods and the dependencies nothing else needs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := make([]modman.Operation, 0, len(args))
			for _, arg := range args {
				id, err := mod.ParseID(arg)
				if err != nil {
					return err
				}
				ops = append(ops, modman.Remove(id))
			}
			return a.run(cmd, modman.NewRequest(ops...), opts.dryRun)
		},
	}
	addDryRun(cmd, opts)
	return cmd
}

func newUpgradeCmd(a *app, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [mod[@range]]...",
		Short: "Upgrade mods to the newest compatible versions",
		Long: `Upgrade the named mods, or every explicitly installed mod when none
are named. Dependencies move along as far as the new versions require.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ops []modman.Operation
			if len(args) == 0 {
				snap, err := a.engine.State()
				if err != nil {
					return err
				}
				for _, id := range snap.State.IDs() {
					if snap.State[id].Reason == mod.ReasonExplicit {
						ops = append(ops, modman.Upgrade(id))
					}
				}
				if len(ops) == 0 {
					printf(a.out, "Nothing installed.\n")
					return nil
				}
			}
			for _, arg := range args {
				id, ranges, err := modman.ParseTarget(arg)
				if err != nil {
					return err
				}
				ops = append(ops, modman.Upgrade(id, ranges...))
			}
			return a.run(cmd, modman.NewRequest(ops...), opts.dryRun)
		},
	}
	addDryRun(cmd, opts)
	return cmd
}

func addDryRun(cmd *cobra.Command, opts *globalOptions) {
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show the plan without applying it")
}

// run prepares req, prints the plan and applies it unless dryRun is set.
func (a *app) run(cmd *cobra.Command, req modman.Request, dryRun bool) error {
	ctx := cmd.Context()
	p, err := a.engine.Prepare(ctx, req)
	if err != nil {
		return err
	}
	printf(a.out, "%s", renderPlan(p))
	if dryRun || p.IsEmpty() {
		return nil
	}

	snap, err := a.engine.Apply(ctx, p)
	if err != nil {
		return err
	}
	printf(a.out, "%s\n", successStyle.Render(fmt.Sprintf("Done. %d mods installed (state revision %d).", len(snap.State), snap.Revision)))
	return nil
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed mods",
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			snap, err := a.engine.State()
			if err != nil {
				return err
			}
			printf(a.out, "%s", renderInstalled(snap.State))
			return nil
		},
	}
}

func newGraphCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the dependency graph of installed mods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := a.engine.Graph(cmd.Context())
			if err != nil {
				return err
			}
			switch format {
			case "text":
				printf(a.out, "%s", g.ToText())
			case "dot":
				printf(a.out, "%s", g.ToDOT())
			case "json":
				data, err := g.ToJSON()
				if err != nil {
					return err
				}
				printf(a.out, "%s\n", data)
			default:
				return fmt.Errorf("unknown format %q (want text, dot or json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, dot or json")
	return cmd
}

func newWhyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "why <mod>",
		Short: "Explain why a mod is installed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.engine.Graph(cmd.Context())
			if err != nil {
				return err
			}
			id := mod.NormalizeID(args[0])
			chains, err := g.WhyIncluded(id)
			if err != nil {
				return err
			}
			if len(chains) == 0 {
				printf(a.out, "%s is installed but nothing requires it.\n", id)
				return nil
			}
			for _, chain := range chains {
				printf(a.out, "%s\n", chain)
			}
			return nil
		},
	}
}

func newInitCmd(a *app, opts *globalOptions) *cobra.Command {
	var game, loader string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create " + config.FileName + " in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dir := opts.dir
			if dir == "." {
				dir = currentDir()
			}
			path := filepath.Join(dir, config.FileName)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}

			cfg := config.Default(dir)
			cfg.Game.Version = game
			cfg.Game.Loader = loader
			cfg.Paths.Mods = "mods"
			cfg.Paths.State = config.StateFileName
			if len(opts.registries) > 0 {
				cfg.Registry.URLs = opts.registries
			}
			if _, err := cfg.Environment(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			printf(a.out, "%s\n", successStyle.Render("Created "+path))
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game-version", "", "Minecraft version mods must support")
	cmd.Flags().StringVar(&loader, "loader", "fabric", "mod loader (fabric, forge, quilt, neoforge)")
	return cmd
}

// exitCode maps failures to process exit codes: 2 for requests that
// cannot be satisfied, 3 when the installation may be left inconsistent.
func exitCode(err error) int {
	var impossible *modman.ResolutionImpossibleError
	var blocked *modman.BlockedRemovalError
	switch {
	case errors.Is(err, modman.ErrDirtyState):
		return 3
	case errors.As(err, &impossible), errors.As(err, &blocked), errors.Is(err, modman.ErrUnknownMod):
		return 2
	default:
		return 1
	}
}
