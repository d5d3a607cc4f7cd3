package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/config"
	"github.com/keelworks/tweakctl/internal/executor"
	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/plan"
	"github.com/keelworks/tweakctl/internal/restore"
	"github.com/keelworks/tweakctl/internal/script"
)

var (
	applyFlagPreset         string
	applyFlagDisable        bool
	applyFlagDryRun         bool
	applyFlagYes            bool
	applyFlagNoRestorePoint bool
	applyFlagParams         []string
)

var applyCmd = &cobra.Command{
	Use:   "apply [tweaks...]",
	Short: "Apply tweaks or a preset, saving a restore point first",
	Long: `Apply the named tweaks, or a whole preset with --preset.

Before any script runs, the operations needed to undo the change are written
to a restore point (unless --no-restore-point). Scripts run strictly one at
a time; a failure does not stop the remaining tweaks.

Examples:
  # Apply individual tweaks
  tweakctl apply disable-telemetry disable-cortana

  # Apply the disable side instead
  tweakctl apply --disable dark-mode

  # Apply a preset, preview only
  tweakctl apply --preset privacy --dry-run

  # Override a script parameter (single tweak only)
  tweakctl apply set-telemetry --param Level=1`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyFlagPreset, "preset", "", "apply a preset instead of individual tweaks")
	applyCmd.Flags().BoolVar(&applyFlagDisable, "disable", false, "apply the disable side of the named tweaks")
	applyCmd.Flags().BoolVar(&applyFlagDryRun, "dry-run", false, "show what would run without running it")
	applyCmd.Flags().BoolVarP(&applyFlagYes, "yes", "y", false, "skip confirmation prompt")
	applyCmd.Flags().BoolVar(&applyFlagNoRestorePoint, "no-restore-point", false, "skip the restore point (cannot be undone)")
	applyCmd.Flags().StringArrayVar(&applyFlagParams, "param", nil, "script parameter override as Name=Value (repeatable)")

	RootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	cat, err := loadCatalog(paths)
	if err != nil {
		return err
	}

	selections, err := buildSelections(cat, paths, args)
	if err != nil {
		return err
	}
	if len(selections) == 0 {
		fmt.Println("Nothing to apply.")
		return nil
	}

	p, err := plan.NewBuilder(cat).Build(selections)
	if err != nil {
		return err
	}
	if len(p.Apply) == 0 {
		fmt.Println("None of the selected tweaks define the requested side.")
		return nil
	}

	fmt.Printf("Will run %d operations:\n", len(p.Apply))
	for _, inv := range p.Apply {
		fmt.Printf("  %s (%s)\n", inv.Name, inv.ScriptPath)
	}

	if applyFlagDryRun {
		fmt.Println("\nDry-run mode: nothing was changed.")
		return nil
	}

	if !applyFlagYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Apply %d operations", len(p.Apply)),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	store := restore.NewStore(paths.RestorePoints())
	if applyFlagNoRestorePoint {
		fmt.Println("⚠  Restore point skipped (--no-restore-point); this cannot be undone.")
	} else {
		point, err := store.Save(selections, p)
		if err != nil {
			return fmt.Errorf("failed to save restore point: %w", err)
		}
		if point != nil {
			fmt.Printf("Restore point: %s\n", point.ID)
		} else {
			fmt.Println("No revert operations to record; restore point skipped.")
		}
	}

	fmt.Println()
	progress := output.NewProgress(len(p.Apply), "Applying tweaks")
	runner := newRunner(paths)
	ex := executor.New(script.RunnerFunc(func(ctx context.Context, scriptPath string, params map[string]any) (*script.Result, error) {
		defer progress.Increment()
		return runner.Invoke(ctx, scriptPath, params)
	}))
	res, err := ex.Execute(cmd.Context(), p.Apply)
	progress.Finish()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(output.RenderExecutionResult(res))

	if !res.Success() {
		_, failed := res.Counts()
		return fmt.Errorf("%d operations failed", failed)
	}
	return nil
}

// buildSelections turns CLI arguments into plan selections, either from a
// preset or from explicitly named tweaks.
func buildSelections(cat *catalog.Catalog, paths config.Paths, args []string) ([]plan.Selection, error) {
	if applyFlagPreset != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("cannot combine --preset with explicit tweaks")
		}
		if len(applyFlagParams) > 0 {
			return nil, fmt.Errorf("--param requires a single explicit tweak")
		}
		return presetSelections(cat, paths, applyFlagPreset)
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("no tweaks specified\n\nTry:\n  tweakctl apply <tweak-id>\n  tweakctl apply --preset <preset-id>")
	}
	if len(applyFlagParams) > 0 && len(args) != 1 {
		return nil, fmt.Errorf("--param requires a single explicit tweak")
	}

	overrides, err := parseParams(applyFlagParams)
	if err != nil {
		return nil, err
	}

	target := !applyFlagDisable
	selections := make([]plan.Selection, 0, len(args))
	for _, id := range args {
		if _, ok := cat.Tweak(id); !ok {
			return nil, fmt.Errorf("unknown tweak: %s", id)
		}
		selections = append(selections, plan.Selection{
			TweakID:          id,
			TargetState:      target,
			PreviousState:    !target,
			TargetParameters: overrides,
		})
	}
	return selections, nil
}

// presetSelections expands a preset (or an alias for one) into selections,
// in stable tweak-id order.
func presetSelections(cat *catalog.Catalog, paths config.Paths, name string) ([]plan.Selection, error) {
	aliases, err := config.LoadAliases(paths.Aliases())
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}

	preset, ok := cat.Preset(aliases.Resolve(name))
	if !ok {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}

	ids := make([]string, 0, len(preset.States))
	for id := range preset.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	selections := make([]plan.Selection, 0, len(ids))
	for _, id := range ids {
		state := preset.States[id]
		selections = append(selections, plan.Selection{
			TweakID:       id,
			TargetState:   state,
			PreviousState: !state,
		})
	}
	return selections, nil
}

// parseParams parses repeated Name=Value flags. Booleans and integers are
// typed so scripts receive proper switch and numeric parameters.
func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(raw))
	for _, entry := range raw {
		idx := strings.IndexByte(entry, '=')
		if idx <= 0 {
			return nil, fmt.Errorf("invalid --param %q: expected Name=Value", entry)
		}
		name := strings.TrimSpace(entry[:idx])
		value := strings.TrimSpace(entry[idx+1:])
		if name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected Name=Value", entry)
		}
		switch {
		case strings.EqualFold(value, "true"):
			params[name] = true
		case strings.EqualFold(value, "false"):
			params[name] = false
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				params[name] = n
			} else {
				params[name] = value
			}
		}
	}
	return params, nil
}
